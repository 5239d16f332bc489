package events

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookPublisher POSTs each event to a fixed URL. Delivery is
// fire-and-forget through a bounded queue served by a fixed number of
// workers; failures are logged. Close waits for queued deliveries.
type WebhookPublisher struct {
	url    string
	client *http.Client
	logger *zap.Logger
	queue  *queue
}

// NewWebhookPublisher creates a publisher whose requests time out after
// timeout.
func NewWebhookPublisher(url string, timeout time.Duration, logger *zap.Logger) *WebhookPublisher {
	return newWebhookPublisher(url, timeout, logger, DefaultQueueSize, DefaultWebhookWorkers)
}

func newWebhookPublisher(url string, timeout time.Duration, logger *zap.Logger, queueSize, workers int) *WebhookPublisher {
	p := &WebhookPublisher{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	p.queue = newQueue(queueSize, workers, p.deliver)
	return p
}

// Publish encodes ev and schedules its delivery.
func (p *WebhookPublisher) Publish(_ context.Context, ev OfferEvent) error {
	body, err := Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if err := p.queue.push(message{eventType: ev.Type, key: ev.Key(), body: body}); err != nil {
		return fmt.Errorf("queue %s event: %w", ev.Type, err)
	}
	return nil
}

// Close blocks until pending deliveries finish.
func (p *WebhookPublisher) Close() error {
	p.queue.close()
	return nil
}

// deliver sends the payload via HTTP POST with the delivery headers.
func (p *WebhookPublisher) deliver(m message) {
	deliveryID := uuid.New().String()
	log := p.logger.With(
		zap.String("event", m.eventType),
		zap.String("delivery_id", deliveryID),
	)

	req, err := http.NewRequest(http.MethodPost, p.url, bytes.NewReader(m.body))
	if err != nil {
		log.Error("webhook request", zap.Error(err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Event-Type", m.eventType)

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
	}
}
