package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/efreitasn/stockledger/internal/domain"
)

// Event types published after the ledger decides on an offer.
const (
	TypeOfferAccepted = "offer.accepted"
	TypeOfferRejected = "offer.rejected"
)

// OfferEvent describes one ledger decision. Offer is set for accepted
// offers; Input, Held and Reason describe a rejected one.
type OfferEvent struct {
	Type   string
	Time   time.Time
	Offer  *domain.Offer
	Input  domain.OfferInput
	Held   int64
	Reason string
}

// Key groups events by wallet so one wallet's events stay ordered.
func (e OfferEvent) Key() string {
	if e.Offer != nil {
		return e.Offer.Key().String()
	}
	return e.Input.Key().String()
}

// Publisher delivers offer events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, ev OfferEvent) error
	Close() error
}

// eventPayload is the JSON body shared by every sink.
type eventPayload struct {
	Event     string    `json:"event"`
	Timestamp string    `json:"timestamp"`
	Data      eventData `json:"data"`
}

type eventData struct {
	Seq       uint64 `json:"seq,omitempty"`
	OfferID   string `json:"offer_id,omitempty"`
	DateTime  string `json:"datetime,omitempty"`
	Operation string `json:"operation"`
	Broker    string `json:"broker"`
	Stock     string `json:"stock"`
	Price     string `json:"price"`
	Shares    int64  `json:"shares"`
	Held      *int64 `json:"held,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal renders ev as the JSON payload delivered to sinks.
func Marshal(ev OfferEvent) ([]byte, error) {
	p := eventPayload{
		Event:     ev.Type,
		Timestamp: ev.Time.UTC().Truncate(time.Second).Format(time.RFC3339),
	}
	if o := ev.Offer; o != nil {
		p.Data = eventData{
			Seq:       o.Seq,
			OfferID:   o.ID,
			DateTime:  o.DateTime,
			Operation: string(o.Operation),
			Broker:    o.Broker,
			Stock:     o.Stock,
			Price:     o.Price.String(),
			Shares:    o.Shares,
		}
	} else {
		held := ev.Held
		p.Data = eventData{
			Operation: string(ev.Input.Operation),
			Broker:    ev.Input.Broker,
			Stock:     ev.Input.Stock,
			Price:     ev.Input.Price.String(),
			Shares:    ev.Input.Shares,
			Held:      &held,
			Reason:    ev.Reason,
		}
	}
	return json.Marshal(p)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, OfferEvent) error { return nil }
func (Nop) Close() error                             { return nil }

// Multi fans an event out to several publishers. Every publisher is
// attempted; the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev OfferEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
