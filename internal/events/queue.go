package events

import (
	"errors"
	"sync"
)

const (
	// DefaultQueueSize is the number of events a publisher buffers before
	// Publish starts reporting ErrQueueFull.
	DefaultQueueSize = 1024

	// DefaultWebhookWorkers bounds concurrent webhook deliveries.
	DefaultWebhookWorkers = 4
)

var (
	// ErrQueueFull is returned by Publish when the sink is not keeping up.
	// The event is dropped.
	ErrQueueFull = errors.New("event queue full")

	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

// message is an encoded event waiting for delivery.
type message struct {
	eventType string
	key       string
	body      []byte
}

// queue hands messages to a fixed pool of workers. push never blocks;
// close stops intake and waits until the backlog is delivered.
type queue struct {
	mu     sync.RWMutex
	closed bool
	ch     chan message
	wg     sync.WaitGroup
}

func newQueue(size, workers int, deliver func(message)) *queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	q := &queue{ch: make(chan message, size)}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer q.wg.Done()
			for m := range q.ch {
				deliver(m)
			}
		}()
	}
	return q
}

func (q *queue) push(m message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrPublisherClosed
	}
	select {
	case q.ch <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *queue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
