// Package publisher decouples audit emission from persistence. In sync mode
// Emit writes through to the store; with an async buffer, events are queued
// and drained by a background goroutine so the hot path never blocks on the
// audit sink.
package publisher

import (
	"context"
	"sync"

	audit "rollcall/pkg/platform/audit"
)

type Publisher struct {
	store audit.Store

	inbox     chan audit.Event
	drained   sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async emission with the given queue depth. When the
// queue is full, Emit drops the event rather than blocking the caller: audit
// is best-effort relative to request latency.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// NewPublisher wraps a store. Remember to Close so the async queue drains.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.drained.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		// Queue full: drop rather than stall the request path.
	}
	return nil
}

// Close stops accepting events and drains the queue.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.drained.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.drained.Done()
	for event := range p.inbox {
		// Detached context: the emitting request may be long gone.
		_ = p.store.Append(context.Background(), event)
	}
}
