// Package events delivers post-commit notifications to subscribers without
// coupling the write path to their delivery.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types
const (
	DiaryCreated = "diary.created"
	DiaryDeleted = "diary.deleted"
	PhotoTagged  = "photo.tagged"
)

// PhotoRef identifies a stored photo
type PhotoRef struct {
	PhotoID  string `json:"photo_id"`
	FileName string `json:"file_name"`
	Tag      string `json:"tag,omitempty"`
}

// Event is emitted after a transaction has committed
type Event struct {
	Type       string     `json:"type"`
	UserID     string     `json:"user_id"`
	DiaryID    string     `json:"diary_id,omitempty"`
	TripDate   string     `json:"trip_date,omitempty"`
	Photos     []PhotoRef `json:"photos,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Handler receives events. Returned errors are logged only.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, e Event) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Dispatcher fans events out to its handlers, each in its own goroutine
type Dispatcher struct {
	handlers map[string][]Handler
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher; timeout bounds each delivery
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		timeout:  timeout,
	}
}

// Subscribe registers h for the given event types. It must be called before
// the first Publish.
func (d *Dispatcher) Subscribe(h Handler, types ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], h)
	}
}

// Publish delivers e asynchronously and returns immediately
func (d *Dispatcher) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("event", e.Type).Msg("Dispatcher closed, dropping event")
		return
	}

	for _, h := range d.handlers[e.Type] {
		d.wg.Add(1)
		go d.deliver(h, e)
	}
}

func (d *Dispatcher) deliver(h Handler, e Event) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("event", e.Type).Msg("Event handler panicked")
		}
	}()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := h.Handle(ctx, e); err != nil {
		log.Warn().
			Err(err).
			Str("event", e.Type).
			Str("user_id", e.UserID).
			Str("diary_id", e.DiaryID).
			Msg("Event handler failed")
	}
}

// Close stops accepting events and waits for in-flight deliveries or ctx
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
