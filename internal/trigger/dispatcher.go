// Package trigger runs the write-time reactions to profile changes: fragment
// propagation and bucket membership upkeep. It receives the store's change
// events after commit.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// Propagator rewrites embedded copies of a user's fragment.
type Propagator interface {
	Propagate(ctx context.Context, userID string, frag domain.Fragment) (int, error)
}

// Memberships maintains bucket rows.
type Memberships interface {
	Replace(ctx context.Context, b *store.Batch, userID string, prefs *domain.NudgePreferences, timezone string, now time.Time) error
	RemoveAll(ctx context.Context, b *store.Batch, userID string) error
}

// ChannelRemover drops a user's delivery channel.
type ChannelRemover interface {
	Remove(ctx context.Context, userID string) error
}

// Handlers are the collaborators events are dispatched to. Channels may be
// nil.
type Handlers struct {
	Propagator  Propagator
	Memberships Memberships
	Channels    ChannelRemover
}

// Config tunes the dispatcher.
type Config struct {
	// Workers is the number of shards. Events of one user always land on the
	// same shard and are handled in commit order.
	Workers int
	// QueueSize is the buffer per shard.
	QueueSize int
	// Timeout caps the handling of one event.
	Timeout time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256, Timeout: time.Minute}
}

// Dispatcher implements store.EventEmitter. Handlers are bound after
// construction because they depend on the store the dispatcher is given to.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers Handlers
	shards   []chan any
	closed   bool
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Bind and Start before events
// arrive; events queued earlier wait in the buffer.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dispatcher{cfg: cfg, logger: logger, now: time.Now}
	d.shards = make([]chan any, cfg.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan any, cfg.QueueSize)
	}
	return d
}

// Bind sets the handlers.
func (d *Dispatcher) Bind(h Handlers) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = h
}

// Start launches one worker per shard. Workers exit when ctx is done or
// after Shutdown drains their queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, shard := range d.shards {
		d.wg.Go(func() {
			for {
				select {
				case event, ok := <-shard:
					if !ok {
						return
					}
					d.run(ctx, event)
				case <-ctx.Done():
					return
				}
			}
		})
	}
	d.logger.Info("trigger dispatcher started", slog.Int("workers", len(d.shards)))
}

// Emit queues a store event. It never blocks; a full shard drops the event
// with an error log.
func (d *Dispatcher) Emit(event any) {
	userID, ok := subject(event)
	if !ok {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.shards[shardOf(userID, len(d.shards))] <- event:
	default:
		d.logger.Error("trigger queue full, dropping event",
			slog.String("user_id", userID),
			slog.String("event", fmt.Sprintf("%T", event)))
	}
}

// Shutdown stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, shard := range d.shards {
			close(shard)
		}
	}
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
		return fmt.Errorf("trigger drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) run(ctx context.Context, event any) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	if err := d.Handle(ctx, event); err != nil {
		userID, _ := subject(event)
		d.logger.Warn("trigger handler failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// Handle processes one event synchronously.
func (d *Dispatcher) Handle(ctx context.Context, event any) error {
	d.mu.RLock()
	h := d.handlers
	d.mu.RUnlock()

	switch e := event.(type) {
	case store.ProfileChanged:
		return d.profileChanged(ctx, h, e)
	case store.ProfileDeleted:
		return d.profileDeleted(ctx, h, e)
	default:
		return nil
	}
}

func (d *Dispatcher) profileChanged(ctx context.Context, h Handlers, e store.ProfileChanged) error {
	after := e.After
	var errs []error

	// A new profile has no embedded copies yet.
	if e.Before != nil && domain.FragmentChanged(e.Before, after) && h.Propagator != nil {
		if _, err := h.Propagator.Propagate(ctx, after.UserID, after.Fragment()); err != nil {
			errs = append(errs, fmt.Errorf("propagate: %w", err))
		}
	}

	if domain.ScheduleChanged(e.Before, after) && h.Memberships != nil {
		if err := h.Memberships.Replace(ctx, nil, after.UserID, after.Nudge, after.Timezone, d.now()); err != nil {
			errs = append(errs, fmt.Errorf("replace buckets: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) profileDeleted(ctx context.Context, h Handlers, e store.ProfileDeleted) error {
	var errs []error
	if h.Memberships != nil {
		if err := h.Memberships.RemoveAll(ctx, nil, e.Profile.UserID); err != nil {
			errs = append(errs, fmt.Errorf("remove buckets: %w", err))
		}
	}
	if h.Channels != nil {
		if err := h.Channels.Remove(ctx, e.Profile.UserID); err != nil {
			errs = append(errs, fmt.Errorf("remove channel: %w", err))
		}
	}
	return errors.Join(errs...)
}

func subject(event any) (string, bool) {
	switch e := event.(type) {
	case store.ProfileChanged:
		if e.After != nil {
			return e.After.UserID, true
		}
	case store.ProfileDeleted:
		if e.Profile != nil {
			return e.Profile.UserID, true
		}
	}
	return "", false
}

func shardOf(userID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
