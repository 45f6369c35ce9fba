package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// PropagationConfig tunes the propagator.
type PropagationConfig struct {
	// ChunkSize bounds the writes committed together; it is clamped to the
	// store's batch bound.
	ChunkSize int
	PageSize  int
	// Attempts is how many times a failed category is re-run.
	Attempts int
	Backoff  time.Duration
}

// DefaultPropagationConfig returns the production tuning.
func DefaultPropagationConfig() PropagationConfig {
	return PropagationConfig{
		ChunkSize: store.MaxBatchOps,
		PageSize:  200,
		Attempts:  3,
		Backoff:   100 * time.Millisecond,
	}
}

// Propagator rewrites every embedded copy of a user's profile fragment.
// Every write is a whole-fragment overwrite, so re-running it after a
// partial failure converges.
type Propagator struct {
	store  *store.Store
	cfg    PropagationConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPropagator creates a propagator.
func NewPropagator(s *store.Store, cfg PropagationConfig, logger *slog.Logger) *Propagator {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultPropagationConfig().PageSize
	}
	return &Propagator{store: s, cfg: cfg, logger: logger, now: time.Now}
}

type category struct {
	name string
	run  func(ctx context.Context, userID string, frag domain.Fragment, now time.Time) (int, error)
}

// Propagate rewrites frag into friend summaries, group member entries,
// invitations sent by userID and pending join requests naming userID. It
// returns the number of locations written. Categories run independently; a
// failing category is retried and then reported without blocking the others.
// Reaction and update authorship snapshots are left alone.
func (p *Propagator) Propagate(ctx context.Context, userID string, frag domain.Fragment) (int, error) {
	start := time.Now()
	now := p.now().UTC()

	categories := []category{
		{"friends", p.friends},
		{"groups", p.groups},
		{"invitations", p.invitations},
		{"join_requests", p.joinRequests},
	}

	var total int
	var errs []error
	for _, c := range categories {
		n, err := p.withRetry(ctx, c, userID, frag, now)
		total += n
		if err != nil {
			p.logger.Warn("propagation category failed",
				slog.String("user_id", userID),
				slog.String("category", c.name),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}

	p.logger.Info("fragment propagated",
		slog.String("user_id", userID),
		slog.Int("updated", total),
		slog.Int("failed_categories", len(errs)),
		slog.Duration("took", time.Since(start)))
	return total, errors.Join(errs...)
}

func (p *Propagator) withRetry(ctx context.Context, c category, userID string, frag domain.Fragment, now time.Time) (int, error) {
	var n int
	var err error
	backoff := p.cfg.Backoff
	for attempt := range p.cfg.Attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return n, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		n, err = c.run(ctx, userID, frag, now)
		if err == nil || ctx.Err() != nil {
			return n, err
		}
	}
	return n, err
}

// friends rewrites each friend's summary of userID. userID's own rows hold
// the friends' fragments and are untouched.
func (p *Propagator) friends(ctx context.Context, userID string, frag domain.Fragment, now time.Time) (int, error) {
	f := newFanout(p.store, p.cfg.ChunkSize)
	patch := domain.FragmentPatch(frag)

	for row, err := range p.store.Friends(ctx, userID, p.cfg.PageSize) {
		if err != nil {
			return f.written(), err
		}
		friendID := row.FriendID
		err := f.stage(ctx, 1, func(b *store.Batch) (bool, error) {
			_, err := p.store.PatchFriend(ctx, b, friendID, userID, patch, now)
			if errors.Is(err, store.ErrNotFound) {
				// Half of a pair being removed concurrently.
				return false, nil
			}
			return err == nil, err
		})
		if err != nil {
			return f.written(), err
		}
	}
	err := f.flush(ctx)
	return f.written(), err
}

func (p *Propagator) groups(ctx context.Context, userID string, frag domain.Fragment, now time.Time) (int, error) {
	ids, err := p.store.GroupIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	f := newFanout(p.store, p.cfg.ChunkSize)
	for _, groupID := range ids {
		err := f.stage(ctx, 1, func(b *store.Batch) (bool, error) {
			return p.store.SetGroupMemberProfile(ctx, b, groupID, userID, frag, now)
		})
		if err != nil {
			return f.written(), err
		}
	}
	err = f.flush(ctx)
	return f.written(), err
}

func (p *Propagator) invitations(ctx context.Context, userID string, frag domain.Fragment, now time.Time) (int, error) {
	f := newFanout(p.store, p.cfg.ChunkSize)
	for inv, err := range p.store.InvitationsBySender(ctx, userID, p.cfg.PageSize) {
		if err != nil {
			return f.written(), err
		}
		invID := inv.ID
		err := f.stage(ctx, 1, func(b *store.Batch) (bool, error) {
			return p.store.SetInvitationSender(ctx, b, invID, frag, now)
		})
		if err != nil {
			return f.written(), err
		}
	}
	err := f.flush(ctx)
	return f.written(), err
}

// joinRequests rewrites pending requests on either side. Resolved requests
// keep the fragments they were resolved with.
func (p *Propagator) joinRequests(ctx context.Context, userID string, frag domain.Fragment, now time.Time) (int, error) {
	f := newFanout(p.store, p.cfg.ChunkSize)
	seen := make(map[string]struct{})

	streams := []iter.Seq2[*domain.JoinRequest, error]{
		p.store.JoinRequestsByRequester(ctx, userID, p.cfg.PageSize),
		p.store.JoinRequestsByReceiver(ctx, userID, p.cfg.PageSize),
	}
	for _, stream := range streams {
		for req, err := range stream {
			if err != nil {
				return f.written(), err
			}
			if req.Status != domain.JoinRequestPending {
				continue
			}
			if _, dup := seen[req.ID]; dup {
				continue
			}
			seen[req.ID] = struct{}{}

			reqID := req.ID
			err := f.stage(ctx, 1, func(b *store.Batch) (bool, error) {
				return p.store.SetJoinRequestFragment(ctx, b, reqID, userID, frag, now)
			})
			if err != nil {
				return f.written(), err
			}
		}
	}
	err := f.flush(ctx)
	return f.written(), err
}
