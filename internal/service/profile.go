package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/normalize"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
	"github.com/anjalik1505/town-functions-sub003/internal/validation"
)

// UpdateProfileRequest is a partial profile edit. Nil fields are left as
// stored.
type UpdateProfileRequest struct {
	Username *string                  `json:"username,omitempty" validate:"omitempty,username"`
	Name     *string                  `json:"name,omitempty" validate:"omitempty,max=80"`
	Avatar   *string                  `json:"avatar,omitempty" validate:"omitempty,max=2048"`
	Timezone *string                  `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Nudge    *domain.NudgePreferences `json:"nudge,omitempty"`
}

// ProfileService owns the profile source of truth. Dependent copies and
// bucket memberships are refreshed from the change events the store emits.
type ProfileService struct {
	store     *store.Store
	buckets   *store.Buckets
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewProfileService creates a profile service.
func NewProfileService(s *store.Store, buckets *store.Buckets, v *validation.Validator, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: s, buckets: buckets, validator: v, logger: logger, now: time.Now}
}

// Get returns a profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// Upsert creates userID's profile or applies a partial edit to it. A new
// profile needs a username.
func (s *ProfileService) Upsert(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.Profile, error) {
	if req.Username != nil {
		u := normalize.DisplayName(*req.Username)
		req.Username = &u
	}
	if req.Name != nil {
		n := normalize.DisplayName(*req.Name)
		req.Name = &n
	}
	if req.Timezone != nil {
		tz := normalize.Timezone(*req.Timezone)
		req.Timezone = &tz
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p, err := s.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if req.Username == nil {
			return nil, apperrors.ValidationWithDetails("invalid username",
				map[string]string{"username": "is required"})
		}
		p = &domain.Profile{UserID: userID, CreatedAt: now}
	case err != nil:
		return nil, err
	}

	if req.Username != nil {
		p.Username = *req.Username
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Avatar != nil {
		p.Avatar = *req.Avatar
	}
	if req.Timezone != nil {
		p.Timezone = *req.Timezone
	}
	if req.Nudge != nil {
		prefs := *req.Nudge
		prefs.Normalize()
		p.Nudge = &prefs
	}
	p.UpdatedAt = now

	if err := s.store.SaveProfile(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a profile together with everything that names the user:
// friend pairs, group memberships, invitations, join requests, updates and
// bucket memberships. Fan-outs are chunked, so a failure part way leaves the
// profile in place and the delete can be retried.
func (s *ProfileService) Delete(ctx context.Context, userID string) error {
	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		return err
	}
	now := s.now().UTC()

	steps := []struct {
		name string
		run  func(context.Context, string, time.Time) (int, error)
	}{
		{"friends", s.deleteFriends},
		{"groups", s.leaveGroups},
		{"invitations", s.deleteInvitations},
		{"join_requests", s.deleteJoinRequests},
		{"updates", s.deleteUpdates},
	}
	for _, step := range steps {
		n, err := step.run(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("delete %s of %s: %w", step.name, userID, err)
		}
		s.logger.Debug("profile cascade step", slog.String("user_id", userID), slog.String("step", step.name), slog.Int("removed", n))
	}

	err := s.store.Update(ctx, func(b *store.Batch) error {
		if err := s.buckets.RemoveAll(ctx, b, userID); err != nil {
			return err
		}
		return s.store.DeleteProfile(ctx, b, userID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("profile deleted", slog.String("user_id", userID))
	return nil
}

func (s *ProfileService) deleteFriends(ctx context.Context, userID string, _ time.Time) (int, error) {
	var ids []string
	for f, err := range s.store.Friends(ctx, userID, 200) {
		if err != nil {
			return 0, err
		}
		ids = append(ids, f.FriendID)
	}
	w := newFanout(s.store, store.MaxBatchOps)
	for _, friendID := range ids {
		err := w.stage(ctx, 2, func(b *store.Batch) (bool, error) {
			return true, s.store.RemoveFriendPair(ctx, b, userID, friendID)
		})
		if err != nil {
			return w.written(), err
		}
	}
	err := w.flush(ctx)
	return w.written(), err
}

func (s *ProfileService) leaveGroups(ctx context.Context, userID string, now time.Time) (int, error) {
	ids, err := s.store.GroupIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	w := newFanout(s.store, store.MaxBatchOps)
	for _, groupID := range ids {
		err := w.stage(ctx, 2, func(b *store.Batch) (bool, error) {
			return true, s.store.RemoveGroupMember(ctx, b, groupID, userID, now)
		})
		if err != nil {
			return w.written(), err
		}
	}
	err = w.flush(ctx)
	return w.written(), err
}

func (s *ProfileService) deleteInvitations(ctx context.Context, userID string, _ time.Time) (int, error) {
	var invs []*domain.Invitation
	for inv, err := range s.store.InvitationsBySender(ctx, userID, 200) {
		if err != nil {
			return 0, err
		}
		invs = append(invs, inv)
	}
	w := newFanout(s.store, store.MaxBatchOps)
	for _, inv := range invs {
		err := w.stage(ctx, 2, func(b *store.Batch) (bool, error) {
			return true, s.store.DeleteInvitation(ctx, b, inv)
		})
		if err != nil {
			return w.written(), err
		}
	}
	err := w.flush(ctx)
	return w.written(), err
}

func (s *ProfileService) deleteJoinRequests(ctx context.Context, userID string, _ time.Time) (int, error) {
	byID := make(map[string]*domain.JoinRequest)
	for _, stream := range []func(context.Context, string, int) iter.Seq2[*domain.JoinRequest, error]{
		s.store.JoinRequestsByRequester,
		s.store.JoinRequestsByReceiver,
	} {
		for req, err := range stream(ctx, userID, 200) {
			if err != nil {
				return 0, err
			}
			byID[req.ID] = req
		}
	}
	w := newFanout(s.store, store.MaxBatchOps)
	for _, req := range byID {
		err := w.stage(ctx, 3, func(b *store.Batch) (bool, error) {
			return true, s.store.DeleteJoinRequest(ctx, b, req)
		})
		if err != nil {
			return w.written(), err
		}
	}
	err := w.flush(ctx)
	return w.written(), err
}

// deleteUpdates removes each update in its own batch since its reaction
// count is unbounded.
func (s *ProfileService) deleteUpdates(ctx context.Context, userID string, _ time.Time) (int, error) {
	ids, err := s.store.UpdateIDsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var n int
	for _, updateID := range ids {
		u, err := s.store.GetUpdate(ctx, updateID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if err := s.store.DeleteUpdate(ctx, nil, u); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
