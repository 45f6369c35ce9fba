package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/id"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// ChannelLookup resolves a user's delivery channel; nil means none.
type ChannelLookup interface {
	Lookup(ctx context.Context, userID string) (*domain.DeliveryChannel, error)
}

// SilentSender delivers data-only pushes.
type SilentSender interface {
	SendSilent(ctx context.Context, token string, data map[string]string) error
}

// CreateUpdateRequest is the input for UpdateService.Create.
type CreateUpdateRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
	Emoji   string `json:"emoji,omitempty" validate:"max=16"`
}

// UpdateService posts status updates and records reactions to them.
type UpdateService struct {
	store       *store.Store
	friendships *FriendshipService
	channels    ChannelLookup
	push        SilentSender
	chunk       int
	logger      *slog.Logger
	now         func() time.Time
}

// NewUpdateService creates an update service. channels and push may be nil,
// which disables friend pushes.
func NewUpdateService(s *store.Store, friendships *FriendshipService, channels ChannelLookup, push SilentSender, logger *slog.Logger) *UpdateService {
	return &UpdateService{
		store:       s,
		friendships: friendships,
		channels:    channels,
		push:        push,
		chunk:       store.MaxBatchOps,
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores an update with a snapshot of the author's fragment, then
// refreshes lastUpdateEmoji/lastUpdateAt on every friend's summary of the
// author. The fan-out is chunked; its failure is logged and does not fail the
// post.
func (s *UpdateService) Create(ctx context.Context, actorID string, req CreateUpdateRequest) (*domain.Update, error) {
	author, err := s.store.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	updateID, err := id.Generate(id.PrefixUpdate)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "generate update id")
	}

	u := &domain.Update{
		ID:        updateID,
		CreatedBy: actorID,
		Author:    author.Fragment(),
		Content:   strings.TrimSpace(req.Content),
		Emoji:     req.Emoji,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateUpdate(ctx, nil, u); err != nil {
		return nil, fmt.Errorf("create update: %w", err)
	}

	friends, err := s.fanOut(ctx, u)
	if err != nil {
		s.logger.Warn("update fan-out incomplete",
			slog.String("update_id", u.ID),
			slog.String("error", err.Error()))
	}
	s.notifyFriends(ctx, u, friends)
	return u, nil
}

// fanOut writes the update summary into each friend's row for the author and
// returns the friends it reached.
func (s *UpdateService) fanOut(ctx context.Context, u *domain.Update) ([]string, error) {
	emoji := u.Emoji
	at := u.CreatedAt
	patch := domain.FriendshipPatch{LastUpdateEmoji: &emoji, LastUpdateAt: &at}

	f := newFanout(s.store, s.chunk)
	var friends []string
	for row, err := range s.store.Friends(ctx, u.CreatedBy, 200) {
		if err != nil {
			return friends, err
		}
		friendID := row.FriendID
		friends = append(friends, friendID)
		err := f.stage(ctx, 1, func(b *store.Batch) (bool, error) {
			// Upsert would recreate a mirror that is being removed.
			if _, err := s.store.GetFriendInBatch(b, friendID, u.CreatedBy); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return false, nil
				}
				return false, err
			}
			_, err := s.friendships.Upsert(ctx, b, friendID, u.CreatedBy, patch)
			return err == nil, err
		})
		if err != nil {
			return friends, err
		}
	}
	return friends, f.flush(ctx)
}

func (s *UpdateService) notifyFriends(ctx context.Context, u *domain.Update, friends []string) {
	if s.channels == nil || s.push == nil {
		return
	}
	data := map[string]string{
		"type":      "update",
		"update_id": u.ID,
		"user_id":   u.CreatedBy,
	}
	for _, friendID := range friends {
		ch, err := s.channels.Lookup(ctx, friendID)
		if err != nil || ch == nil {
			continue
		}
		if err := s.push.SendSilent(ctx, ch.Token, data); err != nil {
			s.logger.Debug("update push not delivered",
				slog.String("user_id", friendID),
				slog.String("error", err.Error()))
		}
	}
}

// Get returns an update visible to actorID: their own or a friend's.
func (s *UpdateService) Get(ctx context.Context, actorID, updateID string) (*domain.Update, error) {
	u, err := s.store.GetUpdate(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAudience(ctx, actorID, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListMine returns a page of actorID's updates, newest first.
func (s *UpdateService) ListMine(ctx context.Context, actorID string, params store.PaginationParams) (*store.PaginatedResult[*domain.Update], error) {
	return s.store.ListUpdatesByUser(ctx, actorID, params)
}

// React records one reaction of the given type by actorID. Only the author
// and the author's friends may react; a second reaction of the same type is a
// conflict. The reactor's fragment is a snapshot and is never propagated.
func (s *UpdateService) React(ctx context.Context, actorID, updateID string, typ domain.ReactionType) (*domain.Reaction, error) {
	if !typ.Valid() {
		return nil, apperrors.ValidationWithDetails("invalid reaction", map[string]string{"type": "unknown reaction type"})
	}
	u, err := s.store.GetUpdate(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAudience(ctx, actorID, u); err != nil {
		return nil, err
	}
	reactor, err := s.store.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}

	r := &domain.Reaction{
		UpdateID:  u.ID,
		UserID:    actorID,
		Type:      typ,
		Author:    reactor.Fragment(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateReaction(ctx, nil, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Reactions lists the reactions on an update visible to actorID.
func (s *UpdateService) Reactions(ctx context.Context, actorID, updateID string) ([]*domain.Reaction, error) {
	if _, err := s.Get(ctx, actorID, updateID); err != nil {
		return nil, err
	}
	return s.store.ListReactions(ctx, updateID)
}

func (s *UpdateService) checkAudience(ctx context.Context, actorID string, u *domain.Update) error {
	if u.CreatedBy == actorID {
		return nil
	}
	ok, err := s.store.AreFriends(ctx, u.CreatedBy, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden("only friends of the author can see this update")
	}
	return nil
}
