package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// FriendshipService manages friend pairs. Both sides of a pair are always
// written or removed in one batch.
type FriendshipService struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewFriendshipService creates a friendship service.
func NewFriendshipService(s *store.Store, logger *slog.Logger) *FriendshipService {
	return &FriendshipService{store: s, logger: logger, now: time.Now}
}

// Upsert merges patch into ownerID's summary of otherID and returns the
// merged record. With a nil batch the write commits on its own.
func (s *FriendshipService) Upsert(ctx context.Context, b *store.Batch, ownerID, otherID string, patch domain.FriendshipPatch) (*domain.Friendship, error) {
	return s.store.UpsertFriend(ctx, b, ownerID, otherID, patch, s.now())
}

// Accept turns a pending join request into a friendship. Only the receiver
// may accept. Accepting when the pair already exists returns the existing
// record and writes nothing, so client retries are safe.
func (s *FriendshipService) Accept(ctx context.Context, actorID, requestID string) (*domain.Friendship, error) {
	now := s.now().UTC()
	var result *domain.Friendship
	var created bool

	err := s.store.Update(ctx, func(b *store.Batch) error {
		result, created = nil, false

		req, err := s.store.GetJoinRequestInBatch(b, requestID)
		if err != nil {
			return err
		}
		if req.ReceiverID != actorID {
			return apperrors.Forbidden("only the invited user can accept this request")
		}

		existing, err := s.store.GetFriendInBatch(b, actorID, req.RequesterID)
		switch {
		case err == nil:
			result = existing
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if req.Status != domain.JoinRequestPending {
			return apperrors.Conflictf("join request is already %s", req.Status)
		}

		requesterFrag, err := s.currentFragment(b, req.RequesterID, req.Requester)
		if err != nil {
			return err
		}
		receiverFrag, err := s.currentFragment(b, actorID, req.Receiver)
		if err != nil {
			return err
		}

		accepter := actorID
		receiverSide := domain.FragmentPatch(requesterFrag)
		receiverSide.AccepterID = &accepter
		requesterSide := domain.FragmentPatch(receiverFrag)
		requesterSide.AccepterID = &accepter

		result, err = s.store.UpsertFriend(ctx, b, actorID, req.RequesterID, receiverSide, now)
		if err != nil {
			return err
		}
		if _, err := s.store.UpsertFriend(ctx, b, req.RequesterID, actorID, requesterSide, now); err != nil {
			return err
		}

		req.Status = domain.JoinRequestAccepted
		req.UpdatedAt = now
		created = true
		return s.store.SaveJoinRequest(ctx, b, req)
	})
	if err != nil {
		return nil, fmt.Errorf("accept join request %s: %w", requestID, err)
	}

	if created {
		s.logger.Info("friendship created",
			slog.String("user_id", actorID),
			slog.String("friend_id", result.FriendID),
			slog.String("request_id", requestID))
	}
	return result, nil
}

// currentFragment reads userID's live fragment through b. The join request's
// snapshot is used only when the profile is gone.
func (s *FriendshipService) currentFragment(b *store.Batch, userID string, snapshot domain.Fragment) (domain.Fragment, error) {
	p, err := s.store.GetProfileInBatch(b, userID)
	switch {
	case err == nil:
		return p.Fragment(), nil
	case errors.Is(err, store.ErrNotFound):
		return snapshot, nil
	default:
		return domain.Fragment{}, err
	}
}

// Reject marks a pending join request rejected. Rejecting twice is a no-op.
func (s *FriendshipService) Reject(ctx context.Context, actorID, requestID string) (*domain.JoinRequest, error) {
	var result *domain.JoinRequest
	err := s.store.Update(ctx, func(b *store.Batch) error {
		req, err := s.store.GetJoinRequestInBatch(b, requestID)
		if err != nil {
			return err
		}
		if req.ReceiverID != actorID {
			return apperrors.Forbidden("only the invited user can reject this request")
		}
		result = req
		switch req.Status {
		case domain.JoinRequestRejected:
			return nil
		case domain.JoinRequestAccepted:
			return apperrors.Conflict("join request is already accepted")
		}
		req.Status = domain.JoinRequestRejected
		req.UpdatedAt = s.now().UTC()
		return s.store.SaveJoinRequest(ctx, b, req)
	})
	if err != nil {
		return nil, fmt.Errorf("reject join request %s: %w", requestID, err)
	}
	return result, nil
}

// Remove deletes both sides of a pair. Removing a pair that does not exist
// is a no-op.
func (s *FriendshipService) Remove(ctx context.Context, userID, friendID string) error {
	ok, err := s.store.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debug("friendship already absent", slog.String("user_id", userID), slog.String("friend_id", friendID))
		return nil
	}
	if err := s.store.RemoveFriendPair(ctx, nil, userID, friendID); err != nil {
		return err
	}
	s.logger.Info("friendship removed", slog.String("user_id", userID), slog.String("friend_id", friendID))
	return nil
}

// List returns a page of userID's friends.
func (s *FriendshipService) List(ctx context.Context, userID string, params store.PaginationParams) (*store.PaginatedResult[*domain.Friendship], error) {
	return s.store.ListFriends(ctx, userID, params)
}
