package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/id"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// InvitationService creates invitations and the join requests made against
// them.
type InvitationService struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewInvitationService creates an invitation service.
func NewInvitationService(s *store.Store, logger *slog.Logger) *InvitationService {
	return &InvitationService{store: s, logger: logger, now: time.Now}
}

// Create issues a new invitation from actorID.
func (s *InvitationService) Create(ctx context.Context, actorID string) (*domain.Invitation, error) {
	sender, err := s.store.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	invID, err := id.Generate(id.PrefixInvitation)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "generate invitation id")
	}

	now := s.now().UTC()
	inv := &domain.Invitation{
		ID:        invID,
		SenderID:  actorID,
		Sender:    sender.Fragment(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInvitation(ctx, nil, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

// Get returns an invitation.
func (s *InvitationService) Get(ctx context.Context, invitationID string) (*domain.Invitation, error) {
	return s.store.GetInvitation(ctx, invitationID)
}

// ListMine returns a page of the invitations actorID sent.
func (s *InvitationService) ListMine(ctx context.Context, actorID string, params store.PaginationParams) (*store.PaginatedResult[*domain.Invitation], error) {
	return s.store.ListInvitationsBySender(ctx, actorID, params)
}

// Join asks the invitation's sender to befriend actorID. Joining your own
// invitation is forbidden; joining when already friends or while a request
// to the same sender is pending is a conflict.
func (s *InvitationService) Join(ctx context.Context, actorID, invitationID string) (*domain.JoinRequest, error) {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.SenderID == actorID {
		return nil, apperrors.Forbidden("cannot join your own invitation")
	}

	friends, err := s.store.AreFriends(ctx, actorID, inv.SenderID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, apperrors.Conflict("already friends")
	}

	for req, err := range s.store.JoinRequestsByRequester(ctx, actorID, 100) {
		if err != nil {
			return nil, err
		}
		if req.ReceiverID == inv.SenderID && req.Status == domain.JoinRequestPending {
			return nil, apperrors.Conflict("a join request is already pending")
		}
	}

	requester, err := s.store.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	reqID, err := id.Generate(id.PrefixJoinRequest)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "generate join request id")
	}

	now := s.now().UTC()
	req := &domain.JoinRequest{
		ID:           reqID,
		InvitationID: inv.ID,
		RequesterID:  actorID,
		Requester:    requester.Fragment(),
		ReceiverID:   inv.SenderID,
		Receiver:     inv.Sender,
		Status:       domain.JoinRequestPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateJoinRequest(ctx, nil, req); err != nil {
		return nil, fmt.Errorf("create join request: %w", err)
	}

	s.logger.Info("join request created",
		slog.String("request_id", req.ID),
		slog.String("requester_id", actorID),
		slog.String("receiver_id", inv.SenderID))
	return req, nil
}

// ListReceived returns a page of join requests addressed to actorID.
func (s *InvitationService) ListReceived(ctx context.Context, actorID string, params store.PaginationParams) (*store.PaginatedResult[*domain.JoinRequest], error) {
	return s.store.ListJoinRequestsByReceiver(ctx, actorID, params)
}
