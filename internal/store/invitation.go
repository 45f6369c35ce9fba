package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// CreateInvitation stores an invitation and its sender index entry.
func (s *Store) CreateInvitation(ctx context.Context, b *Batch, inv *domain.Invitation) error {
	return s.update(ctx, b, func(b *Batch) error {
		if err := b.set(invitationKey(inv.ID), inv); err != nil {
			return err
		}
		return b.setIndex(invitationSenderKey(inv.SenderID, inv.ID))
	})
}

// GetInvitation retrieves an invitation by ID.
func (s *Store) GetInvitation(ctx context.Context, id string) (*domain.Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var inv domain.Invitation
	if err := s.get(invitationKey(id), &inv); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("invitation %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &inv, nil
}

// SetInvitationSender overwrites the embedded sender fragment. It reports
// false when the invitation no longer exists.
func (s *Store) SetInvitationSender(ctx context.Context, b *Batch, id string, frag domain.Fragment, now time.Time) (bool, error) {
	var written bool
	err := s.update(ctx, b, func(b *Batch) error {
		written = false
		var inv domain.Invitation
		if err := b.get(invitationKey(id), &inv); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		inv.Sender = frag
		inv.UpdatedAt = now.UTC()
		written = true
		return b.set(invitationKey(id), &inv)
	})
	return written, err
}

// DeleteInvitation removes an invitation and its sender index entry.
func (s *Store) DeleteInvitation(ctx context.Context, b *Batch, inv *domain.Invitation) error {
	return s.update(ctx, b, func(b *Batch) error {
		if err := b.delete(invitationKey(inv.ID)); err != nil {
			return err
		}
		return b.delete(invitationSenderKey(inv.SenderID, inv.ID))
	})
}

func invitationsBySenderQuery(userID string) OrderedQuery[*domain.Invitation] {
	return indexQuery[domain.Invitation](
		invitationIdxSenderPrefix+userID+":",
		invitationKey,
		indexLocator(func(id string) string { return invitationSenderKey(userID, id) }),
	)
}

// ListInvitationsBySender returns a page of invitations created by userID.
func (s *Store) ListInvitationsBySender(ctx context.Context, userID string, params PaginationParams) (*PaginatedResult[*domain.Invitation], error) {
	return Paginate(ctx, s, invitationsBySenderQuery(userID), params)
}

// InvitationsBySender streams every invitation created by userID.
func (s *Store) InvitationsBySender(ctx context.Context, userID string, pageSize int) iter.Seq2[*domain.Invitation, error] {
	return All(ctx, s, invitationsBySenderQuery(userID), pageSize)
}
