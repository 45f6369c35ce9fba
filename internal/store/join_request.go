package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// CreateJoinRequest stores a join request with requester and receiver indexes.
func (s *Store) CreateJoinRequest(ctx context.Context, b *Batch, req *domain.JoinRequest) error {
	return s.update(ctx, b, func(b *Batch) error {
		if err := b.set(joinRequestKey(req.ID), req); err != nil {
			return err
		}
		if err := b.setIndex(joinRequestRequesterKey(req.RequesterID, req.ID)); err != nil {
			return err
		}
		return b.setIndex(joinRequestReceiverKey(req.ReceiverID, req.ID))
	})
}

// GetJoinRequest retrieves a join request by ID.
func (s *Store) GetJoinRequest(ctx context.Context, id string) (*domain.JoinRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var req domain.JoinRequest
	if err := s.get(joinRequestKey(id), &req); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("join request %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &req, nil
}

// GetJoinRequestInBatch reads a join request through b.
func (s *Store) GetJoinRequestInBatch(b *Batch, id string) (*domain.JoinRequest, error) {
	var req domain.JoinRequest
	if err := b.get(joinRequestKey(id), &req); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("join request %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &req, nil
}

// SaveJoinRequest overwrites a join request. Indexed fields never change.
func (s *Store) SaveJoinRequest(ctx context.Context, b *Batch, req *domain.JoinRequest) error {
	return s.update(ctx, b, func(b *Batch) error {
		return b.set(joinRequestKey(req.ID), req)
	})
}

// SetJoinRequestFragment overwrites userID's embedded fragment on a pending
// request, on whichever side names userID. It reports false when the request
// is gone, resolved, or does not name userID.
func (s *Store) SetJoinRequestFragment(ctx context.Context, b *Batch, id, userID string, frag domain.Fragment, now time.Time) (bool, error) {
	var written bool
	err := s.update(ctx, b, func(b *Batch) error {
		written = false
		var req domain.JoinRequest
		if err := b.get(joinRequestKey(id), &req); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if req.Status != domain.JoinRequestPending {
			return nil
		}
		switch userID {
		case req.RequesterID:
			req.Requester = frag
		case req.ReceiverID:
			req.Receiver = frag
		default:
			return nil
		}
		req.UpdatedAt = now.UTC()
		written = true
		return b.set(joinRequestKey(id), &req)
	})
	return written, err
}

// DeleteJoinRequest removes a join request and both index entries.
func (s *Store) DeleteJoinRequest(ctx context.Context, b *Batch, req *domain.JoinRequest) error {
	return s.update(ctx, b, func(b *Batch) error {
		if err := b.delete(joinRequestKey(req.ID)); err != nil {
			return err
		}
		if err := b.delete(joinRequestRequesterKey(req.RequesterID, req.ID)); err != nil {
			return err
		}
		return b.delete(joinRequestReceiverKey(req.ReceiverID, req.ID))
	})
}

func joinRequestsByRequesterQuery(userID string) OrderedQuery[*domain.JoinRequest] {
	return indexQuery[domain.JoinRequest](
		joinRequestIdxRequesterPrefix+userID+":",
		joinRequestKey,
		indexLocator(func(id string) string { return joinRequestRequesterKey(userID, id) }),
	)
}

func joinRequestsByReceiverQuery(userID string) OrderedQuery[*domain.JoinRequest] {
	return indexQuery[domain.JoinRequest](
		joinRequestIdxReceiverPrefix+userID+":",
		joinRequestKey,
		indexLocator(func(id string) string { return joinRequestReceiverKey(userID, id) }),
	)
}

// ListJoinRequestsByReceiver returns a page of requests addressed to userID.
func (s *Store) ListJoinRequestsByReceiver(ctx context.Context, userID string, params PaginationParams) (*PaginatedResult[*domain.JoinRequest], error) {
	return Paginate(ctx, s, joinRequestsByReceiverQuery(userID), params)
}

// JoinRequestsByRequester streams every request made by userID.
func (s *Store) JoinRequestsByRequester(ctx context.Context, userID string, pageSize int) iter.Seq2[*domain.JoinRequest, error] {
	return All(ctx, s, joinRequestsByRequesterQuery(userID), pageSize)
}

// JoinRequestsByReceiver streams every request addressed to userID.
func (s *Store) JoinRequestsByReceiver(ctx context.Context, userID string, pageSize int) iter.Seq2[*domain.JoinRequest, error] {
	return All(ctx, s, joinRequestsByReceiverQuery(userID), pageSize)
}
