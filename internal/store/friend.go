package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// UpsertFriend merges patch into friend:{ownerID}:{otherID}, creating the row
// if absent. CreatedAt and AccepterID are only set on creation.
func (s *Store) UpsertFriend(ctx context.Context, b *Batch, ownerID, otherID string, patch domain.FriendshipPatch, now time.Time) (*domain.Friendship, error) {
	var merged *domain.Friendship
	err := s.update(ctx, b, func(b *Batch) error {
		existing, err := getFriendInBatch(b, ownerID, otherID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		merged = patch.Merge(existing, ownerID, otherID, now.UTC())
		return b.set(friendKey(ownerID, otherID), merged)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert friend %s/%s: %w", ownerID, otherID, err)
	}
	return merged, nil
}

// PatchFriend is UpsertFriend for rows that must already exist. A missing row
// fails with ErrNotFound and nothing is staged.
func (s *Store) PatchFriend(ctx context.Context, b *Batch, ownerID, otherID string, patch domain.FriendshipPatch, now time.Time) (*domain.Friendship, error) {
	var merged *domain.Friendship
	err := s.update(ctx, b, func(b *Batch) error {
		existing, err := getFriendInBatch(b, ownerID, otherID)
		if err != nil {
			return err
		}
		merged = patch.Merge(existing, ownerID, otherID, now.UTC())
		return b.set(friendKey(ownerID, otherID), merged)
	})
	if err != nil {
		return nil, fmt.Errorf("patch friend %s/%s: %w", ownerID, otherID, err)
	}
	return merged, nil
}

// GetFriend returns ownerID's summary of otherID.
func (s *Store) GetFriend(ctx context.Context, ownerID, otherID string) (*domain.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f domain.Friendship
	if err := s.get(friendKey(ownerID, otherID), &f); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("friend %s/%s: %w", ownerID, otherID, ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

// GetFriendInBatch reads ownerID's summary of otherID through b, seeing b's
// staged writes.
func (s *Store) GetFriendInBatch(b *Batch, ownerID, otherID string) (*domain.Friendship, error) {
	return getFriendInBatch(b, ownerID, otherID)
}

func getFriendInBatch(b *Batch, ownerID, otherID string) (*domain.Friendship, error) {
	var f domain.Friendship
	if err := b.get(friendKey(ownerID, otherID), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// AreFriends reports whether userID holds a summary of otherID.
func (s *Store) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.exists(friendKey(userID, otherID))
}

// RemoveFriendPair deletes both directions of a pair in one batch. Deleting
// an absent pair is a no-op.
func (s *Store) RemoveFriendPair(ctx context.Context, b *Batch, userID, friendID string) error {
	err := s.update(ctx, b, func(b *Batch) error {
		if err := b.delete(friendKey(userID, friendID)); err != nil {
			return err
		}
		return b.delete(friendKey(friendID, userID))
	})
	if err != nil {
		return fmt.Errorf("remove friend pair %s/%s: %w", userID, friendID, err)
	}
	return nil
}

func friendQuery(ownerID string) OrderedQuery[*domain.Friendship] {
	return recordQuery(friendOwnerPrefix(ownerID), func(f *domain.Friendship) string { return f.FriendID })
}

// ListFriends returns a page of userID's friends ordered by friend ID.
func (s *Store) ListFriends(ctx context.Context, userID string, params PaginationParams) (*PaginatedResult[*domain.Friendship], error) {
	return Paginate(ctx, s, friendQuery(userID), params)
}

// Friends streams every friend summary held by userID.
func (s *Store) Friends(ctx context.Context, userID string, pageSize int) iter.Seq2[*domain.Friendship, error] {
	return All(ctx, s, friendQuery(userID), pageSize)
}
