package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// CreateUpdate stores an update with its newest-first user index entry.
func (s *Store) CreateUpdate(ctx context.Context, b *Batch, u *domain.Update) error {
	return s.update(ctx, b, func(b *Batch) error {
		if err := b.set(updateKey(u.ID), u); err != nil {
			return err
		}
		return b.setIndex(updateUserKey(u.CreatedBy, u.CreatedAt, u.ID))
	})
}

// GetUpdate retrieves an update by ID.
func (s *Store) GetUpdate(ctx context.Context, id string) (*domain.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var u domain.Update
	if err := s.get(updateKey(id), &u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("update %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

// DeleteUpdate removes an update, its index entry and its reactions.
func (s *Store) DeleteUpdate(ctx context.Context, b *Batch, u *domain.Update) error {
	return s.update(ctx, b, func(b *Batch) error {
		reactions, err := b.keys(reactionPrefix + u.ID + ":")
		if err != nil {
			return err
		}
		for _, k := range reactions {
			if err := b.delete(k); err != nil {
				return err
			}
		}
		if err := b.delete(updateKey(u.ID)); err != nil {
			return err
		}
		return b.delete(updateUserKey(u.CreatedBy, u.CreatedAt, u.ID))
	})
}

func updatesByUserQuery(userID string) OrderedQuery[*domain.Update] {
	return indexQuery[domain.Update](
		updateIdxUserPrefix+userID+":",
		updateKey,
		func(txn *badger.Txn, id string) (string, error) {
			var u domain.Update
			if err := getInTxn(txn, updateKey(id), &u); err != nil {
				return "", err
			}
			if u.CreatedBy != userID {
				return "", ErrNotFound
			}
			return updateUserKey(userID, u.CreatedAt, u.ID), nil
		},
	)
}

// ListUpdatesByUser returns a page of userID's updates, newest first.
func (s *Store) ListUpdatesByUser(ctx context.Context, userID string, params PaginationParams) (*PaginatedResult[*domain.Update], error) {
	return Paginate(ctx, s, updatesByUserQuery(userID), params)
}

// UpdateIDsByUser returns the IDs of every update userID created.
func (s *Store) UpdateIDsByUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(updateIdxUserPrefix + userID + ":")
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, lastSegment(string(it.Item().Key())))
		}
		return nil
	})
	return ids, err
}

// LatestUpdateAt returns the creation time of userID's newest update, or nil
// if they never posted. The first index key is the newest.
func (s *Store) LatestUpdateAt(ctx context.Context, userID string) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(updateIdxUserPrefix + userID + ":")
	var latest *time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var u domain.Update
			err := getInTxn(txn, updateKey(lastSegment(string(it.Item().Key()))), &u)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			at := u.CreatedAt
			latest = &at
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("latest update of %s: %w", userID, err)
	}
	return latest, nil
}

// CreateReaction stores a reaction. A second reaction of the same type by
// the same user fails with ErrAlreadyExists.
func (s *Store) CreateReaction(ctx context.Context, b *Batch, r *domain.Reaction) error {
	return s.update(ctx, b, func(b *Batch) error {
		key := reactionKey(r.UpdateID, r.UserID, string(r.Type))
		exists, err := b.exists(key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("reaction %s by %s: %w", r.Type, r.UserID, ErrAlreadyExists)
		}
		return b.set(key, r)
	})
}

// ListReactions returns every reaction on an update, ordered by user then type.
func (s *Store) ListReactions(ctx context.Context, updateID string) ([]*domain.Reaction, error) {
	var out []*domain.Reaction
	q := recordQuery(reactionPrefix+updateID+":", func(r *domain.Reaction) string {
		return r.UserID + ":" + string(r.Type)
	})
	for r, err := range All(ctx, s, q, 500) {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
