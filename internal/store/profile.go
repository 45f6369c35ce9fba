package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/normalize"
)

// ProfileChanged is emitted after a profile create or update commits.
// Before is nil on create.
type ProfileChanged struct {
	Before *domain.Profile
	After  *domain.Profile
}

// ProfileDeleted is emitted after a profile delete commits.
type ProfileDeleted struct {
	Profile *domain.Profile
}

// GetProfile retrieves a profile by user ID.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p domain.Profile
	if err := s.get(profileKey(userID), &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting profile %s: %w", userID, err)
	}
	return &p, nil
}

// GetProfileInBatch reads a profile through b.
func (s *Store) GetProfileInBatch(b *Batch, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := b.get(profileKey(userID), &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// GetProfileByUsername looks a profile up through the case-folded username index.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var userID string
	if err := s.get(profileUsernameKey(normalize.Username(username)), &userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("username %q: %w", username, ErrNotFound)
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// SaveProfile creates or replaces a profile and maintains the username index.
// A username held by another user fails with ErrUsernameTaken.
func (s *Store) SaveProfile(ctx context.Context, b *Batch, p *domain.Profile) error {
	return s.update(ctx, b, func(b *Batch) error {
		var before *domain.Profile
		var existing domain.Profile
		switch err := b.get(profileKey(p.UserID), &existing); {
		case err == nil:
			before = &existing
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("reading profile %s: %w", p.UserID, err)
		}

		folded := normalize.Username(p.Username)
		if folded != "" {
			var owner string
			err := b.get(profileUsernameKey(folded), &owner)
			if err == nil && owner != p.UserID {
				return fmt.Errorf("username %q: %w", p.Username, ErrUsernameTaken)
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		if before != nil {
			if old := normalize.Username(before.Username); old != "" && old != folded {
				if err := b.delete(profileUsernameKey(old)); err != nil {
					return err
				}
			}
		}

		if err := b.set(profileKey(p.UserID), p); err != nil {
			return err
		}
		if folded != "" {
			if err := b.set(profileUsernameKey(folded), p.UserID); err != nil {
				return err
			}
		}

		after := *p
		b.emit(ProfileChanged{Before: before, After: &after})
		return nil
	})
}

// DeleteProfile removes a profile and its username index entry.
func (s *Store) DeleteProfile(ctx context.Context, b *Batch, userID string) error {
	return s.update(ctx, b, func(b *Batch) error {
		var p domain.Profile
		if err := b.get(profileKey(userID), &p); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("profile %s: %w", userID, ErrNotFound)
			}
			return err
		}

		if folded := normalize.Username(p.Username); folded != "" {
			if err := b.delete(profileUsernameKey(folded)); err != nil {
				return err
			}
		}
		if err := b.delete(profileKey(userID)); err != nil {
			return err
		}

		b.emit(ProfileDeleted{Profile: &p})
		return nil
	})
}

// MarkProfileNudged stamps LastNudgedAt without emitting a change event;
// the stamp affects neither fragments nor schedules.
func (s *Store) MarkProfileNudged(ctx context.Context, userID string, at time.Time) error {
	return s.update(ctx, nil, func(b *Batch) error {
		var p domain.Profile
		if err := b.get(profileKey(userID), &p); err != nil {
			return fmt.Errorf("profile %s: %w", userID, err)
		}
		at = at.UTC()
		p.LastNudgedAt = &at
		return b.set(profileKey(userID), &p)
	})
}

func profileQuery() OrderedQuery[*domain.Profile] {
	q := recordQuery(profilePrefix, func(p *domain.Profile) string { return p.UserID })
	load := q.Load
	q.Load = func(txn *badger.Txn, item *badger.Item) (*domain.Profile, string, bool, error) {
		if strings.HasPrefix(string(item.Key()), profileIdxUsernamePrefix) {
			return nil, "", false, nil
		}
		return load(txn, item)
	}
	return q
}

// ListProfiles returns a page of profiles ordered by user ID.
func (s *Store) ListProfiles(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Profile], error) {
	return Paginate(ctx, s, profileQuery(), params)
}

// Profiles streams every profile without loading them all into memory.
func (s *Store) Profiles(ctx context.Context, pageSize int) iter.Seq2[*domain.Profile, error] {
	return All(ctx, s, profileQuery(), pageSize)
}
