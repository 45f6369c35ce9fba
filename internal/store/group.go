package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// CreateGroup stores a group with one member index entry per member.
func (s *Store) CreateGroup(ctx context.Context, b *Batch, g *domain.Group) error {
	return s.update(ctx, b, func(b *Batch) error {
		exists, err := b.exists(groupKey(g.ID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("group %s: %w", g.ID, ErrAlreadyExists)
		}
		if err := b.set(groupKey(g.ID), g); err != nil {
			return err
		}
		for _, m := range g.Members {
			if err := b.setIndex(groupMemberKey(m, g.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var g domain.Group
	if err := s.get(groupKey(id), &g); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &g, nil
}

// SetGroupMemberProfile overwrites userID's embedded fragment in a group.
// It reports false, staging nothing, when the group is gone or userID is no
// longer a member.
func (s *Store) SetGroupMemberProfile(ctx context.Context, b *Batch, groupID, userID string, frag domain.Fragment, now time.Time) (bool, error) {
	var written bool
	err := s.update(ctx, b, func(b *Batch) error {
		written = false
		var g domain.Group
		if err := b.get(groupKey(groupID), &g); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if !slices.Contains(g.Members, userID) {
			return nil
		}
		if g.MemberProfiles == nil {
			g.MemberProfiles = make(map[string]domain.Fragment)
		}
		g.MemberProfiles[userID] = frag
		g.UpdatedAt = now.UTC()
		written = true
		return b.set(groupKey(groupID), &g)
	})
	return written, err
}

// RemoveGroupMember drops userID from a group and its member index. Removing
// a non-member is a no-op.
func (s *Store) RemoveGroupMember(ctx context.Context, b *Batch, groupID, userID string, now time.Time) error {
	return s.update(ctx, b, func(b *Batch) error {
		var g domain.Group
		if err := b.get(groupKey(groupID), &g); err != nil {
			if errors.Is(err, ErrNotFound) {
				return b.delete(groupMemberKey(userID, groupID))
			}
			return err
		}
		idx := slices.Index(g.Members, userID)
		if idx < 0 {
			return nil
		}
		g.Members = slices.Delete(g.Members, idx, idx+1)
		delete(g.MemberProfiles, userID)
		g.UpdatedAt = now.UTC()

		if err := b.set(groupKey(groupID), &g); err != nil {
			return err
		}
		return b.delete(groupMemberKey(userID, groupID))
	})
}

func groupsForUserQuery(userID string) OrderedQuery[*domain.Group] {
	return indexQuery[domain.Group](
		groupIdxMemberPrefix+userID+":",
		groupKey,
		indexLocator(func(id string) string { return groupMemberKey(userID, id) }),
	)
}

// ListGroupsForUser returns a page of the groups userID belongs to.
func (s *Store) ListGroupsForUser(ctx context.Context, userID string, params PaginationParams) (*PaginatedResult[*domain.Group], error) {
	return Paginate(ctx, s, groupsForUserQuery(userID), params)
}

// GroupIDsForUser returns the IDs of every group userID belongs to, read
// from the member index alone.
func (s *Store) GroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(groupIdxMemberPrefix + userID + ":")
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
	if err != nil {
		return nil, fmt.Errorf("listing groups of %s: %w", userID, err)
	}
	return ids, nil
}

// Groups streams every group userID belongs to.
func (s *Store) Groups(ctx context.Context, userID string, pageSize int) iter.Seq2[*domain.Group, error] {
	return All(ctx, s, groupsForUserQuery(userID), pageSize)
}
