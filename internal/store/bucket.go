package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// BucketKeyer maps a local (day, hour) in a timezone to its UTC bucket.
type BucketKeyer interface {
	ToUTC(timezone string, day time.Weekday, hour int) domain.BucketKey
}

// Buckets maintains nudge bucket memberships. Rows are partitioned by bucket
// key under bucketmember:{key}:{userId}; the bucketmember:idx:user index finds
// a user's rows without knowing their keys.
type Buckets struct {
	store *Store
	keyer BucketKeyer
}

// NewBuckets creates the membership store over s.
func NewBuckets(s *Store, keyer BucketKeyer) *Buckets {
	return &Buckets{store: s, keyer: keyer}
}

// writesPerMembership is the cost of one row: parent touch, row, index.
const writesPerMembership = 3

// RemoveAll deletes every membership row of userID.
func (m *Buckets) RemoveAll(ctx context.Context, b *Batch, userID string) error {
	return m.store.update(ctx, b, func(b *Batch) error {
		_, err := m.removeAll(b, userID)
		return err
	})
}

// Add inserts one row per distinct UTC bucket of the user's local slots. It
// is a no-op for a disabled schedule or an empty timezone.
func (m *Buckets) Add(ctx context.Context, b *Batch, userID string, prefs *domain.NudgePreferences, timezone string, now time.Time) error {
	return m.store.update(ctx, b, func(b *Batch) error {
		return m.add(b, userID, prefs, timezone, now, nil)
	})
}

// Replace removes every row of userID and adds the new schedule in one
// batch. The newest lastNotifiedAt of the removed rows is carried onto the
// new ones so a preference edit never resets the cooldown.
func (m *Buckets) Replace(ctx context.Context, b *Batch, userID string, prefs *domain.NudgePreferences, timezone string, now time.Time) error {
	return m.store.update(ctx, b, func(b *Batch) error {
		last, err := m.removeAll(b, userID)
		if err != nil {
			return err
		}
		return m.add(b, userID, prefs, timezone, now, last)
	})
}

// MembersOf streams the rows of one bucket a page at a time. Ranging over the
// sequence again restarts from the first member.
func (m *Buckets) MembersOf(ctx context.Context, key domain.BucketKey, pageSize int) iter.Seq2[*domain.BucketMembership, error] {
	return All(ctx, m.store, bucketMembersQuery(key.String()), pageSize)
}

// Memberships returns every row of userID.
func (m *Buckets) Memberships(ctx context.Context, userID string) ([]*domain.BucketMembership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*domain.BucketMembership
	err := m.store.db.View(func(txn *badger.Txn) error {
		for _, key := range userBucketKeys(txn, userID) {
			var row domain.BucketMembership
			err := getInTxn(txn, bucketMemberKey(key, userID), &row)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, &row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("memberships of %s: %w", userID, err)
	}
	return out, nil
}

// MarkNotified stamps lastNotifiedAt on every row of userID.
func (m *Buckets) MarkNotified(ctx context.Context, userID string, at time.Time) error {
	at = at.UTC()
	return m.store.update(ctx, nil, func(b *Batch) error {
		keys, err := b.keys(bucketMemberIdxUserPrefix + userID + ":")
		if err != nil {
			return err
		}
		for _, idx := range keys {
			key := bucketKeyFromUserIndex(idx, userID)
			var row domain.BucketMembership
			if err := b.get(bucketMemberKey(key, userID), &row); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			row.LastNotifiedAt = &at
			if err := b.set(bucketMemberKey(key, userID), &row); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBucket returns the parent record of a bucket.
func (m *Buckets) GetBucket(ctx context.Context, key domain.BucketKey) (*domain.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var bucket domain.Bucket
	if err := m.store.get(bucketKey(key.String()), &bucket); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("bucket %s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return &bucket, nil
}

// removeAll deletes userID's rows through the user index and returns the
// newest lastNotifiedAt among them.
func (m *Buckets) removeAll(b *Batch, userID string) (*time.Time, error) {
	idxKeys, err := b.keys(bucketMemberIdxUserPrefix + userID + ":")
	if err != nil {
		return nil, err
	}

	var last *time.Time
	for _, idx := range idxKeys {
		key := bucketKeyFromUserIndex(idx, userID)

		var row domain.BucketMembership
		err := b.get(bucketMemberKey(key, userID), &row)
		switch {
		case err == nil:
			if row.LastNotifiedAt != nil && (last == nil || row.LastNotifiedAt.After(*last)) {
				t := *row.LastNotifiedAt
				last = &t
			}
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}

		if err := b.delete(bucketMemberKey(key, userID)); err != nil {
			return nil, err
		}
		if err := b.delete(idx); err != nil {
			return nil, err
		}
	}
	return last, nil
}

func (m *Buckets) add(b *Batch, userID string, prefs *domain.NudgePreferences, timezone string, now time.Time, lastNotified *time.Time) error {
	if timezone == "" || !prefs.Enabled() {
		return nil
	}
	now = now.UTC()

	var keys []string
	for _, slot := range prefs.Slots() {
		key := m.keyer.ToUTC(timezone, slot.Day, slot.Hour).String()
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	if len(keys)*writesPerMembership > b.Remaining() {
		return fmt.Errorf("%w: %d bucket rows for %s", ErrBatchFull, len(keys), userID)
	}

	for _, key := range keys {
		var parent domain.Bucket
		switch err := b.get(bucketKey(key), &parent); {
		case errors.Is(err, ErrNotFound):
			parent = domain.Bucket{Key: key, CreatedAt: now}
		case err != nil:
			return err
		}
		parent.UpdatedAt = now
		if err := b.set(bucketKey(key), &parent); err != nil {
			return err
		}

		row := domain.BucketMembership{
			UserID:         userID,
			BucketKey:      key,
			Timezone:       timezone,
			Occurrence:     prefs.Occurrence,
			CreatedAt:      now,
			LastNotifiedAt: lastNotified,
		}
		if err := b.set(bucketMemberKey(key, userID), &row); err != nil {
			return err
		}
		if err := b.setIndex(bucketMemberUserKey(userID, key)); err != nil {
			return err
		}
	}
	return nil
}

func bucketMembersQuery(key string) OrderedQuery[*domain.BucketMembership] {
	return recordQuery(bucketMemberPrefix+key+":", func(row *domain.BucketMembership) string {
		return row.UserID
	})
}

// userBucketKeys lists the bucket keys userID belongs to.
func userBucketKeys(txn *badger.Txn, userID string) []string {
	prefix := []byte(bucketMemberIdxUserPrefix + userID + ":")
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, bucketKeyFromUserIndex(string(it.Item().Key()), userID))
	}
	return keys
}

// bucketKeyFromUserIndex extracts the bucket key, which itself contains ':',
// from bucketmember:idx:user:{userId}:{key}.
func bucketKeyFromUserIndex(idx, userID string) string {
	return strings.TrimPrefix(idx, bucketMemberIdxUserPrefix+userID+":")
}
