package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
)

// MaxBatchOps is the default bound on writes staged in one atomic batch.
// Index keys count as writes.
const MaxBatchOps = 500

const (
	maxCommitAttempts = 3
	commitBackoff     = 10 * time.Millisecond
)

// Batch is an atomic unit of writes backed by one read-write transaction.
// Reads through the batch observe its own staged writes. Events staged with
// the writes are emitted only after a successful commit.
type Batch struct {
	store  *Store
	txn    *badger.Txn
	ops    int
	max    int
	events []any
	closed bool
}

// NewBatch opens a batch. Callers must Commit or Discard it.
func (s *Store) NewBatch() *Batch {
	return &Batch{
		store: s,
		txn:   s.db.NewTransaction(true),
		max:   s.maxBatchOps,
	}
}

// Len returns the number of staged writes.
func (b *Batch) Len() int { return b.ops }

// Remaining returns how many more writes fit in the batch.
func (b *Batch) Remaining() int { return b.max - b.ops }

// Commit applies every staged write atomically and then emits staged events.
func (b *Batch) Commit(ctx context.Context) error {
	if b.closed {
		return ErrBatchClosed
	}
	if err := ctx.Err(); err != nil {
		b.Discard()
		return err
	}
	b.closed = true
	defer b.txn.Discard()

	if err := b.txn.Commit(); err != nil {
		return err
	}
	b.store.emit(b.events)
	return nil
}

// Discard drops every staged write. Safe to call after Commit.
func (b *Batch) Discard() {
	if b.closed {
		return
	}
	b.closed = true
	b.txn.Discard()
}

func (b *Batch) reserve(n int) error {
	if b.closed {
		return ErrBatchClosed
	}
	if b.ops+n > b.max {
		return fmt.Errorf("%w: %d staged, max %d", ErrBatchFull, b.ops, b.max)
	}
	b.ops += n
	return nil
}

func (b *Batch) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := b.reserve(1); err != nil {
		return err
	}
	return b.txn.Set([]byte(key), data)
}

// setIndex stages a key-only index entry.
func (b *Batch) setIndex(key string) error {
	if err := b.reserve(1); err != nil {
		return err
	}
	return b.txn.Set([]byte(key), []byte{})
}

func (b *Batch) delete(key string) error {
	if err := b.reserve(1); err != nil {
		return err
	}
	return b.txn.Delete([]byte(key))
}

func (b *Batch) get(key string, dest any) error {
	if b.closed {
		return ErrBatchClosed
	}
	return getInTxn(b.txn, key, dest)
}

func (b *Batch) exists(key string) (bool, error) {
	if b.closed {
		return false, ErrBatchClosed
	}
	_, err := b.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// keys returns every key under prefix. The iterator is closed before
// returning; a read-write transaction allows only one open iterator.
func (b *Batch) keys(prefix string) ([]string, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)

	it := b.txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		keys = append(keys, string(it.Item().KeyCopy(nil)))
	}
	return keys, nil
}

func (b *Batch) emit(event any) {
	b.events = append(b.events, event)
}

// update runs fn against b when the caller supplied one, staging without
// committing. Otherwise it opens, commits, and on conflict retries its own
// batch a fixed number of times.
func (s *Store) update(ctx context.Context, b *Batch, fn func(*Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b != nil {
		return fn(b)
	}

	var err error
	for attempt := range maxCommitAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(commitBackoff << (attempt - 1)):
			}
		}

		own := s.NewBatch()
		if err = fn(own); err != nil {
			own.Discard()
			return err
		}
		err = own.Commit(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		if s.logger != nil {
			s.logger.Debug("batch commit conflict, retrying", "attempt", attempt+1)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperrors.Unavailable(err, "store commit failed")
}

// Update runs fn in a batch the store owns, committing it and retrying on
// write conflicts. fn may run more than once.
func (s *Store) Update(ctx context.Context, fn func(*Batch) error) error {
	return s.update(ctx, nil, fn)
}

// BatchWriter splits an unbounded fan-out into a sequence of bounded batches.
// Each flushed chunk commits independently; a failure leaves earlier chunks
// applied and later ones unapplied.
type BatchWriter struct {
	store     *Store
	maxSize   int
	pending   []stagedWrite
	count     int
	committed int
}

type stagedWrite struct {
	cost int
	fn   func(*Batch) error
}

// NewBatchWriter creates a writer that flushes once maxSize writes are staged.
// maxSize is clamped to the store's batch bound.
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	if maxSize <= 0 || maxSize > s.maxBatchOps {
		maxSize = s.maxBatchOps
	}
	return &BatchWriter{store: s, maxSize: maxSize}
}

// Stage queues fn, which will stage at most cost writes, into the current
// chunk. The chunk is flushed first if fn would not fit, and after if it is
// full. fn may run more than once when a chunk commit conflicts.
func (w *BatchWriter) Stage(ctx context.Context, cost int, fn func(*Batch) error) error {
	if cost > w.maxSize {
		return fmt.Errorf("%w: single write of %d exceeds chunk size %d", ErrBatchFull, cost, w.maxSize)
	}
	if w.count+cost > w.maxSize {
		if err := w.Flush(ctx); err != nil {
			return err
		}
	}

	w.pending = append(w.pending, stagedWrite{cost: cost, fn: fn})
	w.count += cost

	if w.count >= w.maxSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits all pending writes as one batch.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	pending := w.pending
	count := w.count
	w.pending = nil
	w.count = 0

	err := w.store.update(ctx, nil, func(b *Batch) error {
		for _, p := range pending {
			if err := p.fn(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	w.committed += len(pending)

	if w.store.logger != nil {
		w.store.logger.LogAttrs(ctx, slog.LevelDebug, "batch flushed",
			slog.Int("units", len(pending)),
			slog.Int("writes", count),
		)
	}
	return nil
}

// Cancel drops pending writes that have not been flushed.
func (w *BatchWriter) Cancel() {
	w.pending = nil
	w.count = 0
}

// Count returns the number of writes staged in the current chunk.
func (w *BatchWriter) Count() int {
	return w.count
}

// Committed returns how many staged units have been committed so far.
func (w *BatchWriter) Committed() int {
	return w.committed
}
