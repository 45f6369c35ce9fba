package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
)

// PaginationParams contains pagination request parameters.
type PaginationParams struct {
	Limit  int    // The number of items per page (defaults to 100 with a maximum of 1000)
	Cursor string // Opaque cursor for next page (empty for first page)
}

// PaginatedResult contains paginated data and metadata.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"` // Empty if no more pages
	HasMore    bool   `json:"has_more"`
}

// DefaultPaginationParams returns sensible defaults.
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{Limit: 100}
}

// Validate checks and corrects pagination parameters.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
}

// EncodeCursor creates an opaque cursor from a record id.
func EncodeCursor(id string) string {
	if id == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(id))
}

// DecodeCursor decodes a cursor back to a record id.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}

	return string(decoded), nil
}

// OrderedQuery is a listing over the keys under Prefix in byte order.
type OrderedQuery[T any] struct {
	Prefix string

	// Locate returns the scan key of the record with the given id, or
	// ErrNotFound if the record no longer exists.
	Locate func(txn *badger.Txn, id string) (string, error)

	// Load resolves the scanned item into a record and its id. ok=false
	// skips the key, e.g. a dangling index entry.
	Load func(txn *badger.Txn, item *badger.Item) (rec T, id string, ok bool, err error)

	// KeysOnly disables value prefetch for index scans.
	KeysOnly bool
}

// Paginate returns the page after params.Cursor. It over-fetches one record to
// detect more results; the next cursor is the id of the last item returned.
// A cursor whose record was deleted restarts the listing from the beginning.
func Paginate[T any](ctx context.Context, s *Store, q OrderedQuery[T], params PaginationParams) (*PaginatedResult[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params.Validate()

	afterID, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, apperrors.Validation("invalid cursor").WithCause(err)
	}

	var after string
	if afterID != "" {
		err := s.db.View(func(txn *badger.Txn) error {
			pos, err := q.Locate(txn, afterID)
			switch {
			case err == nil:
				after = pos
			case errors.Is(err, ErrNotFound):
				if s.logger != nil {
					s.logger.Debug("cursor target gone, restarting listing", "prefix", q.Prefix)
				}
			default:
				return fmt.Errorf("locating cursor: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("paginate %s: %w", q.Prefix, err)
		}
	}

	pg, err := scan(ctx, s, q, after, params.Limit+1)
	if err != nil {
		return nil, fmt.Errorf("paginate %s: %w", q.Prefix, err)
	}

	result := &PaginatedResult[T]{Items: pg.items}
	if len(pg.items) > params.Limit {
		result.Items = pg.items[:params.Limit]
		result.HasMore = true
		result.NextCursor = EncodeCursor(pg.ids[params.Limit-1])
	}
	return result, nil
}

// All streams every record of q page by page. Each page resumes strictly
// after the last key scanned, so rows deleted or re-added behind the stream
// are never replayed. Each range over the returned sequence restarts from
// the beginning.
func All[T any](ctx context.Context, s *Store, q OrderedQuery[T], pageSize int) iter.Seq2[T, error] {
	if pageSize < 1 {
		pageSize = DefaultPaginationParams().Limit
	}
	return func(yield func(T, error) bool) {
		var after string
		for {
			pg, err := scan(ctx, s, q, after, pageSize)
			if err != nil {
				var zero T
				yield(zero, fmt.Errorf("stream %s: %w", q.Prefix, err))
				return
			}
			for _, rec := range pg.items {
				if !yield(rec, nil) {
					return
				}
			}
			if pg.last == "" || len(pg.items) < pageSize {
				return
			}
			after = pg.last
		}
	}
}

type scanned[T any] struct {
	items []T
	ids   []string
	// last is the key of the last item loaded.
	last string
}

// scan reads up to limit records whose keys sort strictly after the key
// after, or from the start of the prefix when after is empty. after need not
// exist any more.
func scan[T any](ctx context.Context, s *Store, q OrderedQuery[T], after string, limit int) (scanned[T], error) {
	var out scanned[T]
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(q.Prefix)
		seekKey := prefix
		if after != "" {
			seekKey = []byte(after)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = !q.KeysOnly
		opts.PrefetchSize = limit

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(out.items) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if after != "" && string(item.Key()) == after {
				continue
			}

			rec, id, ok, err := q.Load(txn, item)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			out.items = append(out.items, rec)
			out.ids = append(out.ids, id)
			out.last = string(item.KeyCopy(nil))
		}
		return nil
	})
	return out, err
}

// recordQuery lists JSON records stored directly under prefix+id.
func recordQuery[T any](prefix string, idOf func(*T) string) OrderedQuery[*T] {
	return OrderedQuery[*T]{
		Prefix: prefix,
		Locate: func(txn *badger.Txn, id string) (string, error) {
			key := prefix + id
			if _, err := txn.Get([]byte(key)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return "", ErrNotFound
				}
				return "", err
			}
			return key, nil
		},
		Load: func(_ *badger.Txn, item *badger.Item) (*T, string, bool, error) {
			var rec T
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return nil, "", false, err
			}
			return &rec, idOf(&rec), true, nil
		},
	}
}

// indexQuery lists records through key-only index entries under prefix whose
// last segment is the record id. locate maps an id back to its index key.
func indexQuery[T any](prefix string, recordKey func(id string) string, locate func(txn *badger.Txn, id string) (string, error)) OrderedQuery[*T] {
	return OrderedQuery[*T]{
		Prefix:   prefix,
		KeysOnly: true,
		Locate:   locate,
		Load: func(txn *badger.Txn, item *badger.Item) (*T, string, bool, error) {
			id := lastSegment(string(item.Key()))
			var rec T
			err := getInTxn(txn, recordKey(id), &rec)
			if errors.Is(err, ErrNotFound) {
				return nil, "", false, nil
			}
			if err != nil {
				return nil, "", false, err
			}
			return &rec, id, true, nil
		},
	}
}

// indexLocator returns a Locate func for indexes whose key is fully determined
// by the id.
func indexLocator(indexKey func(id string) string) func(*badger.Txn, string) (string, error) {
	return func(txn *badger.Txn, id string) (string, error) {
		key := indexKey(id)
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return "", ErrNotFound
			}
			return "", err
		}
		return key, nil
	}
}
