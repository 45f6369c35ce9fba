package service

import (
	"context"

	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// fanout stages single-document rewrites into a chunked BatchWriter and
// counts how many committed units actually wrote something. A unit may report
// false when its target vanished between listing and staging.
type fanout struct {
	w     *store.BatchWriter
	marks []*bool
}

func newFanout(s *store.Store, chunk int) *fanout {
	return &fanout{w: s.NewBatchWriter(chunk)}
}

func (f *fanout) stage(ctx context.Context, cost int, fn func(b *store.Batch) (bool, error)) error {
	mark := new(bool)
	f.marks = append(f.marks, mark)
	return f.w.Stage(ctx, cost, func(b *store.Batch) error {
		ok, err := fn(b)
		*mark = ok && err == nil
		return err
	})
}

func (f *fanout) flush(ctx context.Context) error {
	return f.w.Flush(ctx)
}

// written counts units from committed chunks that reported a write. Chunks
// commit in staging order, so the committed units are a prefix.
func (f *fanout) written() int {
	var n int
	for _, m := range f.marks[:f.w.Committed()] {
		if *m {
			n++
		}
	}
	return n
}
