package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

func TestBatch_CommitAppliesAllWrites(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b := s.NewBatch()
	require.NoError(t, s.CreateInvitation(ctx, b, &domain.Invitation{ID: "inv-1", SenderID: "alice"}))
	_, err := s.UpsertFriend(ctx, b, "alice", "bob", domain.FriendshipPatch{}, testNow)
	require.NoError(t, err)

	// Nothing is visible before commit.
	_, err = s.GetInvitation(ctx, "inv-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, b.Commit(ctx))

	_, err = s.GetInvitation(ctx, "inv-1")
	assert.NoError(t, err)
	_, err = s.GetFriend(ctx, "alice", "bob")
	assert.NoError(t, err)
}

func TestBatch_DiscardDropsWrites(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b := s.NewBatch()
	require.NoError(t, s.CreateInvitation(ctx, b, &domain.Invitation{ID: "inv-1", SenderID: "alice"}))
	b.Discard()

	_, err := s.GetInvitation(ctx, "inv-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, b.Commit(ctx), store.ErrBatchClosed)
}

func TestBatch_RejectsWritesPastBound(t *testing.T) {
	s, cleanup := setupTestStore(t, store.WithMaxBatchOps(3))
	defer cleanup()
	ctx := context.Background()

	b := s.NewBatch()
	defer b.Discard()

	// Two writes each: record plus sender index.
	require.NoError(t, s.CreateInvitation(ctx, b, &domain.Invitation{ID: "inv-1", SenderID: "alice"}))
	assert.Equal(t, 2, b.Len())

	err := s.CreateInvitation(ctx, b, &domain.Invitation{ID: "inv-2", SenderID: "alice"})
	assert.ErrorIs(t, err, store.ErrBatchFull)
}

func TestBatch_EventsEmittedOnlyAfterCommit(t *testing.T) {
	rec := &recordingEmitter{}
	s, cleanup := setupTestStoreWithEmitter(t, rec)
	defer cleanup()
	ctx := context.Background()

	b := s.NewBatch()
	require.NoError(t, s.SaveProfile(ctx, b, testProfile("alice", "alice")))
	assert.Empty(t, rec.Events())

	require.NoError(t, b.Commit(ctx))
	require.Len(t, rec.Events(), 1)
	assert.IsType(t, store.ProfileChanged{}, rec.Events()[0])

	discarded := s.NewBatch()
	require.NoError(t, s.SaveProfile(ctx, discarded, testProfile("bob", "bob")))
	discarded.Discard()
	assert.Len(t, rec.Events(), 1)
}

func TestBatchWriter_ChunksFanOut(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	w := s.NewBatchWriter(10)
	for i := range 25 {
		other := fmt.Sprintf("friend-%02d", i)
		err := w.Stage(ctx, 1, func(b *store.Batch) error {
			_, err := s.UpsertFriend(ctx, b, "alice", other, domain.FriendshipPatch{}, testNow)
			return err
		})
		require.NoError(t, err)
	}

	// Two full chunks were committed automatically.
	assert.Equal(t, 20, w.Committed())
	assert.Equal(t, 5, w.Count())

	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, 25, w.Committed())
	assert.Zero(t, w.Count())

	page, err := s.ListFriends(ctx, "alice", store.PaginationParams{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, page.Items, 25)
}

func TestBatchWriter_FlushesBeforeOverflow(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	w := s.NewBatchWriter(5)
	stage := func(id string) error {
		return w.Stage(ctx, 2, func(b *store.Batch) error {
			return s.CreateInvitation(ctx, b, &domain.Invitation{ID: id, SenderID: "alice"})
		})
	}

	require.NoError(t, stage("inv-1"))
	require.NoError(t, stage("inv-2"))
	assert.Zero(t, w.Committed())

	// A third unit would overflow, so the first two are flushed first.
	require.NoError(t, stage("inv-3"))
	assert.Equal(t, 2, w.Committed())
	assert.Equal(t, 2, w.Count())

	err := w.Stage(ctx, 6, func(*store.Batch) error { return nil })
	assert.ErrorIs(t, err, store.ErrBatchFull)
}

func TestBatchWriter_Cancel(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	w := s.NewBatchWriter(10)
	require.NoError(t, w.Stage(ctx, 2, func(b *store.Batch) error {
		return s.CreateInvitation(ctx, b, &domain.Invitation{ID: "inv-1", SenderID: "alice"})
	}))
	w.Cancel()
	require.NoError(t, w.Flush(ctx))

	_, err := s.GetInvitation(ctx, "inv-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
