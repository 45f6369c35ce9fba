package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

func seedUpdates(t *testing.T, s *store.Store, userID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := range n {
		u := &domain.Update{
			ID:        fmt.Sprintf("upd-%s-%02d", userID, i),
			CreatedBy: userID,
			Content:   "hello",
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateUpdate(context.Background(), nil, u))
		ids = append(ids, u.ID)
	}
	return ids
}

func TestLatestUpdateAt(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	latest, err := s.LatestUpdateAt(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, latest)

	seedUpdates(t, s, "alice", 3)
	seedUpdates(t, s, "bob", 5)

	latest, err = s.LatestUpdateAt(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, testNow.Add(2*time.Minute).Equal(*latest))
}

func TestListUpdatesByUser_NewestFirstAcrossPages(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ids := seedUpdates(t, s, "alice", 5)

	first, err := s.ListUpdatesByUser(ctx, "alice", store.PaginationParams{Limit: 3})
	require.NoError(t, err)
	require.True(t, first.HasMore)

	second, err := s.ListUpdatesByUser(ctx, "alice", store.PaginationParams{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.False(t, second.HasMore)

	var got []string
	for _, u := range append(first.Items, second.Items...) {
		got = append(got, u.ID)
	}
	assert.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, got)
}

func TestDeleteUpdate_RemovesReactions(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ids := seedUpdates(t, s, "alice", 1)
	require.NoError(t, s.CreateReaction(ctx, nil, &domain.Reaction{UpdateID: ids[0], UserID: "bob", Type: domain.ReactionLike}))

	u, err := s.GetUpdate(ctx, ids[0])
	require.NoError(t, err)
	require.NoError(t, s.DeleteUpdate(ctx, nil, u))

	_, err = s.GetUpdate(ctx, ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)
	reactions, err := s.ListReactions(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, reactions)

	latest, err := s.LatestUpdateAt(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestCreateReaction_DuplicateConflicts(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	r := &domain.Reaction{UpdateID: "upd-1", UserID: "bob", Type: domain.ReactionLove, CreatedAt: testNow}
	require.NoError(t, s.CreateReaction(ctx, nil, r))
	assert.ErrorIs(t, s.CreateReaction(ctx, nil, r), store.ErrAlreadyExists)

	// A different type from the same user is a separate reaction.
	require.NoError(t, s.CreateReaction(ctx, nil, &domain.Reaction{UpdateID: "upd-1", UserID: "bob", Type: domain.ReactionWow}))

	reactions, err := s.ListReactions(ctx, "upd-1")
	require.NoError(t, err)
	assert.Len(t, reactions, 2)
}
