package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

type mapChannels map[string]string

func (m mapChannels) Lookup(_ context.Context, userID string) (*domain.DeliveryChannel, error) {
	if token, ok := m[userID]; ok {
		return &domain.DeliveryChannel{UserID: userID, Token: token}, nil
	}
	return nil, nil
}

type recordingPush struct {
	mu     sync.Mutex
	tokens []string
}

func (r *recordingPush) SendSilent(_ context.Context, token string, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return nil
}

func (e *testEnv) updates(channels ChannelLookup, push SilentSender) *UpdateService {
	svc := NewUpdateService(e.store, e.friendships(), channels, push, e.logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestUpdateService_CreateFansOutToFriends(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	ana := e.createProfile(t, "ana", "Ana")
	ben := e.createProfile(t, "ben", "Ben")
	cat := e.createProfile(t, "cat", "Cat")
	e.createProfile(t, "dan", "Dan")
	e.befriend(t, ana, ben)
	e.befriend(t, ana, cat)

	push := &recordingPush{}
	svc := e.updates(mapChannels{"ben": "tok-ben", "dan": "tok-dan"}, push)
	svc.chunk = 1

	u, err := svc.Create(ctx, ana.UserID, CreateUpdateRequest{Content: "  summit day  ", Emoji: "⛰️"})
	require.NoError(t, err)
	assert.Equal(t, "summit day", u.Content)
	assert.Equal(t, ana.Fragment(), u.Author)

	for _, friendID := range []string{ben.UserID, cat.UserID} {
		row, err := e.store.GetFriend(ctx, friendID, ana.UserID)
		require.NoError(t, err)
		assert.Equal(t, "⛰️", row.LastUpdateEmoji)
		require.NotNil(t, row.LastUpdateAt)
		assert.True(t, testNow.Equal(*row.LastUpdateAt))
		assert.Equal(t, ana.Fragment(), row.Fragment())
	}

	own, err := e.store.GetFriend(ctx, ana.UserID, ben.UserID)
	require.NoError(t, err)
	assert.Empty(t, own.LastUpdateEmoji)

	assert.Equal(t, []string{"tok-ben"}, push.tokens)

	page, err := svc.ListMine(ctx, ana.UserID, store.DefaultPaginationParams())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestUpdateService_React(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	ana := e.createProfile(t, "ana", "Ana")
	ben := e.createProfile(t, "ben", "Ben")
	e.createProfile(t, "cat", "Cat")
	e.befriend(t, ana, ben)

	svc := e.updates(nil, nil)
	u, err := svc.Create(ctx, ana.UserID, CreateUpdateRequest{Content: "hello"})
	require.NoError(t, err)

	r, err := svc.React(ctx, ben.UserID, u.ID, domain.ReactionLove)
	require.NoError(t, err)
	assert.Equal(t, ben.Fragment(), r.Author)

	_, err = svc.React(ctx, ben.UserID, u.ID, domain.ReactionLove)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.React(ctx, ben.UserID, u.ID, domain.ReactionLaugh)
	assert.NoError(t, err, "a different type is a separate reaction")

	_, err = svc.React(ctx, ana.UserID, u.ID, domain.ReactionLike)
	assert.NoError(t, err, "authors may react to their own update")

	_, err = svc.React(ctx, "cat", u.ID, domain.ReactionLike)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.React(ctx, ben.UserID, u.ID, "meh")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.React(ctx, ben.UserID, "upd-missing", domain.ReactionLike)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	reactions, err := svc.Reactions(ctx, ana.UserID, u.ID)
	require.NoError(t, err)
	assert.Len(t, reactions, 3)
}

func TestUpdateService_ReactionAuthorIsSnapshot(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	ana := e.createProfile(t, "ana", "Ana")
	ben := e.createProfile(t, "ben", "Ben")
	e.befriend(t, ana, ben)

	svc := e.updates(nil, nil)
	u, err := svc.Create(ctx, ana.UserID, CreateUpdateRequest{Content: "hello"})
	require.NoError(t, err)
	_, err = svc.React(ctx, ben.UserID, u.ID, domain.ReactionWow)
	require.NoError(t, err)

	_, err = newTestPropagator(e, 500).Propagate(ctx, ben.UserID, domain.Fragment{Username: "ben", Name: "Benjamin"})
	require.NoError(t, err)

	reactions, err := svc.Reactions(ctx, ana.UserID, u.ID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "Ben", reactions[0].Author.Name)
}
