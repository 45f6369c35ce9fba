package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

func TestGroupService_Create(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	ana := e.createProfile(t, "ana", "Ana")
	ben := e.createProfile(t, "ben", "Ben")
	e.befriend(t, ana, ben)

	g, err := e.groups().Create(ctx, ana.UserID, CreateGroupRequest{
		Name:      "Climbing",
		MemberIDs: []string{ben.UserID, ben.UserID, ana.UserID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ana.UserID, ben.UserID}, g.Members)
	assert.Equal(t, ben.Fragment(), g.MemberProfiles[ben.UserID])

	for _, uid := range []string{ana.UserID, ben.UserID} {
		page, err := e.groups().ListMine(ctx, uid, store.DefaultPaginationParams())
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, g.ID, page.Items[0].ID)
	}
}

func TestGroupService_CreateRequiresFriends(t *testing.T) {
	e := setupTestEnv(t)
	ana := e.createProfile(t, "ana", "Ana")
	stranger := e.createProfile(t, "stranger", "Sam")

	_, err := e.groups().Create(context.Background(), ana.UserID, CreateGroupRequest{
		Name:      "Nope",
		MemberIDs: []string{stranger.UserID},
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestGroupService_GetMembersOnly(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	ana := e.createProfile(t, "ana", "Ana")
	ben := e.createProfile(t, "ben", "Ben")
	e.createProfile(t, "cat", "Cat")
	e.befriend(t, ana, ben)

	g, err := e.groups().Create(ctx, ana.UserID, CreateGroupRequest{Name: "Pair", MemberIDs: []string{ben.UserID}})
	require.NoError(t, err)

	_, err = e.groups().Get(ctx, ben.UserID, g.ID)
	assert.NoError(t, err)
	_, err = e.groups().Get(ctx, "cat", g.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
