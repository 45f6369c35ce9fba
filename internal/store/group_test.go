package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

func testGroup(id string, members ...string) *domain.Group {
	profiles := make(map[string]domain.Fragment, len(members))
	for _, m := range members {
		profiles[m] = domain.Fragment{Username: m, Name: m}
	}
	return &domain.Group{ID: id, Name: id, CreatedBy: members[0], Members: members, MemberProfiles: profiles, CreatedAt: testNow, UpdatedAt: testNow}
}

func TestCreateGroup_IndexesMembers(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.CreateGroup(ctx, nil, testGroup("grp-1", "alice", "bob")))
	require.NoError(t, s.CreateGroup(ctx, nil, testGroup("grp-2", "bob", "carol")))
	assert.ErrorIs(t, s.CreateGroup(ctx, nil, testGroup("grp-1", "alice")), store.ErrAlreadyExists)

	ids, err := s.GroupIDsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"grp-1", "grp-2"}, ids)

	page, err := s.ListGroupsForUser(ctx, "alice", store.DefaultPaginationParams())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "grp-1", page.Items[0].ID)
}

func TestSetGroupMemberProfile(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.CreateGroup(ctx, nil, testGroup("grp-1", "alice", "bob")))
	frag := domain.Fragment{Username: "ally", Name: "Ally", Avatar: "new.png"}
	later := testNow.Add(time.Hour)

	written, err := s.SetGroupMemberProfile(ctx, nil, "grp-1", "alice", frag, later)
	require.NoError(t, err)
	assert.True(t, written)

	g, err := s.GetGroup(ctx, "grp-1")
	require.NoError(t, err)
	assert.Equal(t, frag, g.MemberProfiles["alice"])
	assert.Equal(t, domain.Fragment{Username: "bob", Name: "bob"}, g.MemberProfiles["bob"])
	assert.Equal(t, later, g.UpdatedAt)

	written, err = s.SetGroupMemberProfile(ctx, nil, "grp-1", "mallory", frag, later)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = s.SetGroupMemberProfile(ctx, nil, "grp-missing", "alice", frag, later)
	require.NoError(t, err)
	assert.False(t, written)
}

func TestRemoveGroupMember(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.CreateGroup(ctx, nil, testGroup("grp-1", "alice", "bob")))
	require.NoError(t, s.RemoveGroupMember(ctx, nil, "grp-1", "bob", testNow))

	g, err := s.GetGroup(ctx, "grp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, g.Members)
	assert.NotContains(t, g.MemberProfiles, "bob")

	ids, err := s.GroupIDsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.NoError(t, s.RemoveGroupMember(ctx, nil, "grp-1", "bob", testNow))
}
