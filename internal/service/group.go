package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	apperrors "github.com/anjalik1505/town-functions-sub003/internal/errors"
	"github.com/anjalik1505/town-functions-sub003/internal/id"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// MaxGroupMembers caps a group's size, creator included.
const MaxGroupMembers = 50

// CreateGroupRequest is the input for GroupService.Create.
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,max=60"`
	Icon      string   `json:"icon,omitempty" validate:"max=16"`
	MemberIDs []string `json:"member_ids" validate:"max=49,dive,required"`
}

// GroupService manages groups.
type GroupService struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGroupService creates a group service.
func NewGroupService(s *store.Store, logger *slog.Logger) *GroupService {
	return &GroupService{store: s, logger: logger, now: time.Now}
}

// Create makes a group of actorID and the given members. Every other member
// must be a friend of actorID.
func (s *GroupService) Create(ctx context.Context, actorID string, req CreateGroupRequest) (*domain.Group, error) {
	members := []string{actorID}
	for _, m := range req.MemberIDs {
		if !slices.Contains(members, m) {
			members = append(members, m)
		}
	}
	if len(members) > MaxGroupMembers {
		return nil, apperrors.Validation(fmt.Sprintf("a group holds at most %d members", MaxGroupMembers))
	}

	profiles := make(map[string]domain.Fragment, len(members))
	for _, m := range members {
		if m != actorID {
			ok, err := s.store.AreFriends(ctx, actorID, m)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperrors.Forbidden("only friends can be added to a group")
			}
		}
		p, err := s.store.GetProfile(ctx, m)
		if err != nil {
			return nil, err
		}
		profiles[m] = p.Fragment()
	}

	groupID, err := id.Generate(id.PrefixGroup)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "generate group id")
	}
	now := s.now().UTC()
	g := &domain.Group{
		ID:             groupID,
		Name:           req.Name,
		Icon:           req.Icon,
		CreatedBy:      actorID,
		Members:        members,
		MemberProfiles: profiles,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateGroup(ctx, nil, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.logger.Info("group created", slog.String("group_id", g.ID), slog.Int("members", len(members)))
	return g, nil
}

// Get returns a group actorID belongs to.
func (s *GroupService) Get(ctx context.Context, actorID, groupID string) (*domain.Group, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(g.Members, actorID) {
		return nil, apperrors.Forbidden("not a member of this group")
	}
	return g, nil
}

// ListMine returns a page of the groups actorID belongs to.
func (s *GroupService) ListMine(ctx context.Context, actorID string, params store.PaginationParams) (*store.PaginatedResult[*domain.Group], error) {
	return s.store.ListGroupsForUser(ctx, actorID, params)
}
