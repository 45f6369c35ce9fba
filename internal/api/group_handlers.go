package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
)

func (s *Server) registerGroupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createGroup",
		Method:        http.MethodPost,
		Path:          "/api/v1/groups",
		Summary:       "Create group",
		Description:   "Creates a group of the caller and the given friends",
		Tags:          []string{"Groups"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleCreateGroup)

	huma.Register(s.api, huma.Operation{
		OperationID: "getGroup",
		Method:      http.MethodGet,
		Path:        "/api/v1/groups/{id}",
		Summary:     "Get group",
		Tags:        []string{"Groups"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleGetGroup)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyGroups",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/groups",
		Summary:     "List my groups",
		Tags:        []string{"Groups"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListMyGroups)
}

// CreateGroupInput names the group and its members.
type CreateGroupInput struct {
	Body struct {
		Name      string   `json:"name" minLength:"1" maxLength:"60" doc:"Group name"`
		Icon      string   `json:"icon,omitempty" maxLength:"16" doc:"Emoji icon"`
		MemberIDs []string `json:"member_ids" maxItems:"49" doc:"Friend IDs to include; the caller is added automatically"`
	}
}

// GroupOutput returns a group.
type GroupOutput struct {
	Body *domain.Group
}

// GroupPageOutput returns a page of groups.
type GroupPageOutput struct {
	Body PageResponse[*domain.Group]
}

func (s *Server) handleCreateGroup(ctx context.Context, input *CreateGroupInput) (*GroupOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.services.Group.Create(ctx, userID, service.CreateGroupRequest{
		Name:      input.Body.Name,
		Icon:      input.Body.Icon,
		MemberIDs: input.Body.MemberIDs,
	})
	if err != nil {
		return nil, err
	}
	return &GroupOutput{Body: g}, nil
}

func (s *Server) handleGetGroup(ctx context.Context, input *IDPathInput) (*GroupOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := s.services.Group.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &GroupOutput{Body: g}, nil
}

func (s *Server) handleListMyGroups(ctx context.Context, input *ListPageInput) (*GroupPageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Group.ListMine(ctx, userID, pageParams(input.Limit, input.Cursor))
	if err != nil {
		return nil, err
	}
	return &GroupPageOutput{Body: toPage(page)}, nil
}
