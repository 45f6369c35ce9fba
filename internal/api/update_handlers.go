package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
)

func (s *Server) registerUpdateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createUpdate",
		Method:        http.MethodPost,
		Path:          "/api/v1/updates",
		Summary:       "Post update",
		Description:   "Posts a status update and refreshes the summary friends see of the caller",
		Tags:          []string{"Updates"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleCreateUpdate)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUpdate",
		Method:      http.MethodGet,
		Path:        "/api/v1/updates/{id}",
		Summary:     "Get update",
		Tags:        []string{"Updates"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleGetUpdate)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyUpdates",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/updates",
		Summary:     "List my updates",
		Description: "Returns my updates, newest first",
		Tags:        []string{"Updates"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListMyUpdates)

	huma.Register(s.api, huma.Operation{
		OperationID:   "react",
		Method:        http.MethodPost,
		Path:          "/api/v1/updates/{id}/reactions",
		Summary:       "React to update",
		Tags:          []string{"Updates"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleReact)

	huma.Register(s.api, huma.Operation{
		OperationID: "listReactions",
		Method:      http.MethodGet,
		Path:        "/api/v1/updates/{id}/reactions",
		Summary:     "List reactions",
		Tags:        []string{"Updates"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListReactions)
}

// === DTOs ===

// CreateUpdateInput is a new status update.
type CreateUpdateInput struct {
	Body struct {
		Content string `json:"content" minLength:"1" maxLength:"2000" doc:"Update text"`
		Emoji   string `json:"emoji,omitempty" maxLength:"16" doc:"Mood emoji shown on friend summaries"`
	}
}

// UpdateOutput returns an update.
type UpdateOutput struct {
	Body *domain.Update
}

// UpdatePageOutput returns a page of updates.
type UpdatePageOutput struct {
	Body PageResponse[*domain.Update]
}

// ReactInput names the reaction.
type ReactInput struct {
	ID   string `path:"id" doc:"Update ID"`
	Body struct {
		Type string `json:"type" enum:"like,love,laugh,wow,sad" doc:"Reaction type"`
	}
}

// ReactionOutput returns a reaction.
type ReactionOutput struct {
	Body *domain.Reaction
}

// ReactionsOutput returns every reaction on an update.
type ReactionsOutput struct {
	Body struct {
		Reactions []*domain.Reaction `json:"reactions"`
	}
}

// === Handlers ===

func (s *Server) handleCreateUpdate(ctx context.Context, input *CreateUpdateInput) (*UpdateOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.services.Update.Create(ctx, userID, service.CreateUpdateRequest{
		Content: input.Body.Content,
		Emoji:   input.Body.Emoji,
	})
	if err != nil {
		return nil, err
	}
	return &UpdateOutput{Body: u}, nil
}

func (s *Server) handleGetUpdate(ctx context.Context, input *IDPathInput) (*UpdateOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.services.Update.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &UpdateOutput{Body: u}, nil
}

func (s *Server) handleListMyUpdates(ctx context.Context, input *ListPageInput) (*UpdatePageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Update.ListMine(ctx, userID, pageParams(input.Limit, input.Cursor))
	if err != nil {
		return nil, err
	}
	return &UpdatePageOutput{Body: toPage(page)}, nil
}

func (s *Server) handleReact(ctx context.Context, input *ReactInput) (*ReactionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	r, err := s.services.Update.React(ctx, userID, input.ID, domain.ReactionType(input.Body.Type))
	if err != nil {
		return nil, err
	}
	return &ReactionOutput{Body: r}, nil
}

func (s *Server) handleListReactions(ctx context.Context, input *IDPathInput) (*ReactionsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	reactions, err := s.services.Update.Reactions(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	if reactions == nil {
		reactions = []*domain.Reaction{}
	}

	out := &ReactionsOutput{}
	out.Body.Reactions = reactions
	return out, nil
}
