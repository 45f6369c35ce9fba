package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

func (s *Server) registerFriendRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFriends",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/friends",
		Summary:     "List friends",
		Description: "Returns my friend summaries ordered by friend ID",
		Tags:        []string{"Friends"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListFriends)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeFriend",
		Method:        http.MethodDelete,
		Path:          "/api/v1/me/friends/{friendId}",
		Summary:       "Remove friend",
		Description:   "Removes both sides of the friendship",
		Tags:          []string{"Friends"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleRemoveFriend)
}

// ListPageInput carries cursor pagination parameters.
type ListPageInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" doc:"Page size (default 100)"`
	Cursor string `query:"cursor" doc:"Cursor from the previous page"`
}

// FriendPageOutput returns a page of friends.
type FriendPageOutput struct {
	Body PageResponse[*domain.Friendship]
}

// RemoveFriendInput names the friend to remove.
type RemoveFriendInput struct {
	FriendID string `path:"friendId" doc:"Friend user ID"`
}

func (s *Server) handleListFriends(ctx context.Context, input *ListPageInput) (*FriendPageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Friendship.List(ctx, userID, pageParams(input.Limit, input.Cursor))
	if err != nil {
		return nil, err
	}
	return &FriendPageOutput{Body: toPage(page)}, nil
}

func (s *Server) handleRemoveFriend(ctx context.Context, input *RemoveFriendInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Friendship.Remove(ctx, userID, input.FriendID); err != nil {
		return nil, err
	}
	return nil, nil
}
