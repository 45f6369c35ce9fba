package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

func (s *Server) registerInvitationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createInvitation",
		Method:        http.MethodPost,
		Path:          "/api/v1/invitations",
		Summary:       "Create invitation",
		Tags:          []string{"Invitations"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleCreateInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "getInvitation",
		Method:      http.MethodGet,
		Path:        "/api/v1/invitations/{id}",
		Summary:     "Get invitation",
		Description: "Returns an invitation with its sender so the invitee can decide to join",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleGetInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyInvitations",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/invitations",
		Summary:     "List my invitations",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListMyInvitations)

	huma.Register(s.api, huma.Operation{
		OperationID:   "joinInvitation",
		Method:        http.MethodPost,
		Path:          "/api/v1/invitations/{id}/join",
		Summary:       "Request to join",
		Description:   "Sends a join request to the invitation's sender",
		Tags:          []string{"Invitations"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"gateway": {}}},
	}, s.handleJoinInvitation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listJoinRequests",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/join-requests",
		Summary:     "List received join requests",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListJoinRequests)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptJoinRequest",
		Method:      http.MethodPost,
		Path:        "/api/v1/join-requests/{id}/accept",
		Summary:     "Accept join request",
		Description: "Creates the friendship. Accepting again returns the existing friendship.",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleAcceptJoinRequest)

	huma.Register(s.api, huma.Operation{
		OperationID: "rejectJoinRequest",
		Method:      http.MethodPost,
		Path:        "/api/v1/join-requests/{id}/reject",
		Summary:     "Reject join request",
		Tags:        []string{"Invitations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleRejectJoinRequest)
}

// === DTOs ===

// IDPathInput names a resource by ID.
type IDPathInput struct {
	ID string `path:"id" doc:"Resource ID"`
}

// InvitationOutput returns an invitation.
type InvitationOutput struct {
	Body *domain.Invitation
}

// InvitationPageOutput returns a page of invitations.
type InvitationPageOutput struct {
	Body PageResponse[*domain.Invitation]
}

// JoinRequestOutput returns a join request.
type JoinRequestOutput struct {
	Body *domain.JoinRequest
}

// JoinRequestPageOutput returns a page of join requests.
type JoinRequestPageOutput struct {
	Body PageResponse[*domain.JoinRequest]
}

// FriendshipOutput returns my side of a friendship.
type FriendshipOutput struct {
	Body *domain.Friendship
}

// === Handlers ===

func (s *Server) handleCreateInvitation(ctx context.Context, _ *struct{}) (*InvitationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := s.services.Invitation.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &InvitationOutput{Body: inv}, nil
}

func (s *Server) handleGetInvitation(ctx context.Context, input *IDPathInput) (*InvitationOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	inv, err := s.services.Invitation.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &InvitationOutput{Body: inv}, nil
}

func (s *Server) handleListMyInvitations(ctx context.Context, input *ListPageInput) (*InvitationPageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Invitation.ListMine(ctx, userID, pageParams(input.Limit, input.Cursor))
	if err != nil {
		return nil, err
	}
	return &InvitationPageOutput{Body: toPage(page)}, nil
}

func (s *Server) handleJoinInvitation(ctx context.Context, input *IDPathInput) (*JoinRequestOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req, err := s.services.Invitation.Join(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &JoinRequestOutput{Body: req}, nil
}

func (s *Server) handleListJoinRequests(ctx context.Context, input *ListPageInput) (*JoinRequestPageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.services.Invitation.ListReceived(ctx, userID, pageParams(input.Limit, input.Cursor))
	if err != nil {
		return nil, err
	}
	return &JoinRequestPageOutput{Body: toPage(page)}, nil
}

func (s *Server) handleAcceptJoinRequest(ctx context.Context, input *IDPathInput) (*FriendshipOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	f, err := s.services.Friendship.Accept(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &FriendshipOutput{Body: f}, nil
}

func (s *Server) handleRejectJoinRequest(ctx context.Context, input *IDPathInput) (*JoinRequestOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	req, err := s.services.Friendship.Reject(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &JoinRequestOutput{Body: req}, nil
}
