package api

import (
	"github.com/anjalik1505/town-functions-sub003/internal/channel"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Profile    *service.ProfileService
	Friendship *service.FriendshipService
	Invitation *service.InvitationService
	Group      *service.GroupService
	Update     *service.UpdateService
	Sweeper    *nudge.Sweeper
	Channels   *channel.Registry
}
