package providers

import (
	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/config"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
	"github.com/anjalik1505/town-functions-sub003/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	buckets := do.MustInvoke[*store.Buckets](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(storeHandle.Store, buckets, v, log.Component("profile")), nil
}

// ProvideFriendshipService provides the friend manager.
func ProvideFriendshipService(i do.Injector) (*service.FriendshipService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFriendshipService(storeHandle.Store, log.Component("friendship")), nil
}

// ProvideInvitationService provides the invitation and join request service.
func ProvideInvitationService(i do.Injector) (*service.InvitationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInvitationService(storeHandle.Store, log.Component("invitation")), nil
}

// ProvideGroupService provides the group service.
func ProvideGroupService(i do.Injector) (*service.GroupService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewGroupService(storeHandle.Store, log.Component("group")), nil
}

// ProvideUpdateService provides the update service. Friends of the author get
// a silent push over the hub.
func ProvideUpdateService(i do.Injector) (*service.UpdateService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	friendships := do.MustInvoke[*service.FriendshipService](i)
	registry := do.MustInvoke[*ChannelRegistryHandle](i)
	hub := do.MustInvoke[*HubHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUpdateService(storeHandle.Store, friendships, registry.Registry, hub.Hub, log.Component("update")), nil
}

// ProvidePropagator provides the denormalization propagator.
func ProvidePropagator(i do.Injector) (*service.Propagator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	pc := service.DefaultPropagationConfig()
	pc.ChunkSize = cfg.Nudge.BatchSize

	return service.NewPropagator(storeHandle.Store, pc, log.Component("propagator")), nil
}

// ProvideRebucketer provides the bucket reconciliation job.
func ProvideRebucketer(i do.Injector) (*service.Rebucketer, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	buckets := do.MustInvoke[*store.Buckets](i)
	calc := do.MustInvoke[*nudge.Calculator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRebucketer(storeHandle.Store, buckets, calc, log.Component("rebucket")), nil
}
