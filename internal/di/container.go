// Package di provides dependency injection configuration for the town server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/config"
	"github.com/anjalik1505/town-functions-sub003/internal/di/providers"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
	"github.com/anjalik1505/town-functions-sub003/internal/trigger"
	"github.com/anjalik1505/town-functions-sub003/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Database layer
	do.Provide(injector, providers.ProvideDispatcher)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCalculator)
	do.Provide(injector, providers.ProvideBuckets)
	do.Provide(injector, providers.ProvideChannelRegistry)

	// Delivery
	do.Provide(injector, providers.ProvideHub)

	// Business services
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideFriendshipService)
	do.Provide(injector, providers.ProvideInvitationService)
	do.Provide(injector, providers.ProvideGroupService)
	do.Provide(injector, providers.ProvideUpdateService)
	do.Provide(injector, providers.ProvidePropagator)
	do.Provide(injector, providers.ProvideRebucketer)

	// Workers
	do.Provide(injector, providers.ProvideSweeper)
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is listening.
// The dispatcher is bound to its handlers and started before anything can
// write, so no change event is dropped for lack of a handler.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	dispatcher := do.MustInvoke[*providers.DispatcherHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*nudge.Calculator](injector)
	buckets := do.MustInvoke[*store.Buckets](injector)
	registry := do.MustInvoke[*providers.ChannelRegistryHandle](injector)
	_ = do.MustInvoke[*providers.HubHandle](injector)

	dispatcher.Bind(trigger.Handlers{
		Propagator:  do.MustInvoke[*service.Propagator](injector),
		Memberships: buckets,
		Channels:    registry.Registry,
	})
	dispatcher.Start()

	// Business services
	_ = do.MustInvoke[*service.ProfileService](injector)
	_ = do.MustInvoke[*service.FriendshipService](injector)
	_ = do.MustInvoke[*service.InvitationService](injector)
	_ = do.MustInvoke[*service.GroupService](injector)
	_ = do.MustInvoke[*service.UpdateService](injector)
	_ = do.MustInvoke[*service.Rebucketer](injector)

	// Workers
	_ = do.MustInvoke[*nudge.Sweeper](injector)
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
