package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/config"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/ratelimit"
	"github.com/anjalik1505/town-functions-sub003/internal/scheduler"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
	"github.com/anjalik1505/town-functions-sub003/internal/sse"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// HubHandle wraps the push hub for lifecycle management.
type HubHandle struct {
	*sse.Hub
}

// Shutdown implements do.Shutdownable.
func (h *HubHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Hub.Shutdown(ctx)
}

// ProvideHub provides the push hub, limited per delivery channel.
func ProvideHub(i do.Injector) (*HubHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	limiter := ratelimit.New(cfg.Nudge.PushRate, cfg.Nudge.PushBurst, limiterIdleTTL)
	return &HubHandle{Hub: sse.NewHub(limiter, log.Component("hub"))}, nil
}

// ProvideSweeper provides the notification sweeper.
func ProvideSweeper(i do.Injector) (*nudge.Sweeper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	buckets := do.MustInvoke[*store.Buckets](i)
	registry := do.MustInvoke[*ChannelRegistryHandle](i)
	hub := do.MustInvoke[*HubHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	nc := nudge.DefaultConfig()
	nc.LegacyHour = cfg.Nudge.LegacyHour
	nc.CooldownWindow = cfg.Nudge.CooldownWindow
	nc.RenotifyGuard = cfg.Nudge.RenotifyGuard
	nc.Concurrency = cfg.Nudge.SweepConcurrency

	return nudge.NewSweeper(nudge.Deps{
		Members:   buckets,
		Profiles:  storeHandle.Store,
		Activity:  storeHandle.Store,
		Channels:  registry.Registry,
		Transport: hub.Hub,
	}, nc, log.Component("sweeper")), nil
}

// SchedulerHandle wraps the cron scheduler with shutdown capability.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideScheduler provides the hourly sweep and daily reconciliation jobs.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	sweeper := do.MustInvoke[*nudge.Sweeper](i)
	rebucketer := do.MustInvoke[*service.Rebucketer](i)
	log := do.MustInvoke[*logger.Logger](i)

	s := scheduler.New(sweeper, rebucketer, log.Component("scheduler"))
	if err := s.Start(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Scheduler started", "sweep", scheduler.SweepSpec, "rebucket", scheduler.RebucketSpec)
	return &SchedulerHandle{Scheduler: s}, nil
}
