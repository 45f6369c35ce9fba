package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/channel"
	"github.com/anjalik1505/town-functions-sub003/internal/config"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
	"github.com/anjalik1505/town-functions-sub003/internal/trigger"
)

// DispatcherHandle wraps the change-event dispatcher for lifecycle management.
// Its workers start in Bootstrap, once every handler exists.
type DispatcherHandle struct {
	*trigger.Dispatcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *DispatcherHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Dispatcher.Shutdown(ctx)
	if h.cancel != nil {
		h.cancel()
	}
	return err
}

// Start runs the dispatcher workers until Shutdown.
func (h *DispatcherHandle) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.Dispatcher.Start(ctx)
}

// ProvideDispatcher provides the change-event dispatcher.
func ProvideDispatcher(i do.Injector) (*DispatcherHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	// Delete handlers remove channels, so the registry must outlive the drain.
	_ = do.MustInvoke[*ChannelRegistryHandle](i)

	d := trigger.NewDispatcher(trigger.DefaultConfig(), log.Component("trigger"))
	return &DispatcherHandle{Dispatcher: d}, nil
}

// StoreHandle wraps the store. It is closed explicitly after the container
// shuts down, once the dispatcher has drained.
type StoreHandle struct {
	*store.Store
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	dispatcher := do.MustInvoke[*DispatcherHandle](i)

	s, err := store.New(cfg.Database.Path, log.Component("store"), dispatcher.Dispatcher,
		store.WithMaxBatchOps(cfg.Nudge.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return &StoreHandle{Store: s}, nil
}

// ProvideCalculator provides the bucket key calculator.
func ProvideCalculator(i do.Injector) (*nudge.Calculator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return nudge.NewCalculator(log.Component("calculator")), nil
}

// ProvideBuckets provides the bucket membership store.
func ProvideBuckets(i do.Injector) (*store.Buckets, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	calc := do.MustInvoke[*nudge.Calculator](i)
	return store.NewBuckets(storeHandle.Store, calc), nil
}

// ChannelRegistryHandle wraps the Redis channel registry.
type ChannelRegistryHandle struct {
	*channel.Registry
}

// Shutdown implements do.Shutdownable.
func (h *ChannelRegistryHandle) Shutdown() error {
	return h.Close()
}

// ProvideChannelRegistry provides the delivery channel registry.
func ProvideChannelRegistry(i do.Injector) (*ChannelRegistryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	reg, err := channel.NewRegistry(context.Background(), cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize channel registry: %w", err)
	}

	log.Info("Channel registry connected")
	return &ChannelRegistryHandle{Registry: reg}, nil
}
