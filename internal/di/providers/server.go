package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/api"
	"github.com/anjalik1505/town-functions-sub003/internal/config"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/ratelimit"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	registry := do.MustInvoke[*ChannelRegistryHandle](i)
	hub := do.MustInvoke[*HubHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Profile:    do.MustInvoke[*service.ProfileService](i),
		Friendship: do.MustInvoke[*service.FriendshipService](i),
		Invitation: do.MustInvoke[*service.InvitationService](i),
		Group:      do.MustInvoke[*service.GroupService](i),
		Update:     do.MustInvoke[*service.UpdateService](i),
		Sweeper:    do.MustInvoke[*nudge.Sweeper](i),
		Channels:   registry.Registry,
	}

	opts := api.Options{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.Server.RateLimit > 0 {
		opts.Limiter = ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst, limiterIdleTTL)
	}

	handler := api.NewServer(storeHandle.Store, services, hub.Hub, opts, log.Component("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
