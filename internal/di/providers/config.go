// Package providers contains dependency injection providers for the town server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/config"
	"github.com/anjalik1505/town-functions-sub003/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting town server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"database_path", cfg.Database.Path,
		"legacy_hour", cfg.Nudge.LegacyHour,
	)

	return log, nil
}
