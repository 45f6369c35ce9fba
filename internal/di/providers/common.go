package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// limiterIdleTTL drops per-key limiter state after this much inactivity.
	limiterIdleTTL = 10 * time.Minute
)
