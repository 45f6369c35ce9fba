package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "runSweep",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/sweep",
		Summary:     "Run nudge tick",
		Description: "Runs the hourly nudge tick for the given instant (default now). The legacy pass runs when the instant falls in the legacy hour.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleRunSweep)

	huma.Register(s.api, huma.Operation{
		OperationID: "runLegacySweep",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/sweep/legacy",
		Summary:     "Run legacy nudge pass",
		Description: "Nudges every profile without a timezone or preferences, regardless of the hour",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleRunLegacySweep)
}

// SweepInput optionally pins the tick instant.
type SweepInput struct {
	At time.Time `query:"at" doc:"Instant to evaluate, RFC 3339 (default now)"`
}

// TickOutput returns the tick results.
type TickOutput struct {
	Body nudge.TickResult
}

// SweepOutput returns one pass result.
type SweepOutput struct {
	Body nudge.Result
}

func (s *Server) handleRunSweep(ctx context.Context, input *SweepInput) (*TickOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if s.services.Sweeper == nil {
		return nil, huma.Error503ServiceUnavailable("Sweeper not configured")
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}

	// Tick returns the partial result alongside an enumeration error.
	res, err := s.services.Sweeper.Tick(ctx, at.UTC())
	if err != nil {
		s.logger.Warn("manual sweep incomplete", "error", err)
	}
	return &TickOutput{Body: res}, nil
}

func (s *Server) handleRunLegacySweep(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if s.services.Sweeper == nil {
		return nil, huma.Error503ServiceUnavailable("Sweeper not configured")
	}

	res, err := s.services.Sweeper.SweepLegacy(ctx, s.now().UTC())
	if err != nil {
		s.logger.Warn("manual legacy sweep incomplete", "error", err)
	}
	return &SweepOutput{Body: res}, nil
}
