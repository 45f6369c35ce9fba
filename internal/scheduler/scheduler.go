// Package scheduler drives the periodic jobs: the hourly nudge sweep and the
// daily bucket reconciliation.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/service"
)

const (
	// SweepSpec fires at the top of every hour.
	SweepSpec = "0 * * * *"
	// RebucketSpec fires daily, away from the legacy hour.
	RebucketSpec = "30 3 * * *"
)

// Ticker runs one nudge tick.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (nudge.TickResult, error)
}

// Rebucketer reconciles bucket rows with the current offsets.
type Rebucketer interface {
	Run(ctx context.Context, now time.Time) (service.RebucketResult, error)
}

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler wraps a UTC cron.
type Scheduler struct {
	cron     *cron.Cron
	ticker   Ticker
	rebucket Rebucketer
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler. rebucket may be nil.
func New(ticker Ticker, rebucket Rebucketer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ticker:   ticker,
		rebucket: rebucket,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the cron. Jobs receive a context that
// is cancelled by Stop or when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(SweepSpec, s.sweep); err != nil {
		s.cancel()
		return err
	}
	if s.rebucket != nil {
		if _, err := s.cron.AddFunc(RebucketSpec, s.reconcile); err != nil {
			s.cancel()
			return err
		}
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started",
		slog.String("sweep", SweepSpec),
		slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) sweep() {
	// The cron fires a few milliseconds late; the bucket is the hour's.
	now := s.now().UTC().Truncate(time.Hour)
	res, err := s.ticker.Tick(s.ctx, now)
	if err != nil {
		s.logger.Error("nudge tick failed", slog.Time("at", now), slog.String("error", err.Error()))
		return
	}
	attrs := []any{slog.String("bucket", res.Bucket.Bucket), slog.Int("sent", res.Bucket.Sent)}
	if res.Legacy != nil {
		attrs = append(attrs, slog.Int("legacy_sent", res.Legacy.Sent))
	}
	s.logger.Debug("nudge tick finished", attrs...)
}

func (s *Scheduler) reconcile() {
	res, err := s.rebucket.Run(s.ctx, s.now())
	if err != nil {
		s.logger.Error("rebucket failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("rebucket finished",
		slog.Int("scanned", res.Scanned),
		slog.Int("replaced", res.Replaced),
		slog.Int("failed", res.Failed))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
