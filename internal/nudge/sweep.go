package nudge

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// MemberSource enumerates bucket members and records deliveries to them.
type MemberSource interface {
	MembersOf(ctx context.Context, key domain.BucketKey, pageSize int) iter.Seq2[*domain.BucketMembership, error]
	MarkNotified(ctx context.Context, userID string, at time.Time) error
}

// ProfileSource reads profiles for content and for the legacy pass.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	Profiles(ctx context.Context, pageSize int) iter.Seq2[*domain.Profile, error]
	MarkProfileNudged(ctx context.Context, userID string, at time.Time) error
}

// ActivityLookup returns when a user last posted, or nil if never.
type ActivityLookup interface {
	LatestUpdateAt(ctx context.Context, userID string) (*time.Time, error)
}

// ChannelLookup returns a user's registered delivery channel, or nil if
// none is registered.
type ChannelLookup interface {
	Lookup(ctx context.Context, userID string) (*domain.DeliveryChannel, error)
}

// Transport delivers notifications to a channel token.
type Transport interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
	SendSilent(ctx context.Context, token string, data map[string]string) error
}

// Pass names a sweep pass in results and logs.
type Pass string

const (
	PassBucket Pass = "bucket"
	PassLegacy Pass = "legacy"
)

// Result aggregates one pass. Every member streamed counts as eligible and
// lands in exactly one of the other counters.
type Result struct {
	Pass             Pass   `json:"pass"`
	Bucket           string `json:"bucket,omitempty"`
	Eligible         int    `json:"eligible"`
	Sent             int    `json:"sent"`
	Failed           int    `json:"failed"`
	SkippedCooldown  int    `json:"skipped_cooldown"`
	SkippedNoChannel int    `json:"skipped_no_channel"`
}

// TickResult is the outcome of one scheduled tick. Legacy is nil outside the
// legacy hour.
type TickResult struct {
	Bucket Result  `json:"bucket"`
	Legacy *Result `json:"legacy,omitempty"`
}

// Config tunes the sweeper.
type Config struct {
	LegacyHour     int
	CooldownWindow time.Duration
	RenotifyGuard  time.Duration
	Concurrency    int
	PageSize       int
	SendAttempts   int
	SendBackoff    time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		LegacyHour:     14,
		CooldownWindow: 24 * time.Hour,
		RenotifyGuard:  50 * time.Minute,
		Concurrency:    8,
		PageSize:       200,
		SendAttempts:   3,
		SendBackoff:    200 * time.Millisecond,
	}
}

// Sweeper runs the bucket and legacy passes. It holds no per-tick state, so
// concurrent ticks are safe.
type Sweeper struct {
	members   MemberSource
	profiles  ProfileSource
	activity  ActivityLookup
	channels  ChannelLookup
	transport Transport
	content   ContentGenerator
	cfg       Config
	logger    *slog.Logger
}

// Deps groups the sweeper's collaborators.
type Deps struct {
	Members   MemberSource
	Profiles  ProfileSource
	Activity  ActivityLookup
	Channels  ChannelLookup
	Transport Transport
	Content   ContentGenerator
}

// NewSweeper creates a sweeper. A nil Content falls back to TemplateGenerator.
func NewSweeper(deps Deps, cfg Config, logger *slog.Logger) *Sweeper {
	if deps.Content == nil {
		deps.Content = NewTemplateGenerator()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.SendAttempts < 1 {
		cfg.SendAttempts = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		members:   deps.Members,
		profiles:  deps.Profiles,
		activity:  deps.Activity,
		channels:  deps.Channels,
		transport: deps.Transport,
		content:   deps.Content,
		cfg:       cfg,
		logger:    logger,
	}
}

// Tick drains the bucket for now and, at the legacy hour, runs the legacy
// pass. Both are functions of now alone.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var out TickResult

	bucket, err := s.SweepBucket(ctx, CurrentKey(now), now)
	out.Bucket = bucket
	if err != nil {
		s.logger.Error("bucket pass aborted", "bucket", bucket.Bucket, "error", err)
	}

	if now.UTC().Hour() != s.cfg.LegacyHour {
		return out, err
	}

	legacy, legacyErr := s.SweepLegacy(ctx, now)
	out.Legacy = &legacy
	if legacyErr != nil {
		s.logger.Error("legacy pass aborted", "error", legacyErr)
	}
	return out, errors.Join(err, legacyErr)
}

// SweepBucket notifies each eligible member of one bucket. Per-user
// failures are counted and logged; only a failure to enumerate the bucket is
// returned, with the partial result.
func (s *Sweeper) SweepBucket(ctx context.Context, key domain.BucketKey, now time.Time) (Result, error) {
	start := time.Now()
	c := &counters{}
	g := &errgroup.Group{}
	g.SetLimit(s.cfg.Concurrency)

	var streamErr error
	for row, err := range s.members.MembersOf(ctx, key, s.cfg.PageSize) {
		if err != nil {
			streamErr = fmt.Errorf("enumerating bucket %s: %w", key, err)
			break
		}
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			break
		}
		c.eligible.Add(1)
		g.Go(func() error {
			s.evaluate(ctx, c, PassBucket, row.UserID, nil, row.LastNotifiedAt, now)
			return nil
		})
	}
	_ = g.Wait()

	res := c.result(PassBucket)
	res.Bucket = key.String()
	s.logResult(ctx, res, time.Since(start))
	return res, streamErr
}

// SweepLegacy notifies every profile the bucket pass cannot reach: those
// without a timezone or without preferences. Profiles that explicitly chose
// "never" are left alone.
func (s *Sweeper) SweepLegacy(ctx context.Context, now time.Time) (Result, error) {
	start := time.Now()
	c := &counters{}
	g := &errgroup.Group{}
	g.SetLimit(s.cfg.Concurrency)

	var streamErr error
	for p, err := range s.profiles.Profiles(ctx, s.cfg.PageSize) {
		if err != nil {
			streamErr = fmt.Errorf("enumerating profiles: %w", err)
			break
		}
		if ctx.Err() != nil {
			streamErr = ctx.Err()
			break
		}
		if !InLegacyPass(p) {
			continue
		}
		c.eligible.Add(1)
		g.Go(func() error {
			s.evaluate(ctx, c, PassLegacy, p.UserID, p, p.LastNudgedAt, now)
			return nil
		})
	}
	_ = g.Wait()

	res := c.result(PassLegacy)
	s.logResult(ctx, res, time.Since(start))
	return res, streamErr
}

// InLegacyPass reports whether p is served by the legacy pass. It is the
// exact complement of the profiles that can hold bucket rows, minus explicit
// opt-outs.
func InLegacyPass(p *domain.Profile) bool {
	if p.IsMigrated() {
		return false
	}
	return p.Nudge == nil || p.Nudge.Occurrence != domain.OccurrenceNever
}

func (s *Sweeper) evaluate(ctx context.Context, c *counters, pass Pass, userID string, profile *domain.Profile, lastNotified *time.Time, now time.Time) {
	log := s.logger.With("user_id", userID, "pass", string(pass))

	if lastNotified != nil && now.Sub(*lastNotified) < s.cfg.RenotifyGuard {
		c.cooldown.Add(1)
		return
	}

	latest, err := s.activity.LatestUpdateAt(ctx, userID)
	if err != nil {
		log.Warn("activity lookup failed", "error", err)
		c.failed.Add(1)
		return
	}
	if latest != nil && latest.After(now.Add(-s.cfg.CooldownWindow)) {
		c.cooldown.Add(1)
		return
	}

	ch, err := s.channels.Lookup(ctx, userID)
	if err != nil {
		log.Warn("channel lookup failed", "error", err)
		c.failed.Add(1)
		return
	}
	if ch == nil || ch.Token == "" {
		c.noChannel.Add(1)
		return
	}

	if profile == nil {
		profile, err = s.profiles.GetProfile(ctx, userID)
		if err != nil {
			log.Warn("profile lookup failed", "error", err)
			c.failed.Add(1)
			return
		}
	}

	msg, err := s.content.Generate(ctx, profile, now)
	if err != nil {
		log.Warn("content generation failed, using default", "error", err)
		msg = DefaultContent(profile)
	}

	data := map[string]string{
		"type":    "nudge",
		"user_id": userID,
	}
	if err := s.send(ctx, ch.Token, msg, data); err != nil {
		log.Warn("nudge delivery failed", "error", err)
		c.failed.Add(1)
		return
	}
	c.sent.Add(1)

	var stampErr error
	if pass == PassBucket {
		stampErr = s.members.MarkNotified(ctx, userID, now)
	} else {
		stampErr = s.profiles.MarkProfileNudged(ctx, userID, now)
	}
	if stampErr != nil {
		log.Warn("recording delivery failed", "error", stampErr)
	}
}

// send makes a bounded number of delivery attempts with doubling backoff.
func (s *Sweeper) send(ctx context.Context, token string, msg Content, data map[string]string) error {
	var err error
	backoff := s.cfg.SendBackoff
	for attempt := range s.cfg.SendAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = s.transport.Send(ctx, token, msg.Title, msg.Body, data); err == nil {
			return nil
		}
	}
	return err
}

func (s *Sweeper) logResult(ctx context.Context, res Result, took time.Duration) {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "sweep complete",
		slog.String("pass", string(res.Pass)),
		slog.String("bucket", res.Bucket),
		slog.Int("eligible", res.Eligible),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
		slog.Int("skipped_cooldown", res.SkippedCooldown),
		slog.Int("skipped_no_channel", res.SkippedNoChannel),
		slog.Duration("took", took),
	)
}

type counters struct {
	eligible  atomic.Int64
	sent      atomic.Int64
	failed    atomic.Int64
	cooldown  atomic.Int64
	noChannel atomic.Int64
}

func (c *counters) result(pass Pass) Result {
	return Result{
		Pass:             pass,
		Eligible:         int(c.eligible.Load()),
		Sent:             int(c.sent.Load()),
		Failed:           int(c.failed.Load()),
		SkippedCooldown:  int(c.cooldown.Load()),
		SkippedNoChannel: int(c.noChannel.Load()),
	}
}
