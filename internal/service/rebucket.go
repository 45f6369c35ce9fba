package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

// Rebucketer re-derives bucket memberships whose UTC keys drifted because a
// zone's offset changed since they were written, e.g. across a daylight
// saving switch. It also drops rows left behind by a schedule change whose
// trigger event was lost.
type Rebucketer struct {
	store   *store.Store
	buckets *store.Buckets
	keyer   store.BucketKeyer
	logger  *slog.Logger
}

// NewRebucketer creates a rebucketer. keyer must be the one the buckets were
// built with.
func NewRebucketer(s *store.Store, buckets *store.Buckets, keyer store.BucketKeyer, logger *slog.Logger) *Rebucketer {
	return &Rebucketer{store: s, buckets: buckets, keyer: keyer, logger: logger}
}

// RebucketResult counts one run.
type RebucketResult struct {
	Scanned  int `json:"scanned"`
	Replaced int `json:"replaced"`
	Failed   int `json:"failed"`
}

// Run compares every profile's stored keys with freshly computed ones and
// replaces the rows of those that differ. A profile without a timezone or
// with a disabled schedule expects no rows. Per-user failures are logged and
// counted.
func (r *Rebucketer) Run(ctx context.Context, now time.Time) (RebucketResult, error) {
	var res RebucketResult
	for p, err := range r.store.Profiles(ctx, 200) {
		if err != nil {
			return res, err
		}
		res.Scanned++

		current, err := r.buckets.Memberships(ctx, p.UserID)
		if err != nil {
			r.logger.Warn("rebucket read failed", slog.String("user_id", p.UserID), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		if sameKeys(current, r.expectedKeys(p)) {
			continue
		}
		if err := r.buckets.Replace(ctx, nil, p.UserID, p.Nudge, p.Timezone, now); err != nil {
			r.logger.Warn("rebucket replace failed", slog.String("user_id", p.UserID), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		res.Replaced++
	}

	r.logger.Info("rebucket complete",
		slog.Int("scanned", res.Scanned),
		slog.Int("replaced", res.Replaced),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (r *Rebucketer) expectedKeys(p *domain.Profile) []string {
	var keys []string
	if p.Timezone == "" || !p.Nudge.Enabled() {
		return keys
	}
	for _, slot := range p.Nudge.Slots() {
		k := r.keyer.ToUTC(p.Timezone, slot.Day, slot.Hour).String()
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func sameKeys(rows []*domain.BucketMembership, want []string) bool {
	have := make([]string, 0, len(rows))
	for _, row := range rows {
		have = append(have, row.BucketKey)
	}
	slices.Sort(have)
	return slices.Equal(have, want)
}
