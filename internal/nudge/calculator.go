// Package nudge schedules reminder notifications for users who have not
// posted recently. Users are grouped into UTC (weekday, hour) buckets that
// an hourly sweep drains; accounts without a timezone or preferences are
// covered by a once-daily legacy pass.
package nudge

import (
	"log/slog"
	"time"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

// fallbackKey is used for timezones the zone database does not know.
var fallbackKey = domain.BucketKey{Day: time.Sunday, Hour: 0}

// Calculator converts between local and UTC bucket slots using the system
// zone database, so offset changes are picked up without redeploying.
type Calculator struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewCalculator creates a calculator that resolves offsets as of the current
// week.
func NewCalculator(logger *slog.Logger) *Calculator {
	return &Calculator{logger: logger, now: time.Now}
}

// ToUTC implements store.BucketKeyer using the offset in effect this week.
func (c *Calculator) ToUTC(timezone string, day time.Weekday, hour int) domain.BucketKey {
	return c.ToUTCAt(timezone, day, hour, c.now())
}

// ToUTCAt maps local (day, hour) in timezone to a UTC bucket, taking the
// offset in effect on that local day during the week of ref. An unknown
// timezone is logged and yields (Sunday, 00).
//
// Half-hour offsets floor to the containing UTC hour.
func (c *Calculator) ToUTCAt(timezone string, day time.Weekday, hour int, ref time.Time) domain.BucketKey {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		if c.logger != nil {
			c.logger.Warn("unknown timezone, using fallback bucket",
				"timezone", timezone,
				"bucket", fallbackKey.String(),
			)
		}
		return fallbackKey
	}

	// Full date arithmetic: build the concrete local instant and let the
	// conversion carry day boundaries.
	localRef := ref.In(loc)
	offset := (int(day) - int(localRef.Weekday()) + 7) % 7
	local := time.Date(localRef.Year(), localRef.Month(), localRef.Day()+offset, hour, 0, 0, 0, loc)

	utc := local.UTC()
	return domain.BucketKey{Day: utc.Weekday(), Hour: utc.Hour()}
}

// FromUTCAt maps a UTC bucket back to the local (day, hour) in timezone
// during the week of ref. It is the local hour whose :00 falls inside the
// bucket, which also holds for offsets that are not whole hours.
func (c *Calculator) FromUTCAt(timezone string, key domain.BucketKey, ref time.Time) (time.Weekday, int, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Sunday, 0, err
	}

	utcRef := ref.UTC()
	offset := (int(key.Day) - int(utcRef.Weekday()) + 7) % 7
	utc := time.Date(utcRef.Year(), utcRef.Month(), utcRef.Day()+offset, key.Hour, 59, 0, 0, time.UTC)

	local := utc.In(loc)
	return local.Weekday(), local.Hour(), nil
}

// CurrentKey returns the bucket a sweep at now drains.
func CurrentKey(now time.Time) domain.BucketKey {
	utc := now.UTC()
	return domain.BucketKey{Day: utc.Weekday(), Hour: utc.Hour()}
}
