package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BucketKey is a (UTC weekday, UTC hour) slot. Its string form,
// "{day}_{HH}:00", is the partition key for membership rows.
type BucketKey struct {
	Day  time.Weekday
	Hour int
}

// String renders the key, e.g. "saturday_03:00".
func (k BucketKey) String() string {
	return fmt.Sprintf("%s_%02d:00", WeekdayName(k.Day), k.Hour)
}

// ParseBucketKey parses the output of BucketKey.String.
func ParseBucketKey(s string) (BucketKey, error) {
	dayName, rest, ok := strings.Cut(s, "_")
	if !ok {
		return BucketKey{}, fmt.Errorf("bucket key %q: missing separator", s)
	}
	day, ok := ParseWeekday(dayName)
	if !ok {
		return BucketKey{}, fmt.Errorf("bucket key %q: unknown day", s)
	}
	hh, mm, ok := strings.Cut(rest, ":")
	if !ok || mm != "00" {
		return BucketKey{}, fmt.Errorf("bucket key %q: malformed hour", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return BucketKey{}, fmt.Errorf("bucket key %q: hour out of range", s)
	}
	return BucketKey{Day: day, Hour: hour}, nil
}

// WeekdayName returns the lowercase English day name.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// ParseWeekday parses a lowercase or capitalized English day name.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if WeekdayName(d) == s {
			return d, true
		}
	}
	return time.Sunday, false
}

// Bucket is the parent record of a bucket partition.
type Bucket struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BucketMembership says user UserID wants a nudge at bucket BucketKey.
type BucketMembership struct {
	UserID         string     `json:"user_id"`
	BucketKey      string     `json:"bucket_key"`
	Timezone       string     `json:"timezone"`
	Occurrence     Occurrence `json:"occurrence"`
	CreatedAt      time.Time  `json:"created_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}
