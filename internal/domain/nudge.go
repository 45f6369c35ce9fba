package domain

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Occurrence is how often a user asked to be nudged.
type Occurrence string

const (
	OccurrenceNever   Occurrence = "never"
	OccurrenceDaily   Occurrence = "daily"
	OccurrenceWeekly  Occurrence = "weekly"
	OccurrenceFewDays Occurrence = "few_days"
)

// NudgePreferences are the local times and days a user wants reminders.
type NudgePreferences struct {
	Occurrence Occurrence `json:"occurrence" validate:"required,oneof=never daily weekly few_days"`
	TimesOfDay []string   `json:"times_of_day" validate:"max=6,dive,datetime=15:04"`
	DaysOfWeek []string   `json:"days_of_week" validate:"max=7,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
}

// LocalSlot is one (local day, local hour) a user should be nudged at.
type LocalSlot struct {
	Day  time.Weekday
	Hour int
}

// Enabled reports whether these preferences produce any memberships.
func (p *NudgePreferences) Enabled() bool {
	return p != nil && p.Occurrence != OccurrenceNever &&
		len(p.TimesOfDay) > 0 && len(p.DaysOfWeek) > 0
}

// Normalize lowercases day names, removes duplicates, and expands a daily
// occurrence without explicit days to the whole week.
func (p *NudgePreferences) Normalize() {
	if p == nil {
		return
	}
	days := make([]string, 0, len(p.DaysOfWeek))
	for _, d := range p.DaysOfWeek {
		d = strings.ToLower(strings.TrimSpace(d))
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	if p.Occurrence == OccurrenceDaily && len(days) == 0 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			days = append(days, WeekdayName(d))
		}
	}
	p.DaysOfWeek = days

	times := make([]string, 0, len(p.TimesOfDay))
	for _, t := range p.TimesOfDay {
		t = strings.TrimSpace(t)
		if !slices.Contains(times, t) {
			times = append(times, t)
		}
	}
	p.TimesOfDay = times
}

// Slots returns the cartesian product of configured days and times.
// Entries that fail to parse are skipped.
func (p *NudgePreferences) Slots() []LocalSlot {
	if !p.Enabled() {
		return nil
	}
	slots := make([]LocalSlot, 0, len(p.DaysOfWeek)*len(p.TimesOfDay))
	for _, dayName := range p.DaysOfWeek {
		day, ok := ParseWeekday(dayName)
		if !ok {
			continue
		}
		for _, t := range p.TimesOfDay {
			hour, ok := parseHour(t)
			if !ok {
				continue
			}
			slots = append(slots, LocalSlot{Day: day, Hour: hour})
		}
	}
	return slots
}

// Equal compares two preference sets, treating nil as distinct from empty.
func (p *NudgePreferences) Equal(other *NudgePreferences) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Occurrence == other.Occurrence &&
		slices.Equal(p.TimesOfDay, other.TimesOfDay) &&
		slices.Equal(p.DaysOfWeek, other.DaysOfWeek)
}

// parseHour extracts the hour from "HH:MM".
func parseHour(s string) (int, bool) {
	hh, _, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
