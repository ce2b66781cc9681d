package utils

import "time"

// DateLayout is the calendar-day format used for the date columns.
const DateLayout = "2006-01-02"

// TimeLayout is the time-of-day format of detailed submissions.
const TimeLayout = "15:04:05"

// LoadLocation resolves a timezone name, falling back to def (or UTC) when empty or unknown.
func LoadLocation(name string, def *time.Location) *time.Location {
	if def == nil {
		def = time.UTC
	}
	if name == "" {
		return def
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return def
	}
	return loc
}

// DayString formats t as a calendar day in loc.
func DayString(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseDay parses a calendar day string at midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// AddDays shifts a day by n calendar days, keeping local midnight across DST changes.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// StartOfWeek returns the most recent Sunday (inclusive) of t in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return AddDays(day, -int(day.Weekday()))
}
