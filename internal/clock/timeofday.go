package clock

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitenforcer/internal/constants"
)

// TimeOfDay is a wall-clock time without a date, in seconds since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// EndOfDay is 23:59:00, the deadline given to injected punishment habits.
const EndOfDay TimeOfDay = 23*3600 + 59*60

// NewTimeOfDay builds a TimeOfDay, rejecting out-of-range components.
func NewTimeOfDay(hour, minute, second int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("time of day out of range: %02d:%02d:%02d", hour, minute, second)
	}
	return TimeOfDay(hour*3600 + minute*60 + second), nil
}

// Of returns the wall-clock time of t in t's location.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseTimeOfDay accepts HH:MM:SS or HH:MM.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if t, err := time.Parse(constants.StoredTimeFormat, s); err == nil {
		return Of(t), nil
	}
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", s)
	}
	return Of(t), nil
}

// ParseHHMM accepts only the user-facing 24-hour HH:MM form.
func ParseHHMM(s string) (TimeOfDay, error) {
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: use HH:MM (24-hour)", s)
	}
	return Of(t), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String renders HH:MM:SS, the persisted form. Values past midnight (a
// deadline plus grace) wrap.
func (t TimeOfDay) String() string {
	n := int(t) % secondsPerDay
	if n < 0 {
		n += secondsPerDay
	}
	w := TimeOfDay(n)
	return fmt.Sprintf("%02d:%02d:%02d", w.Hour(), w.Minute(), w.Second())
}

// HHMM renders HH:MM.
func (t TimeOfDay) HHMM() string {
	return t.String()[:5]
}

// Add returns t shifted by d without wrapping, so comparisons against a
// deadline plus grace stay monotonic within a day.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Second)
}

// On combines t with the calendar date of day in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, day.Location())
}
