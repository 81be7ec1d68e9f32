// Package clock is the single authority for "now" in the configured civil
// time zone. All deadline logic reads time through a Clock.
package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/habitenforcer/internal/constants"
)

// Clock returns the current instant in a fixed civil time zone.
type Clock interface {
	Now() time.Time
}

// Zoned reads the system clock and converts it to loc.
type Zoned struct {
	loc *time.Location
}

// NewZoned loads the IANA zone name. An empty name or "Local" uses the
// system zone.
func NewZoned(timezone string) (*Zoned, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Zoned{loc: loc}, nil
}

func (z *Zoned) Now() time.Time {
	return time.Now().In(z.loc)
}

func (z *Zoned) Location() *time.Location {
	return z.loc
}

// Fixed is a manually driven clock for tests and replays.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// Today returns the current date (YYYY-MM-DD) as seen by c.
func Today(c Clock) string {
	return c.Now().Format(constants.DateFormat)
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}
