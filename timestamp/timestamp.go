// Package timestamp parses the expiry values handed out by the identity
// service and decides whether they have passed.
//
// Two shapes are accepted:
//   - a 20 digit compact form: YYYYMMDDHHMMSS followed by 6 fractional
//     digits (microseconds), e.g. "20250131235959000000"
//   - any common date/time string (RFC3339, ISO-8601, "2006-01-02 15:04:05", ...)
//
// Token expiry is fail-closed: an empty or unparseable value counts as
// expired.
package timestamp

import (
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

const compactLength = 20

var (
	// ErrEmpty is returned when there is no value to parse.
	ErrEmpty = errors.New("timestamp is empty")
	// ErrUnparseable is returned when the value matches neither accepted shape.
	ErrUnparseable = errors.New("timestamp is unparseable")
)

// Timestamp is an expiry value exactly as received or stored. The empty
// Timestamp means "absent".
type Timestamp string

type parseConfig struct {
	location *time.Location
}

// ParseOption customises Parse.
type ParseOption func(*parseConfig)

// WithLocation sets the zone used for values that do not carry one.
// Defaults to UTC.
func WithLocation(loc *time.Location) ParseOption {
	return func(pc *parseConfig) {
		if loc != nil {
			pc.location = loc
		}
	}
}

// FromTime renders t the way locally derived expiries are stored.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339Nano))
}

// IsZero reports whether the timestamp is absent.
func (ts Timestamp) IsZero() bool {
	return ts == ""
}

func (ts Timestamp) String() string {
	return string(ts)
}

// Time parses the timestamp.
func (ts Timestamp) Time(options ...ParseOption) (time.Time, error) {
	return Parse(string(ts), options...)
}

// Parse converts raw into an instant. Failures are always ErrEmpty or
// ErrUnparseable (possibly wrapped), never a zero time with a nil error.
func Parse(raw string, options ...ParseOption) (time.Time, error) {
	pc := parseConfig{location: time.UTC}
	for _, opt := range options {
		opt(&pc)
	}

	if raw == "" {
		return time.Time{}, ErrEmpty
	}

	if isCompact(raw) {
		return parseCompact(raw, pc.location)
	}

	t, err := dateparse.ParseIn(raw, pc.location)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrUnparseable, "%q: %v", raw, err)
	}
	return t, nil
}

// IsExpired is true iff value's instant is at or before now. Absent or
// unparseable values are expired.
func IsExpired(value Timestamp, now time.Time, options ...ParseOption) bool {
	return IsExpiredWithGrace(value, now, 0, options...)
}

// IsExpiredWithGrace adds grace to the parsed instant before comparing it
// with now. Absent or unparseable values are expired; callers that want the
// opposite (package entitlement) must check Parse themselves.
func IsExpiredWithGrace(value Timestamp, now time.Time, grace time.Duration, options ...ParseOption) bool {
	t, err := value.Time(options...)
	if err != nil {
		return true
	}
	return !t.Add(grace).After(now)
}

// isCompact only accepts 20 ASCII digits. An RFC3339 string such as
// "2024-01-01T00:00:00Z" is also 20 characters long.
func isCompact(raw string) bool {
	if len(raw) != compactLength {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return false
		}
	}
	return true
}

func parseCompact(raw string, loc *time.Location) (time.Time, error) {
	field := func(from, to int) int {
		// isCompact guarantees digits, Atoi cannot fail here
		v, _ := strconv.Atoi(raw[from:to])
		return v
	}

	year := field(0, 4)
	month := field(4, 6)
	day := field(6, 8)
	hour := field(8, 10)
	minute := field(10, 12)
	second := field(12, 14)
	micros := field(14, 20)

	t := time.Date(year, time.Month(month), day, hour, minute, second, micros*int(time.Microsecond), loc)

	// time.Date normalises out of range fields (month 13, day 32); reject them
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, errors.Wrapf(ErrUnparseable, "%q: field out of range", raw)
	}
	return t, nil
}
