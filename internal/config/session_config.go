package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

type SessionConfig interface {
	GetMonitorInterval() time.Duration
	GetPackageGracePeriod() time.Duration
	GetTimestampLocation() *time.Location
	GetShellMaxAge() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetMonitorInterval() time.Duration {
	return GetDuration("MONITOR_INTERVAL", 10*time.Minute)
}

func (Session) GetPackageGracePeriod() time.Duration {
	return GetDuration("PACKAGE_GRACE_PERIOD", 5*time.Minute)
}

// GetTimestampLocation is the zone used for compact and zone-less expiry values.
func (Session) GetTimestampLocation() *time.Location {
	name := GetEnv("TIMESTAMP_LOCATION", "UTC")
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Str("location", name).Msg("Unknown timestamp location, using UTC")
		return time.UTC
	}
	return loc
}

// GetShellMaxAge is how long an idle browser shell is kept before it is reaped.
func (Session) GetShellMaxAge() time.Duration {
	return GetDuration("SHELL_MAX_AGE", 12*time.Hour)
}
