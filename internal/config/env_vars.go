package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	logLevelEnvVar = "LOG_LEVEL"
	configFileVar  = "CONFIG_FILE"
)

// settings resolves every lookup: environment variables first, then the
// optional config file loaded by LoadFile.
var settings = newSettings()

func newSettings() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// LoadFile merges a config file (yaml, json, toml, env) into the settings.
// An empty path falls back to the CONFIG_FILE environment variable; if that is
// also empty nothing is loaded.
func LoadFile(path string) error {
	if path == "" {
		path = GetEnv(configFileVar, "")
	}
	if path == "" {
		return nil
	}
	settings.SetConfigFile(path)
	if err := settings.ReadInConfig(); err != nil {
		return fmt.Errorf("[config LoadFile] %s: %w", path, err)
	}
	return nil
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Account Shell")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, "info")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := settings.GetString(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration reads a Go duration string ("15s", "10m"). Unparseable values
// fall back to the default.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("setting", envVar).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}
