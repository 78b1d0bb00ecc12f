package config

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	RedirectConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Redirects
	Session
	Store
}

func New() Config {
	return mainConfig{}
}
