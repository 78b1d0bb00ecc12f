package config

import "time"

type IdentityConfig interface {
	GetIdentityBaseURL() string
	GetIdentityIssuer() string
	GetAppURL() string
	GetAuthenticateTimeout() time.Duration
	GetRefreshTimeout() time.Duration
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityBaseURL() string {
	return GetEnv("IDENTITY_BASE_URL", "http://localhost:9000")
}

// GetIdentityIssuer is optional. When set the sign-in URL is discovered from
// the issuer's OIDC discovery document.
func (Identity) GetIdentityIssuer() string {
	return GetEnv("IDENTITY_ISSUER", "")
}

// GetAppURL is the application identifier sent with every authenticate call.
func (Identity) GetAppURL() string {
	return GetEnv("APP_URL", "http://localhost:8080")
}

func (Identity) GetAuthenticateTimeout() time.Duration {
	return GetDuration("AUTHENTICATE_TIMEOUT", 15*time.Second)
}

func (Identity) GetRefreshTimeout() time.Duration {
	return GetDuration("REFRESH_TIMEOUT", 10*time.Second)
}
