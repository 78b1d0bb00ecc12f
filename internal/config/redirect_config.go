package config

type RedirectConfig interface {
	GetSignInURL() string
	GetIdentityRootURL() string
	GetBillingURL() string
	GetDashboardPath() string
}

type Redirects struct{}

var _ RedirectConfig = Redirects{}

func (Redirects) GetSignInURL() string {
	return GetEnv("SIGN_IN_URL", "http://localhost:9000/signin")
}

func (Redirects) GetIdentityRootURL() string {
	return GetEnv("IDENTITY_ROOT_URL", "http://localhost:9000/")
}

func (Redirects) GetBillingURL() string {
	return GetEnv("BILLING_URL", "http://localhost:9100/billing")
}

func (Redirects) GetDashboardPath() string {
	return GetEnv("DASHBOARD_PATH", "/dashboard")
}
