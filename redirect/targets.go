// Package redirect names the external destinations the account shell sends
// the browser to and why.
package redirect

import (
	"context"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// Reason tags a redirect so logs and tests can tell them apart.
type Reason string

const (
	ReasonAuthenticationFailed Reason = "authentication_failed"
	ReasonInvalidCredentials   Reason = "invalid_credentials"
	ReasonSessionExpired       Reason = "session_expired"
	ReasonPackageLapsed        Reason = "package_lapsed"
	ReasonUnauthenticated      Reason = "unauthenticated"
)

// Targets are the three external destinations. They are distinct on purpose:
// the guard sends unauthenticated visitors to the identity root, failures go
// to the sign-in page and a lapsed package goes to billing.
type Targets struct {
	SignInURL       string
	IdentityRootURL string
	BillingURL      string
}

func (t Targets) SignIn() string {
	return t.SignInURL
}

func (t Targets) IdentityRoot() string {
	return t.IdentityRootURL
}

// Billing carries the session identifiers so the billing page can resume the
// same session once the package is renewed.
func (t Targets) Billing(sessionID, userID string) string {
	u, err := url.Parse(t.BillingURL)
	if err != nil {
		return t.BillingURL
	}
	query := u.Query()
	if sessionID != "" {
		query.Set("sessionId", sessionID)
	}
	if userID != "" {
		query.Set("userId", userID)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (t Targets) Validate() error {
	named := []struct {
		name  string
		value string
	}{
		{"sign-in", t.SignInURL},
		{"identity root", t.IdentityRootURL},
		{"billing", t.BillingURL},
	}
	seen := make(map[string]string, len(named))
	for _, n := range named {
		if strings.TrimSpace(n.value) == "" {
			return errors.Errorf("[Targets.Validate] %s URL is required", n.name)
		}
		if _, err := url.Parse(n.value); err != nil {
			return errors.Wrapf(err, "[Targets.Validate] %s URL", n.name)
		}
		if other, ok := seen[n.value]; ok {
			return errors.Errorf("[Targets.Validate] %s and %s URLs must differ", other, n.name)
		}
		seen[n.value] = n.name
	}
	return nil
}

// Discover fills the sign-in URL and identity root from the issuer's OIDC
// discovery document. Billing always comes from base.
func Discover(ctx context.Context, issuer string, base Targets) (Targets, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return base, errors.Wrap(err, "[redirect.Discover] NewProvider")
	}

	discovered := base
	if authURL := provider.Endpoint().AuthURL; authURL != "" {
		discovered.SignInURL = authURL
	}
	discovered.IdentityRootURL = issuer
	return discovered, nil
}
