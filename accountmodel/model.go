package accountmodel

import (
	"time"

	"github.com/jrsteele09/go-account-shell/timestamp"
)

// Credential is the authenticated session's core record.
type Credential struct {
	AccessToken string              `json:"-"`
	ExpiresAt   timestamp.Timestamp `json:"expires_at"`
	SessionID   string              `json:"session_id"`
	UserID      string              `json:"user_id"`
}

// HasToken reports whether the credential carries a non-empty access token.
func (c *Credential) HasToken() bool {
	return c != nil && c.AccessToken != ""
}

// Valid is true iff the credential has a token whose expiry is after now.
func (c *Credential) Valid(now time.Time, options ...timestamp.ParseOption) bool {
	return c.HasToken() && !timestamp.IsExpired(c.ExpiresAt, now, options...)
}

// UserDetails is the cached profile of the signed in user.
type UserDetails struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Name joins the first and last names.
func (u UserDetails) Name() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// PackageInfo is the subscription entitlement snapshot.
type PackageInfo struct {
	ID        string              `json:"id,omitempty"`
	Name      string              `json:"name,omitempty"`
	ExpiresAt timestamp.Timestamp `json:"package_expires_at,omitempty"`
	Expired   bool                `json:"package_expired"`
}

// OrgDetails describes the organisation that owns the account.
type OrgDetails struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Role is a role granted to the user within the organisation.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProfileBundle is returned alongside a Credential and cached with it.
type ProfileBundle struct {
	User    UserDetails  `json:"user_details"`
	Package *PackageInfo `json:"packages,omitempty"`
	Org     *OrgDetails  `json:"org_details,omitempty"`
	Roles   []Role       `json:"roles"`
}

// Clone returns a deep copy so snapshots cannot alias controller state.
func (p *ProfileBundle) Clone() *ProfileBundle {
	if p == nil {
		return nil
	}
	clone := &ProfileBundle{User: p.User}
	if p.Package != nil {
		pkg := *p.Package
		clone.Package = &pkg
	}
	if p.Org != nil {
		org := *p.Org
		clone.Org = &org
	}
	clone.Roles = append([]Role{}, p.Roles...)
	return clone
}

// AuthResult is what a successful session exchange yields.
type AuthResult struct {
	Credential Credential
	Profile    ProfileBundle
}

// TokenRefresh is what a successful refresh yields.
type TokenRefresh struct {
	Token     string
	ExpiresAt timestamp.Timestamp
}
