// Package tokenstore is the durable mirror of the session: the auth token,
// its expiry, the session identifiers and JSON snapshots of the profile. It
// outlives a single page load; the in-memory SessionState is rebuilt from it.
package tokenstore

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
	"github.com/jrsteele09/go-account-shell/timestamp"
	"github.com/pkg/errors"
)

// Storage keys. They are shared with every other client of the same store
// and must not be renamed.
const (
	KeyToken         = "token"
	KeyExpiry        = "expiry"
	KeySessionID     = "sessionId"
	KeyUserID        = "userId"
	KeyUserDetails   = "userDetails"
	KeyPackageInfo   = "packageInfo"
	KeyPackageExpiry = "packageExpiry"
	KeyOrgDetails    = "orgDetails"
	KeyRoles         = "roles"
)

// AllKeys lists every key the store owns.
var AllKeys = []string{
	KeyToken, KeyExpiry, KeySessionID, KeyUserID,
	KeyUserDetails, KeyPackageInfo, KeyPackageExpiry, KeyOrgDetails, KeyRoles,
}

// Store provides typed access to a Repo.
type Store struct {
	repo Repo
}

func New(repo Repo) *Store {
	return &Store{repo: repo}
}

// SaveCredential writes the token, expiry and session identifiers.
func (s *Store) SaveCredential(ctx context.Context, cred accountmodel.Credential) error {
	if err := s.SaveTokenPair(ctx, cred.AccessToken, cred.ExpiresAt); err != nil {
		return err
	}
	return s.SaveSessionIdentifiers(ctx, cred.SessionID, cred.UserID)
}

// LoadCredential returns nil when no token is stored.
func (s *Store) LoadCredential(ctx context.Context) (*accountmodel.Credential, error) {
	token, err := s.get(ctx, KeyToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	expiry, err := s.get(ctx, KeyExpiry)
	if err != nil {
		return nil, err
	}
	sessionID, userID, err := s.SessionIdentifiers(ctx)
	if err != nil {
		return nil, err
	}
	return &accountmodel.Credential{
		AccessToken: token,
		ExpiresAt:   timestamp.Timestamp(expiry),
		SessionID:   sessionID,
		UserID:      userID,
	}, nil
}

// SaveTokenPair replaces only the token and its expiry.
func (s *Store) SaveTokenPair(ctx context.Context, token string, expiresAt timestamp.Timestamp) error {
	if err := s.setOrDelete(ctx, KeyToken, token); err != nil {
		return err
	}
	return s.setOrDelete(ctx, KeyExpiry, string(expiresAt))
}

func (s *Store) SaveSessionIdentifiers(ctx context.Context, sessionID, userID string) error {
	if err := s.setOrDelete(ctx, KeySessionID, sessionID); err != nil {
		return err
	}
	return s.setOrDelete(ctx, KeyUserID, userID)
}

func (s *Store) SessionIdentifiers(ctx context.Context) (sessionID, userID string, err error) {
	if sessionID, err = s.get(ctx, KeySessionID); err != nil {
		return "", "", err
	}
	if userID, err = s.get(ctx, KeyUserID); err != nil {
		return "", "", err
	}
	return sessionID, userID, nil
}

// SaveProfile replaces the whole cached profile.
func (s *Store) SaveProfile(ctx context.Context, profile accountmodel.ProfileBundle) error {
	if err := s.SaveUserDetails(ctx, profile.User); err != nil {
		return err
	}
	if err := s.SavePackageInfo(ctx, profile.Package); err != nil {
		return err
	}
	if err := s.SaveOrgDetails(ctx, profile.Org); err != nil {
		return err
	}
	roles := profile.Roles
	if roles == nil {
		roles = []accountmodel.Role{}
	}
	return s.setJSON(ctx, KeyRoles, roles)
}

// LoadProfile returns nil when no user details are stored. A corrupt value
// is reported wrapped in ErrCorruptValue.
func (s *Store) LoadProfile(ctx context.Context) (*accountmodel.ProfileBundle, error) {
	var profile accountmodel.ProfileBundle

	found, err := s.getJSON(ctx, KeyUserDetails, &profile.User)
	if err != nil || !found {
		return nil, err
	}

	var pkg accountmodel.PackageInfo
	if found, err = s.getJSON(ctx, KeyPackageInfo, &pkg); err != nil {
		return nil, err
	} else if found {
		if expiry, err := s.get(ctx, KeyPackageExpiry); err != nil {
			return nil, err
		} else if expiry != "" {
			pkg.ExpiresAt = timestamp.Timestamp(expiry)
		}
		profile.Package = &pkg
	}

	var org accountmodel.OrgDetails
	if found, err = s.getJSON(ctx, KeyOrgDetails, &org); err != nil {
		return nil, err
	} else if found {
		profile.Org = &org
	}

	profile.Roles = []accountmodel.Role{}
	if _, err = s.getJSON(ctx, KeyRoles, &profile.Roles); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Store) SaveUserDetails(ctx context.Context, user accountmodel.UserDetails) error {
	return s.setJSON(ctx, KeyUserDetails, user)
}

// SavePackageInfo stores the package snapshot and mirrors its expiry under
// packageExpiry. nil removes both.
func (s *Store) SavePackageInfo(ctx context.Context, pkg *accountmodel.PackageInfo) error {
	if pkg == nil {
		return s.delete(ctx, KeyPackageInfo, KeyPackageExpiry)
	}
	if err := s.setJSON(ctx, KeyPackageInfo, pkg); err != nil {
		return err
	}
	return s.setOrDelete(ctx, KeyPackageExpiry, string(pkg.ExpiresAt))
}

// SaveOrgDetails stores the organisation snapshot. nil removes it.
func (s *Store) SaveOrgDetails(ctx context.Context, org *accountmodel.OrgDetails) error {
	if org == nil {
		return s.delete(ctx, KeyOrgDetails)
	}
	return s.setJSON(ctx, KeyOrgDetails, org)
}

// Clear removes every key the store owns.
func (s *Store) Clear(ctx context.Context) error {
	return s.delete(ctx, AllKeys...)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	value, found, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "[Store.get] %s", key)
	}
	if !found {
		return "", nil
	}
	return value, nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.get(ctx, key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, shellerrors.Wrapf(shellerrors.ErrCorruptValue, "[Store.getJSON] %s: %v", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "[Store.setJSON] %s", key)
	}
	return s.set(ctx, key, string(raw))
}

func (s *Store) setOrDelete(ctx context.Context, key, value string) error {
	if value == "" {
		return s.delete(ctx, key)
	}
	return s.set(ctx, key, value)
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return errors.Wrapf(err, "[Store.set] %s", key)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, keys ...string) error {
	if err := s.repo.Delete(ctx, keys...); err != nil {
		return errors.Wrap(err, "[Store.delete]")
	}
	return nil
}
