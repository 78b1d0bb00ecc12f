package accountmodel_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/timestamp"
	"github.com/stretchr/testify/require"
)

func TestCredential_Valid(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	var missing *accountmodel.Credential
	require.False(t, missing.HasToken())
	require.False(t, missing.Valid(now))

	cred := &accountmodel.Credential{AccessToken: "T1", ExpiresAt: timestamp.FromTime(now.Add(time.Minute))}
	require.True(t, cred.Valid(now))
	require.False(t, cred.Valid(now.Add(time.Minute)))

	cred.AccessToken = ""
	require.False(t, cred.Valid(now), "an empty token is never valid")
}

func TestProfileBundle_Clone(t *testing.T) {
	original := &accountmodel.ProfileBundle{
		User:    accountmodel.UserDetails{ID: "u1", FirstName: "Ada"},
		Package: &accountmodel.PackageInfo{Name: "pro"},
		Org:     &accountmodel.OrgDetails{ID: "o1"},
		Roles:   []accountmodel.Role{{ID: "r1", Name: "owner"}},
	}

	clone := original.Clone()
	clone.Package.Name = "basic"
	clone.Org.ID = "o2"
	clone.Roles[0].Name = "viewer"

	require.Equal(t, "pro", original.Package.Name)
	require.Equal(t, "o1", original.Org.ID)
	require.Equal(t, "owner", original.Roles[0].Name)
	require.Nil(t, (*accountmodel.ProfileBundle)(nil).Clone())
}

func TestUserDetails_Name(t *testing.T) {
	require.Equal(t, "Ada Lovelace", accountmodel.UserDetails{FirstName: "Ada", LastName: "Lovelace"}.Name())
	require.Equal(t, "Ada", accountmodel.UserDetails{FirstName: "Ada"}.Name())
	require.Equal(t, "Lovelace", accountmodel.UserDetails{LastName: "Lovelace"}.Name())
}
