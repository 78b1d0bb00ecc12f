package tokenstore_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
	"github.com/jrsteele09/go-account-shell/tokenstore"
	"github.com/jrsteele09/go-account-shell/tokenstore/repofake"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testProfile() accountmodel.ProfileBundle {
	return accountmodel.ProfileBundle{
		User:    accountmodel.UserDetails{ID: "u1", Email: "owner@example.com", FirstName: "Ada"},
		Package: &accountmodel.PackageInfo{ID: "p1", Name: "pro", ExpiresAt: "2030-01-01T00:00:00Z"},
		Org:     &accountmodel.OrgDetails{ID: "o1", Name: "Lovelace Lettings"},
		Roles:   []accountmodel.Role{{ID: "r1", Name: "owner"}},
	}
}

func TestStore_EmptyRepoMeansNoValue(t *testing.T) {
	ctx := context.Background()
	store := tokenstore.New(repofake.NewFakeRepo())

	cred, err := store.LoadCredential(ctx)
	require.NoError(t, err)
	require.Nil(t, cred)

	profile, err := store.LoadProfile(ctx)
	require.NoError(t, err)
	require.Nil(t, profile)

	sessionID, userID, err := store.SessionIdentifiers(ctx)
	require.NoError(t, err)
	require.Empty(t, sessionID)
	require.Empty(t, userID)
}

func TestStore_CredentialKeys(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	store := tokenstore.New(repo)

	require.NoError(t, store.SaveCredential(ctx, accountmodel.Credential{
		AccessToken: "T1",
		ExpiresAt:   "20300101000000000000",
		SessionID:   "abc123",
		UserID:      "u1",
	}))

	require.Equal(t, "T1", repo.Value(tokenstore.KeyToken))
	require.Equal(t, "20300101000000000000", repo.Value(tokenstore.KeyExpiry))
	require.Equal(t, "abc123", repo.Value(tokenstore.KeySessionID))
	require.Equal(t, "u1", repo.Value(tokenstore.KeyUserID))

	require.NoError(t, store.SaveTokenPair(ctx, "T2", "20310101000000000000"))

	cred, err := store.LoadCredential(ctx)
	require.NoError(t, err)
	require.Equal(t, &accountmodel.Credential{
		AccessToken: "T2",
		ExpiresAt:   "20310101000000000000",
		SessionID:   "abc123",
		UserID:      "u1",
	}, cred, "a token refresh keeps the session identifiers")
}

func TestStore_Profile(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	store := tokenstore.New(repo)
	want := testProfile()

	require.NoError(t, store.SaveProfile(ctx, want))
	require.Equal(t, "2030-01-01T00:00:00Z", repo.Value(tokenstore.KeyPackageExpiry))
	require.JSONEq(t, `[{"id":"r1","name":"owner"}]`, repo.Value(tokenstore.KeyRoles))

	got, err := store.LoadProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, &want, got)

	t.Run("partial updates", func(t *testing.T) {
		require.NoError(t, store.SavePackageInfo(ctx, nil))
		require.NoError(t, store.SaveOrgDetails(ctx, &accountmodel.OrgDetails{ID: "o2"}))

		got, err := store.LoadProfile(ctx)
		require.NoError(t, err)
		require.Nil(t, got.Package)
		require.Empty(t, repo.Value(tokenstore.KeyPackageExpiry))
		require.Equal(t, "o2", got.Org.ID)
		require.Equal(t, want.User, got.User)
	})

	t.Run("nil roles are stored as an empty list", func(t *testing.T) {
		profile := testProfile()
		profile.Roles = nil
		require.NoError(t, store.SaveProfile(ctx, profile))
		require.Equal(t, "[]", repo.Value(tokenstore.KeyRoles))
	})
}

func TestStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	require.NoError(t, repo.Set(ctx, tokenstore.KeyUserDetails, "{not json"))

	_, err := tokenstore.New(repo).LoadProfile(ctx)
	require.True(t, errors.Is(err, shellerrors.ErrCorruptValue))
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	store := tokenstore.New(repo)

	require.NoError(t, store.SaveCredential(ctx, accountmodel.Credential{AccessToken: "T1", ExpiresAt: "x", SessionID: "s", UserID: "u"}))
	require.NoError(t, store.SaveProfile(ctx, testProfile()))
	require.NoError(t, repo.Set(ctx, "unrelated", "kept"))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx), "clearing twice is harmless")
	require.Equal(t, 1, repo.Len())
	require.Equal(t, "kept", repo.Value("unrelated"))
}

func TestStore_RepoErrorsAreWrapped(t *testing.T) {
	repo := repofake.NewFakeRepo()
	repo.FailWith = errors.New("disk on fire")

	_, err := tokenstore.New(repo).LoadCredential(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk on fire")
}
