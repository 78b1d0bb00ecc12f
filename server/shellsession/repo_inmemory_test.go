package shellsession_test

import (
	"testing"
	"time"

	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
	"github.com/jrsteele09/go-account-shell/redirect"
	"github.com/jrsteele09/go-account-shell/server/shellsession"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInMemoryShellRepo(t *testing.T) {
	repo := shellsession.NewInMemoryShellRepo()

	require.Error(t, repo.Upsert(&shellsession.Shell{}))

	fresh := shellsession.NewShell("fresh", testNow)
	stale := shellsession.NewShell("stale", testNow.Add(-time.Hour))
	require.NoError(t, repo.Upsert(fresh))
	require.NoError(t, repo.Upsert(stale))

	got, err := repo.Get("fresh")
	require.NoError(t, err)
	require.Same(t, fresh, got)

	_, err = repo.Get("missing")
	require.ErrorIs(t, err, shellerrors.ErrSessionNotFound)

	idle := repo.IdleSince(testNow.Add(-time.Minute))
	require.Len(t, idle, 1)
	require.Equal(t, "stale", idle[0].ID)

	stale.Touch(testNow)
	require.Empty(t, repo.IdleSince(testNow.Add(-time.Minute)))

	require.NoError(t, repo.Delete("stale"))
	require.NoError(t, repo.Delete("stale"))
	require.Len(t, repo.All(), 1)
}

func TestShell_PendingEffects(t *testing.T) {
	shell := shellsession.NewShell("s1", testNow)
	require.Empty(t, shell.TakePending())

	shell.AddOutcome(session.Outcome{Effects: []session.Effect{
		{Kind: session.EffectNotify, Level: session.LevelWarning, Message: session.MessageSessionExpired},
		{Kind: session.EffectRedirect, Target: "https://id.example.com/signin", Reason: redirect.ReasonSessionExpired},
	}})

	pending := shell.TakePending()
	require.Len(t, pending, 1)
	require.Equal(t, redirect.ReasonSessionExpired, pending[0].Reason)
	require.Empty(t, shell.TakePending())

	notices := shell.TakeNotices()
	require.Len(t, notices, 1)
	require.Equal(t, session.MessageSessionExpired, notices[0].Message)
	require.Empty(t, shell.TakeNotices())
}
