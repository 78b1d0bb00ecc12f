package guard_test

import (
	"testing"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/guard"
	"github.com/jrsteele09/go-account-shell/redirect"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/stretchr/testify/require"
)

var testTargets = redirect.Targets{
	SignInURL:       "https://id.example.com/signin",
	IdentityRootURL: "https://id.example.com/",
	BillingURL:      "https://billing.example.com/renew",
}

func TestGuard_Check(t *testing.T) {
	g := guard.New(testTargets)
	authenticated := session.State{
		Credential:      &accountmodel.Credential{AccessToken: "T1"},
		IsAuthenticated: true,
		Phase:           session.PhaseAuthenticated,
		Hydrated:        true,
	}

	tests := []struct {
		name  string
		state session.State
		want  guard.Decision
	}{
		{"not hydrated", session.State{}, guard.Pending},
		{"not hydrated with a token", func() session.State { s := authenticated; s.Hydrated = false; return s }(), guard.Pending},
		{"authenticating", session.State{Hydrated: true, Phase: session.PhaseAuthenticating}, guard.Pending},
		{"unauthenticated", session.State{Hydrated: true, Phase: session.PhaseUnauthenticated}, guard.Deny},
		{"expired", session.State{Hydrated: true, Phase: session.PhaseExpired}, guard.Deny},
		{"flag without token", session.State{Hydrated: true, IsAuthenticated: true, Credential: &accountmodel.Credential{}}, guard.Deny},
		{"authenticated", authenticated, guard.Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := g.Check(tt.state)
			require.Equal(t, tt.want, result.Decision)
			if tt.want != guard.Deny {
				require.Nil(t, result.Effect)
				return
			}
			require.NotNil(t, result.Effect)
			require.Equal(t, session.EffectRedirect, result.Effect.Kind)
			require.Equal(t, testTargets.IdentityRoot(), result.Effect.Target)
			require.Equal(t, redirect.ReasonUnauthenticated, result.Effect.Reason)
			require.NotEqual(t, testTargets.SignIn(), result.Effect.Target)
		})
	}
}
