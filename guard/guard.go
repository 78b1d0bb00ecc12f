// Package guard decides whether a protected view may render.
package guard

import (
	"github.com/jrsteele09/go-account-shell/redirect"
	"github.com/jrsteele09/go-account-shell/session"
)

type Decision int

const (
	// Pending withholds both outcomes while the session is still settling.
	Pending Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "pending"
	}
}

// Result carries the redirect to apply on Deny.
type Result struct {
	Decision Decision
	Effect   *session.Effect
}

type Guard struct {
	targets redirect.Targets
}

func New(targets redirect.Targets) *Guard {
	return &Guard{targets: targets}
}

// Check only reads the snapshot. It never calls the identity service.
func (g *Guard) Check(state session.State) Result {
	if !state.Hydrated || state.Phase == session.PhaseAuthenticating {
		return Result{Decision: Pending}
	}
	if !state.IsAuthenticated || state.Token() == "" {
		return Result{
			Decision: Deny,
			Effect: &session.Effect{
				Kind:   session.EffectRedirect,
				Target: g.targets.IdentityRoot(),
				Reason: redirect.ReasonUnauthenticated,
			},
		}
	}
	return Result{Decision: Allow}
}
