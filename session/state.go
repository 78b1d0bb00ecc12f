package session

import (
	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/redirect"
)

// Phase is the top level session lifecycle.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticating  Phase = "authenticating"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseExpired         Phase = "expired"
)

// State is a read-only snapshot of one shell's session.
type State struct {
	Credential      *accountmodel.Credential
	Profile         *accountmodel.ProfileBundle
	IsAuthenticated bool
	Loading         bool
	Error           string
	Phase           Phase
	// Hydrated is false until the token store has been read once
	Hydrated bool
}

// Token is the access token or "".
func (s State) Token() string {
	if s.Credential == nil {
		return ""
	}
	return s.Credential.AccessToken
}

func (s State) clone() State {
	out := s
	if s.Credential != nil {
		cred := *s.Credential
		out.Credential = &cred
	}
	out.Profile = s.Profile.Clone()
	return out
}

// derive recomputes IsAuthenticated from the credential. It is never set
// any other way.
func (s *State) derive() {
	s.IsAuthenticated = s.Credential.HasToken()
}

func (s *State) reset() {
	hydrated := s.Hydrated
	*s = State{Phase: PhaseUnauthenticated, Hydrated: hydrated}
}

type EffectKind string

const (
	// EffectRedirect leaves the shell for an external URL.
	EffectRedirect EffectKind = "redirect"
	// EffectNavigate moves within the shell.
	EffectNavigate EffectKind = "navigate"
	// EffectNotify shows a transient notice.
	EffectNotify EffectKind = "notify"
)

type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelWarning NoticeLevel = "warning"
	LevelError   NoticeLevel = "error"
)

// Effect is a side effect the host must carry out. The controller never
// performs them itself.
type Effect struct {
	Kind    EffectKind
	Target  string
	Reason  redirect.Reason
	Level   NoticeLevel
	Message string
}

func redirectTo(target string, reason redirect.Reason) Effect {
	return Effect{Kind: EffectRedirect, Target: target, Reason: reason}
}

func navigateTo(path string) Effect {
	return Effect{Kind: EffectNavigate, Target: path}
}

func notify(level NoticeLevel, message string) Effect {
	return Effect{Kind: EffectNotify, Level: level, Message: message}
}

// Outcome lists the effects of one operation in the order they should be
// applied.
type Outcome struct {
	Effects []Effect
}

func outcome(effects ...Effect) Outcome {
	return Outcome{Effects: effects}
}

// Redirect is the first external redirect, or nil.
func (o Outcome) Redirect() *Effect {
	return o.first(EffectRedirect)
}

// Navigation is the first in-shell navigation, or nil.
func (o Outcome) Navigation() *Effect {
	return o.first(EffectNavigate)
}

func (o Outcome) Notices() []Effect {
	var notices []Effect
	for _, e := range o.Effects {
		if e.Kind == EffectNotify {
			notices = append(notices, e)
		}
	}
	return notices
}

func (o Outcome) IsEmpty() bool {
	return len(o.Effects) == 0
}

func (o Outcome) first(kind EffectKind) *Effect {
	for i := range o.Effects {
		if o.Effects[i].Kind == kind {
			e := o.Effects[i]
			return &e
		}
	}
	return nil
}

// ValidationOutcome is the result of ValidateToken.
type ValidationOutcome int

const (
	Invalid ValidationOutcome = iota
	Valid
	ValidAfterRefresh
)

func (v ValidationOutcome) String() string {
	switch v {
	case Valid:
		return "valid"
	case ValidAfterRefresh:
		return "valid_after_refresh"
	default:
		return "invalid"
	}
}

// OK is true for Valid and ValidAfterRefresh.
func (v ValidationOutcome) OK() bool {
	return v == Valid || v == ValidAfterRefresh
}
