package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
	"github.com/jrsteele09/go-account-shell/server/shellsession"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// shellCookieName identifies the browser's account shell
	shellCookieName = "account_shell"
	// headerRedirectReason tells the client why it was sent elsewhere
	headerRedirectReason = "X-Redirect-Reason"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyShell stores the request's *shellsession.Shell
const ContextKeyShell ContextKey = "shell"

func shellFromContext(ctx context.Context) *shellsession.Shell {
	shell, _ := ctx.Value(ContextKeyShell).(*shellsession.Shell)
	return shell
}

func (s *Server) SetShellCookie(w http.ResponseWriter, shellID string, r *http.Request, maxAge int) {
	isSecure := getScheme(r) == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     shellCookieName,
		Value:    shellID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// shellFor returns the shell named by the request cookie, creating one when
// the cookie is missing. A well formed id the registry no longer knows (the
// shell was reaped or the process restarted) is mounted again under the same
// id so its token store namespace is picked up.
func (s *Server) shellFor(w http.ResponseWriter, r *http.Request) (*shellsession.Shell, error) {
	shellID := ""
	if cookie, err := r.Cookie(shellCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			shellID = cookie.Value
		}
	}

	if shellID != "" {
		shell, err := s.shells.Get(shellID)
		if err == nil {
			shell.Touch(s.nowTime())
			return shell, nil
		}
		if !shellerrors.Is(err, shellerrors.ErrSessionNotFound) {
			return nil, errors.Wrap(err, "[Server.shellFor] Get")
		}
	}

	s.shellsMu.Lock()
	defer s.shellsMu.Unlock()

	// Another request may have mounted it while we waited
	if shellID != "" {
		if shell, err := s.shells.Get(shellID); err == nil {
			shell.Touch(s.nowTime())
			return shell, nil
		}
	} else {
		shellID = uuid.NewString()
	}

	shell := shellsession.NewShell(shellID, s.nowTime())
	controller, err := s.newController(shellID, shell.AddOutcome)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.shellFor] newController")
	}
	shell.Controller = controller
	if err := s.shells.Upsert(shell); err != nil {
		controller.Close()
		return nil, errors.Wrap(err, "[Server.shellFor] Upsert")
	}

	s.SetShellCookie(w, shellID, r, int(s.config.GetShellMaxAge().Seconds()))
	zerolog.Ctx(r.Context()).Info().Str("shellId", shellID).Msg("Shell mounted")
	return shell, nil
}

// applyOutcome queues notices on the shell and answers the request with the
// outcome's redirect or navigation. It reports whether a response was
// written.
func (s *Server) applyOutcome(w http.ResponseWriter, r *http.Request, shell *shellsession.Shell, o session.Outcome) bool {
	if notices := o.Notices(); len(notices) > 0 {
		shell.AddOutcome(session.Outcome{Effects: notices})
	}
	return s.applyEffects(w, r, o.Effects)
}

// applyEffects writes a 303 for the first redirect or navigation found.
func (s *Server) applyEffects(w http.ResponseWriter, r *http.Request, effects []session.Effect) bool {
	for _, e := range effects {
		switch e.Kind {
		case session.EffectRedirect:
			zerolog.Ctx(r.Context()).Info().Str("target", e.Target).Str("reason", string(e.Reason)).Msg("Redirecting")
			w.Header().Set(headerRedirectReason, string(e.Reason))
			http.Redirect(w, r, e.Target, http.StatusSeeOther)
			return true
		case session.EffectNavigate:
			http.Redirect(w, r, e.Target, http.StatusSeeOther)
			return true
		}
	}
	return false
}

// apiRedirect is the JSON counterpart of a 303: the client follows Location.
type apiRedirect struct {
	Error    string `json:"error"`
	Location string `json:"location"`
	Reason   string `json:"reason,omitempty"`
}

func writeAPIRedirect(w http.ResponseWriter, status int, e session.Effect) {
	w.Header().Set(headerRedirectReason, string(e.Reason))
	writeJSON(w, status, apiRedirect{
		Error:    http.StatusText(status),
		Location: e.Target,
		Reason:   string(e.Reason),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode JSON response")
	}
}
