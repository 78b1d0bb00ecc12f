package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-account-shell/guard"
	"github.com/jrsteele09/go-account-shell/server/shellsession"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/rs/zerolog"
)

// pendingRetryAfter is sent with 503 while a session is still settling.
const pendingRetryAfter = 1

// ShellMiddleware mounts the browser's shell and puts it in the request
// context.
func (s *Server) ShellMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell, err := s.shellFor(w, r)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to mount shell")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		logger := zerolog.Ctx(r.Context()).With().Str("shellId", shell.ID).Logger()
		ctx := logger.WithContext(context.WithValue(r.Context(), ContextKeyShell, shell))
		next(w, r.WithContext(ctx))
	}
}

// RequireShellSession guards server-rendered views. Redirects the monitor
// queued since the last request are applied before the guard runs.
func (s *Server) RequireShellSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return s.ShellMiddleware(func(w http.ResponseWriter, r *http.Request) {
			shell := shellFromContext(r.Context())
			if s.applyEffects(w, r, shell.TakePending()) {
				return
			}

			result := s.checkShell(r, shell)
			switch result.Decision {
			case guard.Pending:
				w.Header().Set("Retry-After", strconv.Itoa(pendingRetryAfter))
				http.Error(w, "Session is loading, try again shortly", http.StatusServiceUnavailable)
			case guard.Deny:
				s.applyEffects(w, r, []session.Effect{*result.Effect})
			default:
				next(w, r)
			}
		})
	}
}

// RequireShellSessionAPI is the JSON form of RequireShellSession: a denial is
// a 401 carrying the redirect the client should follow.
func (s *Server) RequireShellSessionAPI() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return s.ShellMiddleware(func(w http.ResponseWriter, r *http.Request) {
			shell := shellFromContext(r.Context())
			for _, e := range shell.TakePending() {
				if e.Target != "" {
					writeAPIRedirect(w, http.StatusUnauthorized, e)
					return
				}
			}

			result := s.checkShell(r, shell)
			switch result.Decision {
			case guard.Pending:
				w.Header().Set("Retry-After", strconv.Itoa(pendingRetryAfter))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session loading"})
			case guard.Deny:
				writeAPIRedirect(w, http.StatusUnauthorized, *result.Effect)
			default:
				next(w, r)
			}
		})
	}
}

// checkShell hydrates a freshly mounted shell before asking the guard. A
// resumed session gets its monitor back.
func (s *Server) checkShell(r *http.Request, shell *shellsession.Shell) guard.Result {
	if !shell.Controller.Snapshot().Hydrated {
		if err := shell.Controller.Hydrate(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Hydrate failed, treating the shell as signed out")
		}
	}
	result := s.guard.Check(shell.Controller.Snapshot())
	if result.Decision == guard.Allow && !shell.Controller.MonitorRunning() {
		shell.Controller.StartMonitor()
	}
	return result
}
