package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/internal/utils"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/rs/zerolog"
)

// EntryHandler is where the identity service hands the browser over. With
// sessionId and userId in the query the session is exchanged, otherwise the
// stored token is validated.
func (s *Server) EntryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell := shellFromContext(r.Context())
		query := r.URL.Query()

		outcome := shell.Controller.Load(r.Context(), query.Get(QuerySessionID), query.Get(QueryUserID))
		if s.applyOutcome(w, r, shell, outcome) {
			return
		}
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

type noticeView struct {
	Level   string
	Message string
}

type dashboardView struct {
	AppName          string
	LogoutPath       string
	Notices          []noticeView
	Name             string
	Email            string
	Organisation     string
	Package          string
	PackageExpiresAt string
	Roles            []string
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell := shellFromContext(r.Context())
		state := shell.Controller.Snapshot()

		view := dashboardView{
			AppName:    s.config.GetAppName(),
			LogoutPath: RouteAuthLogout,
		}
		for _, n := range shell.TakeNotices() {
			view.Notices = append(view.Notices, noticeView{Level: string(n.Level), Message: n.Message})
		}
		if p := state.Profile; p != nil {
			view.Name = p.User.Name()
			view.Email = p.User.Email
			view.Organisation = utils.Value(p.Org).Name
			if p.Package != nil {
				view.Package = p.Package.Name
				view.PackageExpiresAt = p.Package.ExpiresAt.String()
			}
			for _, role := range p.Roles {
				view.Roles = append(view.Roles, role.Name)
			}
		}

		var buf bytes.Buffer
		if err := s.dashboardTmpl.Execute(&buf, view); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to render dashboard")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}

type noticeResponse struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// sessionResponse never carries the access token.
type sessionResponse struct {
	Authenticated bool                      `json:"authenticated"`
	Phase         string                    `json:"phase"`
	SessionID     string                    `json:"session_id,omitempty"`
	UserID        string                    `json:"user_id,omitempty"`
	ExpiresAt     string                    `json:"expires_at,omitempty"`
	User          *accountmodel.UserDetails `json:"user_details,omitempty"`
	Org           *accountmodel.OrgDetails  `json:"org_details,omitempty"`
	Package       *accountmodel.PackageInfo `json:"packages,omitempty"`
	Roles         []accountmodel.Role       `json:"roles"`
	Notices       []noticeResponse          `json:"notices"`
}

func newSessionResponse(state session.State, notices []session.Effect) sessionResponse {
	resp := sessionResponse{
		Authenticated: state.IsAuthenticated,
		Phase:         string(state.Phase),
		Roles:         []accountmodel.Role{},
		Notices:       []noticeResponse{},
	}
	if c := state.Credential; c != nil {
		resp.SessionID = c.SessionID
		resp.UserID = c.UserID
		resp.ExpiresAt = c.ExpiresAt.String()
	}
	if p := state.Profile; p != nil {
		resp.User = &p.User
		resp.Org = p.Org
		resp.Package = p.Package
		if p.Roles != nil {
			resp.Roles = p.Roles
		}
	}
	for _, n := range notices {
		resp.Notices = append(resp.Notices, noticeResponse{Level: string(n.Level), Message: n.Message})
	}
	return resp
}

func (s *Server) SessionAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell := shellFromContext(r.Context())
		writeJSON(w, http.StatusOK, newSessionResponse(shell.Controller.Snapshot(), shell.TakeNotices()))
	}
}

// LogoutHandler clears the shell's session and sends the browser to sign in.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shell := shellFromContext(r.Context())
		shell.Controller.Logout(r.Context())
		shell.TakePending()
		zerolog.Ctx(r.Context()).Info().Msg("Signed out")
		http.Redirect(w, r, s.targets.SignIn(), http.StatusSeeOther)
	}
}

func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"env":    strings.ToLower(s.env),
			"shells": len(s.shells.All()),
		})
	}
}
