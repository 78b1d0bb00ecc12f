package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-account-shell/guard"
	"github.com/jrsteele09/go-account-shell/internal/config"
	"github.com/jrsteele09/go-account-shell/redirect"
	"github.com/jrsteele09/go-account-shell/server/shellsession"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/rs/zerolog/log"
)

// ControllerFactory builds the session controller for a new shell. sink
// receives the effects the controller's monitor produces between requests.
type ControllerFactory func(shellID string, sink func(session.Outcome)) (*session.Controller, error)

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	shells        shellsession.Repo
	shellsMu      sync.Mutex // serialises shell creation
	newController ControllerFactory
	targets       redirect.Targets
	guard         *guard.Guard
	nowTime       func() time.Time
	onReaped      func(shellID string)
	dashboardTmpl *template.Template
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithShellReaped is called with the id of every shell ReapIdleShells removes.
func WithShellReaped(onReaped func(shellID string)) ServerOption {
	return func(s *Server) {
		s.onReaped = onReaped
	}
}

func New(config config.Config, shells shellsession.Repo, targets redirect.Targets, newController ControllerFactory, options ...ServerOption) (*Server, error) {
	if err := targets.Validate(); err != nil {
		return nil, fmt.Errorf("[Server New] invalid redirect targets: %w", err)
	}
	if newController == nil {
		return nil, fmt.Errorf("[Server New] a controller factory is required")
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		shells:        shells,
		newController: newController,
		targets:       targets,
		guard:         guard.New(targets),
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.env = config.GetEnv()

	tmpl, err := parseDashboardTemplate()
	if err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	s.dashboardTmpl = tmpl

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// ReapIdleShells closes and forgets shells idle for longer than maxAge. Their
// token stores are left alone so a returning browser can pick up again,
// unless a WithShellReaped callback releases them.
func (s *Server) ReapIdleShells(maxAge time.Duration) int {
	idle := s.shells.IdleSince(s.nowTime().Add(-maxAge))
	for _, shell := range idle {
		shell.Controller.Close()
		if err := s.shells.Delete(shell.ID); err != nil {
			log.Err(err).Str("shellId", shell.ID).Msg("Failed to delete idle shell")
		}
		if s.onReaped != nil {
			s.onReaped(shell.ID)
		}
	}
	if len(idle) > 0 {
		log.Info().Int("reaped", len(idle)).Msg("Idle shells reaped")
	}
	return len(idle)
}

// Close unmounts every shell. Used at shutdown.
func (s *Server) Close() {
	for _, shell := range s.shells.All() {
		shell.Controller.Close()
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
