package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-account-shell/entitlement"
	"github.com/jrsteele09/go-account-shell/identity"
	"github.com/jrsteele09/go-account-shell/internal/config"
	"github.com/jrsteele09/go-account-shell/redirect"
	"github.com/jrsteele09/go-account-shell/server"
	"github.com/jrsteele09/go-account-shell/server/shellsession"
	"github.com/jrsteele09/go-account-shell/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 5 * time.Second
	reapInterval    = time.Minute
)

func main() {
	for {
		if err := run(); err != nil {
			log.Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	if err := config.LoadFile(""); err != nil {
		return err
	}
	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	targets, err := redirectTargets(ctx, c)
	if err != nil {
		return err
	}

	stores, err := newStoreFactory(ctx, c)
	if err != nil {
		return err
	}
	defer stores.Close()

	identityClient := identity.New(c.GetIdentityBaseURL(), c.GetAppURL(),
		identity.WithAuthenticateTimeout(c.GetAuthenticateTimeout()),
		identity.WithRefreshTimeout(c.GetRefreshTimeout()),
		identity.WithCircuitBreaker(identity.DefaultBreakerSettings()),
	)

	gate := entitlement.NewGate(
		entitlement.WithGracePeriod(c.GetPackageGracePeriod()),
		entitlement.WithLocation(c.GetTimestampLocation()),
	)

	newController := func(shellID string, sink func(session.Outcome)) (*session.Controller, error) {
		store, err := stores.New(shellID)
		if err != nil {
			return nil, err
		}
		return session.NewController(store, identityClient, targets,
			session.WithGate(gate),
			session.WithLocation(c.GetTimestampLocation()),
			session.WithDashboardPath(c.GetDashboardPath()),
			session.WithMonitorInterval(c.GetMonitorInterval()),
			session.WithEffectSink(sink),
			session.WithContext(ctx),
		), nil
	}

	shellServer, err := server.New(c, shellsession.NewInMemoryShellRepo(), targets, newController,
		server.WithShellReaped(stores.Forget),
	)
	if err != nil {
		return err
	}
	defer shellServer.Close()

	go reapIdleShells(ctx, shellServer, c.GetShellMaxAge())

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           shellServer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	cancel()
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.DefaultContextLogger = &log.Logger
}

// redirectTargets takes the configured URLs and, when an issuer is set, lets
// OIDC discovery fill in the sign-in endpoint and identity root.
func redirectTargets(ctx context.Context, c config.Config) (redirect.Targets, error) {
	targets := redirect.Targets{
		SignInURL:       c.GetSignInURL(),
		IdentityRootURL: c.GetIdentityRootURL(),
		BillingURL:      c.GetBillingURL(),
	}
	if issuer := c.GetIdentityIssuer(); issuer != "" {
		discoverCtx, cancel := context.WithTimeout(ctx, c.GetAuthenticateTimeout())
		defer cancel()
		discovered, err := redirect.Discover(discoverCtx, issuer, targets)
		if err != nil {
			log.Warn().Err(err).Str("issuer", issuer).Msg("OIDC discovery failed, using configured redirect URLs")
		}
		targets = discovered
	}
	if err := targets.Validate(); err != nil {
		return redirect.Targets{}, fmt.Errorf("[main redirectTargets] %w", err)
	}
	return targets, nil
}

func reapIdleShells(ctx context.Context, s *server.Server, maxAge time.Duration) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdleShells(maxAge)
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
