// Package session owns one shell's authentication state: it exchanges URL
// session parameters for a credential, keeps the token fresh, and tears the
// session down when it can no longer be trusted.
//
// The Controller never redirects or navigates itself. Every operation
// returns the effects the host must apply; effects that originate from the
// background monitor are delivered through the effect sink.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/entitlement"
	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
	"github.com/jrsteele09/go-account-shell/monitor"
	"github.com/jrsteele09/go-account-shell/redirect"
	"github.com/jrsteele09/go-account-shell/timestamp"
	"github.com/jrsteele09/go-account-shell/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultDashboardPath = "/dashboard"

// User facing notices.
const (
	MessageInvalidCredentials   = "Invalid credentials, please sign in again."
	MessageAuthenticationFailed = "We could not sign you in. Please try again."
	MessagePackageExpired       = "Your package has expired. Renew it to continue."
	MessageSessionExpired       = "Your session has expired, please sign in again."
)

// Values of State.Error.
const (
	ErrorInvalidCredentials   = "invalid credentials"
	ErrorAuthenticationFailed = "authentication failed"
	ErrorPackageExpired       = "package expired"
	ErrorSessionExpired       = "session expired"
)

// IdentityService is the identity backend as seen by the controller.
type IdentityService interface {
	Authenticate(ctx context.Context, sessionID, userID string) (*accountmodel.AuthResult, error)
	Refresh(ctx context.Context, currentToken string) (*accountmodel.TokenRefresh, error)
}

type invalidCause int

const (
	causeNone invalidCause = iota
	causeSession
	causePackage
)

// Controller is safe for concurrent use. Mutations are serialised; identity
// calls are made without holding the lock and their results are dropped if
// the controller was closed or logged out while they were in flight.
type Controller struct {
	store         *tokenstore.Store
	identity      IdentityService
	targets       redirect.Targets
	gate          *entitlement.Gate
	nowTime       func() time.Time
	parseOptions  []timestamp.ParseOption
	dashboardPath string
	sink          func(Outcome)
	baseCtx       context.Context

	monitorOptions []monitor.Option
	monitor        *monitor.Monitor

	mu           sync.Mutex
	state        State
	epoch        uint64
	closed       bool
	invalidCause invalidCause
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

func WithGate(gate *entitlement.Gate) ControllerOption {
	return func(c *Controller) {
		if gate != nil {
			c.gate = gate
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// WithLocation sets the zone for token expiries without one.
func WithLocation(loc *time.Location) ControllerOption {
	return func(c *Controller) {
		c.parseOptions = append(c.parseOptions, timestamp.WithLocation(loc))
	}
}

func WithDashboardPath(path string) ControllerOption {
	return func(c *Controller) {
		if path != "" {
			c.dashboardPath = path
		}
	}
}

func WithMonitorInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		c.monitorOptions = append(c.monitorOptions, monitor.WithInterval(interval))
	}
}

func WithMonitorTicker(factory monitor.TickerFactory) ControllerOption {
	return func(c *Controller) {
		c.monitorOptions = append(c.monitorOptions, monitor.WithTicker(factory))
	}
}

// WithEffectSink receives the effects produced by the background monitor.
func WithEffectSink(sink func(Outcome)) ControllerOption {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithContext is the parent of every monitor run.
func WithContext(ctx context.Context) ControllerOption {
	return func(c *Controller) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

func NewController(store *tokenstore.Store, identity IdentityService, targets redirect.Targets, options ...ControllerOption) *Controller {
	c := &Controller{
		store:         store,
		identity:      identity,
		targets:       targets,
		nowTime:       time.Now,
		dashboardPath: DefaultDashboardPath,
		baseCtx:       context.Background(),
		state:         State{Phase: PhaseUnauthenticated},
		sink: func(o Outcome) {
			log.Warn().Int("effects", len(o.Effects)).Msg("Monitor effects dropped, no effect sink configured")
		},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.gate == nil {
		c.gate = entitlement.NewGate(entitlement.WithNowTime(c.nowTime))
	}
	c.monitor = monitor.New(c.periodicCheck, c.onInvalid, c.monitorOptions...)
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Hydrate rebuilds the state from the token store. A store that cannot be
// read is treated as empty; the state is marked hydrated either way. The
// store is read without holding the lock, so a sign-in or logout that lands
// meanwhile wins over what was read.
func (c *Controller) Hydrate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return shellerrors.ErrUnmounted
	}
	epoch := c.epoch
	c.mu.Unlock()

	cred, loadErr := c.store.LoadCredential(ctx)
	var profile *accountmodel.ProfileBundle
	if loadErr == nil {
		var err error
		if profile, err = c.store.LoadProfile(ctx); err != nil {
			log.Warn().Err(err).Msg("Cached profile could not be read, ignoring it")
			profile = nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return shellerrors.ErrUnmounted
	}
	defer func() { c.state.Hydrated = true }()

	if c.epoch != epoch {
		return nil
	}
	if loadErr != nil {
		c.state.reset()
		return errors.Wrap(loadErr, "[Controller.Hydrate] LoadCredential")
	}

	c.state.Credential = cred
	c.state.Profile = profile
	c.state.derive()
	if c.state.IsAuthenticated {
		c.state.Phase = PhaseAuthenticated
	} else {
		c.state.Phase = PhaseUnauthenticated
	}
	return nil
}

// Load is the page-load flow. With both session parameters it authenticates;
// otherwise it validates whatever the token store holds.
func (c *Controller) Load(ctx context.Context, sessionID, userID string) Outcome {
	if !c.Snapshot().Hydrated {
		if err := c.Hydrate(ctx); err != nil {
			log.Err(err).Msg("Hydrate failed")
		}
	}

	if strings.TrimSpace(sessionID) != "" && strings.TrimSpace(userID) != "" {
		result, err := c.AuthenticateWithSession(ctx, sessionID, userID)
		if err != nil && !shellerrors.Is(err, shellerrors.ErrUnmounted) {
			log.Warn().Err(err).Str("sessionId", sessionID).Str("userId", userID).Msg("Authentication with session parameters failed")
		}
		return result
	}

	hadToken := c.Snapshot().IsAuthenticated
	validation := c.ValidateToken(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{}
	}
	if validation.OK() {
		c.state.Phase = PhaseAuthenticated
		c.state.Loading = false
		c.mu.Unlock()
		c.StartMonitor()
		return Outcome{}
	}
	c.mu.Unlock()

	if hadToken {
		return outcome(
			notify(LevelWarning, MessageSessionExpired),
			redirectTo(c.targets.SignIn(), redirect.ReasonSessionExpired),
		)
	}
	return outcome(redirectTo(c.targets.SignIn(), redirect.ReasonUnauthenticated))
}

// AuthenticateWithSession exchanges the URL session parameters for a
// credential. The package gate runs before anything is committed: a lapsed
// package leaves both the state's credential and the token store untouched.
func (c *Controller) AuthenticateWithSession(ctx context.Context, sessionID, userID string) (Outcome, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userID) == "" {
		return Outcome{}, shellerrors.Wrapf(shellerrors.ErrInvalidRequest, "[Controller.AuthenticateWithSession] sessionId and userId are required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{}, shellerrors.ErrUnmounted
	}
	c.monitor.Stop()
	// a session check still in flight must not act on what it read
	c.epoch++
	c.state.Loading = true
	c.state.Error = ""
	c.state.Phase = PhaseAuthenticating
	epoch := c.epoch
	c.mu.Unlock()

	result, err := c.identity.Authenticate(ctx, sessionID, userID)
	if err == nil && (result == nil || !result.Credential.HasToken()) {
		err = shellerrors.Wrapf(shellerrors.ErrTransient, "[Controller.AuthenticateWithSession] %v", shellerrors.ErrMalformedResponse)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.epoch != epoch {
		return Outcome{}, shellerrors.ErrUnmounted
	}

	switch {
	case shellerrors.Is(err, shellerrors.ErrPackageExpired):
		return c.packageDeniedLocked(sessionID, userID), errors.Wrap(err, "[Controller.AuthenticateWithSession]")
	case shellerrors.Is(err, shellerrors.ErrInvalidCredentials):
		c.logoutLocked(ctx)
		c.state.Error = ErrorInvalidCredentials
		return outcome(
			notify(LevelError, MessageInvalidCredentials),
			redirectTo(c.targets.SignIn(), redirect.ReasonInvalidCredentials),
		), errors.Wrap(err, "[Controller.AuthenticateWithSession]")
	case err != nil:
		return c.authenticationFailedLocked(ctx), errors.Wrap(err, "[Controller.AuthenticateWithSession]")
	}

	if decision := c.gate.CheckEntitlement(result.Profile.Package); !decision.Allowed {
		log.Info().Str("sessionId", sessionID).Str("userId", userID).Str("reason", string(decision.Reason)).Msg("Package gate denied access")
		return c.packageDeniedLocked(sessionID, userID), shellerrors.Wrapf(shellerrors.ErrPackageExpired, "[Controller.AuthenticateWithSession] %s", decision.Reason)
	}

	cred := result.Credential
	cred.SessionID, cred.UserID = sessionID, userID
	if err := c.commitLocked(ctx, cred, result.Profile); err != nil {
		return c.authenticationFailedLocked(ctx), errors.Wrap(err, "[Controller.AuthenticateWithSession]")
	}

	log.Info().Str("sessionId", sessionID).Str("userId", userID).Msg("Session authenticated")
	c.monitor.Start(c.baseCtx)
	return outcome(navigateTo(c.dashboardPath)), nil
}

func (c *Controller) commitLocked(ctx context.Context, cred accountmodel.Credential, profile accountmodel.ProfileBundle) error {
	if err := c.store.SaveSessionIdentifiers(ctx, cred.SessionID, cred.UserID); err != nil {
		return err
	}
	if err := c.store.SaveCredential(ctx, cred); err != nil {
		return err
	}
	if err := c.store.SaveProfile(ctx, profile); err != nil {
		return err
	}

	c.state.Credential = &cred
	c.state.Profile = profile.Clone()
	if c.state.Profile.Roles == nil {
		c.state.Profile.Roles = []accountmodel.Role{}
	}
	c.state.Loading = false
	c.state.Error = ""
	c.state.Phase = PhaseAuthenticated
	c.state.derive()
	return nil
}

// packageDeniedLocked ends an authentication attempt without touching the
// credential or the token store.
func (c *Controller) packageDeniedLocked(sessionID, userID string) Outcome {
	c.state.Loading = false
	c.state.Error = ErrorPackageExpired
	c.state.derive()
	if c.state.IsAuthenticated {
		// the earlier session is still in place, keep watching it
		c.state.Phase = PhaseAuthenticated
		c.monitor.Start(c.baseCtx)
	} else {
		c.state.Phase = PhaseUnauthenticated
	}
	return outcome(
		notify(LevelWarning, MessagePackageExpired),
		redirectTo(c.targets.Billing(sessionID, userID), redirect.ReasonPackageLapsed),
	)
}

func (c *Controller) authenticationFailedLocked(ctx context.Context) Outcome {
	c.logoutLocked(ctx)
	c.state.Error = ErrorAuthenticationFailed
	return outcome(
		notify(LevelError, MessageAuthenticationFailed),
		redirectTo(c.targets.SignIn(), redirect.ReasonAuthenticationFailed),
	)
}

// RefreshToken trades currentToken for a new one and replaces only the
// token and expiry. The profile is left alone. On failure nothing changes;
// logging out is the caller's decision.
func (c *Controller) RefreshToken(ctx context.Context, currentToken string) (*accountmodel.TokenRefresh, error) {
	if currentToken == "" {
		return nil, shellerrors.Wrapf(shellerrors.ErrInvalidRequest, "[Controller.RefreshToken] token is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, shellerrors.ErrUnmounted
	}
	epoch := c.epoch
	c.mu.Unlock()

	return c.refresh(ctx, currentToken, epoch)
}

func (c *Controller) refresh(ctx context.Context, currentToken string, epoch uint64) (*accountmodel.TokenRefresh, error) {
	refreshed, err := c.identity.Refresh(ctx, currentToken)
	if err != nil {
		if !shellerrors.Is(err, shellerrors.ErrRefreshFailed) {
			err = shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "%v", err)
		}
		return nil, errors.Wrap(err, "[Controller.RefreshToken]")
	}
	if refreshed == nil || refreshed.Token == "" {
		return nil, shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "[Controller.RefreshToken] %v", shellerrors.ErrMalformedResponse)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.epoch != epoch {
		return nil, shellerrors.ErrUnmounted
	}

	if err := c.store.SaveTokenPair(ctx, refreshed.Token, refreshed.ExpiresAt); err != nil {
		return nil, shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "[Controller.RefreshToken] %v", err)
	}
	if c.state.Credential != nil {
		c.state.Credential.AccessToken = refreshed.Token
		c.state.Credential.ExpiresAt = refreshed.ExpiresAt
	} else {
		cred, err := c.store.LoadCredential(ctx)
		if err != nil {
			return nil, shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "[Controller.RefreshToken] %v", err)
		}
		c.state.Credential = cred
	}
	c.state.derive()

	out := *refreshed
	return &out, nil
}

// ValidateToken checks the stored token. An expired token gets exactly one
// refresh attempt. Every Invalid result leaves the session logged out.
func (c *Controller) ValidateToken(ctx context.Context) ValidationOutcome {
	return c.validate(ctx, c.logoutLocked)
}

// validate takes the logout to run on Invalid. The monitor's own check must
// not cancel the run it is part of, so it passes clearLocked.
//
// A cancelled ctx never logs out: the caller went away, the session was not
// found invalid.
func (c *Controller) validate(ctx context.Context, logoutLocked func(context.Context)) ValidationOutcome {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Invalid
	}
	epoch := c.epoch
	needProfile := c.state.Profile == nil
	c.mu.Unlock()

	cred, err := c.store.LoadCredential(ctx)
	var profile *accountmodel.ProfileBundle
	if err == nil && needProfile && cred.HasToken() {
		// best effort, a missing profile does not invalidate the token
		profile, _ = c.store.LoadProfile(ctx)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Invalid
	}
	if c.epoch != epoch {
		// signed in or out while the store was read, report what is current
		outcome := Invalid
		if c.state.Credential.Valid(c.nowTime(), c.parseOptions...) {
			outcome = Valid
		}
		c.mu.Unlock()
		return outcome
	}
	if err != nil {
		if ctx.Err() != nil {
			c.mu.Unlock()
			return Invalid
		}
		log.Err(err).Msg("Stored credential could not be read")
		logoutLocked(ctx)
		c.mu.Unlock()
		return Invalid
	}
	if !cred.HasToken() {
		logoutLocked(ctx)
		c.mu.Unlock()
		return Invalid
	}
	if cred.Valid(c.nowTime(), c.parseOptions...) {
		c.adoptLocked(cred, profile)
		c.mu.Unlock()
		return Valid
	}
	c.mu.Unlock()

	if _, err := c.refresh(ctx, cred.AccessToken, epoch); err != nil {
		if shellerrors.Is(err, shellerrors.ErrUnmounted) {
			return Invalid
		}
		if ctx.Err() != nil {
			log.Debug().Err(err).Str("sessionId", cred.SessionID).Msg("Token refresh abandoned, caller went away")
			return Invalid
		}
		log.Warn().Err(err).Str("sessionId", cred.SessionID).Msg("Token refresh failed, logging out")

		c.mu.Lock()
		if !c.closed && c.epoch == epoch {
			logoutLocked(ctx)
		}
		c.mu.Unlock()
		return Invalid
	}
	return ValidAfterRefresh
}

// adoptLocked makes the state agree with a valid stored credential. profile
// is only used when the state has none.
func (c *Controller) adoptLocked(cred *accountmodel.Credential, profile *accountmodel.ProfileBundle) {
	if c.state.Credential == nil || c.state.Credential.AccessToken != cred.AccessToken {
		c.state.Credential = cred
	}
	if c.state.Profile == nil && profile != nil {
		c.state.Profile = profile
	}
	c.state.derive()
}

// Logout stops the monitor and clears both the token store and the state.
// Calling it again is harmless.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logoutLocked(ctx)
}

func (c *Controller) logoutLocked(ctx context.Context) {
	c.monitor.Stop()
	c.clearLocked(ctx)
}

func (c *Controller) clearLocked(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Token store could not be cleared")
	}
	c.state.reset()
	c.epoch++
}

// UpdateUserDetails replaces the cached user details.
func (c *Controller) UpdateUserDetails(ctx context.Context, user accountmodel.UserDetails) error {
	return c.updateProfile(ctx, "[Controller.UpdateUserDetails]", func() error {
		return c.store.SaveUserDetails(ctx, user)
	}, func(p *accountmodel.ProfileBundle) {
		p.User = user
	})
}

// UpdatePackageInfo replaces the cached package. nil removes it.
func (c *Controller) UpdatePackageInfo(ctx context.Context, pkg *accountmodel.PackageInfo) error {
	var stored *accountmodel.PackageInfo
	if pkg != nil {
		clone := *pkg
		stored = &clone
	}
	return c.updateProfile(ctx, "[Controller.UpdatePackageInfo]", func() error {
		return c.store.SavePackageInfo(ctx, stored)
	}, func(p *accountmodel.ProfileBundle) {
		p.Package = stored
	})
}

// UpdateOrgDetails replaces the cached organisation. nil removes it.
func (c *Controller) UpdateOrgDetails(ctx context.Context, org *accountmodel.OrgDetails) error {
	var stored *accountmodel.OrgDetails
	if org != nil {
		clone := *org
		stored = &clone
	}
	return c.updateProfile(ctx, "[Controller.UpdateOrgDetails]", func() error {
		return c.store.SaveOrgDetails(ctx, stored)
	}, func(p *accountmodel.ProfileBundle) {
		p.Org = stored
	})
}

func (c *Controller) updateProfile(ctx context.Context, op string, save func() error, apply func(*accountmodel.ProfileBundle)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return shellerrors.ErrUnmounted
	}
	if !c.state.IsAuthenticated {
		return shellerrors.Wrapf(shellerrors.ErrInvalidRequest, "%s not authenticated", op)
	}
	if err := save(); err != nil {
		return errors.Wrap(err, op)
	}
	if c.state.Profile == nil {
		c.state.Profile = &accountmodel.ProfileBundle{Roles: []accountmodel.Role{}}
	}
	apply(c.state.Profile)
	return nil
}

// StartMonitor (re)starts the continuity monitor if the session is
// authenticated.
func (c *Controller) StartMonitor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.state.IsAuthenticated {
		return
	}
	c.monitor.Start(c.baseCtx)
}

func (c *Controller) StopMonitor() {
	c.monitor.Stop()
}

func (c *Controller) MonitorRunning() bool {
	return c.monitor.Running()
}

// Close unmounts the controller: the monitor stops and any identity call
// still in flight has its result discarded. The token store is kept.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.epoch++
	c.monitor.Stop()
}

// periodicCheck runs on every monitor tick: the token must still validate
// and the cached package must still pass the gate.
func (c *Controller) periodicCheck(ctx context.Context) bool {
	if !c.validate(ctx, c.clearLocked).OK() {
		if ctx.Err() != nil {
			return false
		}
		c.setInvalidCause(causeSession)
		return false
	}

	c.mu.Lock()
	var pkg *accountmodel.PackageInfo
	if c.state.Profile != nil {
		pkg = c.state.Profile.Package
	}
	c.mu.Unlock()

	if decision := c.gate.CheckEntitlement(pkg); !decision.Allowed {
		log.Info().Str("reason", string(decision.Reason)).Msg("Package gate denied access during session check")
		c.setInvalidCause(causePackage)
		return false
	}
	return true
}

func (c *Controller) setInvalidCause(cause invalidCause) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidCause = cause
}

// onInvalid is called by the monitor once per run after a failed check.
func (c *Controller) onInvalid() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	cause := c.invalidCause
	c.invalidCause = causeNone

	var out Outcome
	switch cause {
	case causePackage:
		var sessionID, userID string
		if c.state.Credential != nil {
			sessionID, userID = c.state.Credential.SessionID, c.state.Credential.UserID
		}
		c.logoutLocked(c.baseCtx)
		c.state.Error = ErrorPackageExpired
		out = outcome(
			notify(LevelWarning, MessagePackageExpired),
			redirectTo(c.targets.Billing(sessionID, userID), redirect.ReasonPackageLapsed),
		)
	default:
		// ValidateToken has already logged out
		c.state.Phase = PhaseExpired
		c.state.Error = ErrorSessionExpired
		out = outcome(
			notify(LevelWarning, MessageSessionExpired),
			redirectTo(c.targets.SignIn(), redirect.ReasonSessionExpired),
		)
	}
	c.mu.Unlock()

	c.sink(out)
}
