// Package identity talks to the identity service: it exchanges a
// (sessionId, userId) pair handed over in the URL for an access token plus
// profile, and refreshes access tokens.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-account-shell/accountmodel"
	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
	"github.com/jrsteele09/go-account-shell/timestamp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
)

const (
	AuthenticatePath = "/v2/apps/authenticate"
	RefreshPath      = "/auth/refresh-token"

	defaultAuthenticateTimeout = 15 * time.Second
	defaultRefreshTimeout      = 10 * time.Second

	maxBody = 1 << 20
)

// Client is safe for concurrent use.
type Client struct {
	baseURL             string
	appURL              string
	httpClient          *http.Client
	authenticateTimeout time.Duration
	refreshTimeout      time.Duration
	breaker             *gobreaker.CircuitBreaker
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithAuthenticateTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.authenticateTimeout = timeout
		}
	}
}

func WithRefreshTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.refreshTimeout = timeout
		}
	}
}

// WithCircuitBreaker replaces the default breaker settings.
func WithCircuitBreaker(settings gobreaker.Settings) ClientOption {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// New creates a client for the identity service at baseURL. appURL is the
// bound application identifier sent with every authenticate call.
func New(baseURL, appURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:             strings.TrimRight(baseURL, "/"),
		appURL:              appURL,
		httpClient:          http.DefaultClient,
		authenticateTimeout: defaultAuthenticateTimeout,
		refreshTimeout:      defaultRefreshTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings())
	}
	return c
}

// DefaultBreakerSettings opens the breaker after five consecutive transport
// or 5xx failures and probes again after 30 seconds.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "identity",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}
}

type authenticateRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	AppURL    string `json:"appUrl"`
}

type authorization struct {
	Token     string              `json:"token"`
	ExpiresAt timestamp.Timestamp `json:"expires_at"`
}

type authenticateResponse struct {
	Authorization authorization             `json:"authorization"`
	Packages      *accountmodel.PackageInfo `json:"packages"`
	UserDetails   accountmodel.UserDetails  `json:"user_details"`
	OrgDetails    *accountmodel.OrgDetails  `json:"org_details"`
	Roles         []accountmodel.Role       `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Authorization authorization `json:"authorization"`
}

// Authenticate exchanges the session parameters for a credential and profile.
//
// Errors unwrap to ErrInvalidCredentials (401), ErrPackageExpired (403 that
// mentions the package or expiry), or ErrTransient (everything else,
// including timeouts and an open breaker).
func (c *Client) Authenticate(ctx context.Context, sessionID, userID string) (*accountmodel.AuthResult, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userID) == "" {
		return nil, shellerrors.Wrapf(shellerrors.ErrInvalidRequest, "[Client.Authenticate] sessionId and userId are required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.authenticateTimeout)
	defer cancel()

	body, err := json.Marshal(authenticateRequest{SessionID: sessionID, UserID: userID, AppURL: c.appURL})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Authenticate] Marshal")
	}

	var resp authenticateResponse
	if err := c.post(ctx, c.httpClient, AuthenticatePath, body, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Authenticate]")
	}

	if resp.Authorization.Token == "" {
		return nil, shellerrors.Wrapf(shellerrors.ErrTransient, "[Client.Authenticate] %v", shellerrors.ErrMalformedResponse)
	}

	roles := resp.Roles
	if roles == nil {
		roles = []accountmodel.Role{}
	}

	return &accountmodel.AuthResult{
		Credential: accountmodel.Credential{
			AccessToken: resp.Authorization.Token,
			ExpiresAt:   c.expiry(resp.Authorization),
			SessionID:   sessionID,
			UserID:      userID,
		},
		Profile: accountmodel.ProfileBundle{
			User:    resp.UserDetails,
			Package: resp.Packages,
			Org:     resp.OrgDetails,
			Roles:   roles,
		},
	}, nil
}

// Refresh trades the current token for a new one. The current token is sent
// both as the bearer credential and in the body. Every failure unwraps to
// ErrRefreshFailed.
func (c *Client) Refresh(ctx context.Context, currentToken string) (*accountmodel.TokenRefresh, error) {
	if currentToken == "" {
		return nil, shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "[Client.Refresh] %v", shellerrors.ErrInvalidToken)
	}

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	body, err := json.Marshal(refreshRequest{RefreshToken: currentToken})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh] Marshal")
	}

	// the oauth2 transport wraps our own http client and adds the bearer header
	bearerCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	bearerClient := oauth2.NewClient(bearerCtx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: currentToken,
		TokenType:   "Bearer",
	}))

	var resp refreshResponse
	if err := c.post(ctx, bearerClient, RefreshPath, body, &resp); err != nil {
		return nil, shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "[Client.Refresh] %v", err)
	}
	if resp.Authorization.Token == "" {
		return nil, shellerrors.Wrapf(shellerrors.ErrRefreshFailed, "[Client.Refresh] %v", shellerrors.ErrMalformedResponse)
	}

	return &accountmodel.TokenRefresh{
		Token:     resp.Authorization.Token,
		ExpiresAt: c.expiry(resp.Authorization),
	}, nil
}

// expiry prefers the expires_at field and falls back to the token's own exp
// claim. The claim is read without verifying the signature: the token came
// straight from the identity service and is only used for scheduling.
func (c *Client) expiry(auth authorization) timestamp.Timestamp {
	if !auth.ExpiresAt.IsZero() {
		return auth.ExpiresAt
	}
	token, _, err := jwt.NewParser().ParseUnverified(auth.Token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ""
	}
	return timestamp.FromTime(exp.Time)
}

type httpResult struct {
	status int
	body   []byte
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, path string, body []byte, out any) error {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, err
		}
		res := &httpResult{status: resp.StatusCode, body: respBody}
		// only server side failures count against the breaker
		if resp.StatusCode >= http.StatusInternalServerError {
			return res, fmt.Errorf("status %d", resp.StatusCode)
		}
		return res, nil
	})

	var res *httpResult
	if result != nil {
		res, _ = result.(*httpResult)
	}

	switch {
	case res != nil && res.status >= 200 && res.status < 300:
		if err := json.Unmarshal(res.body, out); err != nil {
			return shellerrors.Wrapf(shellerrors.ErrTransient, "%v: %v", shellerrors.ErrMalformedResponse, err)
		}
		return nil
	case res != nil:
		return newStatusError(res.status, res.body)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return shellerrors.Wrapf(shellerrors.ErrTransient, "circuit open: %v", err)
	default:
		return shellerrors.Wrapf(shellerrors.ErrTransient, "%s: %v", path, err)
	}
}
