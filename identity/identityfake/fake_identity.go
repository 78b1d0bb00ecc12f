// Package identityfake is a scriptable in-memory identity service for tests.
package identityfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-account-shell/accountmodel"
)

type AuthenticateCall struct {
	SessionID string
	UserID    string
}

// FakeIdentity answers with whatever the test configured. Hooks run before
// the configured answer and may block to hold a call in flight.
type FakeIdentity struct {
	mu sync.Mutex

	AuthResult *accountmodel.AuthResult
	AuthErr    error
	AuthHook   func(ctx context.Context)

	RefreshResult *accountmodel.TokenRefresh
	RefreshErr    error
	RefreshHook   func(ctx context.Context)

	authCalls    []AuthenticateCall
	refreshCalls []string
}

func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{}
}

func (f *FakeIdentity) Authenticate(ctx context.Context, sessionID, userID string) (*accountmodel.AuthResult, error) {
	f.mu.Lock()
	f.authCalls = append(f.authCalls, AuthenticateCall{SessionID: sessionID, UserID: userID})
	hook := f.AuthHook
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AuthErr != nil {
		return nil, f.AuthErr
	}
	if f.AuthResult == nil {
		return nil, nil
	}
	result := *f.AuthResult
	result.Profile = *f.AuthResult.Profile.Clone()
	return &result, nil
}

func (f *FakeIdentity) Refresh(ctx context.Context, currentToken string) (*accountmodel.TokenRefresh, error) {
	f.mu.Lock()
	f.refreshCalls = append(f.refreshCalls, currentToken)
	hook := f.RefreshHook
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	if f.RefreshResult == nil {
		return nil, nil
	}
	refreshed := *f.RefreshResult
	return &refreshed, nil
}

// SetAuth replaces the authenticate answer.
func (f *FakeIdentity) SetAuth(result *accountmodel.AuthResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthResult, f.AuthErr = result, err
}

// SetRefresh replaces the refresh answer.
func (f *FakeIdentity) SetRefresh(result *accountmodel.TokenRefresh, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshResult, f.RefreshErr = result, err
}

func (f *FakeIdentity) AuthenticateCalls() []AuthenticateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AuthenticateCall(nil), f.authCalls...)
}

func (f *FakeIdentity) RefreshCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshCalls...)
}
