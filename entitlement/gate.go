// Package entitlement decides whether a subscription package still entitles
// the user to the account area.
package entitlement

import (
	"time"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/timestamp"
)

const DefaultGracePeriod = 5 * time.Minute

type DenialReason string

const (
	ReasonNone               DenialReason = ""
	ReasonExplicitExpiration DenialReason = "explicit expiration"
	ReasonLapsed             DenialReason = "lapsed"
)

// Decision is the gate's verdict. Reason is only set when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  DenialReason
}

func Allowed() Decision {
	return Decision{Allowed: true}
}

func Denied(reason DenialReason) Decision {
	return Decision{Reason: reason}
}

// Gate is stateless apart from its clock and grace period.
type Gate struct {
	gracePeriod  time.Duration
	nowTime      func() time.Time
	parseOptions []timestamp.ParseOption
}

type GateOption func(*Gate)

func WithGracePeriod(grace time.Duration) GateOption {
	return func(g *Gate) {
		if grace >= 0 {
			g.gracePeriod = grace
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) GateOption {
	return func(g *Gate) {
		g.nowTime = nowFunc
	}
}

// WithLocation sets the zone for expiry values without one.
func WithLocation(loc *time.Location) GateOption {
	return func(g *Gate) {
		g.parseOptions = append(g.parseOptions, timestamp.WithLocation(loc))
	}
}

func NewGate(options ...GateOption) *Gate {
	g := &Gate{
		gracePeriod: DefaultGracePeriod,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// CheckEntitlement denies an explicitly expired package or one whose expiry
// plus the grace period has passed. Missing or unreadable package data is
// allowed: unlike token expiry the gate fails open.
func (g *Gate) CheckEntitlement(pkg *accountmodel.PackageInfo) Decision {
	if pkg == nil {
		return Allowed()
	}
	if pkg.Expired {
		return Denied(ReasonExplicitExpiration)
	}
	if pkg.ExpiresAt.IsZero() {
		return Allowed()
	}
	expiresAt, err := pkg.ExpiresAt.Time(g.parseOptions...)
	if err != nil {
		return Allowed()
	}
	if !expiresAt.Add(g.gracePeriod).After(g.nowTime()) {
		return Denied(ReasonLapsed)
	}
	return Allowed()
}
