package entitlement_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-account-shell/accountmodel"
	"github.com/jrsteele09/go-account-shell/entitlement"
	"github.com/jrsteele09/go-account-shell/timestamp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func TestGate_CheckEntitlement(t *testing.T) {
	gate := entitlement.NewGate(entitlement.WithNowTime(fixedNow))

	tests := []struct {
		name string
		pkg  *accountmodel.PackageInfo
		want entitlement.Decision
	}{
		{"no package", nil, entitlement.Allowed()},
		{"explicit expiration wins over a future date", &accountmodel.PackageInfo{Expired: true, ExpiresAt: "2099-01-01T00:00:00Z"}, entitlement.Denied(entitlement.ReasonExplicitExpiration)},
		{"lapsed an hour ago", &accountmodel.PackageInfo{ExpiresAt: timestamp.FromTime(testNow.Add(-time.Hour))}, entitlement.Denied(entitlement.ReasonLapsed)},
		{"within grace", &accountmodel.PackageInfo{ExpiresAt: timestamp.FromTime(testNow.Add(-4 * time.Minute))}, entitlement.Allowed()},
		{"grace boundary", &accountmodel.PackageInfo{ExpiresAt: timestamp.FromTime(testNow.Add(-5 * time.Minute))}, entitlement.Denied(entitlement.ReasonLapsed)},
		{"future", &accountmodel.PackageInfo{ExpiresAt: "2030-01-01T00:00:00Z"}, entitlement.Allowed()},
		{"compact form lapsed", &accountmodel.PackageInfo{ExpiresAt: "20241231000000000000"}, entitlement.Denied(entitlement.ReasonLapsed)},
		{"absent expiry", &accountmodel.PackageInfo{ID: "p1"}, entitlement.Allowed()},
		{"unparseable expiry fails open", &accountmodel.PackageInfo{ExpiresAt: "not a date"}, entitlement.Allowed()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, gate.CheckEntitlement(tt.pkg))
		})
	}
}

func TestGate_GracePeriod(t *testing.T) {
	pkg := &accountmodel.PackageInfo{ExpiresAt: timestamp.FromTime(testNow.Add(-time.Minute))}

	strict := entitlement.NewGate(entitlement.WithNowTime(fixedNow), entitlement.WithGracePeriod(0))
	require.False(t, strict.CheckEntitlement(pkg).Allowed)

	lenient := entitlement.NewGate(entitlement.WithNowTime(fixedNow), entitlement.WithGracePeriod(time.Hour))
	require.True(t, lenient.CheckEntitlement(pkg).Allowed)
}

func TestGate_Location(t *testing.T) {
	plus2 := time.FixedZone("plus2", 2*60*60)
	// 01:00 local in a UTC+2 zone is 23:00 UTC the day before, well past the grace period
	pkg := &accountmodel.PackageInfo{ExpiresAt: "20250101010000000000"}

	require.True(t, entitlement.NewGate(entitlement.WithNowTime(fixedNow)).CheckEntitlement(pkg).Allowed)
	require.False(t, entitlement.NewGate(entitlement.WithNowTime(fixedNow), entitlement.WithLocation(plus2)).CheckEntitlement(pkg).Allowed)
}
