package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDashboardTemplate(t *testing.T) {
	tmpl, err := parseDashboardTemplate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, dashboardView{
		AppName:    "Account",
		LogoutPath: RouteAuthLogout,
		Notices:    []noticeView{{Level: "warning", Message: "Your package has expired."}},
		Name:       "Jane <Doe>",
		Roles:      []string{"owner", "billing"},
	}))

	page := buf.String()
	require.Contains(t, page, `action="`+RouteAuthLogout+`"`)
	require.Contains(t, page, "notice-warning")
	require.Contains(t, page, "Jane &lt;Doe&gt;")
	require.Contains(t, page, "owner, billing")
	require.NotContains(t, page, "<dt>Organisation</dt>")
}
