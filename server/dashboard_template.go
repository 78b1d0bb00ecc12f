package server

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/dashboard.html
var templateFiles embed.FS

const dashboardTemplate = "templates/dashboard.html"

// parseDashboardTemplate parses the only page the shell renders. It runs once
// in New.
func parseDashboardTemplate() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFiles, dashboardTemplate)
	if err != nil {
		return nil, fmt.Errorf("[parseDashboardTemplate] %w", err)
	}
	return tmpl, nil
}
