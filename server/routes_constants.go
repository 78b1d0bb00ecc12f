package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Entry point, reads sessionId and userId from the query string
	RouteEntry = "/"

	// Protected views
	RouteDashboard = "/dashboard"

	// Auth Routes
	RouteAuthLogout = "/auth/logout"

	// API Routes
	RouteAPISession = "/api/session"

	RouteHealth = "/healthz"
)

// Query parameters handed over by the identity service
const (
	QuerySessionID = "sessionId"
	QueryUserID    = "userId"
)
