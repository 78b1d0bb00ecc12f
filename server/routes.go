package server

func (s *Server) initRoutes() {
	// Entry: exchanges URL session parameters or validates the stored token
	s.RegisterRouteHandler("GET "+RouteEntry+"{$}", ChainMiddleware(s.EntryHandler(), s.HTMLMiddleWare(s.ShellMiddleware)...))

	// Protected views
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleWare(s.RequireShellSession())...))

	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.ShellMiddleware)...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionAPIHandler(), s.APIMiddleware(s.RequireShellSessionAPI())...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
