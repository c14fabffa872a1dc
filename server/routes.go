package server

func (s *Server) initRoutes() {
	// LOGIN / LOGOUT / CALLBACK
	s.RegisterRouteFunc("GET "+RouteAuthLogin, s.LoginHandler())
	s.RegisterRouteFunc("GET "+RouteAuthLogout, s.LogoutHandler())
	s.RegisterRouteFunc("GET "+RouteAuthCallback, s.CallbackHandler())
	s.RegisterRouteFunc("POST "+RouteAuthCallback, s.CallbackHandler()) // For form_post response mode

	// API routes (require an authenticated session)
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIOrganisations, ChainMiddleware(s.OrganisationsHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("POST "+RouteAPIOrganisationSwitch, ChainMiddleware(s.SwitchOrganisationHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIDashboard, ChainMiddleware(s.DashboardHandler(), s.APIMiddleware(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAPIAudit, ChainMiddleware(s.AuditHandler(), s.APIMiddleware(s.RequireSession())...))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
