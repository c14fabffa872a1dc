package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin    = "/auth/login"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthCallback = "/auth/callback"

	// API Routes
	RouteAPIMe                 = "/api/me"
	RouteAPIOrganisations      = "/api/organisations"
	RouteAPIOrganisationSwitch = "/api/organisations/switch"
	RouteAPIDashboard          = "/api/dashboards/{tool}"
	RouteAPIAudit              = "/api/audit"

	// Operational Routes
	RouteHealth = "/health"

	// Authenticated landing area after a successful sign-in
	RouteDashboard = "/api/me"
)
