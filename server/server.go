package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/platformedge/gateway/audit"
	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/callback"
	"github.com/platformedge/gateway/internal/config"
	"github.com/platformedge/gateway/organisations"
	"github.com/platformedge/gateway/organisations/orgcache"
	"github.com/platformedge/gateway/server/authflowrepo"
	"github.com/platformedge/gateway/sessions"
)

// Deps holds everything the HTTP layer serves.
type Deps struct {
	Auth      *auth.Service
	Orgs      *organisations.Manager
	Sessions  sessions.Repo
	Cache     orgcache.Cache
	Extender  *auth.Extender
	AuditLog  *audit.Log
	AuthState authflowrepo.Repo
	Dashboard DashboardFetcher
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	deps   Deps
	flow   *callback.Flow

	oidcOnce     sync.Mutex
	oauth2Config *oauth2.Config
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}
	if deps.Orgs == nil {
		return nil, fmt.Errorf("[Server New] organisation manager is required")
	}
	if deps.AuthState == nil {
		return nil, fmt.Errorf("[Server New] auth flow state repo is required")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		deps:   deps,
	}
	s.env = cfg.GetEnv()
	s.flow = callback.NewFlow(s.exchange)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// oidcConfig lazily discovers the identity provider's endpoints. Discovery
// needs the network, so it runs on first use rather than at construction.
func (s *Server) oidcConfig(ctx context.Context) (*oauth2.Config, error) {
	s.oidcOnce.Lock()
	defer s.oidcOnce.Unlock()

	if s.oauth2Config != nil {
		return s.oauth2Config, nil
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetIdentityIssuerURL())
	if err != nil {
		return nil, fmt.Errorf("[Server.oidcConfig] provider discovery: %w", err)
	}

	s.oauth2Config = &oauth2.Config{
		ClientID:    s.config.GetIdentityClientID(),
		Endpoint:    provider.Endpoint(),
		RedirectURL: s.config.GetCallbackURL(),
		Scopes:      s.config.GetIdentityScopes(),
	}
	return s.oauth2Config, nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
