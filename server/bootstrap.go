package server

import (
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/platformedge/gateway/audit"
	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/internal/config"
	"github.com/platformedge/gateway/organisations"
	"github.com/platformedge/gateway/organisations/orgcache"
	"github.com/platformedge/gateway/platform"
	"github.com/platformedge/gateway/server/authflowrepo"
	"github.com/platformedge/gateway/sessions"
)

// Bootstrap wires the full dependency graph from configuration: Redis-backed
// session store and organisation cache when a Redis address is configured,
// in-memory otherwise; a local sqlite audit store; the platform API client;
// and the services on top of them.
func Bootstrap(cfg config.Config) (*Server, *auth.Extender, error) {
	var (
		sessionRepo sessions.Repo
		orgCache    orgcache.Cache
	)

	if addr := cfg.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		sessionRepo = sessions.NewRedisRepo(client)
		orgCache = orgcache.NewRedisCache(client)
		log.Info().Str("addr", addr).Msg("using redis session store and organisation cache")
	} else {
		sessionRepo = sessions.NewInMemoryRepo()
		orgCache = orgcache.NewInMemoryCache()
		log.Info().Msg("using in-memory session store and organisation cache")
	}

	auditRepo, err := audit.OpenSQLiteRepo(cfg.GetAuditDBPath())
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Bootstrap] open audit store")
	}
	auditLog := audit.NewLog(auditRepo)

	apiClient := platform.NewClient(cfg.GetAPIBaseURL())

	authService, err := auth.NewService(auth.Deps{
		Sessions: sessionRepo,
		API:      apiClient,
		Audit:    auditLog,
	},
		auth.WithProfileTTL(cfg.GetProfileCacheTTL()),
		auth.WithMaxSessionAge(cfg.GetMaxSessionAge()),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Bootstrap] auth service")
	}

	orgManager, err := organisations.NewManager(organisations.Deps{
		API:      apiClient,
		Sessions: sessionRepo,
		Cache:    orgCache,
		Audit:    auditLog,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Bootstrap] organisation manager")
	}

	extender := auth.NewExtender(sessionRepo, cfg.GetExtensionInterval(), cfg.GetSessionExtension())

	srv, err := New(cfg, Deps{
		Auth:      authService,
		Orgs:      orgManager,
		Sessions:  sessionRepo,
		Cache:     orgCache,
		Extender:  extender,
		AuditLog:  auditLog,
		AuthState: authflowrepo.NewInMemoryRepo(),
		Dashboard: apiClient,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Bootstrap] server")
	}

	return srv, extender, nil
}
