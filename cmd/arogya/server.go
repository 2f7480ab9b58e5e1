package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arogyahq/arogya/api"
	"github.com/arogyahq/arogya/api/handlers"
	"github.com/arogyahq/arogya/auth"
	"github.com/arogyahq/arogya/config"
	"github.com/arogyahq/arogya/internal/cache"
	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/internal/graph"
	"github.com/arogyahq/arogya/internal/metrics"
	"github.com/arogyahq/arogya/internal/pool"
	"github.com/arogyahq/arogya/internal/server"
	"github.com/arogyahq/arogya/internal/vector"
	"github.com/arogyahq/arogya/llm"
	"github.com/arogyahq/arogya/orchestrator"
	"github.com/arogyahq/arogya/store"
)

// authSkipPaths bypass the JWT middleware. Everything else requires a
// bearer token.
var authSkipPaths = []string{
	"/auth/register",
	"/auth/login",
	"/auth/refresh",
	"/auth/logout",
	"/auth/check-ip",
	"/health",
	"/ready",
	"/version",
	"/metrics",
}

// application owns every long-lived component and their shutdown order.
type application struct {
	config  *config.Config
	logger  *zap.Logger
	cache   *cache.Manager
	db      *database.Gateway
	graphGW *graph.Gateway // nil when running on the in-memory fallback
	workers *pool.WorkerPool
	limiter context.CancelFunc
	manager *server.Manager
}

func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	cacheMgr := cache.NewManager(cacheConfig(cfg), logger)

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	gw, err := database.NewGateway(dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	st := store.New(gw, cacheMgr, cfg.Cache.TTL, logger)

	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.Secret = cfg.Auth.JWTSecret
	jwtCfg.AccessTTL = cfg.Auth.AccessTTL
	jwtCfg.RefreshTTL = cfg.Auth.RefreshTTL
	tokens := auth.NewTokenManager(jwtCfg, logger)
	authSvc := auth.NewService(st, tokens, jwtCfg, logger)

	var graphSvc graph.Service
	var graphGW *graph.Gateway
	if cfg.Graph.URI != "" {
		gcfg := graph.DefaultConfig()
		gcfg.URI = cfg.Graph.URI
		gcfg.Username = cfg.Graph.Username
		gcfg.Password = cfg.Graph.Password
		gcfg.Database = cfg.Graph.Database
		graphGW = graph.NewGateway(gcfg, logger)
		graphSvc = graphGW
	} else {
		logger.Warn("GRAPH_URI not set, provider lookups use the built-in directory")
		graphSvc = graph.NewMemoryGraph()
	}

	index := vector.Shared(cfg.Vector.IndexPath, logger)
	retriever := vector.NewRetriever(index, logger)

	lm := newLanguageModel(cfg, logger)

	workers := pool.NewWorkerPool(pool.DefaultConfig(), logger)
	orc := orchestrator.New(orchestrator.DefaultConfig(), lm, retriever, graphSvc, st, workers, logger)

	collector := metrics.NewCollector("arogya", logger)

	backends := map[string]handlers.Pinger{
		"database": pingFunc(gw.EnsureConnected),
		"cache":    cacheMgr,
	}
	if graphGW != nil {
		backends["graph"] = graphGW
	} else {
		backends["graph"] = nil
	}

	mux := handlers.NewRouter(handlers.RouterDeps{
		Orchestrator: orc,
		Store:        st,
		Auth:         authSvc,
		Collector:    collector,
		Backends:     backends,
		CacheTTL:     cfg.Cache.TTL,
		Version:      Version,
		Logger:       logger,
	})

	limiterCtx, cancelLimiter := context.WithCancel(context.Background())
	handler := api.Chain(mux,
		api.Recovery(logger),
		api.RequestID(),
		api.SecurityHeaders(),
		api.CORS(cfg.CORS.Origins, cfg.CORS.AllowCredentials),
		api.RateLimiter(limiterCtx, api.RateLimiterConfig{
			Limit:    cfg.RateLimit.Limit,
			Window:   cfg.RateLimit.Window,
			Disabled: cfg.RateLimit.Disabled,
		}, logger),
		api.JWTAuth(authSvc, authSkipPaths, logger),
		api.Metrics(collector),
		api.RequestLogger(logger),
	)

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout
	srvCfg.IdleTimeout = cfg.Server.IdleTimeout
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	return &application{
		config:  cfg,
		logger:  logger,
		cache:   cacheMgr,
		db:      gw,
		graphGW: graphGW,
		workers: workers,
		limiter: cancelLimiter,
		manager: server.NewManager(handler, srvCfg, logger),
	}, nil
}

// cacheConfig maps the service cache section onto the substrate config. The
// URL accepts either a redis:// URL or a bare host:port.
func cacheConfig(cfg *config.Config) cache.Config {
	c := cache.DefaultConfig()
	c.Enabled = cfg.Cache.Enabled
	c.DefaultTTL = cfg.Cache.TTL
	c.Version = cfg.Cache.Version
	c.CompressThreshold = cfg.Cache.CompressThreshold
	if cfg.Cache.URL != "" {
		if strings.Contains(cfg.Cache.URL, "://") {
			if opt, err := redis.ParseURL(cfg.Cache.URL); err == nil {
				c.Addr = opt.Addr
				c.Password = opt.Password
				c.DB = opt.DB
			}
		} else {
			c.Addr = cfg.Cache.URL
		}
	}
	if cfg.Cache.Token != "" {
		c.Password = cfg.Cache.Token
	}
	return c
}

func newLanguageModel(cfg *config.Config, logger *zap.Logger) *llm.Gateway {
	var providers []llm.Provider
	if cfg.LLM.Primary.BaseURL != "" {
		providers = append(providers, llm.NewOpenAIProvider(llm.OpenAIConfig{
			ProviderName: "primary",
			BaseURL:      cfg.LLM.Primary.BaseURL,
			APIKey:       cfg.LLM.Primary.APIKey,
			Model:        cfg.LLM.Primary.Model,
		}, logger))
	}
	if cfg.LLM.Fallback.BaseURL != "" {
		providers = append(providers, llm.NewOpenAIProvider(llm.OpenAIConfig{
			ProviderName: "fallback",
			BaseURL:      cfg.LLM.Fallback.BaseURL,
			APIKey:       cfg.LLM.Fallback.APIKey,
			Model:        cfg.LLM.Fallback.Model,
		}, logger))
	}
	if len(providers) == 0 {
		logger.Warn("no LM providers configured, chat requests will fail until one is set")
	}
	chain := llm.NewChain(llm.DefaultChainConfig(), logger, providers...)
	return llm.NewGateway(chain, llm.DefaultGatewayConfig(), logger)
}

// pingFunc adapts a probe function to the health handler's Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Start brings the listener up.
func (a *application) Start() error {
	return a.manager.Start()
}

// WaitForShutdown blocks until a signal or server error, then tears the
// components down in reverse dependency order.
func (a *application) WaitForShutdown() {
	a.manager.WaitForShutdown()

	a.limiter()
	a.workers.Close(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.graphGW != nil {
		if err := a.graphGW.Close(ctx); err != nil {
			a.logger.Warn("graph close failed", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close failed", zap.Error(err))
	}
}
