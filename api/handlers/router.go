package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arogyahq/arogya/auth"
	"github.com/arogyahq/arogya/internal/metrics"
	"github.com/arogyahq/arogya/orchestrator"
	"github.com/arogyahq/arogya/store"
)

// RouterDeps carries everything the route table needs.
type RouterDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *store.Store
	Auth         *auth.Service
	Collector    *metrics.Collector
	Backends     map[string]Pinger
	CacheTTL     time.Duration
	Version      string
	Logger       *zap.Logger
}

// NewRouter assembles the route table. Middleware (auth, rate limiting,
// CORS, logging) wraps the returned mux in the server entrypoint.
func NewRouter(deps RouterDeps) *http.ServeMux {
	chat := NewChatHandler(deps.Orchestrator, deps.Logger)
	sessions := NewSessionHandler(deps.Store, deps.CacheTTL, deps.Logger)
	account := NewAuthHandler(deps.Auth, deps.Store, deps.Logger)
	health := NewHealthHandler(deps.Version, deps.Backends, deps.Logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", chat.Chat)
	mux.HandleFunc("POST /chat/stream", chat.ChatStream)

	mux.HandleFunc("GET /session/{sid}", sessions.Get)
	mux.HandleFunc("GET /session/{sid}/messages", sessions.Messages)
	mux.HandleFunc("DELETE /session/{sid}", sessions.Delete)
	mux.HandleFunc("GET /customer/{uid}/sessions", sessions.List)
	mux.HandleFunc("POST /message/{mid}/feedback", sessions.Feedback)

	mux.HandleFunc("POST /auth/register", account.Register)
	mux.HandleFunc("POST /auth/login", account.Login)
	mux.HandleFunc("POST /auth/refresh", account.Refresh)
	mux.HandleFunc("POST /auth/logout", account.Logout)
	mux.HandleFunc("GET /auth/check-ip", account.CheckIP)

	mux.HandleFunc("GET /health", health.Live)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.HandleFunc("GET /version", health.Version)
	if deps.Collector != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(
			deps.Collector.Registry(), promhttp.HandlerOpts{}))
	}

	return mux
}
