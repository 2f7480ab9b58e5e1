package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/arogyahq/arogya/api"
	"github.com/arogyahq/arogya/auth"
	"github.com/arogyahq/arogya/internal/database"
	"github.com/arogyahq/arogya/store"
)

// Budgets on the IP-reputation read path. A reply must never wait on a slow
// backend; on timeout the default verdict is served and cached briefly.
const (
	ipCheckDBBudget    = 100 * time.Millisecond
	ipCheckCacheBudget = 30 * time.Millisecond
	ipCheckDefaultTTL  = 30 * time.Second
)

// AuthHandler serves the account endpoints and the IP-reputation check.
type AuthHandler struct {
	svc    *auth.Service
	store  *store.Store
	logger *zap.Logger
}

// NewAuthHandler wires the auth endpoints.
func NewAuthHandler(svc *auth.Service, st *store.Store, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		store:  st,
		logger: logger.With(zap.String("component", "auth_handler")),
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := api.ValidateEmail(req.Email); err != nil {
		WriteError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	customer, err := h.svc.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		WriteError(w, http.StatusBadRequest, "validation", err.Error())
		return
	case errors.Is(err, auth.ErrEmailTaken):
		WriteError(w, http.StatusBadRequest, "conflict", "email already registered")
		return
	case err != nil:
		WriteStoreError(w, h.logger, err)
		return
	}

	h.observeIP(r, true, customer.ID)
	WriteJSON(w, http.StatusCreated, customerView(customer))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, customer, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}
	if err != nil {
		WriteStoreError(w, h.logger, err)
		return
	}

	h.observeIP(r, true, customer.ID)
	WriteJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh with rotation.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		return
	}
	WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout. Unknown tokens are a silent no-op.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req api.LogoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warn("logout revocation failed", zap.Error(err))
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// CheckIP handles GET /auth/check-ip: the cached reputation verdict for the
// caller's address. The endpoint is unauthenticated but binds the customer id
// when a valid token rides along.
func (h *AuthHandler) CheckIP(w http.ResponseWriter, r *http.Request) {
	ip := api.ClientIP(r)
	key := h.store.Cache().Keys().IPCheck(ip)

	var cached api.IPCheckResponse
	cacheCtx, cancel := context.WithTimeout(r.Context(), ipCheckCacheBudget)
	err := h.store.Cache().GetFast(cacheCtx, key, &cached)
	cancel()
	if err == nil {
		w.Header().Set("X-Cache", "HIT")
		WriteJSON(w, http.StatusOK, cached)
		return
	}

	authenticated, customerID := h.callerFromToken(r)

	dbCtx, cancel := context.WithTimeout(r.Context(), ipCheckDBBudget)
	obs, err := h.store.UpsertIPObservation(dbCtx, ip, authenticated, customerID)
	cancel()
	if err != nil {
		// Budget exceeded or backend down: serve the default verdict and
		// pin it briefly so retries do not hammer the database.
		resp := api.IPCheckResponse{IP: ip}
		_ = h.store.Cache().Set(r.Context(), key, resp, ipCheckDefaultTTL)
		w.Header().Set("X-Cache", "MISS")
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	resp := ipView(ip, obs)
	_ = h.store.Cache().Set(r.Context(), key, resp, 5*time.Minute)
	w.Header().Set("X-Cache", "MISS")
	WriteJSON(w, http.StatusOK, resp)
}

// callerFromToken best-effort verifies a bearer token on an endpoint that
// does not require one.
func (h *AuthHandler) callerFromToken(r *http.Request) (bool, string) {
	if id, ok := callerIdentity(r); ok {
		return true, id.CustomerID
	}
	token, ok := api.BearerToken(r)
	if !ok {
		return false, ""
	}
	claims, err := h.svc.Verify(token)
	if err != nil {
		return false, ""
	}
	return true, claims.Subject
}

func (h *AuthHandler) observeIP(r *http.Request, authenticated bool, customerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), ipCheckDBBudget)
	defer cancel()
	if _, err := h.store.UpsertIPObservation(ctx, api.ClientIP(r), authenticated, customerID); err != nil {
		h.logger.Debug("ip observation skipped", zap.Error(err))
	}
}

func customerView(c *database.Customer) api.CustomerResponse {
	return api.CustomerResponse{
		ID:        c.ID,
		Email:     c.Email,
		Role:      c.Role,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ipView(ip string, obs *database.IPAddress) api.IPCheckResponse {
	return api.IPCheckResponse{
		IP:               ip,
		Known:            true,
		VisitCount:       obs.VisitCount,
		HasAuthenticated: obs.HasAuthenticated,
		FirstSeen:        obs.FirstSeen.UTC().Format(time.RFC3339),
		LastSeen:         obs.LastSeen.UTC().Format(time.RFC3339),
	}
}
