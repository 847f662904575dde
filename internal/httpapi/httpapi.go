package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/service"
	"salepoint/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	validate      *validator.Validate
	log           *zap.SugaredLogger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *zap.SugaredLogger) *API {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		validate:      validator.New(),
		log:           log,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.withHeaders)
	r.Use(a.withRequestLog)

	r.Get("/healthz", a.handleHealth)
	r.Post("/api/v1/auth/login", a.handleLogin)

	anyRole := []string{domain.RoleAdmin, domain.RoleCashier, domain.RoleCustomer}
	sellers := []string{domain.RoleAdmin, domain.RoleCashier}

	r.Get("/api/v1/products", a.requireAuth(a.handleListProducts, anyRole...))
	r.Post("/api/v1/products", a.requireAuth(a.handleCreateProduct, domain.RoleAdmin))

	r.Post("/api/v1/stock/check", a.requireAuth(a.handleStockCheck, anyRole...))

	r.Post("/api/v1/sales/commit", a.requireAuth(a.handleCommitSale, sellers...))
	r.Get("/api/v1/sales/{saleID}", a.requireAuth(a.handleGetSale, sellers...))
	r.Get("/api/v1/sales/{saleID}/receipt", a.requireAuth(a.handleReceipt, sellers...))

	r.Post("/api/v1/drafts", a.requireAuth(a.handleSaveDraft, anyRole...))
	r.Get("/api/v1/drafts", a.requireAuth(a.handleListDrafts, anyRole...))
	r.Get("/api/v1/drafts/{draftID}", a.requireAuth(a.handleLoadDraft, anyRole...))
	r.Delete("/api/v1/drafts/{draftID}", a.requireAuth(a.handleDeleteDraft, anyRole...))

	r.Get("/api/v1/cash-drawer", a.requireAuth(a.handleGetCashDrawer, sellers...))
	r.Post("/api/v1/cash-drawer/adjust", a.requireAuth(a.handleAdjustCashDrawer, domain.RoleAdmin))
	r.Get("/api/v1/cash-drawer/adjustments", a.requireAuth(a.handleListCashAdjustments, domain.RoleAdmin))

	r.Get("/api/v1/settings/tax", a.requireAuth(a.handleGetTaxConfig, sellers...))
	r.Put("/api/v1/settings/tax", a.requireAuth(a.handleUpdateTaxConfig, domain.RoleAdmin))

	r.Get("/api/v1/users", a.requireAuth(a.handleListUsers, domain.RoleAdmin))
	r.Post("/api/v1/users", a.requireAuth(a.handleCreateUser, domain.RoleAdmin))

	return r
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, err)
		return
	}

	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleStockCheck(w http.ResponseWriter, r *http.Request) {
	var req domain.StockCheckRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := a.service.CheckStock(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCommitSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCommitRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := a.service.CommitSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.service.BuildReceipt(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req domain.DraftSaveRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	draft, err := a.service.SaveDraft(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if req.DraftID != "" {
		status = http.StatusOK
	}
	a.writeJSON(w, status, draft)
}

func (a *API) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := a.service.ListDrafts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, domain.DraftListResponse{Drafts: drafts})
}

func (a *API) handleLoadDraft(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.LoadDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, cart)
}

func (a *API) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteDraft(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetCashDrawer(w http.ResponseWriter, r *http.Request) {
	drawer, err := a.service.GetCashDrawer(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, drawer)
}

func (a *API) handleAdjustCashDrawer(w http.ResponseWriter, r *http.Request) {
	var req domain.CashDrawerAdjustRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	drawer, err := a.service.AdjustCashDrawer(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, drawer)
}

func (a *API) handleListCashAdjustments(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	adjustments, err := a.service.ListCashAdjustments(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"adjustments": adjustments})
}

func (a *API) handleGetTaxConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.service.GetTaxConfig(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleUpdateTaxConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TaxConfig
	if !a.decodeAndValidate(w, r, &cfg) {
		return
	}

	if err := a.service.UpdateTaxConfig(r.Context(), cfg); err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers()})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := a.auth.CreateUser(req)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, user)
}

func (a *API) withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.Debugw("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(startedAt))
	})
}

func (a *API) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// writeServiceError translates the service error taxonomy into HTTP statuses.
// A guard rejection is a rapid duplicate trigger, not a business failure, so
// it maps to 429 and clients are expected to swallow it silently.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var stockErr *store.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		a.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"shortfalls": stockErr.Shortfalls,
		})
	case errors.Is(err, service.ErrCommitInFlight):
		a.writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": "commit already in flight",
		})
	case errors.Is(err, service.ErrInvalidPayment):
		a.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, service.ErrPermissionDenied):
		a.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, store.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, store.ErrInvalidSale),
		errors.Is(err, store.ErrConstraint):
		a.writeError(w, http.StatusBadRequest, err)
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses return a generic message so raw store errors never reach
	// clients; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		a.log.Errorw("internal error", "status", status, "error", err)
		msg = "internal server error"
	}
	a.writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
