// Package httpapi exposes the service over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"comptoir/backend/internal/domain"
	"comptoir/backend/internal/payment"
	"comptoir/backend/internal/service"
	"comptoir/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.SugaredLogger
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, logger *zap.SugaredLogger, allowedOrigin string) *API {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        logger,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
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

	r.Get("/healthz", a.handleHealth)
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Get("/api/v1/payment-methods", a.requireAuth(a.handlePaymentMethods, "seller", "admin"))

	r.Post("/api/v1/sales", a.requireAuth(a.handleSaleCreate, "seller", "admin"))
	r.Get("/api/v1/sales", a.requireAuth(a.handleSaleList, "seller", "admin"))
	r.Get("/api/v1/sales/{saleID}", a.requireAuth(a.handleSaleGet, "seller", "admin"))
	r.Post("/api/v1/sales/{saleID}/payments", a.requireAuth(a.handleSalePayment, "seller", "admin"))
	r.Post("/api/v1/sales/{saleID}/cancel", a.requireAuth(a.handleSaleCancel, "admin"))

	r.Post("/api/v1/clients", a.requireAuth(a.handleClientCreate, "seller", "admin"))
	r.Get("/api/v1/clients", a.requireAuth(a.handleClientList, "seller", "admin"))
	r.Get("/api/v1/clients/{clientID}", a.requireAuth(a.handleClientGet, "seller", "admin"))
	r.Patch("/api/v1/clients/{clientID}", a.requireAuth(a.handleClientUpdate, "seller", "admin"))
	r.Get("/api/v1/clients/{clientID}/loyalty-history", a.requireAuth(a.handleLoyaltyHistory, "seller", "admin"))

	r.Post("/api/v1/reservations", a.requireAuth(a.handleReservationCreate, "seller", "admin"))
	r.Get("/api/v1/reservations", a.requireAuth(a.handleReservationList, "seller", "admin"))
	r.Post("/api/v1/reservations/{reservationID}/convert", a.requireAuth(a.handleReservationConvert, "seller", "admin"))

	r.Post("/api/v1/service-requests", a.requireAuth(a.handleServiceRequestCreate, "seller", "admin"))
	r.Get("/api/v1/service-requests", a.requireAuth(a.handleServiceRequestList, "seller", "admin"))
	r.Patch("/api/v1/service-requests/{requestID}", a.requireAuth(a.handleServiceRequestUpdate, "seller", "admin"))

	r.Get("/api/v1/dashboard/stats", a.requireAuth(a.handleDashboardStats, "seller", "admin"))

	r.Post("/api/v1/users/sellers", a.requireAuth(a.handleSellerCreate, "admin"))
	r.Get("/api/v1/users/sellers", a.requireAuth(a.handleSellerList, "admin"))

	return a.withMiddleware(r)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(a.logger, w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(a.logger, w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(a.logger, w, http.StatusForbidden, errors.New("forbidden role"))
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

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(a.logger, w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(a.logger, w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"methods": domain.PaymentMethods(),
	})
}

func (a *API) handleSaleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.RecordSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleSaleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.SaleFilter{
		StoreID:  query.Get("store_id"),
		ClientID: query.Get("client_id"),
		Status:   domain.SaleStatus(query.Get("status")),
		Limit:    parsePositiveLimit(query.Get("limit"), 100, 500),
	}
	if raw := query.Get("is_credit"); raw != "" {
		isCredit := raw == "true" || raw == "1"
		filter.IsCredit = &isCredit
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(a.logger, w, http.StatusBadRequest, fmt.Errorf("invalid from date %q: must be RFC3339", raw))
			return
		}
		filter.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(a.logger, w, http.StatusBadRequest, fmt.Errorf("invalid to date %q: must be RFC3339", raw))
			return
		}
		filter.To = to
	}

	resp, err := a.service.ListSales(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaleGet(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSalePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.ApplyPayment(r.Context(), chi.URLParam(r, "saleID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSaleCancel(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.CancelSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleClientCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	client, err := a.service.CreateClient(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (a *API) handleClientList(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	clients, err := a.service.ListClients(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (a *API) handleClientGet(w http.ResponseWriter, r *http.Request) {
	client, err := a.service.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (a *API) handleClientUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	client, err := a.service.UpdateClient(r.Context(), chi.URLParam(r, "clientID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (a *API) handleLoyaltyHistory(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200)
	entries, err := a.service.ListLoyaltyHistory(r.Context(), chi.URLParam(r, "clientID"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ReservationCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	reservation, err := a.service.CreateReservation(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (a *API) handleReservationList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	reservations, err := a.service.ListReservations(r.Context(), query.Get("store_id"), domain.ReservationStatus(query.Get("status")), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (a *API) handleReservationConvert(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ConvertReservation(r.Context(), chi.URLParam(r, "reservationID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleServiceRequestCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceRequestCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	request, err := a.service.CreateServiceRequest(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (a *API) handleServiceRequestList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	requests, err := a.service.ListServiceRequests(r.Context(), query.Get("store_id"), domain.ServiceRequestStatus(query.Get("status")), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_requests": requests})
}

func (a *API) handleServiceRequestUpdate(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceRequestUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	request, err := a.service.UpdateServiceRequest(r.Context(), chi.URLParam(r, "requestID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.DashboardStats(r.Context(), r.URL.Query().Get("store_id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleSellerCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.SellerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	seller, err := a.auth.CreateSeller(req)
	if err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, seller)
}

func (a *API) handleSellerList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sellers": a.auth.ListSellers()})
}

// writeServiceError maps service and store errors to HTTP statuses. Revision
// conflicts surface as 409 so the client can re-read and retry.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(a.logger, w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrRevisionConflict):
		writeError(a.logger, w, http.StatusConflict, err)
	case errors.Is(err, service.ErrSaleCancelled), errors.Is(err, service.ErrSaleClosed):
		writeError(a.logger, w, http.StatusConflict, err)
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, store.ErrInvalidRecord),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrExceedsBalance),
		errors.Is(err, payment.ErrInvalidMethod):
		writeError(a.logger, w, http.StatusBadRequest, err)
	default:
		writeError(a.logger, w, http.StatusInternalServerError, err)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Infow("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
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

func writeError(logger *zap.SugaredLogger, w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message so internals never leak to clients.
	msg := err.Error()
	if status >= 500 {
		if logger != nil {
			logger.Errorw("internal error", "status", status, "error", err)
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
