package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"comptoir/backend/internal/cache"
	"comptoir/backend/internal/domain"
	"comptoir/backend/internal/loyalty"
	"comptoir/backend/internal/service"
	"comptoir/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NewNoop(), zap.NewNop().Sugar(), loyalty.Config{
		SilverThreshold: 500,
		GoldThreshold:   1500,
		RatePercent:     0.5,
	}, "magasin-principal")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, zap.NewNop().Sugar(), "*")
}

func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return body.AccessToken
}

func doJSON(handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(api.Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	api := newTestAPI(t)
	rec := doJSON(api.Handler(), http.MethodGet, "/api/v1/sales", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "vendeur", "seller123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		ClientID:    "cli-demo-awa",
		IsCredit:    true,
		TotalAmount: 10000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.StatusLabel != domain.LabelAwaiting {
		t.Fatalf("expected label %q, got %q", domain.LabelAwaiting, created.StatusLabel)
	}

	payPath := fmt.Sprintf("/api/v1/sales/%s/payments", created.Sale.ID)
	rec = doJSON(handler, http.MethodPost, payPath, token, domain.PaymentRequest{Amount: 4000, Method: domain.PayCash})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var paid domain.PaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if paid.RemainingAmount != 6000 || paid.StatusLabel != domain.LabelPartiallyPaid {
		t.Fatalf("unexpected payment response: %+v", paid)
	}

	rec = doJSON(handler, http.MethodPost, payPath, token, domain.PaymentRequest{Amount: 6001, Method: domain.PayCash})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overpayment: expected 400, got %d", rec.Code)
	}

	rec = doJSON(handler, http.MethodPost, payPath, token, domain.PaymentRequest{Amount: 6000, Method: domain.PayOrangeMoney})
	if rec.Code != http.StatusOK {
		t.Fatalf("final payment: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if paid.StatusLabel != domain.LabelPaid {
		t.Fatalf("expected label %q, got %q", domain.LabelPaid, paid.StatusLabel)
	}
	if paid.Accrual == nil || paid.Accrual.PointsAdded != 50 {
		t.Fatalf("expected 50 accrued points, got %+v", paid.Accrual)
	}

	rec = doJSON(handler, http.MethodPost, payPath, token, domain.PaymentRequest{Amount: 1, Method: domain.PayCash})
	if rec.Code != http.StatusConflict {
		t.Fatalf("payment on settled sale: expected 409, got %d", rec.Code)
	}
}

func TestUnknownSaleReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "vendeur", "seller123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/sales/sale-missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelRequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	sellerToken := loginToken(t, handler, "vendeur", "seller123")
	adminToken := loginToken(t, handler, "admin", "admin123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", sellerToken, domain.SaleCreateRequest{
		ClientID:    "cli-demo-awa",
		IsCredit:    true,
		TotalAmount: 5000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", rec.Code)
	}
	var created domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	cancelPath := fmt.Sprintf("/api/v1/sales/%s/cancel", created.Sale.ID)
	rec = doJSON(handler, http.MethodPost, cancelPath, sellerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("seller cancel: expected 403, got %d", rec.Code)
	}

	rec = doJSON(handler, http.MethodPost, cancelPath, adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin cancel: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestSaleListRejectsMalformedDates(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "vendeur", "seller123")

	for _, path := range []string{
		"/api/v1/sales?from=notadate",
		"/api/v1/sales?to=2026-13-45",
	} {
		rec := doJSON(handler, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	rec := doJSON(handler, http.MethodGet, "/api/v1/sales?from=2026-01-01T00:00:00Z", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid date filter: expected 200, got %d", rec.Code)
	}
}

func TestDashboardStatsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "vendeur", "seller123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		TotalAmount: 8000,
		Payments:    domain.PaymentBreakdown{domain.PayCash: 8000},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sale: expected 201, got %d", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	var stats domain.DashboardStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.SalesTotal != 1 || stats.SalesByLabel[domain.LabelFinished] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPaymentMethodsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "vendeur", "seller123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/payment-methods", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Methods []domain.PaymentMethod `json:"methods"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode methods: %v", err)
	}
	if len(body.Methods) != 7 {
		t.Fatalf("expected 7 payment methods, got %d", len(body.Methods))
	}
}
