package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"km-backend/internal/auth"
	"km-backend/internal/config"
	"km-backend/internal/handlers"
	"km-backend/internal/health"
	"km-backend/internal/middleware"
	"km-backend/internal/models"
	"km-backend/internal/services"
)

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

type stubPayments struct{}

func (stubPayments) List(ctx context.Context, filter models.PaymentFilter, scope models.EnrollmentScope) (*models.PaymentListResponse, error) {
	return &models.PaymentListResponse{OK: true, Payments: []models.PaymentListRow{}}, nil
}

func (stubPayments) CuratorPayments(ctx context.Context, curatorID string, filter models.PaymentFilter) (*models.PaymentListResponse, error) {
	return &models.PaymentListResponse{OK: true, Payments: []models.PaymentListRow{}}, nil
}

func (stubPayments) CreateManual(ctx context.Context, req models.CreatePaymentRequest, actor models.Actor) (*models.Payment, error) {
	return &models.Payment{}, nil
}

func (stubPayments) AllocateManual(ctx context.Context, req models.AllocatePaymentRequest, actor models.Actor) (*models.AllocationResult, error) {
	return &models.AllocationResult{}, nil
}

func (stubPayments) Delete(ctx context.Context, id string, actor models.Actor) error { return nil }

func (stubPayments) Debtors(ctx context.Context, filter models.PaymentFilter) (*models.DebtorReport, error) {
	return &models.DebtorReport{OK: true}, nil
}

type stubCheckouts struct{}

func (stubCheckouts) Create(ctx context.Context, req models.CreateCheckoutRequest) (*models.CreateCheckoutResponse, error) {
	return &models.CreateCheckoutResponse{}, nil
}

func (stubCheckouts) Get(ctx context.Context, id string) (*models.PaymentCheckout, error) {
	return nil, services.ErrCheckoutNotFound
}

func (stubCheckouts) GetReceiptData(ctx context.Context, checkoutID string) (*services.ReceiptData, error) {
	return nil, services.ErrCheckoutNotPaid
}

func (stubCheckouts) GenerateCheckoutPDF(data *services.ReceiptData) ([]byte, error) {
	return nil, nil
}

func (stubCheckouts) ApplyCheckoutPayment(ctx context.Context, in models.ApplyCheckoutInput) (*models.SettlementResult, error) {
	return &models.SettlementResult{CheckoutID: in.CheckoutID, Status: models.CheckoutStatusPaid}, nil
}

func (stubCheckouts) MarkFailed(ctx context.Context, in models.ApplyCheckoutInput) (models.CheckoutStatus, error) {
	return models.CheckoutStatusFailed, nil
}

type stubAudit struct{}

func (stubAudit) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	return nil, nil
}

func testRouter(t *testing.T) (http.Handler, *auth.JWTManager) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "router-test-secret"
	jwtManager := auth.NewJWTManager(cfg)

	router := NewRouter(
		handlers.NewPaymentHandler(stubPayments{}),
		handlers.NewCheckoutHandler(stubCheckouts{}, stubCheckouts{}),
		handlers.NewPaymentGatewayHandler(stubCheckouts{}, nil, true, false),
		handlers.NewAuditLogHandler(stubAudit{}),
		handlers.NewHealthHandler(health.NewHealthChecker(okPinger{}, nil, nil)),
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		middleware.NewAuthMiddleware(jwtManager),
		middleware.NewRateLimiter(600, 100),
	)
	return router, jwtManager
}

func TestRouterAccess(t *testing.T) {
	router, jwtManager := testRouter(t)
	adminToken, _ := jwtManager.GenerateToken("admin-1", auth.RoleAdmin, time.Hour)
	curatorToken, _ := jwtManager.GenerateToken("cur-1", auth.RoleCurator, time.Hour)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is public", "GET", "/health", "", http.StatusOK},
		{"readiness", "GET", "/health/ready", "", http.StatusOK},
		{"metrics is public", "GET", "/metrics", "", http.StatusOK},
		{"admin list needs a token", "GET", "/api/admin/payments", "", http.StatusUnauthorized},
		{"admin list rejects curators", "GET", "/api/admin/payments", curatorToken, http.StatusForbidden},
		{"admin list", "GET", "/api/admin/payments", adminToken, http.StatusOK},
		{"debtors route wins over {id}", "GET", "/api/admin/payments/debtors", adminToken, http.StatusOK},
		{"unknown checkout", "GET", "/api/admin/checkouts/c404", adminToken, http.StatusNotFound},
		{"unpaid receipt", "GET", "/api/admin/checkouts/c1/receipt.pdf", adminToken, http.StatusConflict},
		{"audit logs", "GET", "/api/admin/audit-logs", adminToken, http.StatusOK},
		{"curator list", "GET", "/api/curator/payments", curatorToken, http.StatusOK},
		{"curator list rejects admins", "GET", "/api/curator/payments", adminToken, http.StatusForbidden},
		{"callback is public", "GET", "/api/payment-gateway/callback/click?checkoutId=c1&token=t", "", http.StatusOK},
		{"mock pay disabled", "GET", "/api/payment-gateway/mock-pay?checkoutId=c1", "", http.StatusNotFound},
		{"feed needs admin", "GET", "/ws/settlements", curatorToken, http.StatusForbidden},
		{"feed", "GET", "/ws/settlements", adminToken, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}
