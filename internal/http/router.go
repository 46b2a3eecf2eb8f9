package http

import (
	"net/http"

	"km-backend/internal/handlers"
	"km-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	paymentHandler *handlers.PaymentHandler,
	checkoutHandler *handlers.CheckoutHandler,
	gatewayHandler *handlers.PaymentGatewayHandler,
	auditLogHandler *handlers.AuditLogHandler,
	healthHandler *handlers.HealthHandler,
	settlementFeed http.HandlerFunc,
	authMiddleware *middleware.AuthMiddleware,
	callbackLimiter *middleware.RateLimiter,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.APILogging)

	// Public provider endpoints, rate limited per client IP
	gatewayAPI := r.PathPrefix("/api/payment-gateway").Subrouter()
	gatewayAPI.Use(callbackLimiter.Middleware)
	gatewayAPI.HandleFunc("/callback/{provider}", gatewayHandler.Callback).Methods("GET", "POST")
	gatewayAPI.HandleFunc("/mock-pay", gatewayHandler.MockPay).Methods("GET")

	// Admin API
	adminAPI := r.PathPrefix("/api/admin").Subrouter()
	adminAPI.Use(authMiddleware.RequireAdmin)
	adminAPI.HandleFunc("/payments", paymentHandler.List).Methods("GET")
	adminAPI.HandleFunc("/payments", paymentHandler.Create).Methods("POST")
	adminAPI.HandleFunc("/payments/allocate", paymentHandler.Allocate).Methods("POST")
	adminAPI.HandleFunc("/payments/debtors", paymentHandler.Debtors).Methods("GET")
	adminAPI.HandleFunc("/payments/{id}", paymentHandler.Delete).Methods("DELETE")
	adminAPI.HandleFunc("/checkouts", checkoutHandler.Create).Methods("POST")
	adminAPI.HandleFunc("/checkouts/{id}", checkoutHandler.Get).Methods("GET")
	adminAPI.HandleFunc("/checkouts/{id}/receipt.pdf", checkoutHandler.Receipt).Methods("GET")
	adminAPI.HandleFunc("/audit-logs", auditLogHandler.List).Methods("GET")

	// Curator API
	curatorAPI := r.PathPrefix("/api/curator").Subrouter()
	curatorAPI.Use(authMiddleware.RequireCurator)
	curatorAPI.HandleFunc("/payments", paymentHandler.CuratorList).Methods("GET")

	// Live settlement feed for the admin dashboard
	r.Handle("/ws/settlements", authMiddleware.RequireAdmin(settlementFeed)).Methods("GET")

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
