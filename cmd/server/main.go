package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"km-backend/internal/archive"
	"km-backend/internal/auth"
	"km-backend/internal/billing"
	"km-backend/internal/cache"
	"km-backend/internal/config"
	"km-backend/internal/database"
	"km-backend/internal/db"
	"km-backend/internal/handlers"
	"km-backend/internal/health"
	h "km-backend/internal/http"
	"km-backend/internal/middleware"
	"km-backend/internal/models"
	"km-backend/internal/realtime"
	"km-backend/internal/repositories"
	"km-backend/internal/services"
	"km-backend/migrations"
)

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	migrateOnly := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := db.Connect(cfg)
	defer pool.Close()
	log.Printf("Connected to database: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// Run database migrations
	log.Println("Running database migrations...")
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := database.NewMigrator(pool, migrations.FS).RunMigrations(migrateCtx); err != nil {
		cancel()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	cancel()
	if *migrateOnly {
		return
	}

	// Initialize Redis cache (optional - reports are computed uncached without it)
	var redisUp func() bool
	if cfg.Redis.Enabled {
		if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			log.Printf("[Redis] Cache unavailable: %v (reports will not be cached)", err)
		} else {
			log.Println("[Redis] Cache connected successfully")
		}
		redisUp = cache.IsHealthy
		defer cache.Close()
	}

	// Raw callback archive (optional)
	var archiver handlers.CallbackArchiver
	store, err := archive.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Printf("[Archive] Disabled: %v", err)
	} else if store != nil {
		archiver = store
	}

	// Live settlement feed
	hub := realtime.NewHub()
	go hub.Run(ctx)

	// Initialize repositories
	paymentRepo := repositories.NewPaymentRepository(pool)
	checkoutRepo := repositories.NewCheckoutRepository(pool)
	groupRepo := repositories.NewGroupRepository(pool)
	studentRepo := repositories.NewStudentRepository(pool)
	auditLogRepo := repositories.NewAuditLogRepository(pool)

	// Every committed money movement reaches the dashboards and drops cached reports
	notifier := services.Notifiers{
		hub,
		services.NotifierFunc(func(ctx context.Context, event models.SettlementEvent) {
			cache.InvalidatePaymentCaches(ctx)
		}),
	}

	// Initialize services
	tx := services.NewPgTxRunner(pool)
	allocator := services.NewAllocationService(billing.FanLabelResolver{})
	checkoutService := services.NewCheckoutService(tx, allocator, checkoutRepo, studentRepo, groupRepo, notifier, cfg.Billing.PublicBaseURL)
	paymentService := services.NewPaymentService(tx, allocator, paymentRepo, studentRepo, groupRepo, notifier,
		time.Duration(cfg.Billing.ReportCacheMinutes)*time.Minute)
	receiptService := services.NewReceiptService(checkoutRepo, studentRepo, paymentRepo)

	// Initialize handlers
	jwtManager := auth.NewJWTManager(cfg)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	healthHandler := handlers.NewHealthHandler(health.NewHealthChecker(pool, redisUp, hub.ClientCount))
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, receiptService)
	gatewayHandler := handlers.NewPaymentGatewayHandler(checkoutService, archiver,
		cfg.Billing.RequireCallbackToken, cfg.Billing.MockPayEnabled)
	auditLogHandler := handlers.NewAuditLogHandler(auditLogRepo)

	middleware.SetTrustedProxies(cfg.Server.TrustedProxies)
	callbackLimiter := middleware.NewRateLimiter(cfg.Billing.CallbackRatePerMinute, cfg.Billing.CallbackBurst)
	go callbackLimiter.Cleanup(ctx, 5*time.Minute)

	if cfg.Billing.MockPayEnabled {
		log.Println("WARNING: mock pay endpoint is enabled, checkouts can be settled without a provider")
	}

	router := h.NewRouter(paymentHandler, checkoutHandler, gatewayHandler, auditLogHandler, healthHandler,
		hub.HandleWebSocket, authMiddleware, callbackLimiter)

	// Wrap with panic recovery and CORS
	handler := middleware.PanicRecovery(middleware.NewCORS(cfg)(router))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
	}()

	// Start server
	log.Printf("Server running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
}
