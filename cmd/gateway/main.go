package main

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumacart/order-gateway/internal/application/services"
	"github.com/lumacart/order-gateway/internal/config"
	"github.com/lumacart/order-gateway/internal/idempotency"
	"github.com/lumacart/order-gateway/internal/infrastructure/persistence"
	"github.com/lumacart/order-gateway/internal/infrastructure/persistence/postgres"
	"github.com/lumacart/order-gateway/internal/infrastructure/wechat"
	"github.com/lumacart/order-gateway/internal/interfaces/rest/handlers"
	"github.com/lumacart/order-gateway/internal/interfaces/rest/middleware"
	"github.com/lumacart/order-gateway/internal/lifecycle"
	"github.com/lumacart/order-gateway/internal/metrics"
	"github.com/lumacart/order-gateway/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting order gateway",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	privateKey, err := wechat.LoadPrivateKey(cfg.WeChat.PrivateKeyPath)
	if err != nil {
		logger.Error("failed to load merchant private key", "error", err)
		os.Exit(1)
	}

	serial, platformKey, err := wechat.LoadPlatformCertificate(cfg.WeChat.PlatformCertPath)
	if err != nil {
		logger.Error("failed to load platform certificate", "error", err)
		os.Exit(1)
	}

	crypto, err := wechat.NewCrypto([]byte(cfg.WeChat.APIV3Key), map[string]*rsa.PublicKey{
		serial: platformKey,
	})
	if err != nil {
		logger.Error("failed to build notification crypto", "error", err)
		os.Exit(1)
	}

	orderRepo := postgres.NewOrderRepository(db)
	notificationStore := postgres.NewNotificationStore(db)

	gatewayClient := wechat.NewClient(cfg.WeChat, privateKey)
	retryClient := wechat.NewRetryClient(gatewayClient, cfg.Retry)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	engine := lifecycle.NewEngine(logger)
	guard := idempotency.NewGuard(notificationStore)
	locks := idempotency.NewOrderLocks()

	orderService := services.NewOrderService(orderRepo, retryClient, engine, locks, m, logger)
	webhookService := services.NewWebhookService(
		orderRepo, crypto, engine, guard, locks, m, cfg.Webhook.TimestampSkew, logger,
	)

	h := handlers.NewHandlers(orderService, webhookService, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst, logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(
		orderRepo,
		retryClient,
		orderService,
		cfg.Worker.Interval,
		cfg.Worker.StaleAfter,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
