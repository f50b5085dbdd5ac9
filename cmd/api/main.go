package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topup-service/internal/api"
	"topup-service/internal/auth"
	"topup-service/internal/bonus"
	"topup-service/internal/config"
	"topup-service/internal/db"
	"topup-service/internal/events"
	"topup-service/internal/gateway"
	"topup-service/internal/logger"
	"topup-service/internal/metrics"
	"topup-service/internal/repository/postgres"
	"topup-service/internal/services"
	"topup-service/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "topup-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4, 1024)
	defer wp.Stop()

	bus := events.NewBus(log)
	defer func() { _ = bus.Close() }()
	if err := events.RegisterStaffNotifier(bus, log); err != nil {
		log.Error("event subscription", "err", err)
		os.Exit(1)
	}

	registry := gateway.NewRegistry(
		gateway.NewMercadoPago(cfg.MercadoPago, cfg.ReturnBaseURL, cfg.GatewayTimeout),
		gateway.NewStripe(cfg.Stripe, cfg.ReturnBaseURL, cfg.GatewayTimeout),
	)
	calc := bonus.NewCalculator(repos.BonusTiers)
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)

	settleSvc := services.NewSettlementService(repos.Atomic, repos.Orders, repos.Attempts, repos.Wallets, repos.Accounts, calc, bus, log)
	orderSvc := services.NewOrderService(cfg, repos.Atomic, repos.Orders, repos.Attempts, calc, registry, settleSvc, bus, log)
	paymentSvc := services.NewPaymentService(repos.Atomic, repos.Orders, repos.Attempts, repos.WebhookEvents, registry, settleSvc, wp, log)
	sweeper := services.NewSweeper(cfg, repos.Orders, repos.Attempts, registry, settleSvc, log)
	accountSvc := services.NewAccountService(repos.Accounts, tm)
	walletSvc := services.NewWalletService(repos.Wallets)

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:        cfg,
		TM:         tm,
		AccountSvc: accountSvc,
		OrderSvc:   orderSvc,
		PaymentSvc: paymentSvc,
		WalletSvc:  walletSvc,
		Sweeper:    sweeper,
		Tiers:      repos.BonusTiers,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "methods", cfg.Methods)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
