// The jobs binary is the scheduled maintenance command: one expiry pass
// over abandoned orders followed by one reconciliation sweep that settles
// attempts no online channel confirmed. It shares the service layer with
// the API server, so a sweep settlement is the same code path as a webhook
// one. Run it from cron or a scheduler; per-item failures are logged and
// skipped, only setup failures exit non-zero.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"topup-service/internal/bonus"
	"topup-service/internal/config"
	"topup-service/internal/db"
	"topup-service/internal/events"
	"topup-service/internal/gateway"
	"topup-service/internal/logger"
	"topup-service/internal/metrics"
	"topup-service/internal/repository/postgres"
	"topup-service/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, "topup-jobs")
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repos := postgres.NewRepositories(pool)
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

	settleSvc := services.NewSettlementService(repos.Atomic, repos.Orders, repos.Attempts, repos.Wallets, repos.Accounts, calc, bus, log)
	orderSvc := services.NewOrderService(cfg, repos.Atomic, repos.Orders, repos.Attempts, calc, registry, settleSvc, bus, log)
	sweeper := services.NewSweeper(cfg, repos.Orders, repos.Attempts, registry, settleSvc, log)

	log.Info("jobs starting", "cutoff", cfg.SweepCutoff, "expiry", cfg.ExpiryWindow)

	expired, err := orderSvc.ExpireStale(ctx)
	if err != nil {
		log.Error("order expiry failed", "err", err)
	}
	settled, err := sweeper.Reconcile(ctx)
	if err != nil {
		log.Error("reconcile sweep failed", "err", err)
	}
	log.Info("jobs finished", "expired", expired, "settled", settled)
}
