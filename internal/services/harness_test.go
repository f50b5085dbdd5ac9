package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"topup-service/internal/bonus"
	"topup-service/internal/config"
	"topup-service/internal/events"
	"topup-service/internal/gateway"
	"topup-service/internal/models"
	"topup-service/internal/worker"
)

type testEnv struct {
	store    *fakeStore
	accounts *fakeAccounts
	wallets  *fakeWallets
	orders   *fakeOrders
	attempts *fakeAttempts
	tiers    *fakeTiers
	hooks    *fakeHooks
	gw       *fakeAdapter

	settle  *SettlementService
	orderS  *OrderService
	payS    *PaymentService
	sweeper *Sweeper
	walletS *WalletService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	e := &testEnv{
		store:    store,
		accounts: &fakeAccounts{s: store},
		wallets:  &fakeWallets{s: store},
		orders:   &fakeOrders{s: store},
		attempts: &fakeAttempts{s: store},
		tiers:    &fakeTiers{s: store},
		hooks:    &fakeHooks{s: store},
		gw:       newFakeAdapter("fakepay"),
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(log)
	t.Cleanup(func() { _ = bus.Close() })

	cfg := config.Config{
		Methods:         []string{"fakepay"},
		DuplicateWindow: 2 * time.Hour,
		ExpiryWindow:    48 * time.Hour,
		SweepCutoff:     5 * time.Minute,
	}
	calc := bonus.NewCalculator(e.tiers)
	registry := gateway.NewRegistry(e.gw)
	pool := worker.NewPool(2, 64)
	t.Cleanup(pool.Stop)

	e.settle = NewSettlementService(store, e.orders, e.attempts, e.wallets, e.accounts, calc, bus, log)
	e.orderS = NewOrderService(cfg, store, e.orders, e.attempts, calc, registry, e.settle, bus, log)
	e.payS = NewPaymentService(store, e.orders, e.attempts, e.hooks, registry, e.settle, pool, log)
	e.sweeper = NewSweeper(cfg, e.orders, e.attempts, registry, e.settle, log)
	e.walletS = NewWalletService(e.wallets)
	return e
}

func (e *testEnv) seedTier(t *testing.T, min, max string, percent string, ordinal int) {
	t.Helper()
	tier := models.BonusTier{
		MinAmount:   dec(min),
		Percent:     dec(percent),
		Description: percent + "% tier",
		Ordinal:     ordinal,
		Active:      true,
	}
	if max != "" {
		m := dec(max)
		tier.MaxAmount = &m
	}
	_, err := e.tiers.Create(context.Background(), tier)
	require.NoError(t, err)
}

func (e *testEnv) seedAccount(t *testing.T) models.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), "buyer", "buyer@example.com", "x", "user")
	require.NoError(t, err)
	return a
}

// seedPaidSetup creates an account with a pending order and attempt, ready
// to settle.
func (e *testEnv) seedOrderWithAttempt(t *testing.T, accountID, amount string) (models.Order, models.PaymentAttempt) {
	t.Helper()
	ctx := context.Background()
	order, _, err := e.orderS.Create(ctx, accountID, dec(amount), "fakepay")
	require.NoError(t, err)
	att, err := e.payS.OpenCheckout(ctx, accountID, order.ID)
	require.NoError(t, err)
	return order, att
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
