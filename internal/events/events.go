// Package events fans settlement results out to interested listeners
// (notification log, metrics) without blocking the settlement path.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zoobzio/hookz"
)

const (
	PaymentSettled hookz.Key = "payment.settled"
	OrderCancelled hookz.Key = "order.cancelled"
)

// SettlementEvent is emitted exactly once per settled attempt, after the
// database transaction committed.
type SettlementEvent struct {
	AttemptID   string          `json:"attempt_id"`
	OrderID     string          `json:"order_id"`
	AccountID   string          `json:"account_id"`
	Username    string          `json:"username,omitempty"`
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Bonus       decimal.Decimal `json:"bonus"`
	Total       decimal.Decimal `json:"total"`
	Trigger     string          `json:"trigger"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Bus wraps the hook system with the event types this service emits.
type Bus struct {
	hooks *hookz.Hooks[SettlementEvent]
	log   *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		hooks: hookz.New[SettlementEvent](hookz.WithWorkers(4), hookz.WithTimeout(5*time.Second)),
		log:   log,
	}
}

// Subscribe registers a listener for an event key.
func (b *Bus) Subscribe(key hookz.Key, fn func(context.Context, SettlementEvent) error) error {
	_, err := b.hooks.Hook(key, fn)
	return err
}

// Publish emits asynchronously; a saturated queue is logged, never fatal.
func (b *Bus) Publish(ctx context.Context, key hookz.Key, ev SettlementEvent) {
	if err := b.hooks.Emit(ctx, key, ev); err != nil {
		b.log.Warn("event emission dropped", "key", key, "attempt_id", ev.AttemptID, "err", err)
	}
}

func (b *Bus) Close() error { return b.hooks.Close() }

// RegisterStaffNotifier logs every settlement for the staff audit feed,
// standing in for the original staff notification channel.
func RegisterStaffNotifier(b *Bus, log *slog.Logger) error {
	return b.Subscribe(PaymentSettled, func(ctx context.Context, ev SettlementEvent) error {
		log.Info("payment settled",
			"account_id", ev.AccountID,
			"username", ev.Username,
			"method", ev.Method,
			"amount", ev.Amount.StringFixed(2),
			"bonus", ev.Bonus.StringFixed(2),
			"total", ev.Total.StringFixed(2),
			"trigger", ev.Trigger,
		)
		return nil
	})
}
