package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"topup-service/internal/bonus"
	"topup-service/internal/events"
	"topup-service/internal/metrics"
	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

// Trigger labels name the path that asked for a settlement. Every path
// funnels into the same Settle call; the label only feeds metrics and the
// audit event.
const (
	TriggerWebhook = "webhook"
	TriggerReturn  = "return"
	TriggerPoll    = "poll"
	TriggerSweep   = "sweep"
	TriggerManual  = "manual"
)

// SettlementService owns the single money-moving operation in the system.
// Everything else (webhooks, returns, polls, sweeps, staff confirmation)
// reduces to Settle, which is safe to call any number of times from any
// number of goroutines for the same attempt.
type SettlementService struct {
	atomic   repo.Atomic
	orders   repo.Orders
	attempts repo.Attempts
	wallets  repo.Wallets
	accounts repo.Accounts
	calc     *bonus.Calculator
	bus      *events.Bus
	log      *slog.Logger
}

func NewSettlementService(
	atomic repo.Atomic,
	orders repo.Orders,
	attempts repo.Attempts,
	wallets repo.Wallets,
	accounts repo.Accounts,
	calc *bonus.Calculator,
	bus *events.Bus,
	log *slog.Logger,
) *SettlementService {
	return &SettlementService{
		atomic:   atomic,
		orders:   orders,
		attempts: attempts,
		wallets:  wallets,
		accounts: accounts,
		calc:     calc,
		bus:      bus,
		log:      log,
	}
}

// Settle credits the order behind attemptID exactly once. The attempt and
// its order are locked for the whole transaction; a second caller blocks on
// the lock and then observes the paid state, turning its call into a no-op.
// It returns true when this call performed the credit.
func (s *SettlementService) Settle(ctx context.Context, attemptID, trigger string) (bool, error) {
	var ev events.SettlementEvent

	settled := false
	err := s.atomic.WithTx(ctx, func(tx pgx.Tx) error {
		att, err := s.attempts.GetForUpdate(ctx, tx, attemptID)
		if err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		if att.Status == models.AttemptPaid {
			return nil
		}

		order, err := s.orders.GetForUpdate(ctx, tx, att.OrderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.Status != models.OrderPending {
			return nil
		}

		bonusAmt := order.BonusAmount
		total := order.TotalAmount
		tier := order.BonusTier
		if !order.BonusResolved() {
			// Row predates creation-time bonus capture; resolve against the
			// current tier table instead.
			res, err := s.calc.Resolve(ctx, order.Amount)
			if err != nil {
				return fmt.Errorf("resolve bonus: %w", err)
			}
			bonusAmt = res.Bonus
			total = order.Amount.Add(res.Bonus)
			tier = res.Description
		}

		wallet, err := s.wallets.GetOrCreateForUpdate(ctx, tx, order.AccountID)
		if err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		if _, err := s.wallets.Apply(ctx, tx, wallet.ID, models.LedgerEntry{
			Kind:        models.LedgerPrimary,
			Direction:   models.EntryCredit,
			Amount:      order.Amount,
			Description: "top-up " + order.ID,
			Source:      order.Method,
			Destination: "wallet",
		}); err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}
		if bonusAmt.IsPositive() {
			if _, err := s.wallets.Apply(ctx, tx, wallet.ID, models.LedgerEntry{
				Kind:        models.LedgerBonus,
				Direction:   models.EntryCredit,
				Amount:      bonusAmt,
				Description: "bonus " + tier,
				Source:      "promotion",
				Destination: "wallet",
			}); err != nil {
				return fmt.Errorf("credit bonus: %w", err)
			}
		}

		if err := s.orders.Complete(ctx, tx, order.ID, bonusAmt, total, tier); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		now := time.Now().UTC()
		if err := s.attempts.MarkPaid(ctx, tx, att.ID, now); err != nil {
			return fmt.Errorf("mark attempt paid: %w", err)
		}

		settled = true
		ev = events.SettlementEvent{
			AttemptID:   att.ID,
			OrderID:     order.ID,
			AccountID:   order.AccountID,
			Method:      order.Method,
			Amount:      order.Amount,
			Bonus:       bonusAmt,
			Total:       total,
			Trigger:     trigger,
			ProcessedAt: now,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, err
		}
		metrics.SettlementsFailed.Inc()
		return false, err
	}
	if !settled {
		metrics.SettlementsNoop.Inc()
		return false, nil
	}

	metrics.SettlementsTotal.WithLabelValues(trigger).Inc()
	if acct, err := s.accounts.GetByID(ctx, ev.AccountID); err == nil {
		ev.Username = acct.Username
	}
	s.bus.Publish(ctx, events.PaymentSettled, ev)
	s.log.Info("settlement applied",
		"attempt_id", ev.AttemptID,
		"order_id", ev.OrderID,
		"amount", ev.Amount.StringFixed(2),
		"bonus", ev.Bonus.StringFixed(2),
		"trigger", trigger,
	)
	return true, nil
}

// Approve records the gateway-side approval before settling. The guarded
// update keeps the transition monotonic so stale signals cannot demote a
// paid attempt.
func (s *SettlementService) Approve(ctx context.Context, attemptID, trigger string) (bool, error) {
	if err := s.attempts.MarkApproved(ctx, attemptID); err != nil {
		return false, err
	}
	return s.Settle(ctx, attemptID, trigger)
}

// Fail moves a pending attempt to failed. Anything past pending is left
// alone, so a late failure signal cannot undo a settlement.
func (s *SettlementService) Fail(ctx context.Context, attemptID string) error {
	return s.attempts.MarkFailed(ctx, attemptID)
}
