package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"topup-service/internal/bonus"
	"topup-service/internal/config"
	"topup-service/internal/events"
	"topup-service/internal/gateway"
	"topup-service/internal/metrics"
	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type OrderService struct {
	cfg      config.Config
	atomic   repo.Atomic
	orders   repo.Orders
	attempts repo.Attempts
	calc     *bonus.Calculator
	gateways *gateway.Registry
	settle   *SettlementService
	bus      *events.Bus
	log      *slog.Logger
}

func NewOrderService(
	cfg config.Config,
	atomic repo.Atomic,
	orders repo.Orders,
	attempts repo.Attempts,
	calc *bonus.Calculator,
	gateways *gateway.Registry,
	settle *SettlementService,
	bus *events.Bus,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		cfg:      cfg,
		atomic:   atomic,
		orders:   orders,
		attempts: attempts,
		calc:     calc,
		gateways: gateways,
		settle:   settle,
		bus:      bus,
		log:      log,
	}
}

// Create opens a purchase order with the bonus fixed at creation time. An
// identical pending order (same account, amount and method) created inside
// the duplicate window is returned instead of a new one; reused reports
// which case happened.
func (s *OrderService) Create(ctx context.Context, accountID string, amount decimal.Decimal, method string) (order models.Order, reused bool, err error) {
	if !amount.IsPositive() {
		return models.Order{}, false, ErrInvalidAmount
	}
	if !s.cfg.MethodEnabled(method) {
		return models.Order{}, false, ErrMethodDisabled
	}

	res, err := s.calc.Resolve(ctx, amount)
	if err != nil {
		return models.Order{}, false, fmt.Errorf("resolve bonus: %w", err)
	}

	err = s.atomic.WithTx(ctx, func(tx pgx.Tx) error {
		since := time.Now().Add(-s.cfg.DuplicateWindow)
		existing, found, err := s.orders.FindRecentPendingForUpdate(ctx, tx, accountID, amount, method, since)
		if err != nil {
			return err
		}
		if found {
			order, reused = existing, true
			return nil
		}
		order, err = s.orders.Create(ctx, tx, models.Order{
			AccountID:   accountID,
			Amount:      amount,
			Method:      method,
			BonusAmount: res.Bonus,
			BonusTier:   res.Description,
			TotalAmount: amount.Add(res.Bonus),
			Status:      models.OrderPending,
		})
		return err
	})
	if err != nil {
		return models.Order{}, false, err
	}
	if reused {
		s.log.Info("duplicate order suppressed", "order_id", order.ID, "account_id", accountID)
	}
	return order, reused, nil
}

// Preview resolves the bonus an amount would earn without creating anything.
func (s *OrderService) Preview(ctx context.Context, amount decimal.Decimal) (bonus.Result, error) {
	return s.calc.Resolve(ctx, amount)
}

func (s *OrderService) Get(ctx context.Context, accountID, orderID string) (models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if order.AccountID != accountID {
		return models.Order{}, ErrNotOwner
	}
	return order, nil
}

func (s *OrderService) ListPending(ctx context.Context, accountID string) ([]models.Order, error) {
	return s.orders.ListPendingByAccount(ctx, accountID)
}

// Cancel aborts a pending order. An attempt already approved or paid
// locally settles instead of cancelling, and the caller gets
// ErrAlreadyPaid; otherwise the gateway is asked, and a payment that went
// through moments earlier is settled the same way. A gateway that cannot
// answer does not block cancellation of a still-pending attempt; a late
// approval still lands through the webhook or sweep paths since those do
// not depend on order age alone.
func (s *OrderService) Cancel(ctx context.Context, accountID, orderID string) error {
	order, err := s.Get(ctx, accountID, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderPending {
		return ErrOrderNotPending
	}

	att, hasAttempt, err := s.attempts.GetByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if hasAttempt {
		// A locally recorded approval is as binding as a live one: an
		// approved attempt whose settle transaction did not land yet must
		// be settled, never cancelled.
		switch att.Status {
		case models.AttemptPaid:
			return ErrAlreadyPaid
		case models.AttemptApproved:
			if _, err := s.settle.Approve(ctx, att.ID, TriggerManual); err != nil {
				return err
			}
			return ErrAlreadyPaid
		}
		if att.ExternalID != "" {
			if st := s.liveStatus(ctx, order.Method, att); st == gateway.StatusApproved {
				if _, err := s.settle.Approve(ctx, att.ID, TriggerManual); err != nil {
					return err
				}
				return ErrAlreadyPaid
			}
		}
	}

	err = s.atomic.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked.Status != models.OrderPending {
			return ErrOrderNotPending
		}
		return s.orders.SetStatus(ctx, tx, orderID, models.OrderCancelled)
	})
	if err != nil {
		return err
	}

	if hasAttempt {
		if err := s.attempts.MarkFailed(ctx, att.ID); err != nil {
			s.log.Warn("attempt not marked failed after cancel", "attempt_id", att.ID, "err", err)
		}
	}
	s.bus.Publish(ctx, events.OrderCancelled, events.SettlementEvent{
		OrderID:   orderID,
		AccountID: accountID,
		Method:    order.Method,
		Amount:    order.Amount,
	})
	return nil
}

// liveStatus asks the gateway where an attempt stands right now. Transport
// trouble maps to unknown, never to failed.
func (s *OrderService) liveStatus(ctx context.Context, method string, att models.PaymentAttempt) gateway.Status {
	adapter, ok := s.gateways.Get(method)
	if !ok {
		return gateway.StatusUnknown
	}
	if searcher, ok := adapter.(gateway.OrderSearcher); ok {
		st, err := searcher.SearchOrder(ctx, att.ID)
		if err == nil {
			return st
		}
		return gateway.StatusUnknown
	}
	info, err := adapter.LookupPayment(ctx, att.ExternalID)
	if err != nil {
		return gateway.StatusUnknown
	}
	return info.Status
}

// ExpireStale closes pending orders older than the expiry window. Attempts
// on those orders are untouched; settlements check order state, not age.
func (s *OrderService) ExpireStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.ExpiryWindow)
	n, err := s.orders.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.OrdersExpiredTotal.Add(float64(n))
		s.log.Info("expired stale orders", "count", n)
	}
	return n, nil
}
