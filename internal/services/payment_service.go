package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jackc/pgx/v5"

	"topup-service/internal/gateway"
	"topup-service/internal/metrics"
	"topup-service/internal/models"
	repo "topup-service/internal/repository"
	"topup-service/internal/worker"
)

// PaymentService drives the gateway-facing half of a purchase: opening
// checkout sessions and feeding every confirmation channel (webhook,
// browser return, status poll, staff confirmation) into the settlement
// engine.
type PaymentService struct {
	atomic   repo.Atomic
	orders   repo.Orders
	attempts repo.Attempts
	hooks    repo.WebhookEvents
	gateways *gateway.Registry
	settle   *SettlementService
	pool     *worker.Pool
	log      *slog.Logger
}

func NewPaymentService(
	atomic repo.Atomic,
	orders repo.Orders,
	attempts repo.Attempts,
	hooks repo.WebhookEvents,
	gateways *gateway.Registry,
	settle *SettlementService,
	pool *worker.Pool,
	log *slog.Logger,
) *PaymentService {
	return &PaymentService{
		atomic:   atomic,
		orders:   orders,
		attempts: attempts,
		hooks:    hooks,
		gateways: gateways,
		settle:   settle,
		pool:     pool,
		log:      log,
	}
}

// OpenCheckout returns the attempt for an order, creating one on first call.
// An order carries at most one attempt; repeated calls resume the existing
// gateway session instead of opening a second charge. The gateway round
// trip happens outside the transaction so row locks never wait on HTTP.
func (s *PaymentService) OpenCheckout(ctx context.Context, accountID, orderID string) (models.PaymentAttempt, error) {
	var (
		att   models.PaymentAttempt
		order models.Order
	)
	err := s.atomic.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.AccountID != accountID {
			return ErrNotOwner
		}
		if order.Status != models.OrderPending {
			return ErrOrderNotPending
		}
		existing, found, err := s.attempts.GetByOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if found {
			att = existing
			return nil
		}
		att, err = s.attempts.Create(ctx, tx, models.PaymentAttempt{
			AccountID: accountID,
			OrderID:   orderID,
			Amount:    order.Amount,
			Status:    models.AttemptPending,
		})
		return err
	})
	if err != nil {
		return models.PaymentAttempt{}, err
	}
	if att.CheckoutURL != "" {
		return att, nil
	}

	adapter, ok := s.gateways.Get(order.Method)
	if !ok {
		return models.PaymentAttempt{}, ErrGatewayUnknown
	}

	externalID := att.ExternalID
	var redirect string
	if externalID != "" {
		// Session exists but its URL was never stored; ask the gateway again.
		redirect, err = adapter.ResumeCheckout(ctx, externalID)
	} else {
		var sess gateway.CheckoutSession
		sess, err = adapter.CreateCheckout(ctx, order, att)
		externalID, redirect = sess.SessionID, sess.RedirectURL
	}
	if err != nil {
		return models.PaymentAttempt{}, fmt.Errorf("open gateway session: %w", err)
	}

	err = s.atomic.WithTx(ctx, func(tx pgx.Tx) error {
		return s.attempts.SetSession(ctx, tx, att.ID, externalID, redirect)
	})
	if err != nil {
		return models.PaymentAttempt{}, err
	}
	att.ExternalID = externalID
	att.CheckoutURL = redirect
	return att, nil
}

// HandleWebhook authenticates, parses and resolves a gateway notification.
// The payload's own status claims are never trusted; the gateway API is
// asked for the authoritative state before anything settles. First
// deliveries resolve synchronously so the response code can report whether
// the referenced payment is ours; repeats are acknowledged immediately and
// re-checked on the worker pool, where the settlement's idempotence makes
// the extra pass harmless.
func (s *PaymentService) HandleWebhook(ctx context.Context, gatewayName string, r *http.Request, body []byte) error {
	adapter, ok := s.gateways.Get(gatewayName)
	if !ok {
		return ErrGatewayUnknown
	}
	if !adapter.VerifySignature(r, body) {
		return ErrInvalidSignature
	}
	ev, err := adapter.ParseEvent(r, body)
	if err != nil {
		return err
	}
	metrics.WebhookEventsTotal.WithLabelValues(adapter.Name(), ev.Type).Inc()

	first, err := s.hooks.InsertIfNew(ctx, models.WebhookEvent{
		Gateway:    adapter.Name(),
		Type:       ev.Type,
		ExternalID: ev.ExternalID,
		Payload:    body,
	})
	if err != nil {
		s.log.Warn("webhook event not recorded", "gateway", adapter.Name(), "err", err)
	}
	if err == nil && !first {
		s.log.Debug("duplicate webhook notification", "gateway", adapter.Name(), "external_id", ev.ExternalID)
		queued := s.pool.TrySubmit(func() {
			// Detached from the request context; the response is long gone
			// when this runs.
			_ = s.resolveEvent(context.Background(), adapter, ev)
		})
		if !queued {
			// The sweep re-checks stuck attempts anyway, so a dropped
			// recheck only delays settlement.
			s.log.Warn("worker queue full, duplicate recheck dropped", "gateway", adapter.Name(), "external_id", ev.ExternalID)
		}
		return nil
	}
	return s.resolveEvent(ctx, adapter, ev)
}

func (s *PaymentService) resolveEvent(ctx context.Context, adapter gateway.Adapter, ev gateway.Event) error {
	var (
		info gateway.PaymentInfo
		err  error
	)
	switch ev.Type {
	case "merchant_order":
		searcher, ok := adapter.(gateway.OrderSearcher)
		if !ok {
			s.log.Warn("order event on gateway without order lookup", "gateway", adapter.Name())
			return nil
		}
		info, err = searcher.LookupOrder(ctx, ev.ExternalID)
	default:
		info, err = adapter.LookupPayment(ctx, ev.ExternalID)
	}
	if err != nil {
		// The gateway could not be asked; accept the delivery, the sweep
		// retries with the same idempotent settle.
		s.log.Warn("gateway lookup failed", "gateway", adapter.Name(), "external_id", ev.ExternalID, "err", err)
		return nil
	}
	if info.AttemptID == "" {
		return ErrAttemptNotFound
	}
	if _, err := s.attempts.GetByID(ctx, info.AttemptID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAttemptNotFound
		}
		return err
	}

	switch info.Status {
	case gateway.StatusApproved:
		if _, err := s.settle.Approve(ctx, info.AttemptID, TriggerWebhook); err != nil {
			return fmt.Errorf("settle from webhook: %w", err)
		}
	case gateway.StatusFailed:
		if err := s.settle.Fail(ctx, info.AttemptID); err != nil {
			s.log.Warn("attempt not marked failed", "attempt_id", info.AttemptID, "err", err)
		}
	}
	// Pending and unknown wait for the next signal or the sweep.
	return nil
}

// HandleReturn processes the buyer landing back from the gateway. Redirect
// query parameters identify the payment but are never believed about its
// outcome; the gateway API decides. The returned status is what the landing
// page shows.
func (s *PaymentService) HandleReturn(ctx context.Context, q url.Values) (gateway.Status, error) {
	if ref := q.Get("external_reference"); ref != "" {
		return s.resolveReturnByAttempt(ctx, ref)
	}
	if pid := q.Get("payment_id"); pid != "" {
		return s.resolveReturnByPayment(ctx, pid)
	}
	return gateway.StatusUnknown, nil
}

func (s *PaymentService) resolveReturnByAttempt(ctx context.Context, attemptID string) (gateway.Status, error) {
	att, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return gateway.StatusUnknown, err
	}
	if att.Status == models.AttemptPaid {
		return gateway.StatusApproved, nil
	}
	order, err := s.orders.GetByID(ctx, att.OrderID)
	if err != nil {
		return gateway.StatusUnknown, err
	}
	adapter, ok := s.gateways.Get(order.Method)
	if !ok {
		return gateway.StatusUnknown, ErrGatewayUnknown
	}
	st := gateway.StatusUnknown
	if searcher, ok := adapter.(gateway.OrderSearcher); ok {
		if got, err := searcher.SearchOrder(ctx, att.ID); err == nil {
			st = got
		}
	} else if info, err := adapter.LookupPayment(ctx, att.ExternalID); err == nil {
		st = info.Status
	}
	if st == gateway.StatusApproved {
		if _, err := s.settle.Approve(ctx, att.ID, TriggerReturn); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (s *PaymentService) resolveReturnByPayment(ctx context.Context, paymentID string) (gateway.Status, error) {
	for _, adapter := range s.gateways.All() {
		info, err := adapter.LookupPayment(ctx, paymentID)
		if err != nil || info.AttemptID == "" {
			continue
		}
		if info.Status == gateway.StatusApproved {
			if _, err := s.settle.Approve(ctx, info.AttemptID, TriggerReturn); err != nil {
				return info.Status, err
			}
		}
		return info.Status, nil
	}
	return gateway.StatusUnknown, nil
}

// StatusInfo is the poll response: where the attempt and its order stand.
type StatusInfo struct {
	PaymentStatus models.AttemptStatus `json:"payment_status"`
	OrderStatus   models.OrderStatus   `json:"order_status"`
	Completed     bool                 `json:"completed"`
	CheckoutURL   string               `json:"checkout_url,omitempty"`
}

// Status is the client-driven poll. A still-pending attempt triggers a live
// gateway check so a user refreshing the page can finish their own
// settlement without waiting for a webhook.
func (s *PaymentService) Status(ctx context.Context, accountID, attemptID string) (StatusInfo, error) {
	att, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return StatusInfo{}, err
	}
	if att.AccountID != accountID {
		return StatusInfo{}, ErrNotOwner
	}
	if !att.Terminal() {
		order, err := s.orders.GetByID(ctx, att.OrderID)
		if err != nil {
			return StatusInfo{}, err
		}
		if adapter, ok := s.gateways.Get(order.Method); ok {
			st := gateway.StatusUnknown
			if searcher, sok := adapter.(gateway.OrderSearcher); sok {
				if got, err := searcher.SearchOrder(ctx, att.ID); err == nil {
					st = got
				}
			} else if att.ExternalID != "" {
				if info, err := adapter.LookupPayment(ctx, att.ExternalID); err == nil {
					st = info.Status
				}
			}
			if st == gateway.StatusApproved {
				if _, err := s.settle.Approve(ctx, att.ID, TriggerPoll); err != nil {
					return StatusInfo{}, err
				}
			}
		}
		if att, err = s.attempts.GetByID(ctx, attemptID); err != nil {
			return StatusInfo{}, err
		}
	}

	order, err := s.orders.GetByID(ctx, att.OrderID)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{
		PaymentStatus: att.Status,
		OrderStatus:   order.Status,
		Completed:     order.Status == models.OrderCompleted,
		CheckoutURL:   att.CheckoutURL,
	}, nil
}

// Confirm is the staff override: it settles an order's attempt without
// asking the gateway. Idempotent like every settlement path.
func (s *PaymentService) Confirm(ctx context.Context, orderID string) (models.PaymentAttempt, error) {
	att, found, err := s.attempts.GetByOrder(ctx, orderID)
	if err != nil {
		return models.PaymentAttempt{}, err
	}
	if !found {
		return models.PaymentAttempt{}, ErrAttemptNotFound
	}
	if _, err := s.settle.Approve(ctx, att.ID, TriggerManual); err != nil {
		return models.PaymentAttempt{}, err
	}
	return s.attempts.GetByID(ctx, att.ID)
}
