package services

import (
	"context"
	"log/slog"
	"time"

	"topup-service/internal/config"
	"topup-service/internal/gateway"
	"topup-service/internal/metrics"
	repo "topup-service/internal/repository"
)

const sweepBatchSize = 100

// Sweeper is the reconciliation job: it finds attempts that never got a
// confirmation through any online channel and asks the gateways directly.
// Missed webhooks, closed browser tabs and crashed polls all land here.
type Sweeper struct {
	cfg      config.Config
	orders   repo.Orders
	attempts repo.Attempts
	gateways *gateway.Registry
	settle   *SettlementService
	log      *slog.Logger
}

func NewSweeper(
	cfg config.Config,
	orders repo.Orders,
	attempts repo.Attempts,
	gateways *gateway.Registry,
	settle *SettlementService,
	log *slog.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		orders:   orders,
		attempts: attempts,
		gateways: gateways,
		settle:   settle,
		log:      log,
	}
}

// Reconcile checks one batch of stuck attempts and settles any the gateway
// reports approved. One attempt failing never stops the batch; the next run
// picks up whatever was skipped.
func (s *Sweeper) Reconcile(ctx context.Context) (settled int, err error) {
	cutoff := time.Now().Add(-s.cfg.SweepCutoff)
	stuck, err := s.attempts.ListStuckPending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	for _, att := range stuck {
		st, err := s.liveStatus(ctx, att.OrderID, att.ID, att.ExternalID)
		if err != nil {
			s.log.Warn("sweep lookup failed", "attempt_id", att.ID, "err", err)
			continue
		}
		switch st {
		case gateway.StatusApproved:
			did, err := s.settle.Approve(ctx, att.ID, TriggerSweep)
			if err != nil {
				s.log.Error("sweep settlement failed", "attempt_id", att.ID, "err", err)
				continue
			}
			if did {
				settled++
			}
		case gateway.StatusFailed:
			if err := s.settle.Fail(ctx, att.ID); err != nil {
				s.log.Warn("sweep could not mark attempt failed", "attempt_id", att.ID, "err", err)
			}
		}
	}
	if settled > 0 {
		metrics.SweepReconciledTotal.Add(float64(settled))
		s.log.Info("sweep reconciled stuck attempts", "count", settled, "checked", len(stuck))
	}
	return settled, nil
}

func (s *Sweeper) liveStatus(ctx context.Context, orderID, attemptID, externalID string) (gateway.Status, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return gateway.StatusUnknown, err
	}
	adapter, ok := s.gateways.Get(order.Method)
	if !ok {
		return gateway.StatusUnknown, ErrGatewayUnknown
	}
	if searcher, sok := adapter.(gateway.OrderSearcher); sok {
		return searcher.SearchOrder(ctx, attemptID)
	}
	if externalID == "" {
		return gateway.StatusUnknown, nil
	}
	info, err := adapter.LookupPayment(ctx, externalID)
	if err != nil {
		return gateway.StatusUnknown, err
	}
	return info.Status, nil
}
