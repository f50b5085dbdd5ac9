package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"topup-service/internal/api/httpx"
	"topup-service/internal/models"
	repo "topup-service/internal/repository"
	"topup-service/internal/services"
)

// Admin groups the staff-only operations: manual settlement, on-demand
// reconciliation and bonus tier management.
type Admin struct {
	payments *services.PaymentService
	sweeper  *services.Sweeper
	orders   *services.OrderService
	tiers    repo.BonusTiers
}

func NewAdmin(payments *services.PaymentService, sweeper *services.Sweeper, orders *services.OrderService, tiers repo.BonusTiers) *Admin {
	return &Admin{payments: payments, sweeper: sweeper, orders: orders, tiers: tiers}
}

// ConfirmOrder settles an order's attempt on staff say-so, without asking
// the gateway. Used when support verified a payment out of band.
func (h *Admin) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	att, err := h.payments.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, att)
}

// Reconcile runs one sweep batch immediately instead of waiting for the
// scheduled job.
func (h *Admin) Reconcile(w http.ResponseWriter, r *http.Request) {
	settled, err := h.sweeper.Reconcile(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	expired, err := h.orders.ExpireStale(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"settled": settled,
		"expired": expired,
	})
}

func (h *Admin) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.tiers.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tiers)
}

func (h *Admin) CreateTier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinAmount   string `json:"min_amount"`
		MaxAmount   string `json:"max_amount"`
		Percent     string `json:"percent"`
		Description string `json:"description"`
		Ordinal     int    `json:"ordinal"`
		Active      bool   `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	min, err := decimal.NewFromString(req.MinAmount)
	if err != nil || min.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid min_amount", nil)
		return
	}
	percent, err := decimal.NewFromString(req.Percent)
	if err != nil || percent.IsNegative() {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid percent", nil)
		return
	}
	tier := models.BonusTier{
		MinAmount:   min,
		Percent:     percent,
		Description: req.Description,
		Ordinal:     req.Ordinal,
		Active:      req.Active,
	}
	if req.MaxAmount != "" {
		max, err := decimal.NewFromString(req.MaxAmount)
		if err != nil || max.LessThan(min) {
			httpx.WriteError(w, http.StatusBadRequest, "validation", "invalid max_amount", nil)
			return
		}
		tier.MaxAmount = &max
	}

	created, err := h.tiers.Create(r.Context(), tier)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}
