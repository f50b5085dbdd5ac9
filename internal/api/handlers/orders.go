package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"topup-service/internal/api/httpx"
	"topup-service/internal/api/validate"
	"topup-service/internal/middleware"
	"topup-service/internal/services"
)

type Orders struct {
	orders   *services.OrderService
	payments *services.PaymentService
}

func NewOrders(orders *services.OrderService, payments *services.PaymentService) *Orders {
	return &Orders{orders: orders, payments: payments}
}

// Create opens a purchase order. A duplicate of a recent pending order
// returns that order with 200 instead of creating a new one with 201.
func (h *Orders) Create(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	var req struct {
		Amount string `json:"amount"`
		Method string `json:"method"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	amount, ferr := validate.PositiveAmount("amount", req.Amount)
	if ferr != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", validate.Errs{*ferr})
		return
	}
	if e := validate.Required("method", req.Method); e != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", validate.Errs{*e})
		return
	}

	order, reused, err := h.orders.Create(r.Context(), accountID, amount, req.Method)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, order)
}

func (h *Orders) Get(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	order, err := h.orders.Get(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *Orders) ListPending(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	orders, err := h.orders.ListPending(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

// Checkout returns the order's payment attempt with its gateway redirect
// URL, creating the attempt and gateway session on first call.
func (h *Orders) Checkout(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	att, err := h.payments.OpenCheckout(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, att)
}

func (h *Orders) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	if err := h.orders.Cancel(r.Context(), accountID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// BonusPreview shows what a purchase amount would earn right now.
func (h *Orders) BonusPreview(w http.ResponseWriter, r *http.Request) {
	amount, ferr := validate.PositiveAmount("amount", r.URL.Query().Get("amount"))
	if ferr != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", validate.Errs{*ferr})
		return
	}
	res, err := h.orders.Preview(r.Context(), amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"amount":  amount,
		"bonus":   res.Bonus,
		"total":   amount.Add(res.Bonus),
		"tier":    res.Description,
		"percent": res.Percent,
	})
}
