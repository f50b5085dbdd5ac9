package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"topup-service/internal/api/httpx"
	"topup-service/internal/gateway"
	"topup-service/internal/middleware"
	"topup-service/internal/services"
)

// maxWebhookBody caps gateway notification bodies. Real notifications are
// a few hundred bytes.
const maxWebhookBody = 256 << 10

type Payments struct {
	payments *services.PaymentService
}

func NewPayments(payments *services.PaymentService) *Payments {
	return &Payments{payments: payments}
}

// Webhook receives gateway notifications. Anything past signature and
// parse checks gets a 200: the gateway must stop retrying once we have the
// event, and resolution happens asynchronously anyway.
func (h *Payments) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
		return
	}
	err = h.payments.HandleWebhook(r.Context(), chi.URLParam(r, "gateway"), r, body)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
	case errors.Is(err, services.ErrGatewayUnknown):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "unknown gateway", nil)
	case errors.Is(err, services.ErrAttemptNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no matching payment attempt", nil)
	case errors.Is(err, services.ErrInvalidSignature):
		httpx.WriteError(w, http.StatusBadRequest, "bad_signature", "signature verification failed", nil)
	case errors.Is(err, gateway.ErrBadEvent):
		httpx.WriteError(w, http.StatusBadRequest, "bad_event", "malformed event", nil)
	default:
		writeServiceError(w, err)
	}
}

// Return is the landing endpoint for buyers coming back from a gateway.
// The path segment is the gateway's claimed outcome; the response reflects
// what the gateway API actually said.
func (h *Payments) Return(w http.ResponseWriter, r *http.Request) {
	st, err := h.payments.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"claimed": chi.URLParam(r, "outcome"),
		"status":  st.String(),
	})
}

// Status is the client poll; a pending attempt triggers a live gateway
// check and can settle right here.
func (h *Payments) Status(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	info, err := h.payments.Status(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, info)
}
