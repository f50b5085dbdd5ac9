// Package handlers maps the HTTP surface onto the service layer. Handlers
// do request parsing and error translation only; business rules live in
// the services.
package handlers

import (
	"errors"
	"net/http"

	"topup-service/internal/api/httpx"
	repo "topup-service/internal/repository"
	"topup-service/internal/services"
)

// writeServiceError translates a service error into an HTTP response.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, services.ErrNotOwner):
		// Hidden rather than forbidden: do not leak that the id exists.
		httpx.WriteError(w, http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, services.ErrOrderNotPending):
		httpx.WriteError(w, http.StatusConflict, "order_not_pending", "order is not pending", nil)
	case errors.Is(err, services.ErrAlreadyPaid):
		httpx.WriteError(w, http.StatusConflict, "already_paid", "payment already approved; order was settled", nil)
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_amount", "amount must be positive", nil)
	case errors.Is(err, services.ErrMethodDisabled):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "method_disabled", "payment method not enabled", nil)
	case errors.Is(err, services.ErrAttemptNotFound):
		httpx.WriteError(w, http.StatusConflict, "no_attempt", "order has no payment attempt", nil)
	case errors.Is(err, services.ErrInvalidLogin):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	case errors.Is(err, services.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, "email_taken", "email already registered", nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
