package handlers

import (
	"net/http"

	"topup-service/internal/api/httpx"
	"topup-service/internal/api/validate"
	"topup-service/internal/services"
)

type Auth struct {
	accounts *services.AccountService
}

func NewAuth(accounts *services.AccountService) *Auth {
	return &Auth{accounts: accounts}
}

func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	var errs validate.Errs
	for _, e := range []*validate.ErrField{
		validate.Required("username", req.Username),
		validate.Required("email", req.Email),
		validate.Email("email", req.Email),
		validate.MinLen("password", req.Password, 8),
	} {
		if e != nil {
			errs = append(errs, *e)
		}
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation", "validation failed", errs)
		return
	}

	acct, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, acct)
}

func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	acct, pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"tokens":  pair,
	})
}

func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
		return
	}
	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}
