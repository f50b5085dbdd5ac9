package handlers

import (
	"net/http"
	"strconv"

	"topup-service/internal/api/httpx"
	"topup-service/internal/middleware"
	"topup-service/internal/models"
	"topup-service/internal/services"
)

type Wallet struct {
	wallet *services.WalletService
}

func NewWallet(wallet *services.WalletService) *Wallet {
	return &Wallet{wallet: wallet}
}

func (h *Wallet) Balance(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())
	wal, err := h.wallet.Balance(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wal)
}

func (h *Wallet) Entries(w http.ResponseWriter, r *http.Request) {
	accountID, _ := middleware.AccountID(r.Context())

	kind := models.LedgerKind(r.URL.Query().Get("kind"))
	if kind != models.LedgerBonus {
		kind = models.LedgerPrimary
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.wallet.Entries(r.Context(), accountID, kind, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"entries": entries,
	})
}
