package services

import (
	"context"
	"errors"

	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type WalletService struct {
	wallets repo.Wallets
}

func NewWalletService(wallets repo.Wallets) *WalletService {
	return &WalletService{wallets: wallets}
}

// Balance returns the account's wallet. Accounts that never settled a
// payment have no wallet row yet; they see zero balances, not an error.
func (s *WalletService) Balance(ctx context.Context, accountID string) (models.Wallet, error) {
	w, err := s.wallets.GetByAccount(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Wallet{AccountID: accountID}, nil
	}
	return w, err
}

// Entries pages through one ledger stream, newest first.
func (s *WalletService) Entries(ctx context.Context, accountID string, kind models.LedgerKind, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	w, err := s.wallets.GetByAccount(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return []models.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.wallets.ListEntries(ctx, w.ID, kind, limit, offset)
}
