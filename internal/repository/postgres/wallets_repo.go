package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type walletsRepo struct{ pool *pgxpool.Pool }

const walletCols = `id, account_id, balance, bonus_balance, updated_at`

func scanWallet(row pgx.Row) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.AccountID, &w.Balance, &w.BonusBalance, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Wallet{}, repo.ErrNotFound
	}
	return w, err
}

func (r *walletsRepo) GetByAccount(ctx context.Context, accountID string) (models.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE account_id=$1`, accountID))
}

func (r *walletsRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (models.Wallet, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO wallets(id, account_id) VALUES($1, $2)
		 ON CONFLICT (account_id) DO NOTHING`,
		uuid.NewString(), accountID,
	)
	if err != nil {
		return models.Wallet{}, err
	}
	return scanWallet(tx.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE account_id=$1 FOR UPDATE`, accountID))
}

func (r *walletsRepo) Apply(ctx context.Context, tx pgx.Tx, walletID string, e models.LedgerEntry) (models.Wallet, error) {
	if !e.Amount.IsPositive() {
		return models.Wallet{}, fmt.Errorf("ledger amount must be positive")
	}
	col := "balance"
	if e.Kind == models.LedgerBonus {
		col = "bonus_balance"
	}
	delta := e.Amount
	if e.Direction == models.EntryDebit {
		delta = delta.Neg()
	}

	w, err := scanWallet(tx.QueryRow(ctx,
		`UPDATE wallets
		    SET `+col+` = `+col+` + $2,
		        updated_at = now()
		  WHERE id = $1 AND `+col+` + $2 >= 0
		  RETURNING `+walletCols,
		walletID, delta,
	))
	if errors.Is(err, repo.ErrNotFound) {
		// row exists but the guard failed, or the wallet is gone
		var n int
		if scanErr := tx.QueryRow(ctx, `SELECT 1 FROM wallets WHERE id=$1`, walletID).Scan(&n); scanErr == nil {
			return models.Wallet{}, repo.ErrInsufficientFunds
		}
		return models.Wallet{}, repo.ErrNotFound
	}
	if err != nil {
		return models.Wallet{}, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_entries(id, wallet_id, kind, direction, amount, description, source, destination)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, walletID, e.Kind, e.Direction, e.Amount, e.Description, e.Source, e.Destination,
	)
	if err != nil {
		return models.Wallet{}, err
	}
	return w, nil
}

func (r *walletsRepo) ListEntries(ctx context.Context, walletID string, kind models.LedgerKind, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, wallet_id, kind, direction, amount, description, source, destination, created_at
		   FROM ledger_entries
		  WHERE wallet_id=$1 AND kind=$2
		  ORDER BY created_at DESC
		  LIMIT $3 OFFSET $4`,
		walletID, kind, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Kind, &e.Direction, &e.Amount, &e.Description, &e.Source, &e.Destination, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
