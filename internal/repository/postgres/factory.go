package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "topup-service/internal/repository"
)

type Repositories struct {
	Atomic        repo.Atomic
	Accounts      repo.Accounts
	Wallets       repo.Wallets
	Orders        repo.Orders
	Attempts      repo.Attempts
	BonusTiers    repo.BonusTiers
	WebhookEvents repo.WebhookEvents
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Atomic:        &atomic{pool},
		Accounts:      &accountsRepo{pool},
		Wallets:       &walletsRepo{pool},
		Orders:        &ordersRepo{pool},
		Attempts:      &attemptsRepo{pool},
		BonusTiers:    &bonusTiersRepo{pool},
		WebhookEvents: &webhookEventsRepo{pool},
	}
}

type atomic struct{ pool *pgxpool.Pool }

func (a *atomic) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
