package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topup-service/internal/models"
)

type bonusTiersRepo struct{ pool *pgxpool.Pool }

const tierCols = `id, min_amount, max_amount, percent, description, ordinal, active, created_at`

func (r *bonusTiersRepo) list(ctx context.Context, where string) ([]models.BonusTier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tierCols+` FROM bonus_tiers `+where+` ORDER BY ordinal, min_amount`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BonusTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTier(row pgx.Row) (models.BonusTier, error) {
	var t models.BonusTier
	err := row.Scan(&t.ID, &t.MinAmount, &t.MaxAmount, &t.Percent, &t.Description, &t.Ordinal, &t.Active, &t.CreatedAt)
	return t, err
}

func (r *bonusTiersRepo) ListActive(ctx context.Context) ([]models.BonusTier, error) {
	return r.list(ctx, `WHERE active`)
}

func (r *bonusTiersRepo) List(ctx context.Context) ([]models.BonusTier, error) {
	return r.list(ctx, ``)
}

func (r *bonusTiersRepo) Create(ctx context.Context, t models.BonusTier) (models.BonusTier, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return scanTier(r.pool.QueryRow(ctx,
		`INSERT INTO bonus_tiers(id, min_amount, max_amount, percent, description, ordinal, active)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+tierCols,
		t.ID, t.MinAmount, t.MaxAmount, t.Percent, t.Description, t.Ordinal, t.Active,
	))
}
