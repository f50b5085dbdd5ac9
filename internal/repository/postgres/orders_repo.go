package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type ordersRepo struct{ pool *pgxpool.Pool }

const orderCols = `id, account_id, amount, method, bonus_amount, bonus_tier, total_amount, status, created_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.AccountID, &o.Amount, &o.Method, &o.BonusAmount, &o.BonusTier, &o.TotalAmount, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, repo.ErrNotFound
	}
	return o, err
}

func (r *ordersRepo) Create(ctx context.Context, tx pgx.Tx, o models.Order) (models.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return scanOrder(tx.QueryRow(ctx,
		`INSERT INTO orders(id, account_id, amount, method, bonus_amount, bonus_tier, total_amount, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+orderCols,
		o.ID, o.AccountID, o.Amount, o.Method, o.BonusAmount, o.BonusTier, o.TotalAmount, o.Status,
	))
}

func (r *ordersRepo) GetByID(ctx context.Context, id string) (models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
}

func (r *ordersRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (models.Order, error) {
	return scanOrder(tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (r *ordersRepo) FindRecentPendingForUpdate(ctx context.Context, tx pgx.Tx, accountID string, amount decimal.Decimal, method string, since time.Time) (models.Order, bool, error) {
	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders
		  WHERE account_id=$1 AND amount=$2 AND method=$3 AND status='pending' AND created_at >= $4
		  ORDER BY created_at
		  LIMIT 1
		  FOR UPDATE`,
		accountID, amount, method, since,
	))
	if errors.Is(err, repo.ErrNotFound) {
		return models.Order{}, false, nil
	}
	if err != nil {
		return models.Order{}, false, err
	}
	return o, true, nil
}

func (r *ordersRepo) ListPendingByAccount(ctx context.Context, accountID string) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderCols+` FROM orders
		  WHERE account_id=$1 AND status='pending'
		  ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ordersRepo) SetStatus(ctx context.Context, tx pgx.Tx, id string, status models.OrderStatus) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, status)
	return err
}

func (r *ordersRepo) Complete(ctx context.Context, tx pgx.Tx, id string, bonus, total decimal.Decimal, tier string) error {
	_, err := tx.Exec(ctx,
		`UPDATE orders SET status='completed', bonus_amount=$2, total_amount=$3, bonus_tier=$4 WHERE id=$1`,
		id, bonus, total, tier,
	)
	return err
}

func (r *ordersRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status='expired' WHERE status='pending' AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
