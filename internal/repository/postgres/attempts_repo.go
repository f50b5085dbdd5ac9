package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type attemptsRepo struct{ pool *pgxpool.Pool }

const attemptCols = `id, account_id, order_id, amount, external_id, checkout_url, status, processed_at, created_at`

func scanAttempt(row pgx.Row) (models.PaymentAttempt, error) {
	var a models.PaymentAttempt
	err := row.Scan(&a.ID, &a.AccountID, &a.OrderID, &a.Amount, &a.ExternalID, &a.CheckoutURL, &a.Status, &a.ProcessedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PaymentAttempt{}, repo.ErrNotFound
	}
	return a, err
}

func (r *attemptsRepo) Create(ctx context.Context, tx pgx.Tx, a models.PaymentAttempt) (models.PaymentAttempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return scanAttempt(tx.QueryRow(ctx,
		`INSERT INTO payment_attempts(id, account_id, order_id, amount, external_id, checkout_url, status)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+attemptCols,
		a.ID, a.AccountID, a.OrderID, a.Amount, a.ExternalID, a.CheckoutURL, a.Status,
	))
}

func (r *attemptsRepo) GetByID(ctx context.Context, id string) (models.PaymentAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptCols+` FROM payment_attempts WHERE id=$1`, id))
}

func (r *attemptsRepo) GetByOrder(ctx context.Context, orderID string) (models.PaymentAttempt, bool, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptCols+` FROM payment_attempts WHERE order_id=$1`, orderID))
	if errors.Is(err, repo.ErrNotFound) {
		return models.PaymentAttempt{}, false, nil
	}
	if err != nil {
		return models.PaymentAttempt{}, false, err
	}
	return a, true, nil
}

func (r *attemptsRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (models.PaymentAttempt, error) {
	return scanAttempt(tx.QueryRow(ctx, `SELECT `+attemptCols+` FROM payment_attempts WHERE id=$1 FOR UPDATE`, id))
}

func (r *attemptsRepo) GetByOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (models.PaymentAttempt, bool, error) {
	a, err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptCols+` FROM payment_attempts WHERE order_id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, repo.ErrNotFound) {
		return models.PaymentAttempt{}, false, nil
	}
	if err != nil {
		return models.PaymentAttempt{}, false, err
	}
	return a, true, nil
}

func (r *attemptsRepo) SetSession(ctx context.Context, tx pgx.Tx, id, externalID, checkoutURL string) error {
	_, err := tx.Exec(ctx,
		`UPDATE payment_attempts SET external_id=$2, checkout_url=$3 WHERE id=$1`,
		id, externalID, checkoutURL,
	)
	return err
}

func (r *attemptsRepo) MarkApproved(ctx context.Context, id string) error {
	// guarded update keeps the transition monotonic
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_attempts SET status='approved' WHERE id=$1 AND status='pending'`, id)
	return err
}

func (r *attemptsRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_attempts SET status='failed' WHERE id=$1 AND status='pending'`, id)
	return err
}

func (r *attemptsRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id string, processedAt time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE payment_attempts SET status='paid', processed_at=$2 WHERE id=$1 AND status <> 'paid'`,
		id, processedAt,
	)
	return err
}

func (r *attemptsRepo) ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.account_id, a.order_id, a.amount, a.external_id, a.checkout_url, a.status, a.processed_at, a.created_at
		   FROM payment_attempts a
		   JOIN orders o ON o.id = a.order_id
		  WHERE a.status='pending' AND o.status='pending' AND a.created_at <= $1
		  ORDER BY a.created_at
		  LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
