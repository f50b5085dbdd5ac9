package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

type accountsRepo struct{ pool *pgxpool.Pool }

func (r *accountsRepo) Create(ctx context.Context, username, email, passwordHash, role string) (models.Account, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts(id, username, email, password_hash, role) VALUES($1,$2,$3,$4,$5)`,
		id, username, email, passwordHash, role,
	)
	if err != nil {
		return models.Account{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *accountsRepo) GetByID(ctx context.Context, id string) (models.Account, error) {
	return r.get(ctx, `WHERE id=$1`, id)
}

func (r *accountsRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.get(ctx, `WHERE email=$1`, email)
}

func (r *accountsRepo) get(ctx context.Context, where string, arg any) (models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at FROM accounts `+where, arg,
	).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Account{}, repo.ErrNotFound
	}
	return a, err
}
