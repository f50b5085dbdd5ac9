package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"topup-service/internal/models"
)

type webhookEventsRepo struct{ pool *pgxpool.Pool }

func (r *webhookEventsRepo) InsertIfNew(ctx context.Context, e models.WebhookEvent) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = nil
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_events(id, gateway, type, external_id, payload)
		 VALUES($1,$2,$3,$4,$5)
		 ON CONFLICT (type, external_id) DO NOTHING`,
		e.ID, e.Gateway, e.Type, e.ExternalID, payload,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
