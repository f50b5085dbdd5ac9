package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"topup-service/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Atomic runs fn inside one serializable database transaction. Every
// settlement and order mutation goes through here so that row locks taken
// with the ...ForUpdate methods hold until commit.
type Atomic interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type Accounts interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
}

type Wallets interface {
	GetByAccount(ctx context.Context, accountID string) (models.Wallet, error)
	// GetOrCreateForUpdate locks the wallet row (creating it first when the
	// account has none yet) for the duration of tx.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, accountID string) (models.Wallet, error)
	// Apply mutates the balance named by e.Kind and appends the ledger entry
	// in the same transaction. Debits that would go negative fail with
	// ErrInsufficientFunds before anything is written.
	Apply(ctx context.Context, tx pgx.Tx, walletID string, e models.LedgerEntry) (models.Wallet, error)
	ListEntries(ctx context.Context, walletID string, kind models.LedgerKind, limit, offset int) ([]models.LedgerEntry, error)
}

type Orders interface {
	Create(ctx context.Context, tx pgx.Tx, o models.Order) (models.Order, error)
	GetByID(ctx context.Context, id string) (models.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (models.Order, error)
	// FindRecentPendingForUpdate locks and returns a pending order with the
	// same account, amount and method created after since, if one exists.
	FindRecentPendingForUpdate(ctx context.Context, tx pgx.Tx, accountID string, amount decimal.Decimal, method string, since time.Time) (models.Order, bool, error)
	ListPendingByAccount(ctx context.Context, accountID string) ([]models.Order, error)
	SetStatus(ctx context.Context, tx pgx.Tx, id string, status models.OrderStatus) error
	// Complete stores the bonus/total actually applied at settlement.
	Complete(ctx context.Context, tx pgx.Tx, id string, bonus, total decimal.Decimal, tier string) error
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Attempts interface {
	Create(ctx context.Context, tx pgx.Tx, a models.PaymentAttempt) (models.PaymentAttempt, error)
	GetByID(ctx context.Context, id string) (models.PaymentAttempt, error)
	GetByOrder(ctx context.Context, orderID string) (models.PaymentAttempt, bool, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (models.PaymentAttempt, error)
	GetByOrderForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (models.PaymentAttempt, bool, error)
	SetSession(ctx context.Context, tx pgx.Tx, id, externalID, checkoutURL string) error
	// MarkApproved is monotonic: only pending attempts move, anything else
	// is a no-op.
	MarkApproved(ctx context.Context, id string) error
	// MarkFailed only moves pending attempts; approved or paid stay put.
	MarkFailed(ctx context.Context, id string) error
	MarkPaid(ctx context.Context, tx pgx.Tx, id string, processedAt time.Time) error
	// ListStuckPending returns pending attempts on still-pending orders
	// created before cutoff, oldest first.
	ListStuckPending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error)
}

type BonusTiers interface {
	ListActive(ctx context.Context) ([]models.BonusTier, error)
	List(ctx context.Context) ([]models.BonusTier, error)
	Create(ctx context.Context, t models.BonusTier) (models.BonusTier, error)
}

type WebhookEvents interface {
	// InsertIfNew records the event and reports whether the (type, external
	// id) pair was seen for the first time.
	InsertIfNew(ctx context.Context, e models.WebhookEvent) (bool, error)
}
