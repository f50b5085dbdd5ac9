package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet keeps two independent balances per account: the primary balance
// bought with real money and the promotional balance granted by bonuses.
// Both are audited by their own ledger stream and never go negative.
type Wallet struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Balance      decimal.Decimal `json:"balance"`
	BonusBalance decimal.Decimal `json:"bonus_balance"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type LedgerKind string

const (
	LedgerPrimary LedgerKind = "primary"
	LedgerBonus   LedgerKind = "bonus"
)

type EntryDirection string

const (
	EntryCredit EntryDirection = "credit"
	EntryDebit  EntryDirection = "debit"
)

// LedgerEntry is immutable once written. Every balance change has exactly
// one entry; entries are never updated or deleted.
type LedgerEntry struct {
	ID          string          `json:"id"`
	WalletID    string          `json:"wallet_id"`
	Kind        LedgerKind      `json:"kind"`
	Direction   EntryDirection  `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	CreatedAt   time.Time       `json:"created_at"`
}
