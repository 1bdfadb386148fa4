package wallet

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies settlement transactions. All amounts are kobo.
type TransactionType string

const (
	TransactionTypeFunding  TransactionType = "WALLET_FUNDING"
	TransactionTypePurchase TransactionType = "VAS_PURCHASE"
	TransactionTypeRefund   TransactionType = "REFUND"
	TransactionTypeKYC      TransactionType = "KYC_VERIFICATION"
	TransactionTypeManual   TransactionType = "MANUAL_ADJUSTMENT"
)

// TransactionStatus is the settlement lifecycle. A transaction transitions
// out of PENDING at most once.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// WalletStatus flags a wallet; wallets are never deleted.
type WalletStatus string

const (
	WalletActive    WalletStatus = "active"
	WalletSuspended WalletStatus = "suspended"
)

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Wallet is one user's liquid wallet. Balance only moves through the
// repository's serialized credit/debit operations.
type Wallet struct {
	UserID           uuid.UUID      `db:"user_id" json:"user_id"`
	Balance          int64          `db:"balance" json:"balance"`
	AccountReference string         `db:"account_reference" json:"account_reference"`
	AccountName      string         `db:"account_name" json:"account_name"`
	Accounts         JSONRawMessage `db:"accounts" json:"accounts,omitempty"`
	Status           WalletStatus   `db:"status" json:"status"`

	// Transaction PIN credential
	PINHash        sql.NullString `db:"pin_hash" json:"-"`
	PINAttempts    int            `db:"pin_attempts" json:"-"`
	PINLockedUntil sql.NullTime   `db:"pin_locked_until" json:"-"`
	PINSetAt       sql.NullTime   `db:"pin_set_at" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasPIN reports whether a transaction PIN has been set up.
func (w *Wallet) HasPIN() bool {
	return w.PINHash.Valid && w.PINHash.String != ""
}

// PINLocked reports whether PIN validation is currently locked out.
func (w *Wallet) PINLocked(now time.Time) bool {
	return w.PINLockedUntil.Valid && w.PINLockedUntil.Time.After(now)
}

// Transaction is one immutable settlement record. Reference carries the
// gateway's external transaction reference and is globally unique; it backs
// the idempotency guard.
type Transaction struct {
	ID               uuid.UUID         `db:"id" json:"id"`
	UserID           uuid.UUID         `db:"user_id" json:"user_id"`
	Type             TransactionType   `db:"type" json:"type"`
	Status           TransactionStatus `db:"status" json:"status"`
	Amount           int64             `db:"amount" json:"amount"`
	AmountPaid       int64             `db:"amount_paid" json:"amount_paid"`
	Fee              int64             `db:"fee" json:"fee"`
	Reference        string            `db:"reference" json:"reference"`
	PaymentReference sql.NullString    `db:"payment_reference" json:"payment_reference,omitempty"`
	Provider         sql.NullString    `db:"provider" json:"provider,omitempty"`
	Metadata         JSONRawMessage    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	CompletedAt      sql.NullTime      `db:"completed_at" json:"completed_at,omitempty"`
}

// SetMetadata attaches the originating payload snapshot.
func (t *Transaction) SetMetadata(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	t.Metadata = data
}
