package notification

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type represents notification type
type Type string

const (
	TypeWalletFunded    Type = "wallet_funded"      // Deposit settled and credited
	TypeFundingFailed   Type = "funding_failed"     // Deposit too small to credit
	TypeWalletDebited   Type = "wallet_debited"     // Purchase charged
	TypeKYCPaymentRecv  Type = "kyc_payment"        // Verification payment confirmed
	TypePINLocked       Type = "pin_locked"         // Transaction PIN locked out
	TypeWalletProvision Type = "wallet_provisioned" // Virtual account ready
)

// Notification represents a user notification
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Type            `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      sql.NullString  `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	ReadAt    sql.NullTime    `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationData carries settlement details. Amounts are kobo.
type NotificationData struct {
	Reference  string `json:"reference,omitempty"`
	Amount     *int64 `json:"amount,omitempty"`
	Fee        *int64 `json:"fee,omitempty"`
	NewBalance *int64 `json:"new_balance,omitempty"`
}

// SetData encodes data to JSON
func (n *Notification) SetData(data *NotificationData) {
	if data != nil {
		n.Data, _ = json.Marshal(data)
	}
}

// GetData decodes data from JSON
func (n *Notification) GetData() *NotificationData {
	if n.Data == nil {
		return &NotificationData{}
	}
	var data NotificationData
	_ = json.Unmarshal(n.Data, &data)
	return &data
}
