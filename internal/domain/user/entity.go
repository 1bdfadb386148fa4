package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system (matches user_role enum)
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Tier classifies an account for fee purposes.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// User represents a user account (matches users table)
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	IsBanned     bool      `db:"is_banned"`

	// KYC identity fields, required before wallet provisioning
	BVN sql.NullString `db:"bvn"`
	NIN sql.NullString `db:"nin"`

	// Subscription
	SubscriptionStatus  sql.NullString `db:"subscription_status"`
	SubscriptionEndDate sql.NullTime   `db:"subscription_end_date"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsAdmin returns true if user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FullName returns the display name used on virtual accounts.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// KYCComplete reports whether both identity numbers are on file.
func (u *User) KYCComplete() bool {
	return u.BVN.Valid && u.BVN.String != "" && u.NIN.Valid && u.NIN.String != ""
}

// FeeTier derives the fee tier at a point in time. Premium covers an active
// subscription, an unexpired admin-granted subscription window, and admins.
func (u *User) FeeTier(now time.Time) Tier {
	if u.SubscriptionStatus.Valid && u.SubscriptionStatus.String == "active" {
		return TierPremium
	}
	if u.SubscriptionEndDate.Valid && u.SubscriptionEndDate.Time.After(now) {
		return TierPremium
	}
	if u.IsAdmin() {
		return TierPremium
	}
	return TierStandard
}
