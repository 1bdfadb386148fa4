package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("user not found")

// Repository defines user data access interface
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateKYC(ctx context.Context, id uuid.UUID, bvn, nin string) error
	UpdateSubscription(ctx context.Context, id uuid.UUID, status string, endDate time.Time) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, u *User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.Role, u.FirstName, u.LastName, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE LOWER(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) UpdateKYC(ctx context.Context, id uuid.UUID, bvn, nin string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET bvn = $1, nin = $2, updated_at = NOW() WHERE id = $3
	`, bvn, nin, id)
	return err
}

func (r *repository) UpdateSubscription(ctx context.Context, id uuid.UUID, status string, endDate time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET subscription_status = $1, subscription_end_date = $2, updated_at = NOW() WHERE id = $3
	`, status, endDate, id)
	return err
}
