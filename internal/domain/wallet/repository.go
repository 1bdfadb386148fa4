package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// SettleParams describes one settlement to apply. Reference is the gateway's
// external transaction reference and is the idempotency key. PendingID, when
// set, points at a pending transaction resolved by provider-reference
// correlation; it is transitioned instead of inserting a fresh record.
type SettleParams struct {
	UserID           uuid.UUID
	Type             TransactionType
	Reference        string
	PaymentReference string
	AmountPaid       int64
	Credit           int64
	Fee              int64
	Provider         string
	Metadata         []byte
	PendingID        uuid.NullUUID
}

// SettleResult reports what one Settle call did.
type SettleResult struct {
	Duplicate     bool
	NewBalance    int64
	TransactionID uuid.UUID
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// CreateWallet inserts a freshly provisioned wallet.
func (r *Repository) CreateWallet(ctx context.Context, w *Wallet) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, account_reference, account_name, accounts, status, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $4, $5, now(), now())
	`, w.UserID, w.AccountReference, w.AccountName, []byte(w.Accounts), w.Status)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrWalletExists
		}
		return err
	}
	return nil
}

// GetByUserID returns the wallet or ErrWalletNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// GetByAccountReference looks a wallet up by its gateway account reference.
func (r *Repository) GetByAccountReference(ctx context.Context, ref string) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE account_reference = $1`, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// lockWallet takes the per-wallet serialization point. Every balance
// mutation in this file goes through it, so credits and debits to one
// wallet are linearized while unrelated wallets proceed independently.
func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	return balance, err
}

func (r *Repository) updateBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = $1, updated_at = now() WHERE user_id = $2`, balance, userID)
	return err
}

// Settle applies one confirmed payment exactly once. The idempotency guard
// (conditional insert/transition keyed by the unique reference) and the
// balance credit commit in the same transaction, so no reader can observe a
// SUCCESS settlement without its credit. Replays and concurrent deliveries
// of the same reference report Duplicate and change nothing.
func (r *Repository) Settle(ctx context.Context, p SettleParams) (*SettleResult, error) {
	if p.Credit <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	balance, err := r.lockWallet(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	txID, done, err := r.upsertSettlement(ctx, tx, p, StatusSuccess)
	if err != nil {
		return nil, err
	}
	if done {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &SettleResult{Duplicate: true, NewBalance: balance, TransactionID: txID}, nil
	}

	newBalance := balance + p.Credit
	if err := r.updateBalance(ctx, tx, p.UserID, newBalance); err != nil {
		return nil, err
	}

	if p.Fee > 0 {
		if err := r.insertFeeRevenue(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &SettleResult{NewBalance: newBalance, TransactionID: txID}, nil
}

// MarkFailed records a terminal FAILED settlement for a payment that cannot
// be credited (fee exceeds the paid amount). Subject to the same guard: a
// reference that already reached a terminal state is left untouched.
func (r *Repository) MarkFailed(ctx context.Context, p SettleParams) (*SettleResult, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := r.lockWallet(ctx, tx, p.UserID); err != nil {
		return nil, err
	}

	txID, done, err := r.upsertSettlement(ctx, tx, p, StatusFailed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &SettleResult{Duplicate: done, TransactionID: txID}, nil
}

// upsertSettlement is the atomic check-and-insert behind the idempotency
// guard. Returns done=true when the reference already reached a terminal
// state, meaning the caller must not touch the balance.
func (r *Repository) upsertSettlement(ctx context.Context, tx *sqlx.Tx, p SettleParams, terminal TransactionStatus) (uuid.UUID, bool, error) {
	// A resolved pending transaction is transitioned in place; its reference
	// is rewritten to the gateway's, which may trip the unique index if a
	// concurrent delivery has already claimed it.
	if p.PendingID.Valid {
		res, err := tx.ExecContext(ctx, `
			UPDATE wallet_transactions
			SET status = $1, reference = $2, amount = $3, amount_paid = $4, fee = $5,
			    provider = $6, metadata = $7, completed_at = now()
			WHERE id = $8 AND status = 'PENDING'
		`, terminal, p.Reference, settledAmount(p, terminal), p.AmountPaid, p.Fee, p.Provider, p.Metadata, p.PendingID.UUID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return p.PendingID.UUID, true, nil
			}
			return uuid.Nil, false, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return p.PendingID.UUID, false, nil
		}
		// Already transitioned by an earlier delivery.
		return p.PendingID.UUID, true, nil
	}

	var existing struct {
		ID     uuid.UUID         `db:"id"`
		Status TransactionStatus `db:"status"`
	}
	err := tx.GetContext(ctx, &existing, `
		SELECT id, status FROM wallet_transactions WHERE reference = $1 FOR UPDATE
	`, p.Reference)
	switch {
	case err == nil:
		if existing.Status != StatusPending {
			return existing.ID, true, nil
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE wallet_transactions
			SET status = $1, amount = $2, amount_paid = $3, fee = $4,
			    provider = $5, metadata = $6, completed_at = now()
			WHERE id = $7 AND status = 'PENDING'
		`, terminal, settledAmount(p, terminal), p.AmountPaid, p.Fee, p.Provider, p.Metadata, existing.ID)
		if err != nil {
			return uuid.Nil, false, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return existing.ID, true, nil
		}
		return existing.ID, false, nil

	case errors.Is(err, sql.ErrNoRows):
		id := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wallet_transactions
				(id, user_id, type, status, amount, amount_paid, fee, reference, payment_reference, provider, metadata, created_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		`, id, p.UserID, p.Type, terminal, settledAmount(p, terminal), p.AmountPaid, p.Fee,
			p.Reference, nullString(p.PaymentReference), p.Provider, p.Metadata)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return uuid.Nil, true, nil
			}
			return uuid.Nil, false, err
		}
		return id, false, nil

	default:
		return uuid.Nil, false, err
	}
}

func (r *Repository) insertFeeRevenue(ctx context.Context, tx *sqlx.Tx, p SettleParams) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fee_revenue (id, user_id, category, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, uuid.New(), p.UserID, string(p.Type), p.Fee, p.Reference)
	return err
}

// Debit withdraws from a wallet for purchase flows. Balance sufficiency is
// re-checked under the wallet lock; a shortfall fails with no mutation.
// Retrying the same reference with the same amount is a no-op; a different
// amount is a conflict.
func (r *Repository) Debit(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, reference string) (int64, error) {
	if amount <= 0 || reference == "" {
		return 0, ErrInvalidAmount
	}

	tx, err := r.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	var existingAmount int64
	err = tx.GetContext(ctx, &existingAmount, `
		SELECT amount FROM wallet_transactions WHERE reference = $1 LIMIT 1
	`, reference)
	if err == nil {
		if existingAmount != -amount {
			return 0, ErrReferenceConflict
		}
		return balance, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	newBalance := balance - amount
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(id, user_id, type, status, amount, amount_paid, fee, reference, created_at, completed_at)
		VALUES ($1, $2, $3, 'SUCCESS', $4, 0, 0, $5, now(), now())
	`, uuid.New(), userID, txType, -amount, reference)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrReferenceConflict
		}
		return 0, err
	}

	if err := r.updateBalance(ctx, tx, userID, newBalance); err != nil {
		return 0, err
	}

	return newBalance, tx.Commit()
}

// CreatePending records a transaction at initiation time, before the gateway
// confirms it. The webhook later transitions it through Settle.
func (r *Repository) CreatePending(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(id, user_id, type, status, amount, amount_paid, fee, reference, payment_reference, provider, metadata, created_at)
		VALUES ($1, $2, $3, 'PENDING', $4, $5, $6, $7, $8, $9, $10, now())
	`, t.ID, t.UserID, t.Type, t.Amount, t.AmountPaid, t.Fee, t.Reference, t.PaymentReference, t.Provider, []byte(t.Metadata))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadySettled
		}
		return err
	}
	return nil
}

// FindPending correlates a webhook with a transaction captured at initiation
// time, matching either the provider transaction reference or the merchant
// payment reference, restricted to the given types.
func (r *Repository) FindPending(ctx context.Context, transactionRef, paymentRef string, types []TransactionType) (*Transaction, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	var t Transaction
	err := r.db.GetContext(ctx, &t, `
		SELECT * FROM wallet_transactions
		WHERE status = 'PENDING'
		  AND type = ANY($1)
		  AND (reference = $2 OR ($3 <> '' AND payment_reference = $3))
		ORDER BY created_at
		LIMIT 1
	`, pq.Array(typeNames), transactionRef, paymentRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetTransactionByReference returns a settlement record by external reference.
func (r *Repository) GetTransactionByReference(ctx context.Context, reference string) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, `SELECT * FROM wallet_transactions WHERE reference = $1`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListTransactions returns a user's recent activity, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	var txns []*Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return txns, err
}

// --- PIN persistence ---

// SetPIN stores the PIN hash on first setup; fails if one already exists.
func (r *Repository) SetPIN(ctx context.Context, userID uuid.UUID, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets
		SET pin_hash = $1, pin_set_at = now(), pin_attempts = 0, pin_locked_until = NULL, updated_at = now()
		WHERE user_id = $2 AND pin_hash IS NULL
	`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPINExists
	}
	return nil
}

// ReplacePIN overwrites an existing PIN hash (change-PIN flow).
func (r *Repository) ReplacePIN(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets
		SET pin_hash = $1, pin_set_at = now(), pin_attempts = 0, pin_locked_until = NULL, updated_at = now()
		WHERE user_id = $2
	`, hash, userID)
	return err
}

// RecordPINFailure bumps the attempt counter and optionally sets a lockout.
func (r *Repository) RecordPINFailure(ctx context.Context, userID uuid.UUID, attempts int, lockedUntil *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET pin_attempts = $1, pin_locked_until = $2, updated_at = now() WHERE user_id = $3
	`, attempts, lockedUntil, userID)
	return err
}

// ResetPINAttempts clears failure state after a successful validation.
func (r *Repository) ResetPINAttempts(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET pin_attempts = 0, pin_locked_until = NULL, updated_at = now() WHERE user_id = $1
	`, userID)
	return err
}

// settledAmount is what lands in the amount column: the net credit for a
// SUCCESS, zero for a FAILED record.
func settledAmount(p SettleParams, terminal TransactionStatus) int64 {
	if terminal == StatusFailed {
		return 0
	}
	return p.Credit
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
