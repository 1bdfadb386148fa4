package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/domain/user"
	"github.com/ficore/wallet-api/internal/pkg/monnify"
)

// AccountProvisioner reserves dedicated virtual accounts at the payment
// gateway. Satisfied by *monnify.Client.
type AccountProvisioner interface {
	CreateReservedAccount(ctx context.Context, req monnify.ReservedAccountRequest) (*monnify.ReservedAccountResponse, error)
}

// Notifier receives wallet lifecycle events after they commit. Optional;
// delivery is best effort and never blocks the caller's result.
type Notifier interface {
	PINLockedOut(userID uuid.UUID)
	WalletDebited(userID uuid.UUID, amount, newBalance int64, reference string)
	WalletProvisioned(userID uuid.UUID, accountName string)
}

type Service struct {
	repo          *Repository
	users         user.Repository
	provisioner   AccountProvisioner
	accountPrefix string
	notifier      Notifier
}

func NewService(repo *Repository, users user.Repository, provisioner AccountProvisioner, accountPrefix string) *Service {
	return &Service{
		repo:          repo,
		users:         users,
		provisioner:   provisioner,
		accountPrefix: accountPrefix,
	}
}

// SetNotifier wires the wallet event sink. Called once at startup; not safe
// to swap while requests are in flight.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// NewAccountReference builds the reference encoded into reserved-account
// webhooks, e.g. FICORE-a1b2c3d4e5f6.
func (s *Service) NewAccountReference(userID uuid.UUID) string {
	compact := strings.ReplaceAll(userID.String(), "-", "")
	return fmt.Sprintf("%s-%s", s.accountPrefix, compact[:12])
}

// CreateWallet provisions a wallet with a dedicated virtual account. The
// user must have completed KYC capture (BVN and NIN) first.
func (s *Service) CreateWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.KYCComplete() {
		return nil, ErrKYCRequired
	}
	if _, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return nil, ErrWalletExists
	} else if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	ref := s.NewAccountReference(userID)
	acct, err := s.provisioner.CreateReservedAccount(ctx, monnify.ReservedAccountRequest{
		AccountReference: ref,
		AccountName:      u.FullName(),
		CustomerEmail:    u.Email,
		CustomerName:     u.FullName(),
		BVN:              u.BVN.String,
		NIN:              u.NIN.String,
	})
	if err != nil {
		return nil, fmt.Errorf("reserve account: %w", err)
	}

	accounts, err := json.Marshal(acct.Accounts)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		UserID:           userID,
		AccountReference: ref,
		AccountName:      acct.AccountName,
		Accounts:         accounts,
		Status:           WalletActive,
	}
	if err := s.repo.CreateWallet(ctx, w); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("account_reference", ref).
		Msg("wallet provisioned")
	if s.notifier != nil {
		s.notifier.WalletProvisioned(userID, acct.AccountName)
	}
	return s.repo.GetByUserID(ctx, userID)
}

// GetWallet returns the wallet or ErrWalletNotFound.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetBalance returns the current balance in kobo.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Debit spends from the wallet for a purchase. Amount is positive kobo.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, reference string) (int64, error) {
	newBalance, err := s.repo.Debit(ctx, userID, amount, txType, reference)
	if err != nil {
		return 0, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("reference", reference).
		Int64("balance", newBalance).
		Msg("wallet debited")
	if s.notifier != nil {
		s.notifier.WalletDebited(userID, amount, newBalance, reference)
	}
	return newBalance, nil
}

// Credit applies a non-gateway credit such as a refund or an admin
// adjustment. The full amount lands on the balance; deposit fees only
// apply to gateway funding. Replays of the same reference are no-ops.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, reference string) (int64, error) {
	if amount <= 0 || reference == "" {
		return 0, ErrInvalidAmount
	}
	res, err := s.repo.Settle(ctx, SettleParams{
		UserID:     userID,
		Type:       txType,
		Reference:  reference,
		AmountPaid: amount,
		Credit:     amount,
		Provider:   "manual",
	})
	if err != nil {
		return 0, err
	}
	if res.Duplicate {
		log.Warn().
			Str("user_id", userID.String()).
			Str("reference", reference).
			Msg("manual credit replayed, ignoring")
		return s.GetBalance(ctx, userID)
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("reference", reference).
		Int64("balance", res.NewBalance).
		Msg("wallet credited")
	return res.NewBalance, nil
}

// ListTransactions returns recent wallet activity, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}
