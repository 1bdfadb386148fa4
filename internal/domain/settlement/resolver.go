package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/domain/user"
	"github.com/ficore/wallet-api/internal/domain/wallet"
	"github.com/ficore/wallet-api/internal/pkg/monnify"
)

// Resolution method names, recorded on every settlement for audit.
const (
	MethodAccountReference   = "account_reference"
	MethodCustomerEmail      = "customer_email"
	MethodPendingTransaction = "pending_transaction"
)

// Prefix stamped on merchant payment references at verification-payment
// initiation time. Unprefixed payment references are never correlated; the
// provider-assigned transaction reference is matched as-is.
const verificationPayRefPrefix = "VER_"

// Resolution is the outcome of mapping a webhook onto a wallet.
type Resolution struct {
	UserID  uuid.UUID
	Method  string
	Type    wallet.TransactionType
	Pending *wallet.Transaction
}

// Resolver maps an inbound payment event onto exactly one wallet, trying
// strategies in a fixed order and stopping at the first match. The order
// never changes, so the same webhook always resolves the same way.
type Resolver struct {
	wallets    *wallet.Repository
	users      user.Repository
	prefixes   []string
	kycMinimum int64
}

func NewResolver(wallets *wallet.Repository, users user.Repository, prefixes []string, kycMinimum int64) *Resolver {
	norm := make([]string, len(prefixes))
	for i, p := range prefixes {
		norm[i] = NormalizeReference(p)
	}
	return &Resolver{wallets: wallets, users: users, prefixes: norm, kycMinimum: kycMinimum}
}

// NormalizeReference strips separators and uppercases, so references written
// with spaces, dashes or underscores compare equal.
func NormalizeReference(ref string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToUpper(r.Replace(ref))
}

func (r *Resolver) hasKnownPrefix(accountRef string) bool {
	norm := NormalizeReference(accountRef)
	for _, p := range r.prefixes {
		if p != "" && strings.HasPrefix(norm, p) {
			return true
		}
	}
	return false
}

// Resolve runs the cascade: account reference, then customer email, then
// pending-transaction correlation. Returns ErrUnresolved when no strategy
// matches; infrastructure failures surface as-is.
func (r *Resolver) Resolve(ctx context.Context, ev *monnify.WebhookEvent) (*Resolution, error) {
	if res, err := r.byAccountReference(ctx, ev); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	if res, err := r.byCustomerEmail(ctx, ev); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	if res, err := r.byPendingTransaction(ctx, ev); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	return nil, ErrUnresolved
}

func (r *Resolver) byAccountReference(ctx context.Context, ev *monnify.WebhookEvent) (*Resolution, error) {
	if ev.AccountReference == "" || !r.hasKnownPrefix(ev.AccountReference) {
		return nil, nil
	}
	w, err := r.wallets.GetByAccountReference(ctx, ev.AccountReference)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			log.Warn().
				Str("account_reference", ev.AccountReference).
				Msg("known account prefix but no wallet, falling through")
			return nil, nil
		}
		return nil, err
	}
	return &Resolution{UserID: w.UserID, Method: MethodAccountReference, Type: wallet.TransactionTypeFunding}, nil
}

func (r *Resolver) byCustomerEmail(ctx context.Context, ev *monnify.WebhookEvent) (*Resolution, error) {
	if ev.CustomerEmail == "" {
		return nil, nil
	}
	u, err := r.users.GetByEmail(ctx, ev.CustomerEmail)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if _, err := r.wallets.GetByUserID(ctx, u.ID); err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Resolution{UserID: u.ID, Method: MethodCustomerEmail, Type: wallet.TransactionTypeFunding}, nil
}

// byPendingTransaction correlates payments recorded at initiation time that
// carry no usable account reference or email. The provider-assigned
// transaction reference is matched directly; the merchant payment reference
// only participates when it carries the verification prefix. Only payments
// at or above the verification minimum qualify.
func (r *Resolver) byPendingTransaction(ctx context.Context, ev *monnify.WebhookEvent) (*Resolution, error) {
	if ev.AmountPaid < r.kycMinimum {
		return nil, nil
	}

	payRef := ""
	if strings.HasPrefix(ev.PaymentReference, verificationPayRefPrefix) {
		payRef = ev.PaymentReference
	}
	if ev.TransactionReference == "" && payRef == "" {
		return nil, nil
	}

	pending, err := r.wallets.FindPending(ctx, ev.TransactionReference, payRef,
		[]wallet.TransactionType{wallet.TransactionTypeKYC})
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}
	return &Resolution{
		UserID:  pending.UserID,
		Method:  MethodPendingTransaction,
		Type:    wallet.TransactionTypeKYC,
		Pending: pending,
	}, nil
}
