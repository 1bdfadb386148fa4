package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/domain/user"
	"github.com/ficore/wallet-api/internal/domain/wallet"
	"github.com/ficore/wallet-api/internal/pkg/monnify"
)

// Outcome strings returned to the gateway. Every outcome except a signature
// failure is acknowledged with 200 so the gateway stops redelivering.
const (
	OutcomeSettled         = "settled"
	OutcomeDuplicate       = "duplicate"
	OutcomeFailedTooSmall  = "failed_amount_too_small"
	OutcomeUnmatched       = "unmatched"
	OutcomeIgnoredActivity = "account_activity"
	OutcomeIgnoredEvent    = "ignored_event"
	OutcomeIgnoredAmount   = "ignored_amount"
)

// Result is what one webhook delivery produced.
type Result struct {
	Outcome    string
	UserID     uuid.UUID
	Credit     int64
	Fee        int64
	NewBalance int64
	Reference  string
}

// Dispatcher receives post-commit settlement notifications. Implementations
// must not block; failures are theirs to log.
type Dispatcher interface {
	WalletFunded(userID uuid.UUID, credit, fee, newBalance int64, reference string)
	KYCPaymentReceived(userID uuid.UUID, credit, newBalance int64, reference string)
	FundingFailed(userID uuid.UUID, amountPaid int64, reference string)
}

type Service struct {
	secret     string
	wallets    *wallet.Repository
	users      user.Repository
	resolver   *Resolver
	fees       wallet.FeeSchedule
	dispatcher Dispatcher
}

func NewService(secret string, wallets *wallet.Repository, users user.Repository, resolver *Resolver, fees wallet.FeeSchedule, dispatcher Dispatcher) *Service {
	return &Service{
		secret:     secret,
		wallets:    wallets,
		users:      users,
		resolver:   resolver,
		fees:       fees,
		dispatcher: dispatcher,
	}
}

// ProcessWebhook handles one delivery end to end. The signature is checked
// against the raw body before any parsing; everything after a valid
// signature is acknowledged, successfully settled or not, so the gateway
// never retries a payload we have already made a decision about.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signature string) (*Result, error) {
	if !monnify.VerifySignature(s.secret, body, signature) {
		return nil, ErrBadSignature
	}

	ev, err := monnify.ParseWebhook(body)
	if err != nil {
		return nil, ErrMalformed
	}

	if ev.IsAccountActivity() {
		log.Info().
			Str("narration", ev.ActivityNarration).
			Msg("account activity event acknowledged")
		return &Result{Outcome: OutcomeIgnoredActivity}, nil
	}

	if !ev.IsSuccessfulPayment() {
		log.Info().
			Str("event_type", ev.EventType).
			Str("payment_status", ev.PaymentStatus).
			Msg("non-settlement event acknowledged")
		return &Result{Outcome: OutcomeIgnoredEvent}, nil
	}

	if ev.AmountPaid <= 0 {
		log.Warn().
			Str("reference", ev.TransactionReference).
			Int64("amount_paid", ev.AmountPaid).
			Msg("zero or negative amount, acknowledged without settlement")
		return &Result{Outcome: OutcomeIgnoredAmount, Reference: ev.TransactionReference}, nil
	}

	res, err := s.resolver.Resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrUnresolved) {
			log.Warn().
				Str("reference", ev.TransactionReference).
				Str("account_reference", ev.AccountReference).
				Str("customer_email", ev.CustomerEmail).
				Msg("webhook matched no wallet, acknowledged for manual review")
			return &Result{Outcome: OutcomeUnmatched, Reference: ev.TransactionReference}, nil
		}
		return nil, err
	}

	return s.settle(ctx, ev, res)
}

func (s *Service) settle(ctx context.Context, ev *monnify.WebhookEvent, res *Resolution) (*Result, error) {
	u, err := s.users.GetByID(ctx, res.UserID)
	if err != nil {
		return nil, err
	}
	tier := u.FeeTier(time.Now())

	params := wallet.SettleParams{
		UserID:           res.UserID,
		Type:             res.Type,
		Reference:        ev.TransactionReference,
		PaymentReference: ev.PaymentReference,
		AmountPaid:       ev.AmountPaid,
		Provider:         "monnify",
		Metadata:         ev.Raw,
	}
	if res.Pending != nil {
		params.PendingID = uuid.NullUUID{UUID: res.Pending.ID, Valid: true}
	}

	credit, fee, err := s.fees.CreditFor(ev.AmountPaid, tier)
	if err != nil {
		if errors.Is(err, wallet.ErrAmountTooSmall) {
			params.Fee = s.fees.FundingFee
			if _, err := s.wallets.MarkFailed(ctx, params); err != nil {
				return nil, err
			}
			log.Warn().
				Str("user_id", res.UserID.String()).
				Str("reference", ev.TransactionReference).
				Int64("amount_paid", ev.AmountPaid).
				Msg("payment below fee, recorded as failed")
			if s.dispatcher != nil {
				s.dispatcher.FundingFailed(res.UserID, ev.AmountPaid, ev.TransactionReference)
			}
			return &Result{Outcome: OutcomeFailedTooSmall, UserID: res.UserID, Reference: ev.TransactionReference}, nil
		}
		return nil, err
	}
	params.Credit = credit
	params.Fee = fee

	settled, err := s.wallets.Settle(ctx, params)
	if err != nil {
		return nil, err
	}
	if settled.Duplicate {
		log.Info().
			Str("reference", ev.TransactionReference).
			Msg("duplicate delivery, already settled")
		return &Result{Outcome: OutcomeDuplicate, UserID: res.UserID, Reference: ev.TransactionReference}, nil
	}

	log.Info().
		Str("user_id", res.UserID.String()).
		Str("reference", ev.TransactionReference).
		Str("method", res.Method).
		Int64("amount_paid", ev.AmountPaid).
		Int64("credit", credit).
		Int64("fee", fee).
		Int64("balance", settled.NewBalance).
		Msg("payment settled")

	// Notifications run after the ledger commit and never affect the ack.
	if s.dispatcher != nil {
		if res.Type == wallet.TransactionTypeKYC {
			s.dispatcher.KYCPaymentReceived(res.UserID, credit, settled.NewBalance, ev.TransactionReference)
		} else {
			s.dispatcher.WalletFunded(res.UserID, credit, fee, settled.NewBalance, ev.TransactionReference)
		}
	}

	return &Result{
		Outcome:    OutcomeSettled,
		UserID:     res.UserID,
		Credit:     credit,
		Fee:        fee,
		NewBalance: settled.NewBalance,
		Reference:  ev.TransactionReference,
	}, nil
}
