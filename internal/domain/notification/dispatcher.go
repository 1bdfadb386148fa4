package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ficore/wallet-api/internal/pkg/monnify"
)

// StreamPublisher pushes realtime events to connected clients. Satisfied by
// the stream manager; a nil publisher disables realtime delivery.
type StreamPublisher interface {
	PublishBalanceUpdate(userID uuid.UUID, newBalance, amount int64, reference string)
}

// Dispatcher delivers post-settlement notifications. Both the durable record
// and the realtime push run outside the webhook request; a failure in either
// is logged and swallowed, the settlement is already committed.
type Dispatcher struct {
	svc     *Service
	stream  StreamPublisher
	timeout time.Duration
}

func NewDispatcher(svc *Service, stream StreamPublisher) *Dispatcher {
	return &Dispatcher{svc: svc, stream: stream, timeout: 10 * time.Second}
}

// WalletFunded records a funding notification and pushes the new balance to
// the user's live session, if any. Never blocks the caller.
func (d *Dispatcher) WalletFunded(userID uuid.UUID, credit, fee, newBalance int64, reference string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		body := fmt.Sprintf("Your wallet has been credited with ₦%s.", monnify.FormatKoboAsNaira(credit))
		if fee > 0 {
			body = fmt.Sprintf("Your wallet has been credited with ₦%s (₦%s processing fee applied).",
				monnify.FormatKoboAsNaira(credit), monnify.FormatKoboAsNaira(fee))
		}

		_, err := d.svc.Create(ctx, userID, TypeWalletFunded, "Wallet funded", body, &NotificationData{
			Reference:  reference,
			Amount:     &credit,
			Fee:        &fee,
			NewBalance: &newBalance,
		})
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("reference", reference).
				Msg("funding notification not recorded")
		}

		if d.stream != nil {
			d.stream.PublishBalanceUpdate(userID, newBalance, credit, reference)
		}
	}()
}

// KYCPaymentReceived records a verification-payment notification and pushes
// the new balance, since the payment also lands in the wallet.
func (d *Dispatcher) KYCPaymentReceived(userID uuid.UUID, credit, newBalance int64, reference string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		body := fmt.Sprintf("Your identity verification payment of ₦%s was received.", monnify.FormatKoboAsNaira(credit))
		_, err := d.svc.Create(ctx, userID, TypeKYCPaymentRecv, "Verification payment received", body, &NotificationData{
			Reference:  reference,
			Amount:     &credit,
			NewBalance: &newBalance,
		})
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("reference", reference).
				Msg("kyc payment notification not recorded")
		}

		if d.stream != nil {
			d.stream.PublishBalanceUpdate(userID, newBalance, credit, reference)
		}
	}()
}

// FundingFailed records why a deposit did not credit. No balance push, the
// wallet did not change.
func (d *Dispatcher) FundingFailed(userID uuid.UUID, amountPaid int64, reference string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		body := fmt.Sprintf("Your deposit of ₦%s was too small to credit after the processing fee.",
			monnify.FormatKoboAsNaira(amountPaid))
		_, err := d.svc.Create(ctx, userID, TypeFundingFailed, "Deposit not credited", body, &NotificationData{
			Reference: reference,
			Amount:    &amountPaid,
		})
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("reference", reference).
				Msg("funding failure notification not recorded")
		}
	}()
}

// WalletDebited records a purchase charge and pushes the reduced balance.
func (d *Dispatcher) WalletDebited(userID uuid.UUID, amount, newBalance int64, reference string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		body := fmt.Sprintf("₦%s was charged from your wallet.", monnify.FormatKoboAsNaira(amount))
		_, err := d.svc.Create(ctx, userID, TypeWalletDebited, "Wallet debited", body, &NotificationData{
			Reference:  reference,
			Amount:     &amount,
			NewBalance: &newBalance,
		})
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID.String()).
				Str("reference", reference).
				Msg("debit notification not recorded")
		}

		if d.stream != nil {
			d.stream.PublishBalanceUpdate(userID, newBalance, -amount, reference)
		}
	}()
}

// WalletProvisioned tells the user their virtual account is ready.
func (d *Dispatcher) WalletProvisioned(userID uuid.UUID, accountName string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		_, err := d.svc.Create(ctx, userID, TypeWalletProvision, "Wallet ready",
			fmt.Sprintf("Your dedicated account %q is ready to receive deposits.", accountName), nil)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("provisioning notification not recorded")
		}
	}()
}

// PINLockedOut records a security notification when the transaction PIN
// locks after repeated failures.
func (d *Dispatcher) PINLockedOut(userID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		_, err := d.svc.Create(ctx, userID, TypePINLocked, "Transaction PIN locked",
			"Your PIN was locked for 15 minutes after 3 failed attempts.", nil)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("pin lockout notification not recorded")
		}
	}()
}
