package wallet

import "github.com/ficore/wallet-api/internal/domain/user"

// FeeSchedule computes fee-adjusted credits. Pure; storage-free so it can be
// tested without a database.
type FeeSchedule struct {
	FundingFee int64 // flat deposit fee in kobo for standard-tier accounts
}

// CreditFor returns the amount to credit and the fee withheld for a paid
// amount. Premium tiers are fee-exempt. A credit that would be zero or
// negative returns ErrAmountTooSmall; the caller must mark the settlement
// FAILED instead of crediting.
func (f FeeSchedule) CreditFor(amountPaid int64, tier user.Tier) (credit, fee int64, err error) {
	if amountPaid <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if tier != user.TierPremium {
		fee = f.FundingFee
	}
	credit = amountPaid - fee
	if credit <= 0 {
		return 0, fee, ErrAmountTooSmall
	}
	return credit, fee, nil
}
