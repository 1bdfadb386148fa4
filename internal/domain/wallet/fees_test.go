package wallet_test

import (
	"errors"
	"testing"

	"github.com/ficore/wallet-api/internal/domain/user"
	"github.com/ficore/wallet-api/internal/domain/wallet"
)

func TestCreditForStandardTier(t *testing.T) {
	schedule := wallet.FeeSchedule{FundingFee: 3000}

	tests := []struct {
		name       string
		amountPaid int64
		wantCredit int64
		wantFee    int64
		wantErr    error
	}{
		{"typical funding", 100000, 97000, 3000, nil},
		{"exactly covers fee plus one kobo", 3001, 1, 3000, nil},
		{"exactly the fee", 3000, 0, 0, wallet.ErrAmountTooSmall},
		{"below the fee", 2000, 0, 0, wallet.ErrAmountTooSmall},
		{"zero amount", 0, 0, 0, wallet.ErrInvalidAmount},
		{"negative amount", -500, 0, 0, wallet.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credit, fee, err := schedule.CreditFor(tt.amountPaid, user.TierStandard)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if credit != tt.wantCredit || fee != tt.wantFee {
				t.Fatalf("got credit=%d fee=%d, want credit=%d fee=%d", credit, fee, tt.wantCredit, tt.wantFee)
			}
		})
	}
}

func TestCreditForPremiumTierNoFee(t *testing.T) {
	schedule := wallet.FeeSchedule{FundingFee: 3000}

	credit, fee, err := schedule.CreditFor(50000, user.TierPremium)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 0 {
		t.Fatalf("premium tier should pay no fee, got %d", fee)
	}
	if credit != 50000 {
		t.Fatalf("expected full credit 50000, got %d", credit)
	}

	// Small payments stay creditable when exempt from the fee.
	credit, fee, err = schedule.CreditFor(100, user.TierPremium)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credit != 100 || fee != 0 {
		t.Fatalf("got credit=%d fee=%d, want credit=100 fee=0", credit, fee)
	}
}

func TestCreditNeverNegative(t *testing.T) {
	schedule := wallet.FeeSchedule{FundingFee: 3000}
	for _, amount := range []int64{1, 100, 2999, 3000} {
		credit, _, err := schedule.CreditFor(amount, user.TierStandard)
		if err == nil && credit <= 0 {
			t.Fatalf("amount %d produced non-positive credit %d without error", amount, credit)
		}
	}
}
