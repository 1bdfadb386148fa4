package settlement_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ficore/wallet-api/internal/domain/settlement"
	"github.com/ficore/wallet-api/internal/domain/wallet"
)

func TestNormalizeReference(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"FICORE-abc123", "FICOREABC123"},
		{"ficore_abc 123", "FICOREABC123"},
		{" fi co-re_123 ", "FICORE123"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := settlement.NormalizeReference(tt.in); got != tt.want {
			t.Errorf("NormalizeReference(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolverPrefersAccountReferenceOverEmail(t *testing.T) {
	f := newFixture(t)

	// A second user owns the email; the account reference belongs to the
	// fixture user. The reference strategy must win.
	otherID := uuid.New()
	otherEmail := fmt.Sprintf("other_%s@test.com", otherID.String()[:8])
	if _, err := f.db.Exec(`
		INSERT INTO users (id, email, password_hash, role, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, 'hash', 'user', 'Other', 'User', now(), now())
	`, otherID, otherEmail); err != nil {
		t.Fatalf("create other user failed: %v", err)
	}
	if _, err := f.db.Exec(`
		INSERT INTO wallets (user_id, balance, account_reference, account_name, status, created_at, updated_at)
		VALUES ($1, 0, $2, 'Other User', 'active', now(), now())
	`, otherID, fmt.Sprintf("FICORE-%s", otherID.String()[:12])); err != nil {
		t.Fatalf("create other wallet failed: %v", err)
	}

	body := classicWebhook("1000.00", "MNFY|ORD|1", f.accountRef, otherEmail)
	res, err := f.svc.ProcessWebhook(context.Background(), body, signed(body))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.UserID != f.userID {
		t.Fatal("email strategy ran before account reference")
	}
}

func TestResolverCorrelatesPendingVerification(t *testing.T) {
	f := newFixture(t)

	pending := &wallet.Transaction{
		UserID:    f.userID,
		Type:      wallet.TransactionTypeKYC,
		Amount:    7000,
		Reference: "FICORE_QP_abc123",
	}
	if err := f.wallets.CreatePending(context.Background(), pending); err != nil {
		t.Fatalf("create pending failed: %v", err)
	}

	// No account reference, no email. Only the marked transaction reference.
	body := classicWebhook("100.00", "FICORE_QP_abc123", "", "")
	res, err := f.svc.ProcessWebhook(context.Background(), body, signed(body))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Outcome != settlement.OutcomeSettled {
		t.Fatalf("expected settled, got %s", res.Outcome)
	}
	if res.UserID != f.userID {
		t.Fatal("pending correlation resolved wrong user")
	}

	txn, err := f.wallets.GetTransactionByReference(context.Background(), "FICORE_QP_abc123")
	if err != nil || txn == nil {
		t.Fatalf("settled transaction missing: %v", err)
	}
	if txn.ID != pending.ID {
		t.Fatal("settlement created a new row instead of transitioning the pending one")
	}
	if txn.Status != wallet.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", txn.Status)
	}

	if f.dispatcher.countKind("kyc") != 1 {
		t.Fatalf("expected a verification-payment notification, got %d", f.dispatcher.countKind("kyc"))
	}
	if f.dispatcher.countKind("funded") != 0 {
		t.Fatal("verification settlement dispatched a generic funding notification")
	}
}

func TestResolverCorrelatesGatewayReference(t *testing.T) {
	f := newFixture(t)

	// A verification payment recorded at initiation time under the
	// gateway's own reference, which carries no merchant prefix.
	pending := &wallet.Transaction{
		UserID:    f.userID,
		Type:      wallet.TransactionTypeKYC,
		Amount:    7000,
		Reference: "MNFY|88|20260831|000042",
	}
	if err := f.wallets.CreatePending(context.Background(), pending); err != nil {
		t.Fatalf("create pending failed: %v", err)
	}

	body := classicWebhook("100.00", "MNFY|88|20260831|000042", "", "")
	res, err := f.svc.ProcessWebhook(context.Background(), body, signed(body))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Outcome != settlement.OutcomeSettled {
		t.Fatalf("expected settled, got %s", res.Outcome)
	}
	if res.UserID != f.userID {
		t.Fatal("gateway-reference correlation resolved wrong user")
	}

	txn, err := f.wallets.GetTransactionByReference(context.Background(), "MNFY|88|20260831|000042")
	if err != nil || txn == nil {
		t.Fatalf("settled transaction missing: %v", err)
	}
	if txn.ID != pending.ID {
		t.Fatal("settlement created a new row instead of transitioning the pending one")
	}
}

func TestResolverIgnoresSmallUnmarkedPayments(t *testing.T) {
	f := newFixture(t)

	pending := &wallet.Transaction{
		UserID:    f.userID,
		Type:      wallet.TransactionTypeKYC,
		Amount:    7000,
		Reference: "FICORE_QP_below",
	}
	if err := f.wallets.CreatePending(context.Background(), pending); err != nil {
		t.Fatalf("create pending failed: %v", err)
	}

	// 50 naira is below the 70 naira verification minimum.
	body := classicWebhook("50.00", "FICORE_QP_below", "", "")
	res, err := f.svc.ProcessWebhook(context.Background(), body, signed(body))
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if res.Outcome != settlement.OutcomeUnmatched {
		t.Fatalf("expected unmatched, got %s", res.Outcome)
	}
}
