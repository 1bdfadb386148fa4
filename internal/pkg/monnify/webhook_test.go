package monnify

import "testing"

func TestParseWebhook_ClassicEnvelope(t *testing.T) {
	body := []byte(`{
		"eventType": "SUCCESSFUL_TRANSACTION",
		"eventData": {
			"amountPaid": "500.00",
			"transactionReference": "MNFY|20260101|000123",
			"paymentReference": "PAY-42",
			"customer": {"email": "ada@example.com"},
			"product": {"type": "RESERVED_ACCOUNT", "reference": "FICORE-ABC"}
		}
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.IsSuccessfulPayment() {
		t.Fatal("expected successful payment event")
	}
	if ev.AmountPaid != 50000 {
		t.Fatalf("expected 50000 kobo, got %d", ev.AmountPaid)
	}
	if ev.TransactionReference != "MNFY|20260101|000123" {
		t.Fatalf("unexpected transaction reference: %s", ev.TransactionReference)
	}
	if ev.AccountReference != "FICORE-ABC" {
		t.Fatalf("unexpected account reference: %s", ev.AccountReference)
	}
	if ev.CustomerEmail != "ada@example.com" {
		t.Fatalf("unexpected customer email: %s", ev.CustomerEmail)
	}
}

func TestParseWebhook_FlatFormat(t *testing.T) {
	body := []byte(`{
		"paymentStatus": "paid",
		"completed": true,
		"amountPaid": 250.50,
		"transactionReference": "TR-9",
		"accountReference": "FICORE_XYZ",
		"customerEmail": "obi@example.com"
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.IsSuccessfulPayment() {
		t.Fatal("expected flat-format paid+completed to count as successful")
	}
	if ev.AmountPaid != 25050 {
		t.Fatalf("expected 25050 kobo, got %d", ev.AmountPaid)
	}
	if ev.AccountReference != "FICORE_XYZ" {
		t.Fatalf("unexpected account reference: %s", ev.AccountReference)
	}
	if ev.CustomerEmail != "obi@example.com" {
		t.Fatalf("unexpected customer email: %s", ev.CustomerEmail)
	}
}

func TestParseWebhook_AccountActivity(t *testing.T) {
	body := []byte(`{
		"eventType": "ACCOUNT_ACTIVITY",
		"eventData": {"activityType": "CREDIT", "amount": "30.00", "narration": "COMMISSION"}
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.IsAccountActivity() {
		t.Fatal("expected account activity event")
	}
	if ev.IsSuccessfulPayment() {
		t.Fatal("account activity must not settle as a payment")
	}
}

func TestParseWebhook_Malformed(t *testing.T) {
	if _, err := ParseWebhook([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
