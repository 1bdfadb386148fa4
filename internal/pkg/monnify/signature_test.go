package monnify

import (
	"strings"
	"testing"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	body := []byte(`{"eventType":"SUCCESSFUL_TRANSACTION","eventData":{"amountPaid":"500.00"}}`)
	sig := ComputeSignature("secret-key", body)

	if !VerifySignature("secret-key", body, sig) {
		t.Fatal("expected computed signature to verify")
	}
	if !VerifySignature("secret-key", body, strings.ToUpper(sig)) {
		t.Fatal("expected case-insensitive verification")
	}
}

func TestVerifySignature_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"amountPaid":"500.00"}`)
	sig := ComputeSignature("secret-key", body)

	tampered := []byte(`{"amountPaid":"5000.00"}`)
	if VerifySignature("secret-key", tampered, sig) {
		t.Fatal("expected tampered body to fail verification")
	}
	if VerifySignature("other-key", body, sig) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestVerifySignature_EmptyInputsFail(t *testing.T) {
	body := []byte(`{}`)
	if VerifySignature("", body, ComputeSignature("", body)) {
		t.Fatal("empty secret must never verify")
	}
	if VerifySignature("secret", body, "") {
		t.Fatal("empty signature must never verify")
	}
}

func TestComputeSignature_KnownVector(t *testing.T) {
	// echo -n 'abc' | openssl dgst -sha512 -hmac 'key'
	sig := ComputeSignature("key", []byte("abc"))
	want := "3926a207c8c42b0c41792cbd3e1a1aaaf5f7a25704f62dfc939c4987dd7ce060009c5bb1c2447355b3216f10b537e9afa7b64a4e5391b0d631172d07939e087a"
	if sig != want {
		t.Fatalf("unexpected signature:\nwant %s\ngot  %s", want, sig)
	}
}
