package monnify

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the transaction-notification header Monnify signs
// webhook deliveries with.
const SignatureHeader = "monnify-signature"

// ComputeSignature returns the hex HMAC-SHA512 of the raw request body.
// The signature is computed over the exact bytes received on the wire,
// never over a re-serialized payload.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a header-supplied signature against the raw body
// using constant-time comparison. An empty secret or signature always fails.
func VerifySignature(secret string, body []byte, received string) bool {
	if secret == "" || received == "" {
		return false
	}
	expected := ComputeSignature(secret, body)
	received = strings.ToLower(strings.TrimSpace(received))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
