package settlement

import "errors"

var (
	ErrBadSignature = errors.New("webhook signature mismatch")
	ErrMalformed    = errors.New("malformed webhook payload")
	ErrUnresolved   = errors.New("no wallet resolved for webhook")
)
