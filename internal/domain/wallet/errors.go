package wallet

import "errors"

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrAmountTooSmall    = errors.New("amount too small to process after fee")
	ErrAlreadySettled    = errors.New("reference already settled")
	ErrReferenceConflict = errors.New("reference already used with a different amount")
	ErrKYCRequired       = errors.New("kyc verification required")

	ErrPINNotSet   = errors.New("transaction pin not set up")
	ErrPINExists   = errors.New("transaction pin already set")
	ErrPINInvalid  = errors.New("incorrect transaction pin")
	ErrPINTooWeak  = errors.New("transaction pin too weak")
	ErrPINBadInput = errors.New("pin must be exactly 4 digits")
	ErrPINLocked   = errors.New("pin locked after too many failed attempts")
)
