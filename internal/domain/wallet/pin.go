package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	pinMaxAttempts     = 3
	pinLockoutDuration = 15 * time.Minute
)

// Trivially guessable PINs rejected at setup and change time.
var weakPINs = map[string]struct{}{
	"0000": {}, "1111": {}, "2222": {}, "3333": {}, "4444": {},
	"5555": {}, "6666": {}, "7777": {}, "8888": {}, "9999": {},
	"1234": {}, "4321": {}, "0123": {}, "3210": {},
}

// PINStatus summarizes PIN state for the client without exposing the hash.
type PINStatus struct {
	IsSet       bool       `json:"is_set"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	SetAt       *time.Time `json:"set_at,omitempty"`
}

func validatePINFormat(pin string) error {
	if len(pin) != 4 {
		return ErrPINBadInput
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return ErrPINBadInput
		}
	}
	if _, weak := weakPINs[pin]; weak {
		return ErrPINTooWeak
	}
	return nil
}

// SetupPIN sets the transaction PIN for the first time.
func (s *Service) SetupPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	if err := validatePINFormat(pin); err != nil {
		return err
	}
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if w.HasPIN() {
		return ErrPINExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPIN(ctx, userID, string(hash)); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Msg("transaction pin set")
	return nil
}

// ValidatePIN checks the PIN, counting failures. Three misses lock the PIN
// for fifteen minutes; successes reset the counter.
func (s *Service) ValidatePIN(ctx context.Context, userID uuid.UUID, pin string) error {
	if len(pin) != 4 {
		return ErrPINBadInput
	}
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !w.HasPIN() {
		return ErrPINNotSet
	}
	now := time.Now()
	if w.PINLocked(now) {
		return ErrPINLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(w.PINHash.String), []byte(pin)) != nil {
		attempts := w.PINAttempts + 1
		var lockedUntil *time.Time
		if attempts >= pinMaxAttempts {
			t := now.Add(pinLockoutDuration)
			lockedUntil = &t
		}
		if err := s.repo.RecordPINFailure(ctx, userID, attempts, lockedUntil); err != nil {
			return err
		}
		if lockedUntil != nil {
			log.Warn().Str("user_id", userID.String()).Msg("transaction pin locked")
			if s.notifier != nil {
				s.notifier.PINLockedOut(userID)
			}
			return ErrPINLocked
		}
		return ErrPINInvalid
	}

	if w.PINAttempts > 0 {
		if err := s.repo.ResetPINAttempts(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// ChangePIN replaces the PIN after validating the current one.
func (s *Service) ChangePIN(ctx context.Context, userID uuid.UUID, currentPIN, newPIN string) error {
	if err := validatePINFormat(newPIN); err != nil {
		return err
	}
	if err := s.ValidatePIN(ctx, userID, currentPIN); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.ReplacePIN(ctx, userID, string(hash)); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Msg("transaction pin changed")
	return nil
}

// GetPINStatus reports whether a PIN is set and whether it is locked.
func (s *Service) GetPINStatus(ctx context.Context, userID uuid.UUID) (*PINStatus, error) {
	w, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := &PINStatus{IsSet: w.HasPIN()}
	if w.PINLocked(time.Now()) {
		status.Locked = true
		t := w.PINLockedUntil.Time
		status.LockedUntil = &t
	}
	if w.PINSetAt.Valid {
		t := w.PINSetAt.Time
		status.SetAt = &t
	}
	return status, nil
}
