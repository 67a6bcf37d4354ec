/**
 * @description
 * Transaction PIN management. PINs are hashed with bcrypt and verified with a
 * lockout after repeated failures. A successful verification issues a
 * short-lived JWT that the client presents when confirming a large advance.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: PIN hashing.
 * - github.com/golang-jwt/jwt/v5: Short-lived confirmation tokens.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const pinTokenPurpose = "transaction_pin"

// SetPIN hashes and stores the user's transaction PIN, replacing any existing
// one and clearing prior failure state.
func (s *Service) SetPIN(ctx context.Context, userID uuid.UUID, pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return errors.New("pin must be 4 to 6 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errors.New("pin must contain digits only")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	return s.repo.UpsertPINHash(ctx, userID, string(hash))
}

// VerifyPINAndIssueToken checks the submitted PIN against the stored hash and
// issues a short-lived confirmation token on success. Repeated failures lock
// the PIN for the configured window.
func (s *Service) VerifyPINAndIssueToken(ctx context.Context, userID uuid.UUID, pin string) (string, error) {
	cred, err := s.repo.GetUserSecurityCredential(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred.LockedUntil != nil && cred.LockedUntil.After(s.now()) {
		return "", ErrPINLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PINHash), []byte(pin)) != nil {
		updated, recErr := s.repo.RecordFailedPINAttempt(ctx, userID, s.cfg.PINMaxAttempts, s.cfg.PINLockoutMinutes*60)
		if recErr != nil {
			s.logger.Error("failed to record pin failure", "user_id", userID, "error", recErr)
		} else if updated.LockedUntil != nil && updated.LockedUntil.After(s.now()) {
			return "", ErrPINLocked
		}
		return "", ErrInvalidPIN
	}

	if err := s.repo.ResetPINFailureState(ctx, userID); err != nil {
		s.logger.Warn("failed to reset pin failure state", "user_id", userID, "error", err)
	}

	now := s.now()
	ttl := time.Duration(s.cfg.PINTokenTTLSeconds) * time.Second
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     userID.String(),
		"purpose": pinTokenPurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.PINTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign pin token: %w", err)
	}
	return signed, nil
}

// ValidatePINToken checks a PIN confirmation token: the signature, the
// purpose claim, expiry, and that it was issued to this user.
func (s *Service) ValidatePINToken(tokenString string, userID uuid.UUID) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.PINTokenSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return ErrInvalidPIN
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidPIN
	}
	if purpose, _ := claims["purpose"].(string); purpose != pinTokenPurpose {
		return ErrInvalidPIN
	}
	if sub, _ := claims["sub"].(string); sub != userID.String() {
		return ErrInvalidPIN
	}
	return nil
}
