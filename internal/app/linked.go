/**
 * @description
 * Linked external bank account use cases. The account holder name and routing
 * number are encrypted at rest; only the last four digits of the account
 * number are kept in clear. Verification goes through the external provider
 * when one is configured, otherwise a local check is applied so the demo
 * works offline. The first verified account becomes the user's primary.
 */

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/pkg/bankclient"
)

// LinkAccount registers an external bank account in pending state.
func (s *Service) LinkAccount(ctx context.Context, userID uuid.UUID, req domain.LinkAccountRequest) (*domain.LinkedAccount, error) {
	if req.BankName == "" || req.AccountHolderName == "" {
		return nil, errors.New("bank name and account holder name are required")
	}
	if len(req.RoutingNumber) != 9 {
		return nil, errors.New("routing number must be 9 digits")
	}
	if len(req.AccountNumber) < 4 {
		return nil, errors.New("account number is too short")
	}

	holderName := req.AccountHolderName
	routing := req.RoutingNumber
	if s.codec != nil {
		var err error
		if holderName, err = s.codec.Encrypt(req.AccountHolderName); err != nil {
			return nil, fmt.Errorf("encrypt holder name: %w", err)
		}
		if routing, err = s.codec.Encrypt(req.RoutingNumber); err != nil {
			return nil, fmt.Errorf("encrypt routing number: %w", err)
		}
	}

	linked := &domain.LinkedAccount{
		ID:                 uuid.New(),
		UserID:             userID,
		BankName:           req.BankName,
		AccountHolderName:  holderName,
		RoutingNumber:      routing,
		AccountNumberLast4: req.AccountNumber[len(req.AccountNumber)-4:],
		VerificationStatus: domain.VerificationPending,
	}
	if err := s.repo.CreateLinkedAccount(ctx, linked); err != nil {
		return nil, err
	}

	// Return display values, not ciphertext.
	linked.AccountHolderName = req.AccountHolderName
	linked.RoutingNumber = req.RoutingNumber
	return linked, nil
}

// VerifyLinkedAccount runs ownership verification on a pending linked
// account. The first account to verify becomes primary.
func (s *Service) VerifyLinkedAccount(ctx context.Context, userID, linkedAccountID uuid.UUID) (*domain.LinkedAccount, error) {
	linked, err := s.repo.FindLinkedAccountForUser(ctx, userID, linkedAccountID)
	if err != nil {
		return nil, err
	}
	if linked.VerificationStatus == domain.VerificationVerified {
		return linked, nil
	}

	status := domain.VerificationVerified
	if s.bankVerifier != nil {
		holder, routing := s.decryptLinkedFields(linked)
		resp, err := s.bankVerifier.VerifyAccount(ctx, bankclient.VerificationRequest{
			RoutingNumber:      routing,
			AccountNumberLast4: linked.AccountNumberLast4,
			AccountHolderName:  holder,
		})
		if err != nil {
			return nil, fmt.Errorf("bank verification: %w", err)
		}
		if resp.Status != domain.VerificationVerified {
			status = domain.VerificationFailed
		}
	}

	if err := s.repo.UpdateLinkedAccountVerification(ctx, linked.ID, status); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, "linked_account.verified", map[string]any{
		"linked_account_id": linked.ID,
		"user_id":           userID,
		"status":            status,
	})
	return s.getLinkedAccountForDisplay(ctx, userID, linked.ID)
}

// SetPrimaryLinkedAccount marks a verified linked account as the user's
// primary, demoting the previous one.
func (s *Service) SetPrimaryLinkedAccount(ctx context.Context, userID, linkedAccountID uuid.UUID) error {
	return s.repo.SetPrimaryLinkedAccount(ctx, userID, linkedAccountID)
}

// ListLinkedAccounts returns the user's linked accounts with encrypted fields
// decrypted for display.
func (s *Service) ListLinkedAccounts(ctx context.Context, userID uuid.UUID) ([]domain.LinkedAccount, error) {
	linked, err := s.repo.FindLinkedAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range linked {
		holder, routing := s.decryptLinkedFields(&linked[i])
		linked[i].AccountHolderName = holder
		linked[i].RoutingNumber = routing
	}
	return linked, nil
}

func (s *Service) getLinkedAccountForDisplay(ctx context.Context, userID, linkedAccountID uuid.UUID) (*domain.LinkedAccount, error) {
	linked, err := s.repo.FindLinkedAccountForUser(ctx, userID, linkedAccountID)
	if err != nil {
		return nil, err
	}
	holder, routing := s.decryptLinkedFields(linked)
	linked.AccountHolderName = holder
	linked.RoutingNumber = routing
	return linked, nil
}

// decryptLinkedFields returns the clear holder name and routing number,
// falling back to the stored values when no codec is configured or rows
// predate encryption.
func (s *Service) decryptLinkedFields(linked *domain.LinkedAccount) (holder, routing string) {
	holder, routing = linked.AccountHolderName, linked.RoutingNumber
	if s.codec == nil {
		return holder, routing
	}
	if v, err := s.codec.Decrypt(linked.AccountHolderName); err == nil {
		holder = v
	}
	if v, err := s.codec.Decrypt(linked.RoutingNumber); err == nil {
		routing = v
	}
	return holder, routing
}
