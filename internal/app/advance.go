/**
 * @description
 * ExtraCash advance use cases: eligibility checks, advance requests, funding,
 * repayment, and the scheduled jobs that fund standard-speed advances and
 * sweep overdue ones. At most one advance may be active per user; express
 * advances fund immediately with a percentage fee, standard advances fund
 * free of charge after a configured delay.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

// CheckEligibility evaluates the user's advance eligibility from their ledger
// history without creating anything.
func (s *Service) CheckEligibility(ctx context.Context, userID uuid.UUID) (*domain.EligibilityResult, error) {
	snapshot, err := s.repo.GetEligibilitySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := ScoreEligibility(snapshot, s.now())
	result.HasLinkedBank = snapshot.HasVerifiedLinkedBank
	return &result, nil
}

// RequestAdvance creates a new ExtraCash advance. The caller must be
// eligible, hold a verified linked bank account, and stay within the amount
// band their score allows. Amounts above the PIN threshold require a valid
// PIN confirmation token when the user has a PIN configured.
func (s *Service) RequestAdvance(ctx context.Context, userID uuid.UUID, amount, tip int64, deliverySpeed, pinToken string) (*domain.Advance, error) {
	if deliverySpeed != domain.DeliverySpeedExpress && deliverySpeed != domain.DeliverySpeedStandard {
		return nil, ErrInvalidDeliverySpeed
	}
	if tip < 0 {
		return nil, ErrInvalidAmount
	}

	if s.rateLimiter != nil {
		allowed, retryAfter, err := s.rateLimiter.Allow(ctx, userID.String())
		if err != nil {
			s.logger.Warn("advance rate limiter unavailable", "error", err)
		} else if !allowed {
			s.logger.Info("advance request rate limited", "user_id", userID, "retry_after_s", retryAfter)
			return nil, ErrRateLimited
		}
	}

	snapshot, err := s.repo.GetEligibilitySnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !snapshot.HasVerifiedLinkedBank {
		return nil, ErrNoLinkedBank
	}
	result := ScoreEligibility(snapshot, s.now())
	if !result.Eligible {
		return nil, ErrNotEligible
	}
	if amount < MinAdvanceAmount || amount > result.MaxAmount {
		return nil, ErrAmountOutOfRange
	}

	if err := s.confirmPINForAmount(ctx, userID, amount, pinToken); err != nil {
		return nil, err
	}

	// Re-check exclusivity against the store right before inserting; the
	// snapshot read above may be stale under concurrent requests.
	if _, err := s.repo.FindActiveAdvanceByUserID(ctx, userID); err == nil {
		return nil, ErrNotEligible
	} else if !errors.Is(err, store.ErrAdvanceNotFound) {
		return nil, err
	}

	checking, err := s.repo.FindAccountByType(ctx, userID, domain.AccountTypeChecking)
	if err != nil {
		return nil, err
	}

	var fee int64
	if deliverySpeed == domain.DeliverySpeedExpress {
		fee = domain.PercentFee(amount, s.cfg.ExpressFeePercent)
	}

	now := s.now()
	advance := &domain.Advance{
		ID:               uuid.New(),
		UserID:           userID,
		AccountID:        checking.ID,
		Amount:           amount,
		Fee:              fee,
		Tip:              tip,
		DeliverySpeed:    deliverySpeed,
		Status:           domain.AdvanceStatusApproved,
		EligibilityScore: result.Score,
		RepaymentDate:    now.AddDate(0, 0, s.cfg.RepaymentTermDays),
	}
	if err := s.repo.CreateAdvance(ctx, advance); err != nil {
		return nil, err
	}

	if deliverySpeed == domain.DeliverySpeedExpress {
		if _, err := s.repo.FundAdvance(ctx, advance.ID, checking.ID, amount, "ExtraCash advance"); err != nil {
			return nil, fmt.Errorf("fund express advance: %w", err)
		}
		advance.Status = domain.AdvanceStatusFunded
		disbursed := s.now()
		advance.DisbursedAt = &disbursed
	}

	s.publishEvent(ctx, "advance.requested", map[string]any{
		"advance_id":     advance.ID,
		"user_id":        userID,
		"amount":         amount,
		"delivery_speed": deliverySpeed,
		"status":         advance.Status,
	})
	return advance, nil
}

// confirmPINForAmount enforces PIN confirmation on large advances. Users who
// never set a PIN are not gated.
func (s *Service) confirmPINForAmount(ctx context.Context, userID uuid.UUID, amount int64, pinToken string) error {
	threshold := int64(s.cfg.PINThresholdDollars) * 100
	if threshold <= 0 || amount <= threshold {
		return nil
	}
	_, err := s.repo.GetUserSecurityCredential(ctx, userID)
	if errors.Is(err, store.ErrPINNotSet) {
		return nil
	}
	if err != nil {
		return err
	}
	if pinToken == "" {
		return ErrPINRequired
	}
	return s.ValidatePINToken(pinToken, userID)
}

// GetAdvance returns one of the user's advances.
func (s *Service) GetAdvance(ctx context.Context, userID, advanceID uuid.UUID) (*domain.Advance, error) {
	return s.repo.FindAdvanceForUser(ctx, userID, advanceID)
}

// ListAdvances returns the user's advance history, newest first.
func (s *Service) ListAdvances(ctx context.Context, userID uuid.UUID) ([]domain.Advance, error) {
	return s.repo.FindAdvancesByUserID(ctx, userID)
}

// RepayAdvance settles an advance in full (principal + fee + tip) from the
// user's checking account. Partial repayment is not supported.
func (s *Service) RepayAdvance(ctx context.Context, userID, advanceID uuid.UUID) (*domain.RepaymentResult, error) {
	advance, err := s.repo.FindAdvanceForUser(ctx, userID, advanceID)
	if err != nil {
		return nil, err
	}
	switch advance.Status {
	case domain.AdvanceStatusFunded, domain.AdvanceStatusRepaymentScheduled, domain.AdvanceStatusOverdue:
	default:
		return nil, ErrAdvanceNotRepayable
	}

	total := advance.Amount + advance.Fee + advance.Tip
	entry, repaidAt, err := s.repo.RepayAdvance(ctx, advance.ID, advance.AccountID, total, "ExtraCash repayment")
	if err != nil {
		// The store re-checks status under the row lock; a repayment that
		// raced another one loses here even though the read above saw a
		// repayable status.
		if errors.Is(err, store.ErrAdvanceNotRepayable) {
			return nil, ErrAdvanceNotRepayable
		}
		return nil, err
	}

	s.publishEvent(ctx, "advance.repaid", map[string]any{
		"advance_id": advance.ID,
		"user_id":    userID,
		"amount":     total,
	})
	return &domain.RepaymentResult{
		AmountRepaid: total,
		NewBalance:   entry.BalanceAfter,
		RepaidAt:     repaidAt,
	}, nil
}

// FundApprovedAdvances funds standard-speed advances whose funding delay has
// elapsed. Called by the scheduler; returns the number funded.
func (s *Service) FundApprovedAdvances(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-time.Duration(s.cfg.StandardFundingDelayHours) * time.Hour)
	pending, err := s.repo.ListApprovedAdvancesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	funded := 0
	for _, advance := range pending {
		if _, err := s.repo.FundAdvance(ctx, advance.ID, advance.AccountID, advance.Amount, "ExtraCash advance"); err != nil {
			s.logger.Error("failed to fund standard advance", "advance_id", advance.ID, "error", err)
			continue
		}
		funded++
		s.publishEvent(ctx, "advance.funded", map[string]any{
			"advance_id": advance.ID,
			"user_id":    advance.UserID,
			"amount":     advance.Amount,
		})
	}
	return funded, nil
}

// SweepOverdueAdvances marks funded advances past their repayment date as
// overdue. Called by the scheduler; returns the number transitioned.
func (s *Service) SweepOverdueAdvances(ctx context.Context) (int64, error) {
	return s.repo.MarkOverdueAdvances(ctx, s.now())
}
