/**
 * @description
 * Savings goal use cases. Each goal is backed by the user's savings account;
 * funding a goal moves money from checking to savings in one atomic ledger
 * transfer and advances the goal's progress. If the user has no savings
 * account yet, one is opened lazily when their first goal is created.
 */

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

// CreateGoal creates a savings goal, lazily opening a savings account if the
// user does not have one.
func (s *Service) CreateGoal(ctx context.Context, userID uuid.UUID, name string, targetAmount int64) (*domain.Goal, error) {
	if name == "" {
		return nil, fmt.Errorf("goal name is required")
	}
	if targetAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	savings, err := s.repo.FindAccountByType(ctx, userID, domain.AccountTypeSavings)
	if errors.Is(err, store.ErrAccountNotFound) {
		savings, err = s.repo.CreateAccount(ctx, userID, domain.AccountTypeSavings)
	}
	if err != nil {
		return nil, err
	}

	goal := &domain.Goal{
		ID:               uuid.New(),
		UserID:           userID,
		SavingsAccountID: savings.ID,
		Name:             name,
		TargetAmount:     targetAmount,
		Status:           domain.GoalStatusActive,
	}
	if err := s.repo.CreateGoal(ctx, goal); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "goal.created", map[string]any{
		"goal_id":       goal.ID,
		"user_id":       userID,
		"target_amount": targetAmount,
	})
	return goal, nil
}

// GetGoal returns one of the user's goals.
func (s *Service) GetGoal(ctx context.Context, userID, goalID uuid.UUID) (*domain.Goal, error) {
	return s.repo.FindGoalForUser(ctx, userID, goalID)
}

// ListGoals returns all of the user's goals.
func (s *Service) ListGoals(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	return s.repo.FindGoalsByUserID(ctx, userID)
}

// FundGoal moves money from the user's checking account into the goal's
// savings account and records the progress. The final increment may push the
// goal past its target; progress is not clamped.
func (s *Service) FundGoal(ctx context.Context, userID, goalID uuid.UUID, amount int64) (*domain.GoalFundingResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	goal, err := s.repo.FindGoalForUser(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Status != domain.GoalStatusActive {
		return nil, ErrGoalNotActive
	}

	checking, err := s.repo.FindAccountByType(ctx, userID, domain.AccountTypeChecking)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrCheckingRequired
	}
	if err != nil {
		return nil, err
	}

	referenceID := uuid.New()
	updated, err := s.repo.FundGoal(ctx, goal.ID, checking.ID, goal.SavingsAccountID, amount, referenceID)
	if err != nil {
		return nil, err
	}

	if updated.Status == domain.GoalStatusCompleted && goal.Status != domain.GoalStatusCompleted {
		s.publishEvent(ctx, "goal.completed", map[string]any{
			"goal_id": updated.ID,
			"user_id": userID,
		})
	}
	return &domain.GoalFundingResult{
		Goal:        updated,
		Funded:      amount,
		ReferenceID: referenceID,
	}, nil
}
