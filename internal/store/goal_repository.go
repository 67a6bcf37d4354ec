/**
 * @description
 * Persistence for savings goals. Goal funding is a compound ledger operation:
 * the checking debit, the savings credit, both transaction rows, the progress
 * increment, and the completion flip all commit in a single transaction.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/perchfin/perch-backend/internal/domain"
)

const goalColumns = `id, user_id, savings_account_id, name, target_amount, current_amount, status, created_at, updated_at`

func scanGoal(row pgx.Row) (*domain.Goal, error) {
	var g domain.Goal
	err := row.Scan(&g.ID, &g.UserID, &g.SavingsAccountID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return &g, nil
}

// CreateGoal inserts a new active goal.
func (r *PostgresRepository) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	goal.ID = uuid.New()
	query := `
		INSERT INTO goals (id, user_id, savings_account_id, name, target_amount, current_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 'active', NOW(), NOW())
		RETURNING current_amount, status, created_at, updated_at`
	return r.db.QueryRow(ctx, query, goal.ID, goal.UserID, goal.SavingsAccountID, goal.Name, goal.TargetAmount).
		Scan(&goal.CurrentAmount, &goal.Status, &goal.CreatedAt, &goal.UpdatedAt)
}

// FindGoalForUser retrieves a goal only if it belongs to the user.
func (r *PostgresRepository) FindGoalForUser(ctx context.Context, userID, goalID uuid.UUID) (*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1 AND user_id = $2`
	return scanGoal(r.db.QueryRow(ctx, query, goalID, userID))
}

// FindGoalsByUserID lists a user's goals, newest first.
func (r *PostgresRepository) FindGoalsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var g domain.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.SavingsAccountID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Status, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// FundGoal moves amount from checking into the goal's savings account and
// advances the goal's progress, flipping it to completed once the target is
// reached. CurrentAmount is not clamped: the final increment may overshoot
// the target and progress reports past 100%.
func (r *PostgresRepository) FundGoal(ctx context.Context, goalID, checkingID, savingsID uuid.UUID, amount int64, referenceID uuid.UUID) (*domain.Goal, error) {
	var updated *domain.Goal
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		goal, err := scanGoal(tx.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1 FOR UPDATE`, goalID))
		if err != nil {
			return err
		}

		first, second := checkingID, savingsID
		if second.String() < first.String() {
			first, second = second, first
		}
		locked := map[uuid.UUID]*domain.Account{}
		for _, id := range []uuid.UUID{first, second} {
			account, err := lockAccountRow(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}
		checking, savings := locked[checkingID], locked[savingsID]

		if checking.Status != domain.AccountStatusActive || savings.Status != domain.AccountStatusActive {
			return ErrAccountNotActive
		}
		if checking.Balance < amount {
			return ErrInsufficientFunds
		}

		checkingBalance := checking.Balance - amount
		savingsBalance := savings.Balance + amount
		if err := setBalance(ctx, tx, checking.ID, checkingBalance); err != nil {
			return err
		}
		if err := setBalance(ctx, tx, savings.ID, savingsBalance); err != nil {
			return err
		}

		refID := referenceID
		description := "Goal funding: " + goal.Name
		debit := &domain.Transaction{
			AccountID:    checking.ID,
			Type:         domain.TransactionTypeDebit,
			Category:     domain.CategoryTransfer,
			Amount:       amount,
			BalanceAfter: checkingBalance,
			ReferenceID:  &refID,
			Description:  description,
		}
		if err := insertEntry(ctx, tx, debit); err != nil {
			return err
		}
		credit := &domain.Transaction{
			AccountID:    savings.ID,
			Type:         domain.TransactionTypeCredit,
			Category:     domain.CategoryTransfer,
			Amount:       amount,
			BalanceAfter: savingsBalance,
			ReferenceID:  &refID,
			Description:  description,
		}
		if err := insertEntry(ctx, tx, credit); err != nil {
			return err
		}

		newCurrent := goal.CurrentAmount + amount
		newStatus := goal.Status
		if newCurrent >= goal.TargetAmount {
			newStatus = domain.GoalStatusCompleted
		}
		updated, err = scanGoal(tx.QueryRow(ctx, `
			UPDATE goals
			SET current_amount = $1, status = $2, updated_at = NOW()
			WHERE id = $3
			RETURNING `+goalColumns, newCurrent, newStatus, goalID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
