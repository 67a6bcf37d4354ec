/**
 * @description
 * Persistence for cash advances: record lifecycle, the compound fund/repay
 * operations that pair an advance status change with its ledger writes in one
 * transaction, and the history aggregation feeding the eligibility scorer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/perchfin/perch-backend/internal/domain"
)

const advanceColumns = `id, user_id, account_id, amount, fee, tip, delivery_speed, status, eligibility_score, repayment_date, disbursed_at, repaid_at, created_at, updated_at`

// activeAdvanceStatuses are the statuses that block a new advance request.
const activeAdvanceStatuses = `('pending', 'approved', 'funded', 'repayment_scheduled')`

func scanAdvance(row pgx.Row) (*domain.Advance, error) {
	var a domain.Advance
	err := row.Scan(&a.ID, &a.UserID, &a.AccountID, &a.Amount, &a.Fee, &a.Tip, &a.DeliverySpeed,
		&a.Status, &a.EligibilityScore, &a.RepaymentDate, &a.DisbursedAt, &a.RepaidAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdvanceNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAdvance inserts a new advance record and fills in its generated id
// and timestamps.
func (r *PostgresRepository) CreateAdvance(ctx context.Context, advance *domain.Advance) error {
	advance.ID = uuid.New()
	query := `
		INSERT INTO advances (id, user_id, account_id, amount, fee, tip, delivery_speed, status, eligibility_score, repayment_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		advance.ID, advance.UserID, advance.AccountID, advance.Amount, advance.Fee, advance.Tip,
		advance.DeliverySpeed, advance.Status, advance.EligibilityScore, advance.RepaymentDate,
	).Scan(&advance.CreatedAt, &advance.UpdatedAt)
}

// FindAdvanceForUser retrieves an advance only if it belongs to the user.
func (r *PostgresRepository) FindAdvanceForUser(ctx context.Context, userID, advanceID uuid.UUID) (*domain.Advance, error) {
	query := `SELECT ` + advanceColumns + ` FROM advances WHERE id = $1 AND user_id = $2`
	return scanAdvance(r.db.QueryRow(ctx, query, advanceID, userID))
}

// FindAdvancesByUserID lists a user's advances, newest first.
func (r *PostgresRepository) FindAdvancesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Advance, error) {
	query := `SELECT ` + advanceColumns + ` FROM advances WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var advances []domain.Advance
	for rows.Next() {
		var a domain.Advance
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountID, &a.Amount, &a.Fee, &a.Tip, &a.DeliverySpeed,
			&a.Status, &a.EligibilityScore, &a.RepaymentDate, &a.DisbursedAt, &a.RepaidAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		advances = append(advances, a)
	}
	return advances, rows.Err()
}

// FindActiveAdvanceByUserID returns the user's outstanding advance, if any.
// The service re-checks this right before inserting a new advance, so a stale
// eligibility snapshot cannot admit a second active advance.
func (r *PostgresRepository) FindActiveAdvanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.Advance, error) {
	query := `
		SELECT ` + advanceColumns + `
		FROM advances
		WHERE user_id = $1 AND status IN ` + activeAdvanceStatuses + `
		ORDER BY created_at DESC
		LIMIT 1`
	return scanAdvance(r.db.QueryRow(ctx, query, userID))
}

// FundAdvance credits the checking account, logs the advance-category ledger
// entry, and flips the advance to funded, all in one transaction. Only
// pending or approved advances can be funded.
func (r *PostgresRepository) FundAdvance(ctx context.Context, advanceID, accountID uuid.UUID, amount int64, description string) (*domain.Transaction, error) {
	var entry *domain.Transaction
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM advances WHERE id = $1 FOR UPDATE`, advanceID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAdvanceNotFound
			}
			return err
		}
		if status != domain.AdvanceStatusPending && status != domain.AdvanceStatusApproved {
			return fmt.Errorf("advance %s is not fundable from status %q", advanceID, status)
		}

		account, err := lockAccountRow(ctx, tx, accountID)
		if err != nil {
			return err
		}
		newBalance := account.Balance + amount
		if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}

		entry = &domain.Transaction{
			AccountID:    accountID,
			Type:         domain.TransactionTypeCredit,
			Category:     domain.CategoryAdvance,
			Amount:       amount,
			BalanceAfter: newBalance,
			Description:  description,
		}
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE advances
			SET status = $1, disbursed_at = NOW(), updated_at = NOW()
			WHERE id = $2`, domain.AdvanceStatusFunded, advanceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RepayAdvance debits the checking account for the full amount due, logs the
// repayment entry, and stamps the advance repaid, all in one transaction. The
// advance row is locked and its status re-checked inside the transaction, so
// two concurrent repayments cannot both debit the account.
func (r *PostgresRepository) RepayAdvance(ctx context.Context, advanceID, accountID uuid.UUID, total int64, description string) (*domain.Transaction, time.Time, error) {
	var entry *domain.Transaction
	var repaidAt time.Time
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM advances WHERE id = $1 FOR UPDATE`, advanceID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAdvanceNotFound
			}
			return err
		}
		switch status {
		case domain.AdvanceStatusFunded, domain.AdvanceStatusRepaymentScheduled, domain.AdvanceStatusOverdue:
		default:
			return ErrAdvanceNotRepayable
		}

		account, err := lockAccountRow(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.Balance < total {
			return ErrInsufficientFunds
		}

		newBalance := account.Balance - total
		if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}

		entry = &domain.Transaction{
			AccountID:    accountID,
			Type:         domain.TransactionTypeDebit,
			Category:     domain.CategoryRepayment,
			Amount:       total,
			BalanceAfter: newBalance,
			Description:  description,
		}
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			UPDATE advances
			SET status = $1, repaid_at = NOW(), updated_at = NOW()
			WHERE id = $2
			RETURNING repaid_at`, domain.AdvanceStatusRepaid, advanceID).Scan(&repaidAt)
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return entry, repaidAt, nil
}

// ListApprovedAdvancesBefore returns standard-speed advances still waiting for
// funding that were approved at or before the cutoff. The funding job drives
// these to funded.
func (r *PostgresRepository) ListApprovedAdvancesBefore(ctx context.Context, cutoff time.Time) ([]domain.Advance, error) {
	query := `
		SELECT ` + advanceColumns + `
		FROM advances
		WHERE status = 'approved' AND delivery_speed = 'standard' AND created_at <= $1
		ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var advances []domain.Advance
	for rows.Next() {
		var a domain.Advance
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountID, &a.Amount, &a.Fee, &a.Tip, &a.DeliverySpeed,
			&a.Status, &a.EligibilityScore, &a.RepaymentDate, &a.DisbursedAt, &a.RepaidAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		advances = append(advances, a)
	}
	return advances, rows.Err()
}

// MarkOverdueAdvances moves funded and repayment-scheduled advances past their
// repayment date into overdue, returning how many rows changed.
func (r *PostgresRepository) MarkOverdueAdvances(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE advances
		SET status = 'overdue', updated_at = NOW()
		WHERE status IN ('funded', 'repayment_scheduled') AND repayment_date < $1`, asOf)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// GetEligibilitySnapshot assembles the scorer's read-only view of a user's
// history. All monetary figures come back in cents; the scorer never touches
// the database.
func (r *PostgresRepository) GetEligibilitySnapshot(ctx context.Context, userID uuid.UUID) (*domain.EligibilitySnapshot, error) {
	snapshot := &domain.EligibilitySnapshot{}

	checking, err := r.FindAccountByType(ctx, userID, domain.AccountTypeChecking)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// No checking account hard-blocks eligibility; the rest of the
			// snapshot is irrelevant but linked-bank status still matters
			// for the response.
			snapshot.HasVerifiedLinkedBank, err = r.HasVerifiedLinkedAccount(ctx, userID)
			return snapshot, err
		}
		return nil, err
	}
	snapshot.HasCheckingAccount = true
	snapshot.CheckingBalance = checking.Balance
	snapshot.AccountOpenedAt = checking.CreatedAt

	rows, err := r.db.Query(ctx, `
		SELECT amount, created_at
		FROM transactions
		WHERE account_id = $1 AND category = 'deposit' AND created_at >= NOW() - INTERVAL '90 days'
		ORDER BY created_at`, checking.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cutoff30 := time.Now().AddDate(0, 0, -30)
	for rows.Next() {
		var amount int64
		var createdAt time.Time
		if err := rows.Scan(&amount, &createdAt); err != nil {
			return nil, err
		}
		snapshot.DepositCount90d++
		snapshot.DepositAmounts90d = append(snapshot.DepositAmounts90d, amount)
		if !createdAt.Before(cutoff30) {
			snapshot.DepositTotal30d += amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
		FROM transactions
		WHERE account_id = $1 AND created_at >= NOW() - INTERVAL '90 days'`, checking.ID).
		Scan(&snapshot.Income90d, &snapshot.Expenses90d)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'repaid'),
			COUNT(*) FILTER (WHERE status = 'overdue'),
			COUNT(*) FILTER (WHERE status IN `+activeAdvanceStatuses+`) > 0
		FROM advances
		WHERE user_id = $1`, userID).
		Scan(&snapshot.RepaidAdvances, &snapshot.OverdueAdvances, &snapshot.HasActiveAdvance)
	if err != nil {
		return nil, err
	}

	snapshot.HasVerifiedLinkedBank, err = r.HasVerifiedLinkedAccount(ctx, userID)
	return snapshot, err
}
