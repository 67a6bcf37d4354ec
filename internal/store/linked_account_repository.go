/**
 * @description
 * Persistence for linked external bank accounts. Sensitive columns
 * (account_holder_name, routing_number) are stored as AES-GCM ciphertext;
 * encryption and decryption happen in the application layer, this file only
 * moves the opaque strings.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/perchfin/perch-backend/internal/domain"
)

const linkedAccountColumns = `id, user_id, bank_name, account_holder_name, routing_number, account_number_last4, verification_status, is_primary, created_at`

func scanLinkedAccount(row pgx.Row) (*domain.LinkedAccount, error) {
	var l domain.LinkedAccount
	err := row.Scan(&l.ID, &l.UserID, &l.BankName, &l.AccountHolderName, &l.RoutingNumber,
		&l.AccountNumberLast4, &l.VerificationStatus, &l.IsPrimary, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkedAccountNotFound
		}
		return nil, err
	}
	return &l, nil
}

// CreateLinkedAccount inserts a pending linked account. A unique constraint on
// (user_id, account_number_last4, bank_name) turns a duplicate link into
// ErrDuplicateLinkedAccount.
func (r *PostgresRepository) CreateLinkedAccount(ctx context.Context, linked *domain.LinkedAccount) error {
	linked.ID = uuid.New()
	query := `
		INSERT INTO linked_accounts (id, user_id, bank_name, account_holder_name, routing_number, account_number_last4, verification_status, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', false, NOW())
		RETURNING verification_status, is_primary, created_at`
	err := r.db.QueryRow(ctx, query,
		linked.ID, linked.UserID, linked.BankName, linked.AccountHolderName,
		linked.RoutingNumber, linked.AccountNumberLast4,
	).Scan(&linked.VerificationStatus, &linked.IsPrimary, &linked.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateLinkedAccount
		}
		return err
	}
	return nil
}

// FindLinkedAccountForUser retrieves a linked account only if it belongs to
// the user.
func (r *PostgresRepository) FindLinkedAccountForUser(ctx context.Context, userID, linkedAccountID uuid.UUID) (*domain.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE id = $1 AND user_id = $2`
	return scanLinkedAccount(r.db.QueryRow(ctx, query, linkedAccountID, userID))
}

// FindLinkedAccountsByUserID lists a user's linked accounts, primary first.
func (r *PostgresRepository) FindLinkedAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE user_id = $1 ORDER BY is_primary DESC, created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var linked []domain.LinkedAccount
	for rows.Next() {
		var l domain.LinkedAccount
		if err := rows.Scan(&l.ID, &l.UserID, &l.BankName, &l.AccountHolderName, &l.RoutingNumber,
			&l.AccountNumberLast4, &l.VerificationStatus, &l.IsPrimary, &l.CreatedAt); err != nil {
			return nil, err
		}
		linked = append(linked, l)
	}
	return linked, rows.Err()
}

// UpdateLinkedAccountVerification records the outcome of a verification
// attempt. The first account a user verifies becomes primary automatically.
func (r *PostgresRepository) UpdateLinkedAccountVerification(ctx context.Context, linkedAccountID uuid.UUID, status string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var userID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE linked_accounts SET verification_status = $1 WHERE id = $2
			RETURNING user_id`, status, linkedAccountID).Scan(&userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkedAccountNotFound
			}
			return err
		}
		if status != domain.VerificationVerified {
			return nil
		}

		var verifiedCount int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM linked_accounts
			WHERE user_id = $1 AND verification_status = 'verified' AND is_primary`, userID).Scan(&verifiedCount)
		if err != nil {
			return err
		}
		if verifiedCount == 0 {
			_, err = tx.Exec(ctx, `UPDATE linked_accounts SET is_primary = true WHERE id = $1`, linkedAccountID)
		}
		return err
	})
}

// SetPrimaryLinkedAccount makes the given verified account the user's single
// primary, demoting any previous primary in the same transaction.
func (r *PostgresRepository) SetPrimaryLinkedAccount(ctx context.Context, userID, linkedAccountID uuid.UUID) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT verification_status FROM linked_accounts
			WHERE id = $1 AND user_id = $2 FOR UPDATE`, linkedAccountID, userID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkedAccountNotFound
			}
			return err
		}
		if status != domain.VerificationVerified {
			return ErrLinkedAccountNotFound
		}

		if _, err := tx.Exec(ctx, `UPDATE linked_accounts SET is_primary = false WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE linked_accounts SET is_primary = true WHERE id = $1`, linkedAccountID)
		return err
	})
}

// HasVerifiedLinkedAccount reports whether the user has at least one verified
// external bank account, the gate for requesting an advance.
func (r *PostgresRepository) HasVerifiedLinkedAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM linked_accounts
			WHERE user_id = $1 AND verification_status = 'verified'
		)`, userID).Scan(&exists)
	return exists, err
}
