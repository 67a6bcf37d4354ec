/**
 * @description
 * PostgreSQL implementation of the `Repository` interface: connection pool
 * wiring, the shared transaction helper, and the account and PIN-credential
 * queries. Ledger, advance, goal, bill, and linked-account operations live in
 * sibling files of this package.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and transaction API.
 * - internal/domain: typed records scanned at the persistence boundary.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/perchfin/perch-backend/internal/domain"
)

// PostgresRepository is the concrete Repository backed by a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// withTx runs fn inside a database transaction, committing on success and
// rolling back on any error or panic. Every balance-mutating operation in this
// package goes through it so no exit path can leave a partial ledger write.
func (r *PostgresRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. Used by callers to resolve idempotency-key and duplicate-link
// races without parsing error strings.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const accountColumns = `id, user_id, account_type, balance, status, round_up_enabled, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.AccountType, &a.Balance, &a.Status, &a.RoundUpEnabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new ledger account with a zero balance. Checking
// accounts open with round-up enabled; savings accounts never skim.
func (r *PostgresRepository) CreateAccount(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, user_id, account_type, balance, status, round_up_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 'active', $4, NOW(), NOW())
		RETURNING ` + accountColumns
	roundUp := accountType == domain.AccountTypeChecking
	return scanAccount(r.db.QueryRow(ctx, query, uuid.New(), userID, accountType, roundUp))
}

// FindAccountByID retrieves an account regardless of owner. Used for transfer
// destinations, which may belong to another user.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountForUser retrieves an account only if it belongs to the given
// user. A foreign account is reported as not found, never as forbidden, so
// account ids are not probeable.
func (r *PostgresRepository) FindAccountForUser(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND user_id = $2`
	return scanAccount(r.db.QueryRow(ctx, query, accountID, userID))
}

// FindAccountsByUserID lists all of a user's accounts, oldest first.
func (r *PostgresRepository) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountType, &a.Balance, &a.Status, &a.RoundUpEnabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// FindAccountByType returns the user's oldest active account of the given
// type, or ErrAccountNotFound when none exists.
func (r *PostgresRepository) FindAccountByType(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND account_type = $2 AND status = 'active'
		ORDER BY created_at
		LIMIT 1`
	return scanAccount(r.db.QueryRow(ctx, query, userID, accountType))
}

// GetUserSecurityCredential returns transaction PIN security metadata for a
// user. A missing row or empty hash means no PIN has been configured.
func (r *PostgresRepository) GetUserSecurityCredential(ctx context.Context, userID uuid.UUID) (*domain.UserSecurityCredential, error) {
	var credential domain.UserSecurityCredential
	query := `
		SELECT user_id, pin_hash, failed_attempts, locked_until
		FROM user_security_credentials
		WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&credential.UserID,
		&credential.PINHash,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPINNotSet
		}
		return nil, err
	}
	if credential.PINHash == "" {
		return nil, ErrPINNotSet
	}
	return &credential, nil
}

// UpsertPINHash sets or replaces a user's transaction PIN hash and clears any
// lockout state.
func (r *PostgresRepository) UpsertPINHash(ctx context.Context, userID uuid.UUID, pinHash string) error {
	query := `
		INSERT INTO user_security_credentials (user_id, pin_hash, failed_attempts, locked_until)
		VALUES ($1, $2, 0, NULL)
		ON CONFLICT (user_id)
		DO UPDATE SET pin_hash = EXCLUDED.pin_hash, failed_attempts = 0, locked_until = NULL`
	_, err := r.db.Exec(ctx, query, userID, pinHash)
	return err
}

// RecordFailedPINAttempt increments the failure counter, starting a lockout
// window once maxAttempts is reached, and returns the updated credential.
func (r *PostgresRepository) RecordFailedPINAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutSeconds int) (*domain.UserSecurityCredential, error) {
	var credential domain.UserSecurityCredential
	query := `
		UPDATE user_security_credentials
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN failed_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE locked_until
		    END
		WHERE user_id = $1
		RETURNING user_id, pin_hash, failed_attempts, locked_until`
	err := r.db.QueryRow(ctx, query, userID, maxAttempts, lockoutSeconds).Scan(
		&credential.UserID,
		&credential.PINHash,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPINNotSet
		}
		return nil, err
	}
	return &credential, nil
}

// ResetPINFailureState clears the failure counter after a successful verify.
func (r *PostgresRepository) ResetPINFailureState(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE user_security_credentials
		SET failed_attempts = 0, locked_until = NULL
		WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}
