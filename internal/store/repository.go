/**
 * @description
 * This file defines the data access contract for the Perch backend. The
 * `Repository` interface covers every database operation the application layer
 * needs; the PostgreSQL implementation lives alongside it in this package.
 *
 * Ledger discipline: every method that mutates an account balance performs the
 * balance read, the balance write, and the matching transaction-log insert
 * inside one database transaction with the account row locked, so a failure on
 * any write rolls back all of them. No caller ever updates a balance directly.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountNotActive       = errors.New("account is not active")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAdvanceNotFound        = errors.New("advance not found")
	ErrGoalNotFound           = errors.New("goal not found")
	ErrBillNotFound           = errors.New("bill not found")
	ErrLinkedAccountNotFound  = errors.New("linked account not found")
	ErrAdvanceNotRepayable    = errors.New("advance is not in a repayable state")
	ErrDuplicateLinkedAccount = errors.New("linked account already exists")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrPINNotSet              = errors.New("transaction pin not set")
)

// TransferParams describes a two-leg ledger transfer. Both balance updates and
// both transaction rows commit atomically, linked by ReferenceID.
type TransferParams struct {
	FromAccountID        uuid.UUID
	ToAccountID          uuid.UUID
	Amount               int64
	ReferenceID          uuid.UUID
	DebitCategory        string
	CreditCategory       string
	Description          string
	RelatedTransactionID *uuid.UUID
	IdempotencyKey       *string
}

// DebitParams describes a single-leg debit with its ledger entry metadata.
type DebitParams struct {
	AccountID        uuid.UUID
	Amount           int64
	Category         string
	Description      string
	MerchantName     string
	SpendingCategory string
}

// Repository defines all persistence operations used by the application layer.
type Repository interface {
	// Accounts
	CreateAccount(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	FindAccountForUser(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error)
	FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error)
	FindAccountByType(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error)

	// Ledger
	Deposit(ctx context.Context, accountID uuid.UUID, amount int64, description string, idempotencyKey *string) (*domain.Transaction, error)
	Transfer(ctx context.Context, p TransferParams) (debit *domain.Transaction, credit *domain.Transaction, err error)
	DebitAccount(ctx context.Context, p DebitParams) (*domain.Transaction, error)
	FindTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*domain.Transaction, error)
	FindTransactionsByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]domain.Transaction, error)

	// Advances
	CreateAdvance(ctx context.Context, advance *domain.Advance) error
	FindAdvanceForUser(ctx context.Context, userID, advanceID uuid.UUID) (*domain.Advance, error)
	FindAdvancesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Advance, error)
	FindActiveAdvanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.Advance, error)
	FundAdvance(ctx context.Context, advanceID, accountID uuid.UUID, amount int64, description string) (*domain.Transaction, error)
	RepayAdvance(ctx context.Context, advanceID, accountID uuid.UUID, total int64, description string) (*domain.Transaction, time.Time, error)
	ListApprovedAdvancesBefore(ctx context.Context, cutoff time.Time) ([]domain.Advance, error)
	MarkOverdueAdvances(ctx context.Context, asOf time.Time) (int64, error)
	GetEligibilitySnapshot(ctx context.Context, userID uuid.UUID) (*domain.EligibilitySnapshot, error)

	// Goals
	CreateGoal(ctx context.Context, goal *domain.Goal) error
	FindGoalForUser(ctx context.Context, userID, goalID uuid.UUID) (*domain.Goal, error)
	FindGoalsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error)
	FundGoal(ctx context.Context, goalID, checkingID, savingsID uuid.UUID, amount int64, referenceID uuid.UUID) (*domain.Goal, error)

	// Bills
	CreateBill(ctx context.Context, bill *domain.Bill) error
	FindBillForUser(ctx context.Context, userID, billID uuid.UUID) (*domain.Bill, error)
	FindBillsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Bill, error)
	PayBill(ctx context.Context, billID, accountID uuid.UUID, amount int64, billName string, nextDueDate time.Time) (*domain.BillPayment, *domain.Transaction, error)

	// Linked accounts
	CreateLinkedAccount(ctx context.Context, linked *domain.LinkedAccount) error
	FindLinkedAccountForUser(ctx context.Context, userID, linkedAccountID uuid.UUID) (*domain.LinkedAccount, error)
	FindLinkedAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.LinkedAccount, error)
	UpdateLinkedAccountVerification(ctx context.Context, linkedAccountID uuid.UUID, status string) error
	SetPrimaryLinkedAccount(ctx context.Context, userID, linkedAccountID uuid.UUID) error
	HasVerifiedLinkedAccount(ctx context.Context, userID uuid.UUID) (bool, error)

	// Transaction PIN security
	GetUserSecurityCredential(ctx context.Context, userID uuid.UUID) (*domain.UserSecurityCredential, error)
	UpsertPINHash(ctx context.Context, userID uuid.UUID, pinHash string) error
	RecordFailedPINAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutSeconds int) (*domain.UserSecurityCredential, error)
	ResetPINFailureState(ctx context.Context, userID uuid.UUID) error
}
