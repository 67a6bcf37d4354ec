/**
 * @description
 * This file defines the core domain models for the Perch backend. These structs
 * represent the main entities used throughout the service's business logic,
 * database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (cents), which avoids floating-point inaccuracies with financial data.
 *   The API boundary converts to and from decimal dollars.
 * - Transaction rows are immutable once created; `BalanceAfter` is the audit
 *   snapshot of the account balance right after the entry was committed, not a
 *   derived value.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account types.
const (
	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"
)

// Account statuses.
const (
	AccountStatusActive = "active"
	AccountStatusFrozen = "frozen"
	AccountStatusClosed = "closed"
)

// Ledger entry types.
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

// Ledger entry categories.
const (
	CategoryDeposit    = "deposit"
	CategoryWithdrawal = "withdrawal"
	CategoryTransfer   = "transfer"
	CategoryAdvance    = "advance"
	CategoryRepayment  = "repayment"
	CategoryRoundUp    = "round_up"
	CategoryPurchase   = "purchase"
	CategoryRefund     = "refund"
)

// Advance statuses. An advance is "active" (blocking a new request) in any
// status other than repaid or failed.
const (
	AdvanceStatusPending            = "pending"
	AdvanceStatusApproved           = "approved"
	AdvanceStatusFunded             = "funded"
	AdvanceStatusRepaymentScheduled = "repayment_scheduled"
	AdvanceStatusOverdue            = "overdue"
	AdvanceStatusRepaid             = "repaid"
)

// Advance delivery speeds.
const (
	DeliverySpeedExpress  = "express"
	DeliverySpeedStandard = "standard"
)

// Goal statuses.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusPaused    = "paused"
)

// Bill frequencies.
const (
	FrequencyWeekly    = "weekly"
	FrequencyBiweekly  = "biweekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// Linked account verification statuses.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationFailed   = "failed"
)

// Account represents a user's internal ledger account. Balance is mutated only
// through ledger operations inside a database transaction.
type Account struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	AccountType    string    `json:"account_type"`
	Balance        int64     `json:"-"` // cents; exposed as decimal dollars by the API layer
	Status         string    `json:"status"`
	RoundUpEnabled bool      `json:"round_up_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger entry. A logical transfer produces two
// rows (debit + credit) sharing a ReferenceID, written in the same database
// transaction as the two balance updates.
type Transaction struct {
	ID                   uuid.UUID  `json:"id"`
	AccountID            uuid.UUID  `json:"account_id"`
	Type                 string     `json:"type"`
	Category             string     `json:"category"`
	Amount               int64      `json:"-"` // cents
	BalanceAfter         int64      `json:"-"` // cents
	ReferenceID          *uuid.UUID `json:"reference_id,omitempty"`
	RelatedTransactionID *uuid.UUID `json:"related_transaction_id,omitempty"`
	Description          string     `json:"description"`
	MerchantName         string     `json:"merchant_name,omitempty"`
	SpendingCategory     string     `json:"spending_category,omitempty"`
	IdempotencyKey       *string    `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Advance represents a short-term cash advance against a checking account.
type Advance struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	AccountID        uuid.UUID  `json:"account_id"`
	Amount           int64      `json:"-"` // cents
	Fee              int64      `json:"-"` // cents; 5% of amount for express, 0 for standard
	Tip              int64      `json:"-"` // cents
	DeliverySpeed    string     `json:"delivery_speed"`
	Status           string     `json:"status"`
	EligibilityScore int        `json:"eligibility_score"`
	RepaymentDate    time.Time  `json:"repayment_date"`
	DisbursedAt      *time.Time `json:"disbursed_at,omitempty"`
	RepaidAt         *time.Time `json:"repaid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Goal is a savings goal funded from checking into a dedicated savings account.
// CurrentAmount is deliberately not clamped to TargetAmount; the final funding
// increment may push progress past 100%.
type Goal struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	SavingsAccountID uuid.UUID `json:"savings_account_id"`
	Name             string    `json:"name"`
	TargetAmount     int64     `json:"-"` // cents
	CurrentAmount    int64     `json:"-"` // cents
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Bill is a recurring obligation paid manually from a checking account.
// AutoPay is stored for the client but no scheduler triggers it.
type Bill struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	AccountID   uuid.UUID `json:"account_id"`
	Name        string    `json:"name"`
	Amount      int64     `json:"-"` // cents
	Frequency   string    `json:"frequency"`
	DueDay      int       `json:"due_day"`
	NextDueDate time.Time `json:"next_due_date"`
	AutoPay     bool      `json:"auto_pay"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BillPayment is the audit record for one bill payment, pointing at the ledger
// entry that debited the account.
type BillPayment struct {
	ID            uuid.UUID `json:"id"`
	BillID        uuid.UUID `json:"bill_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        int64     `json:"-"` // cents
	PaidAt        time.Time `json:"paid_at"`
}

// LinkedAccount references an external bank account used for advance
// eligibility. AccountHolderName and RoutingNumber are stored encrypted at
// rest and decrypted only for display.
type LinkedAccount struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	BankName           string    `json:"bank_name"`
	AccountHolderName  string    `json:"account_holder_name"`
	RoutingNumber      string    `json:"routing_number"`
	AccountNumberLast4 string    `json:"account_number_last4"`
	VerificationStatus string    `json:"verification_status"`
	IsPrimary          bool      `json:"is_primary"`
	CreatedAt          time.Time `json:"created_at"`
}

// UserSecurityCredential holds transaction PIN security metadata for a user.
type UserSecurityCredential struct {
	UserID         uuid.UUID
	PINHash        string
	FailedAttempts int
	LockedUntil    *time.Time
}

// EligibilitySnapshot is the read-only input to the advance eligibility
// scorer, assembled by the store in a single pass over a user's history.
type EligibilitySnapshot struct {
	HasCheckingAccount bool
	CheckingBalance    int64 // cents
	AccountOpenedAt    time.Time

	DepositCount90d   int
	DepositAmounts90d []int64 // cents, for coefficient-of-variation
	DepositTotal30d   int64   // cents

	Income90d   int64 // cents, credit entries
	Expenses90d int64 // cents, debit entries

	RepaidAdvances  int
	OverdueAdvances int

	HasActiveAdvance      bool
	HasVerifiedLinkedBank bool
}
