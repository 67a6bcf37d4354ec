/**
 * @description
 * Request and response DTOs for the Perch API. Monetary fields cross the wire
 * as decimal dollars and are converted to integer cents at the handler
 * boundary, never inside business logic.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DepositRequest is the DTO for POST /accounts/{id}/deposit.
type DepositRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// TransferRequest is the DTO for POST /accounts/transfer. The destination may
// belong to another user (P2P allowed); only the source is ownership-checked.
type TransferRequest struct {
	FromAccountID uuid.UUID `json:"fromAccountId"`
	ToAccountID   uuid.UUID `json:"toAccountId"`
	Amount        float64   `json:"amount"`
}

// AdvanceRequest is the DTO for POST /advances.
type AdvanceRequest struct {
	Amount        float64 `json:"amount"`
	DeliverySpeed string  `json:"deliverySpeed"`
	Tip           float64 `json:"tip"`
}

// CreateAccountRequest is the DTO for POST /accounts.
type CreateAccountRequest struct {
	AccountType string `json:"accountType"`
}

// CreateGoalRequest is the DTO for POST /goals.
type CreateGoalRequest struct {
	Name         string  `json:"name"`
	TargetAmount float64 `json:"targetAmount"`
}

// FundGoalRequest is the DTO for POST /goals/{id}/fund.
type FundGoalRequest struct {
	Amount float64 `json:"amount"`
}

// CreateBillRequest is the DTO for POST /bills.
type CreateBillRequest struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Frequency string  `json:"frequency"`
	DueDay    int     `json:"dueDay"`
	AutoPay   bool    `json:"autoPay"`
}

// SimulatePurchaseRequest is the DTO for POST /transactions/simulate.
type SimulatePurchaseRequest struct {
	AccountID        uuid.UUID `json:"accountId"`
	Amount           float64   `json:"amount"`
	MerchantName     string    `json:"merchantName"`
	SpendingCategory string    `json:"spendingCategory"`
}

// LinkAccountRequest is the DTO for POST /linked-accounts. AccountNumber is
// never stored whole; only its last four digits are kept in clear.
type LinkAccountRequest struct {
	BankName          string `json:"bankName"`
	AccountHolderName string `json:"accountHolderName"`
	RoutingNumber     string `json:"routingNumber"`
	AccountNumber     string `json:"accountNumber"`
}

// PINRequest is the DTO for POST /security/pin and /security/pin/verify.
type PINRequest struct {
	PIN string `json:"pin"`
}

// EligibilityFactors carries the five component scores behind an eligibility
// decision, each 0-100 before weighting.
type EligibilityFactors struct {
	IncomeConsistency int `json:"incomeConsistency"`
	AverageBalance    int `json:"averageBalance"`
	SpendingPatterns  int `json:"spendingPatterns"`
	AccountAge        int `json:"accountAge"`
	RepaymentHistory  int `json:"repaymentHistory"`
}

// EligibilityResult is the outcome of an advance eligibility evaluation.
// MaxAmount is in cents internally; the API layer converts.
type EligibilityResult struct {
	Eligible      bool
	Score         int
	MaxAmount     int64
	Factors       EligibilityFactors
	Message       string
	HasLinkedBank bool
}

// RoundUpResult describes a completed round-up skim attached to a simulated
// purchase. Nil in the purchase response when no skim happened.
type RoundUpResult struct {
	Amount           int64
	SavingsAccountID uuid.UUID
	TransactionID    uuid.UUID
}

// GoalFundingResult summarizes a goal funding operation for the API response.
type GoalFundingResult struct {
	Goal        *Goal
	Funded      int64
	ReferenceID uuid.UUID
}

// BillPaymentResult summarizes a bill payment for the API response.
type BillPaymentResult struct {
	Payment    *BillPayment
	Bill       *Bill
	NewBalance int64
}

// RepaymentResult summarizes an advance repayment for the API response.
type RepaymentResult struct {
	AmountRepaid int64
	NewBalance   int64
	RepaidAt     time.Time
}
