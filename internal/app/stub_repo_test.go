package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/config"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

// stubRepo is an in-memory Repository used by the service tests. It mirrors
// the ledger discipline of the real store closely enough for the business
// rules under test: balances only move together with a transaction row.
type stubRepo struct {
	accounts     map[uuid.UUID]*domain.Account
	transactions []domain.Transaction
	advances     map[uuid.UUID]*domain.Advance
	goals        map[uuid.UUID]*domain.Goal
	bills        map[uuid.UUID]*domain.Bill
	linked       map[uuid.UUID]*domain.LinkedAccount
	creds        map[uuid.UUID]*domain.UserSecurityCredential

	snapshot    *domain.EligibilitySnapshot
	snapshotErr error

	transferErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		accounts: make(map[uuid.UUID]*domain.Account),
		advances: make(map[uuid.UUID]*domain.Advance),
		goals:    make(map[uuid.UUID]*domain.Goal),
		bills:    make(map[uuid.UUID]*domain.Bill),
		linked:   make(map[uuid.UUID]*domain.LinkedAccount),
		creds:    make(map[uuid.UUID]*domain.UserSecurityCredential),
	}
}

func (r *stubRepo) addAccount(userID uuid.UUID, accountType string, balance int64) *domain.Account {
	account := &domain.Account{
		ID:             uuid.New(),
		UserID:         userID,
		AccountType:    accountType,
		Balance:        balance,
		Status:         domain.AccountStatusActive,
		RoundUpEnabled: accountType == domain.AccountTypeChecking,
		CreatedAt:      time.Now(),
	}
	r.accounts[account.ID] = account
	return account
}

func (r *stubRepo) record(accountID uuid.UUID, txType, category string, amount, balanceAfter int64, refID, relatedID *uuid.UUID, key *string) *domain.Transaction {
	entry := domain.Transaction{
		ID:                   uuid.New(),
		AccountID:            accountID,
		Type:                 txType,
		Category:             category,
		Amount:               amount,
		BalanceAfter:         balanceAfter,
		ReferenceID:          refID,
		RelatedTransactionID: relatedID,
		IdempotencyKey:       key,
		CreatedAt:            time.Now(),
	}
	r.transactions = append(r.transactions, entry)
	return &r.transactions[len(r.transactions)-1]
}

func (r *stubRepo) CreateAccount(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error) {
	return r.addAccount(userID, accountType, 0), nil
}

func (r *stubRepo) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (r *stubRepo) FindAccountForUser(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	account, ok := r.accounts[accountID]
	if !ok || account.UserID != userID {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (r *stubRepo) FindAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	var out []domain.Account
	for _, account := range r.accounts {
		if account.UserID == userID {
			out = append(out, *account)
		}
	}
	return out, nil
}

func (r *stubRepo) FindAccountByType(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.UserID == userID && account.AccountType == accountType {
			return account, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (r *stubRepo) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, description string, idempotencyKey *string) (*domain.Transaction, error) {
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	account.Balance += amount
	return r.record(accountID, domain.TransactionTypeCredit, domain.CategoryDeposit, amount, account.Balance, nil, nil, idempotencyKey), nil
}

func (r *stubRepo) Transfer(ctx context.Context, p store.TransferParams) (*domain.Transaction, *domain.Transaction, error) {
	if r.transferErr != nil {
		return nil, nil, r.transferErr
	}
	from, ok := r.accounts[p.FromAccountID]
	if !ok {
		return nil, nil, store.ErrAccountNotFound
	}
	to, ok := r.accounts[p.ToAccountID]
	if !ok {
		return nil, nil, store.ErrAccountNotFound
	}
	if from.Balance < p.Amount {
		return nil, nil, store.ErrInsufficientFunds
	}
	from.Balance -= p.Amount
	to.Balance += p.Amount
	refID := p.ReferenceID
	debit := r.record(from.ID, domain.TransactionTypeDebit, p.DebitCategory, p.Amount, from.Balance, &refID, p.RelatedTransactionID, p.IdempotencyKey)
	debit.Description = p.Description
	credit := r.record(to.ID, domain.TransactionTypeCredit, p.CreditCategory, p.Amount, to.Balance, &refID, p.RelatedTransactionID, nil)
	credit.Description = p.Description
	return debit, credit, nil
}

func (r *stubRepo) DebitAccount(ctx context.Context, p store.DebitParams) (*domain.Transaction, error) {
	account, ok := r.accounts[p.AccountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if account.Balance < p.Amount {
		return nil, store.ErrInsufficientFunds
	}
	account.Balance -= p.Amount
	entry := r.record(account.ID, domain.TransactionTypeDebit, p.Category, p.Amount, account.Balance, nil, nil, nil)
	entry.MerchantName = p.MerchantName
	entry.SpendingCategory = p.SpendingCategory
	entry.Description = p.Description
	return entry, nil
}

func (r *stubRepo) FindTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].AccountID == accountID {
			out = append(out, r.transactions[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *stubRepo) FindTransactionByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*domain.Transaction, error) {
	for i := range r.transactions {
		t := &r.transactions[i]
		if t.AccountID == accountID && t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			return t, nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (r *stubRepo) FindTransactionsByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range r.transactions {
		if t.ReferenceID != nil && *t.ReferenceID == referenceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *stubRepo) CreateAdvance(ctx context.Context, advance *domain.Advance) error {
	stored := *advance
	r.advances[advance.ID] = &stored
	return nil
}

func (r *stubRepo) FindAdvanceForUser(ctx context.Context, userID, advanceID uuid.UUID) (*domain.Advance, error) {
	advance, ok := r.advances[advanceID]
	if !ok || advance.UserID != userID {
		return nil, store.ErrAdvanceNotFound
	}
	return advance, nil
}

func (r *stubRepo) FindAdvancesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Advance, error) {
	var out []domain.Advance
	for _, advance := range r.advances {
		if advance.UserID == userID {
			out = append(out, *advance)
		}
	}
	return out, nil
}

func (r *stubRepo) FindActiveAdvanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.Advance, error) {
	for _, advance := range r.advances {
		if advance.UserID != userID {
			continue
		}
		switch advance.Status {
		case domain.AdvanceStatusPending, domain.AdvanceStatusApproved,
			domain.AdvanceStatusFunded, domain.AdvanceStatusRepaymentScheduled:
			return advance, nil
		}
	}
	return nil, store.ErrAdvanceNotFound
}

func (r *stubRepo) FundAdvance(ctx context.Context, advanceID, accountID uuid.UUID, amount int64, description string) (*domain.Transaction, error) {
	advance, ok := r.advances[advanceID]
	if !ok {
		return nil, store.ErrAdvanceNotFound
	}
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	account.Balance += amount
	advance.Status = domain.AdvanceStatusFunded
	now := time.Now()
	advance.DisbursedAt = &now
	return r.record(account.ID, domain.TransactionTypeCredit, domain.CategoryAdvance, amount, account.Balance, nil, nil, nil), nil
}

func (r *stubRepo) RepayAdvance(ctx context.Context, advanceID, accountID uuid.UUID, total int64, description string) (*domain.Transaction, time.Time, error) {
	advance, ok := r.advances[advanceID]
	if !ok {
		return nil, time.Time{}, store.ErrAdvanceNotFound
	}
	switch advance.Status {
	case domain.AdvanceStatusFunded, domain.AdvanceStatusRepaymentScheduled, domain.AdvanceStatusOverdue:
	default:
		return nil, time.Time{}, store.ErrAdvanceNotRepayable
	}
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, time.Time{}, store.ErrAccountNotFound
	}
	if account.Balance < total {
		return nil, time.Time{}, store.ErrInsufficientFunds
	}
	account.Balance -= total
	repaidAt := time.Now()
	advance.Status = domain.AdvanceStatusRepaid
	advance.RepaidAt = &repaidAt
	entry := r.record(account.ID, domain.TransactionTypeDebit, domain.CategoryRepayment, total, account.Balance, nil, nil, nil)
	return entry, repaidAt, nil
}

func (r *stubRepo) ListApprovedAdvancesBefore(ctx context.Context, cutoff time.Time) ([]domain.Advance, error) {
	var out []domain.Advance
	for _, advance := range r.advances {
		if advance.Status == domain.AdvanceStatusApproved &&
			advance.DeliverySpeed == domain.DeliverySpeedStandard &&
			!advance.CreatedAt.After(cutoff) {
			out = append(out, *advance)
		}
	}
	return out, nil
}

func (r *stubRepo) MarkOverdueAdvances(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, advance := range r.advances {
		if (advance.Status == domain.AdvanceStatusFunded || advance.Status == domain.AdvanceStatusRepaymentScheduled) &&
			advance.RepaymentDate.Before(asOf) {
			advance.Status = domain.AdvanceStatusOverdue
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) GetEligibilitySnapshot(ctx context.Context, userID uuid.UUID) (*domain.EligibilitySnapshot, error) {
	if r.snapshotErr != nil {
		return nil, r.snapshotErr
	}
	if r.snapshot != nil {
		return r.snapshot, nil
	}
	return &domain.EligibilitySnapshot{}, nil
}

func (r *stubRepo) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	stored := *goal
	r.goals[goal.ID] = &stored
	return nil
}

func (r *stubRepo) FindGoalForUser(ctx context.Context, userID, goalID uuid.UUID) (*domain.Goal, error) {
	goal, ok := r.goals[goalID]
	if !ok || goal.UserID != userID {
		return nil, store.ErrGoalNotFound
	}
	return goal, nil
}

func (r *stubRepo) FindGoalsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Goal, error) {
	var out []domain.Goal
	for _, goal := range r.goals {
		if goal.UserID == userID {
			out = append(out, *goal)
		}
	}
	return out, nil
}

func (r *stubRepo) FundGoal(ctx context.Context, goalID, checkingID, savingsID uuid.UUID, amount int64, referenceID uuid.UUID) (*domain.Goal, error) {
	goal, ok := r.goals[goalID]
	if !ok {
		return nil, store.ErrGoalNotFound
	}
	if _, _, err := r.Transfer(ctx, store.TransferParams{
		FromAccountID:  checkingID,
		ToAccountID:    savingsID,
		Amount:         amount,
		ReferenceID:    referenceID,
		DebitCategory:  domain.CategoryTransfer,
		CreditCategory: domain.CategoryTransfer,
	}); err != nil {
		return nil, err
	}
	goal.CurrentAmount += amount
	if goal.CurrentAmount >= goal.TargetAmount {
		goal.Status = domain.GoalStatusCompleted
	}
	return goal, nil
}

func (r *stubRepo) CreateBill(ctx context.Context, bill *domain.Bill) error {
	stored := *bill
	r.bills[bill.ID] = &stored
	return nil
}

func (r *stubRepo) FindBillForUser(ctx context.Context, userID, billID uuid.UUID) (*domain.Bill, error) {
	bill, ok := r.bills[billID]
	if !ok || bill.UserID != userID {
		return nil, store.ErrBillNotFound
	}
	return bill, nil
}

func (r *stubRepo) FindBillsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Bill, error) {
	var out []domain.Bill
	for _, bill := range r.bills {
		if bill.UserID == userID {
			out = append(out, *bill)
		}
	}
	return out, nil
}

func (r *stubRepo) PayBill(ctx context.Context, billID, accountID uuid.UUID, amount int64, billName string, nextDueDate time.Time) (*domain.BillPayment, *domain.Transaction, error) {
	bill, ok := r.bills[billID]
	if !ok {
		return nil, nil, store.ErrBillNotFound
	}
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, nil, store.ErrAccountNotFound
	}
	if account.Balance < amount {
		return nil, nil, store.ErrInsufficientFunds
	}
	account.Balance -= amount
	entry := r.record(account.ID, domain.TransactionTypeDebit, domain.CategoryPurchase, amount, account.Balance, nil, nil, nil)
	bill.NextDueDate = nextDueDate
	payment := &domain.BillPayment{
		ID:            uuid.New(),
		BillID:        bill.ID,
		TransactionID: entry.ID,
		Amount:        amount,
		PaidAt:        time.Now(),
	}
	return payment, entry, nil
}

func (r *stubRepo) CreateLinkedAccount(ctx context.Context, linked *domain.LinkedAccount) error {
	for _, existing := range r.linked {
		if existing.UserID == linked.UserID && existing.AccountNumberLast4 == linked.AccountNumberLast4 {
			return store.ErrDuplicateLinkedAccount
		}
	}
	stored := *linked
	r.linked[linked.ID] = &stored
	return nil
}

func (r *stubRepo) FindLinkedAccountForUser(ctx context.Context, userID, linkedAccountID uuid.UUID) (*domain.LinkedAccount, error) {
	linked, ok := r.linked[linkedAccountID]
	if !ok || linked.UserID != userID {
		return nil, store.ErrLinkedAccountNotFound
	}
	return linked, nil
}

func (r *stubRepo) FindLinkedAccountsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.LinkedAccount, error) {
	var out []domain.LinkedAccount
	for _, linked := range r.linked {
		if linked.UserID == userID {
			out = append(out, *linked)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateLinkedAccountVerification(ctx context.Context, linkedAccountID uuid.UUID, status string) error {
	linked, ok := r.linked[linkedAccountID]
	if !ok {
		return store.ErrLinkedAccountNotFound
	}
	linked.VerificationStatus = status
	if status == domain.VerificationVerified {
		hasPrimary := false
		for _, other := range r.linked {
			if other.UserID == linked.UserID && other.IsPrimary {
				hasPrimary = true
			}
		}
		if !hasPrimary {
			linked.IsPrimary = true
		}
	}
	return nil
}

func (r *stubRepo) SetPrimaryLinkedAccount(ctx context.Context, userID, linkedAccountID uuid.UUID) error {
	target, ok := r.linked[linkedAccountID]
	if !ok || target.UserID != userID {
		return store.ErrLinkedAccountNotFound
	}
	for _, linked := range r.linked {
		if linked.UserID == userID {
			linked.IsPrimary = false
		}
	}
	target.IsPrimary = true
	return nil
}

func (r *stubRepo) HasVerifiedLinkedAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	for _, linked := range r.linked {
		if linked.UserID == userID && linked.VerificationStatus == domain.VerificationVerified {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) GetUserSecurityCredential(ctx context.Context, userID uuid.UUID) (*domain.UserSecurityCredential, error) {
	cred, ok := r.creds[userID]
	if !ok || cred.PINHash == "" {
		return nil, store.ErrPINNotSet
	}
	return cred, nil
}

func (r *stubRepo) UpsertPINHash(ctx context.Context, userID uuid.UUID, pinHash string) error {
	r.creds[userID] = &domain.UserSecurityCredential{UserID: userID, PINHash: pinHash}
	return nil
}

func (r *stubRepo) RecordFailedPINAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutSeconds int) (*domain.UserSecurityCredential, error) {
	cred, ok := r.creds[userID]
	if !ok {
		return nil, store.ErrPINNotSet
	}
	cred.FailedAttempts++
	if cred.FailedAttempts >= maxAttempts {
		until := time.Now().Add(time.Duration(lockoutSeconds) * time.Second)
		cred.LockedUntil = &until
	}
	return cred, nil
}

func (r *stubRepo) ResetPINFailureState(ctx context.Context, userID uuid.UUID) error {
	if cred, ok := r.creds[userID]; ok {
		cred.FailedAttempts = 0
		cred.LockedUntil = nil
	}
	return nil
}

var _ store.Repository = (*stubRepo)(nil)

func newTestService(repo store.Repository) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		PINTokenSecret:            "test-pin-secret",
		PINTokenTTLSeconds:        120,
		ExpressFeePercent:         5.0,
		RepaymentTermDays:         14,
		StandardFundingDelayHours: 72,
		AdvanceRequestsPerHour:    5,
		PINMaxAttempts:            5,
		PINLockoutMinutes:         15,
		PINThresholdDollars:       100,
	}
	return NewService(repo, nil, cfg, logger)
}
