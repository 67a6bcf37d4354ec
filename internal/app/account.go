/**
 * @description
 * Account and ledger use cases: opening accounts, deposits, internal and P2P
 * transfers, and transaction history. Deposits and transfers accept an
 * optional idempotency key so client retries replay the committed entry
 * instead of moving money twice.
 */

package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

// CreateAccount opens a new ledger account for the user. Checking accounts
// start with round-up enabled.
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID, accountType string) (*domain.Account, error) {
	if accountType != domain.AccountTypeChecking && accountType != domain.AccountTypeSavings {
		return nil, ErrInvalidAccountType
	}
	account, err := s.repo.CreateAccount(ctx, userID, accountType)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, "account.created", map[string]any{
		"account_id":   account.ID,
		"user_id":      userID,
		"account_type": accountType,
	})
	return account, nil
}

// GetAccount returns a single account owned by the user.
func (s *Service) GetAccount(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountForUser(ctx, userID, accountID)
}

// ListAccounts returns all of the user's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	return s.repo.FindAccountsByUserID(ctx, userID)
}

// Deposit credits an account owned by the user. When an idempotency key is
// supplied and an entry with that key already exists, the committed entry is
// returned without moving money again.
func (s *Service) Deposit(ctx context.Context, userID, accountID uuid.UUID, amount int64, description string, idempotencyKey *string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	account, err := s.repo.FindAccountForUser(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if idempotencyKey != nil && *idempotencyKey != "" {
		existing, err := s.repo.FindTransactionByIdempotencyKey(ctx, account.ID, *idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrTransactionNotFound) {
			return nil, err
		}
	}

	entry, err := s.repo.Deposit(ctx, account.ID, amount, description, idempotencyKey)
	if err != nil {
		// A concurrent retry may have won the race on the idempotency key.
		if idempotencyKey != nil && store.IsUniqueViolation(err) {
			return s.repo.FindTransactionByIdempotencyKey(ctx, account.ID, *idempotencyKey)
		}
		return nil, err
	}

	s.publishEvent(ctx, "ledger.deposit", map[string]any{
		"account_id":     account.ID,
		"transaction_id": entry.ID,
		"amount":         amount,
	})
	return entry, nil
}

// Transfer moves funds between two active accounts. Only the source account
// must belong to the caller; the destination may be another user's (P2P).
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, fromID, toID uuid.UUID, amount int64, idempotencyKey *string) (debit, credit *domain.Transaction, err error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if fromID == toID {
		return nil, nil, ErrSameAccount
	}

	source, err := s.repo.FindAccountForUser(ctx, userID, fromID)
	if err != nil {
		return nil, nil, err
	}
	dest, err := s.repo.FindAccountByID(ctx, toID)
	if err != nil {
		return nil, nil, err
	}

	if idempotencyKey != nil && *idempotencyKey != "" {
		existing, err := s.repo.FindTransactionByIdempotencyKey(ctx, source.ID, *idempotencyKey)
		if err == nil {
			return s.replayTransfer(ctx, existing)
		}
		if !errors.Is(err, store.ErrTransactionNotFound) {
			return nil, nil, err
		}
	}

	description := "Transfer"
	if dest.UserID != source.UserID {
		description = "P2P transfer"
	}

	debit, credit, err = s.repo.Transfer(ctx, store.TransferParams{
		FromAccountID:  source.ID,
		ToAccountID:    dest.ID,
		Amount:         amount,
		ReferenceID:    uuid.New(),
		DebitCategory:  domain.CategoryTransfer,
		CreditCategory: domain.CategoryTransfer,
		Description:    description,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		if idempotencyKey != nil && store.IsUniqueViolation(err) {
			existing, findErr := s.repo.FindTransactionByIdempotencyKey(ctx, source.ID, *idempotencyKey)
			if findErr != nil {
				return nil, nil, findErr
			}
			return s.replayTransfer(ctx, existing)
		}
		return nil, nil, err
	}

	s.publishEvent(ctx, "ledger.transfer", map[string]any{
		"from_account_id": source.ID,
		"to_account_id":   dest.ID,
		"amount":          amount,
		"reference_id":    debit.ReferenceID,
	})
	return debit, credit, nil
}

// replayTransfer reconstructs both legs of a previously committed transfer
// from the debit entry found by idempotency key.
func (s *Service) replayTransfer(ctx context.Context, debit *domain.Transaction) (*domain.Transaction, *domain.Transaction, error) {
	if debit.ReferenceID == nil {
		return debit, nil, nil
	}
	legs, err := s.repo.FindTransactionsByReferenceID(ctx, *debit.ReferenceID)
	if err != nil {
		return nil, nil, err
	}
	var credit *domain.Transaction
	for i := range legs {
		if legs[i].Type == domain.TransactionTypeCredit {
			credit = &legs[i]
			break
		}
	}
	return debit, credit, nil
}

// ListTransactions returns the most recent ledger entries for an account the
// user owns.
func (s *Service) ListTransactions(ctx context.Context, userID, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	account, err := s.repo.FindAccountForUser(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByAccountID(ctx, account.ID, limit)
}
