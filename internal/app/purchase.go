/**
 * @description
 * Purchase simulation. A simulated purchase debits the account like a real
 * card swipe and, when round-up is enabled on a checking account with a
 * savings destination, skims the change up to the next whole dollar into
 * savings as a second, decoupled ledger transfer. A round-up failure never
 * reverses the purchase.
 */

package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

// PurchaseOutcome bundles the purchase ledger entry with its optional
// round-up skim.
type PurchaseOutcome struct {
	Purchase *domain.Transaction
	RoundUp  *domain.RoundUpResult
}

// SimulatePurchase debits the account for a merchant purchase and attempts a
// best-effort round-up skim afterwards.
func (s *Service) SimulatePurchase(ctx context.Context, userID uuid.UUID, req domain.SimulatePurchaseRequest, amount int64) (*PurchaseOutcome, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.MerchantName == "" {
		return nil, errors.New("merchant name is required")
	}

	account, err := s.repo.FindAccountForUser(ctx, userID, req.AccountID)
	if err != nil {
		return nil, err
	}

	purchase, err := s.repo.DebitAccount(ctx, store.DebitParams{
		AccountID:        account.ID,
		Amount:           amount,
		Category:         domain.CategoryPurchase,
		Description:      "Purchase at " + req.MerchantName,
		MerchantName:     req.MerchantName,
		SpendingCategory: req.SpendingCategory,
	})
	if err != nil {
		return nil, err
	}

	outcome := &PurchaseOutcome{Purchase: purchase}
	if account.AccountType == domain.AccountTypeChecking && account.RoundUpEnabled {
		outcome.RoundUp = s.applyRoundUp(ctx, userID, account.ID, purchase)
	}

	s.publishEvent(ctx, "purchase.simulated", map[string]any{
		"account_id":     account.ID,
		"transaction_id": purchase.ID,
		"amount":         amount,
		"merchant":       req.MerchantName,
	})
	return outcome, nil
}

// applyRoundUp skims the round-up amount into savings. Any failure is logged
// and swallowed so the committed purchase stands.
func (s *Service) applyRoundUp(ctx context.Context, userID, checkingID uuid.UUID, purchase *domain.Transaction) *domain.RoundUpResult {
	skim := domain.RoundUpAmount(purchase.Amount)
	if skim == 0 {
		return nil
	}

	savings, err := s.repo.FindAccountByType(ctx, userID, domain.AccountTypeSavings)
	if err != nil {
		if !errors.Is(err, store.ErrAccountNotFound) {
			s.logger.Warn("round-up skipped, savings lookup failed", "user_id", userID, "error", err)
		}
		return nil
	}

	purchaseID := purchase.ID
	debit, _, err := s.repo.Transfer(ctx, store.TransferParams{
		FromAccountID:        checkingID,
		ToAccountID:          savings.ID,
		Amount:               skim,
		ReferenceID:          uuid.New(),
		DebitCategory:        domain.CategoryRoundUp,
		CreditCategory:       domain.CategoryRoundUp,
		Description:          "Round-up savings",
		RelatedTransactionID: &purchaseID,
	})
	if err != nil {
		s.logger.Warn("round-up transfer failed", "user_id", userID, "error", err)
		return nil
	}

	return &domain.RoundUpResult{
		Amount:           skim,
		SavingsAccountID: savings.ID,
		TransactionID:    debit.ID,
	}
}
