package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

func purchaseRequest(accountID uuid.UUID) domain.SimulatePurchaseRequest {
	return domain.SimulatePurchaseRequest{
		AccountID:        accountID,
		MerchantName:     "Corner Coffee",
		SpendingCategory: "dining",
	}
}

func TestSimulatePurchase_SkimsRoundUpIntoSavings(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 10000)
	savings := repo.addAccount(userID, domain.AccountTypeSavings, 0)

	// $4.47 purchase skims $0.53.
	outcome, err := service.SimulatePurchase(context.Background(), userID, purchaseRequest(checking.ID), 447)
	if err != nil {
		t.Fatalf("SimulatePurchase failed: %v", err)
	}

	if outcome.RoundUp == nil {
		t.Fatal("expected a round-up skim")
	}
	if outcome.RoundUp.Amount != 53 {
		t.Errorf("expected 53 cent skim, got %d", outcome.RoundUp.Amount)
	}
	if savings.Balance != 53 {
		t.Errorf("expected savings balance 53, got %d", savings.Balance)
	}
	if checking.Balance != 10000-447-53 {
		t.Errorf("expected checking debited for purchase and skim, got %d", checking.Balance)
	}
	if outcome.Purchase.MerchantName != "Corner Coffee" {
		t.Errorf("expected merchant recorded on the entry, got %q", outcome.Purchase.MerchantName)
	}
}

func TestSimulatePurchase_WholeDollarSkipsRoundUp(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 10000)
	repo.addAccount(userID, domain.AccountTypeSavings, 0)

	outcome, err := service.SimulatePurchase(context.Background(), userID, purchaseRequest(checking.ID), 500)
	if err != nil {
		t.Fatalf("SimulatePurchase failed: %v", err)
	}
	if outcome.RoundUp != nil {
		t.Error("whole-dollar purchase must not skim")
	}
	if checking.Balance != 9500 {
		t.Errorf("expected balance 9500, got %d", checking.Balance)
	}
}

func TestSimulatePurchase_NoSavingsAccountSkipsRoundUp(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 10000)

	outcome, err := service.SimulatePurchase(context.Background(), userID, purchaseRequest(checking.ID), 447)
	if err != nil {
		t.Fatalf("SimulatePurchase failed: %v", err)
	}
	if outcome.RoundUp != nil {
		t.Error("round-up requires a savings account")
	}
	if checking.Balance != 10000-447 {
		t.Errorf("purchase itself must still commit, balance %d", checking.Balance)
	}
}

func TestSimulatePurchase_RoundUpFailureDoesNotReversePurchase(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 10000)
	repo.addAccount(userID, domain.AccountTypeSavings, 0)
	repo.transferErr = errors.New("savings ledger unavailable")

	outcome, err := service.SimulatePurchase(context.Background(), userID, purchaseRequest(checking.ID), 447)
	if err != nil {
		t.Fatalf("purchase must succeed even when the skim fails: %v", err)
	}
	if outcome.RoundUp != nil {
		t.Error("failed skim must be reported as absent")
	}
	if checking.Balance != 10000-447 {
		t.Errorf("expected only the purchase debit, balance %d", checking.Balance)
	}
}

func TestSimulatePurchase_InsufficientFunds(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 100)

	_, err := service.SimulatePurchase(context.Background(), userID, purchaseRequest(checking.ID), 447)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestSimulatePurchase_RoundUpSkippedWhenDisabled(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 10000)
	checking.RoundUpEnabled = false
	repo.addAccount(userID, domain.AccountTypeSavings, 0)

	outcome, err := service.SimulatePurchase(context.Background(), userID, purchaseRequest(checking.ID), 447)
	if err != nil {
		t.Fatalf("SimulatePurchase failed: %v", err)
	}
	if outcome.RoundUp != nil {
		t.Error("round-up must respect the account flag")
	}
}
