package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

func TestCreateBill_Validation(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	repo.addAccount(userID, domain.AccountTypeChecking, 100000)

	tests := []struct {
		name    string
		req     domain.CreateBillRequest
		amount  int64
		wantErr error
	}{
		{"bad frequency", domain.CreateBillRequest{Name: "Rent", Frequency: "daily", DueDay: 1}, 100000, ErrInvalidFrequency},
		{"due day too low", domain.CreateBillRequest{Name: "Rent", Frequency: domain.FrequencyMonthly, DueDay: 0}, 100000, ErrInvalidDueDay},
		{"due day too high", domain.CreateBillRequest{Name: "Rent", Frequency: domain.FrequencyMonthly, DueDay: 32}, 100000, ErrInvalidDueDay},
		{"zero amount", domain.CreateBillRequest{Name: "Rent", Frequency: domain.FrequencyMonthly, DueDay: 1}, 0, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateBill(context.Background(), userID, tt.req, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateBill_RequiresCheckingAccount(t *testing.T) {
	service := newTestService(newStubRepo())

	_, err := service.CreateBill(context.Background(), uuid.New(), domain.CreateBillRequest{
		Name: "Rent", Frequency: domain.FrequencyMonthly, DueDay: 1,
	}, 100000)
	if !errors.Is(err, ErrCheckingRequired) {
		t.Fatalf("expected ErrCheckingRequired, got %v", err)
	}
}

func TestPayBill_DebitsAndRollsDueDate(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 100000)

	bill, err := service.CreateBill(context.Background(), userID, domain.CreateBillRequest{
		Name: "Internet", Frequency: domain.FrequencyMonthly, DueDay: 15,
	}, 6000)
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}
	dueBefore := bill.NextDueDate

	result, err := service.PayBill(context.Background(), userID, bill.ID)
	if err != nil {
		t.Fatalf("PayBill failed: %v", err)
	}
	if checking.Balance != 94000 {
		t.Errorf("expected balance 94000 after payment, got %d", checking.Balance)
	}
	if result.NewBalance != 94000 {
		t.Errorf("expected reported balance 94000, got %d", result.NewBalance)
	}
	if !result.Bill.NextDueDate.After(dueBefore) {
		t.Errorf("expected due date to advance past %v, got %v", dueBefore, result.Bill.NextDueDate)
	}
	if result.Payment.Amount != 6000 {
		t.Errorf("expected payment amount 6000, got %d", result.Payment.Amount)
	}
}

func TestPayBill_InsufficientFunds(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()
	checking := repo.addAccount(userID, domain.AccountTypeChecking, 1000)

	bill, err := service.CreateBill(context.Background(), userID, domain.CreateBillRequest{
		Name: "Rent", Frequency: domain.FrequencyMonthly, DueDay: 1,
	}, 100000)
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}
	dueBefore := repo.bills[bill.ID].NextDueDate

	_, err = service.PayBill(context.Background(), userID, bill.ID)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if checking.Balance != 1000 {
		t.Error("failed payment must not debit the account")
	}
	if !repo.bills[bill.ID].NextDueDate.Equal(dueBefore) {
		t.Error("failed payment must not roll the due date")
	}
}

func TestAdvanceDueDate(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name      string
		current   time.Time
		frequency string
		dueDay    int
		want      time.Time
	}{
		{
			"weekly adds seven days",
			time.Date(2026, 3, 10, 0, 0, 0, 0, loc), domain.FrequencyWeekly, 10,
			time.Date(2026, 3, 17, 0, 0, 0, 0, loc),
		},
		{
			"biweekly adds fourteen days",
			time.Date(2026, 3, 10, 0, 0, 0, 0, loc), domain.FrequencyBiweekly, 10,
			time.Date(2026, 3, 24, 0, 0, 0, 0, loc),
		},
		{
			"monthly keeps due day",
			time.Date(2026, 3, 15, 0, 0, 0, 0, loc), domain.FrequencyMonthly, 15,
			time.Date(2026, 4, 15, 0, 0, 0, 0, loc),
		},
		{
			"monthly clamps to short february",
			time.Date(2026, 1, 31, 0, 0, 0, 0, loc), domain.FrequencyMonthly, 31,
			time.Date(2026, 2, 28, 0, 0, 0, 0, loc),
		},
		{
			"monthly recovers after short month",
			time.Date(2026, 2, 28, 0, 0, 0, 0, loc), domain.FrequencyMonthly, 31,
			time.Date(2026, 3, 31, 0, 0, 0, 0, loc),
		},
		{
			"quarterly adds three months",
			time.Date(2026, 1, 10, 0, 0, 0, 0, loc), domain.FrequencyQuarterly, 10,
			time.Date(2026, 4, 10, 0, 0, 0, 0, loc),
		},
		{
			"yearly adds twelve months",
			time.Date(2026, 5, 20, 0, 0, 0, 0, loc), domain.FrequencyYearly, 20,
			time.Date(2027, 5, 20, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := advanceDueDate(tt.current, tt.frequency, tt.dueDay)
			if !got.Equal(tt.want) {
				t.Errorf("advanceDueDate(%v, %s, %d) = %v, want %v", tt.current, tt.frequency, tt.dueDay, got, tt.want)
			}
		})
	}
}

func TestFirstDueDate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	// Due day later this month.
	got := firstDueDate(now, 15)
	if got.Day() != 15 || got.Month() != time.March {
		t.Errorf("expected March 15, got %v", got)
	}

	// Due day already passed rolls to next month.
	got = firstDueDate(now, 5)
	if got.Day() != 5 || got.Month() != time.April {
		t.Errorf("expected April 5, got %v", got)
	}

	// Due day beyond month length clamps.
	febNow := time.Date(2026, 2, 1, 12, 0, 0, 0, loc)
	got = firstDueDate(febNow, 31)
	if got.Day() != 28 || got.Month() != time.February {
		t.Errorf("expected February 28, got %v", got)
	}
}
