/**
 * @description
 * Bill pay use cases. Bills are recurring obligations paid manually from a
 * checking account; paying one debits the account, records an audit row, and
 * rolls the bill's next due date forward by its frequency. Due-day arithmetic
 * clamps to the length of the target month (a bill due on the 31st falls on
 * the 28th or 29th in February).
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

var validFrequencies = map[string]bool{
	domain.FrequencyWeekly:    true,
	domain.FrequencyBiweekly:  true,
	domain.FrequencyMonthly:   true,
	domain.FrequencyQuarterly: true,
	domain.FrequencyYearly:    true,
}

// CreateBill registers a recurring bill against the user's checking account.
func (s *Service) CreateBill(ctx context.Context, userID uuid.UUID, req domain.CreateBillRequest, amount int64) (*domain.Bill, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("bill name is required")
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validFrequencies[req.Frequency] {
		return nil, ErrInvalidFrequency
	}
	if req.DueDay < 1 || req.DueDay > 31 {
		return nil, ErrInvalidDueDay
	}

	checking, err := s.repo.FindAccountByType(ctx, userID, domain.AccountTypeChecking)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrCheckingRequired
	}
	if err != nil {
		return nil, err
	}

	bill := &domain.Bill{
		ID:          uuid.New(),
		UserID:      userID,
		AccountID:   checking.ID,
		Name:        req.Name,
		Amount:      amount,
		Frequency:   req.Frequency,
		DueDay:      req.DueDay,
		NextDueDate: firstDueDate(s.now(), req.DueDay),
		AutoPay:     req.AutoPay,
	}
	if err := s.repo.CreateBill(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// ListBills returns all of the user's bills.
func (s *Service) ListBills(ctx context.Context, userID uuid.UUID) ([]domain.Bill, error) {
	return s.repo.FindBillsByUserID(ctx, userID)
}

// PayBill pays a bill from its linked checking account and rolls the next due
// date forward by the bill's frequency.
func (s *Service) PayBill(ctx context.Context, userID, billID uuid.UUID) (*domain.BillPaymentResult, error) {
	bill, err := s.repo.FindBillForUser(ctx, userID, billID)
	if err != nil {
		return nil, err
	}

	nextDue := advanceDueDate(bill.NextDueDate, bill.Frequency, bill.DueDay)
	payment, entry, err := s.repo.PayBill(ctx, bill.ID, bill.AccountID, bill.Amount, bill.Name, nextDue)
	if err != nil {
		return nil, err
	}
	bill.NextDueDate = nextDue

	s.publishEvent(ctx, "bill.paid", map[string]any{
		"bill_id":        bill.ID,
		"user_id":        userID,
		"amount":         bill.Amount,
		"transaction_id": entry.ID,
	})
	return &domain.BillPaymentResult{
		Payment:    payment,
		Bill:       bill,
		NewBalance: entry.BalanceAfter,
	}, nil
}

// firstDueDate picks the next occurrence of dueDay on or after today, rolling
// into next month when the day has already passed.
func firstDueDate(now time.Time, dueDay int) time.Time {
	year, month := now.Year(), now.Month()
	day := clampDay(year, month, dueDay)
	due := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	if due.Before(now.Truncate(24 * time.Hour)) {
		next := time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		due = time.Date(next.Year(), next.Month(), clampDay(next.Year(), next.Month(), dueDay), 0, 0, 0, 0, now.Location())
	}
	return due
}

// advanceDueDate rolls a due date forward one period. Month-based frequencies
// re-anchor on dueDay so a short month never shifts the schedule permanently.
func advanceDueDate(current time.Time, frequency string, dueDay int) time.Time {
	switch frequency {
	case domain.FrequencyWeekly:
		return current.AddDate(0, 0, 7)
	case domain.FrequencyBiweekly:
		return current.AddDate(0, 0, 14)
	case domain.FrequencyMonthly:
		return addMonthsClamped(current, 1, dueDay)
	case domain.FrequencyQuarterly:
		return addMonthsClamped(current, 3, dueDay)
	case domain.FrequencyYearly:
		return addMonthsClamped(current, 12, dueDay)
	default:
		return current.AddDate(0, 1, 0)
	}
}

func addMonthsClamped(current time.Time, months, dueDay int) time.Time {
	anchor := time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, current.Location()).AddDate(0, months, 0)
	day := clampDay(anchor.Year(), anchor.Month(), dueDay)
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, current.Location())
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
	if day > last {
		return last
	}
	return day
}
