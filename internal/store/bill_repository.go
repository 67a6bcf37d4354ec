/**
 * @description
 * Persistence for recurring bills. Paying a bill is a single-account compound
 * operation: the checking debit, its purchase-category ledger row, the
 * bill-payment audit row, and the next-due-date advance commit together.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/perchfin/perch-backend/internal/domain"
)

const billColumns = `id, user_id, account_id, name, amount, frequency, due_day, next_due_date, auto_pay, created_at, updated_at`

func scanBill(row pgx.Row) (*domain.Bill, error) {
	var b domain.Bill
	err := row.Scan(&b.ID, &b.UserID, &b.AccountID, &b.Name, &b.Amount, &b.Frequency, &b.DueDay, &b.NextDueDate, &b.AutoPay, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}
	return &b, nil
}

// CreateBill inserts a new recurring bill.
func (r *PostgresRepository) CreateBill(ctx context.Context, bill *domain.Bill) error {
	bill.ID = uuid.New()
	query := `
		INSERT INTO bills (id, user_id, account_id, name, amount, frequency, due_day, next_due_date, auto_pay, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		bill.ID, bill.UserID, bill.AccountID, bill.Name, bill.Amount,
		bill.Frequency, bill.DueDay, bill.NextDueDate, bill.AutoPay,
	).Scan(&bill.CreatedAt, &bill.UpdatedAt)
}

// FindBillForUser retrieves a bill only if it belongs to the user.
func (r *PostgresRepository) FindBillForUser(ctx context.Context, userID, billID uuid.UUID) (*domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1 AND user_id = $2`
	return scanBill(r.db.QueryRow(ctx, query, billID, userID))
}

// FindBillsByUserID lists a user's bills ordered by next due date.
func (r *PostgresRepository) FindBillsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 ORDER BY next_due_date`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		var b domain.Bill
		if err := rows.Scan(&b.ID, &b.UserID, &b.AccountID, &b.Name, &b.Amount, &b.Frequency, &b.DueDay, &b.NextDueDate, &b.AutoPay, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// PayBill debits the account for the bill amount, logs the purchase-category
// entry tagged with the bills spending category, records the payment audit
// row, and advances next_due_date, all atomically.
func (r *PostgresRepository) PayBill(ctx context.Context, billID, accountID uuid.UUID, amount int64, billName string, nextDueDate time.Time) (*domain.BillPayment, *domain.Transaction, error) {
	var payment *domain.BillPayment
	var entry *domain.Transaction
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		account, err := lockAccountRow(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountStatusActive {
			return ErrAccountNotActive
		}
		if account.Balance < amount {
			return ErrInsufficientFunds
		}

		newBalance := account.Balance - amount
		if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}

		entry = &domain.Transaction{
			AccountID:        accountID,
			Type:             domain.TransactionTypeDebit,
			Category:         domain.CategoryPurchase,
			Amount:           amount,
			BalanceAfter:     newBalance,
			Description:      "Bill payment: " + billName,
			MerchantName:     billName,
			SpendingCategory: "bills",
		}
		if err := insertEntry(ctx, tx, entry); err != nil {
			return err
		}

		payment = &domain.BillPayment{
			ID:            uuid.New(),
			BillID:        billID,
			TransactionID: entry.ID,
			Amount:        amount,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO bill_payments (id, bill_id, transaction_id, amount, paid_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING paid_at`,
			payment.ID, payment.BillID, payment.TransactionID, payment.Amount,
		).Scan(&payment.PaidAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE bills SET next_due_date = $1, updated_at = NOW() WHERE id = $2`,
			nextDueDate, billID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, entry, nil
}
