/**
 * @description
 * Ledger primitives: the balance-mutating operations and their transaction-log
 * inserts. Each operation locks the account row with SELECT ... FOR UPDATE for
 * the duration of the database transaction, so a concurrent request against
 * the same account cannot read a stale balance (lost-update / double-spend
 * race). The `balance_after` column is written from the freshly computed
 * balance inside the same transaction, making the log an exact audit trail.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/perchfin/perch-backend/internal/domain"
)

const transactionColumns = `id, account_id, type, category, amount, balance_after, reference_id, related_transaction_id, description, merchant_name, spending_category, idempotency_key, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Category, &t.Amount, &t.BalanceAfter,
		&t.ReferenceID, &t.RelatedTransactionID, &t.Description, &t.MerchantName,
		&t.SpendingCategory, &t.IdempotencyKey, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

// lockAccountRow reads an account under FOR UPDATE, holding the row lock until
// the surrounding transaction commits or rolls back.
func lockAccountRow(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, accountID))
}

// setBalance writes the new balance for a previously locked account row.
func setBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance int64) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`, balance, accountID)
	return err
}

// insertEntry writes one immutable ledger row and fills in its generated id
// and timestamp.
func insertEntry(ctx context.Context, tx pgx.Tx, e *domain.Transaction) error {
	e.ID = uuid.New()
	query := `
		INSERT INTO transactions (id, account_id, type, category, amount, balance_after, reference_id, related_transaction_id, description, merchant_name, spending_category, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING created_at`
	return tx.QueryRow(ctx, query,
		e.ID, e.AccountID, e.Type, e.Category, e.Amount, e.BalanceAfter,
		e.ReferenceID, e.RelatedTransactionID, e.Description, e.MerchantName,
		e.SpendingCategory, e.IdempotencyKey,
	).Scan(&e.CreatedAt)
}

// Deposit credits an account and logs one credit/deposit entry atomically.
func (r *PostgresRepository) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, description string, idempotencyKey *string) (*domain.Transaction, error) {
	var entry *domain.Transaction
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		account, err := lockAccountRow(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountStatusActive {
			return ErrAccountNotActive
		}

		newBalance := account.Balance + amount
		if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
			return err
		}

		entry = &domain.Transaction{
			AccountID:      accountID,
			Type:           domain.TransactionTypeCredit,
			Category:       domain.CategoryDeposit,
			Amount:         amount,
			BalanceAfter:   newBalance,
			Description:    description,
			IdempotencyKey: idempotencyKey,
		}
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Transfer moves money between two accounts: two balance updates and two
// ledger rows sharing a reference id, all in one transaction. Rows are locked
// in a deterministic order so two opposing transfers cannot deadlock.
func (r *PostgresRepository) Transfer(ctx context.Context, p TransferParams) (*domain.Transaction, *domain.Transaction, error) {
	var debitEntry, creditEntry *domain.Transaction
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		first, second := p.FromAccountID, p.ToAccountID
		if second.String() < first.String() {
			first, second = second, first
		}
		locked := map[uuid.UUID]*domain.Account{}
		for _, id := range []uuid.UUID{first, second} {
			account, err := lockAccountRow(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}
		from, to := locked[p.FromAccountID], locked[p.ToAccountID]

		if from.Status != domain.AccountStatusActive || to.Status != domain.AccountStatusActive {
			return ErrAccountNotActive
		}
		if from.Balance < p.Amount {
			return ErrInsufficientFunds
		}

		fromBalance := from.Balance - p.Amount
		toBalance := to.Balance + p.Amount
		if err := setBalance(ctx, tx, from.ID, fromBalance); err != nil {
			return err
		}
		if err := setBalance(ctx, tx, to.ID, toBalance); err != nil {
			return err
		}

		refID := p.ReferenceID
		debitEntry = &domain.Transaction{
			AccountID:            from.ID,
			Type:                 domain.TransactionTypeDebit,
			Category:             p.DebitCategory,
			Amount:               p.Amount,
			BalanceAfter:         fromBalance,
			ReferenceID:          &refID,
			RelatedTransactionID: p.RelatedTransactionID,
			Description:          p.Description,
			IdempotencyKey:       p.IdempotencyKey,
		}
		if err := insertEntry(ctx, tx, debitEntry); err != nil {
			return err
		}

		creditEntry = &domain.Transaction{
			AccountID:            to.ID,
			Type:                 domain.TransactionTypeCredit,
			Category:             p.CreditCategory,
			Amount:               p.Amount,
			BalanceAfter:         toBalance,
			ReferenceID:          &refID,
			RelatedTransactionID: p.RelatedTransactionID,
			Description:          p.Description,
		}
		return insertEntry(ctx, tx, creditEntry)
	})
	if err != nil {
		return nil, nil, err
	}
	return debitEntry, creditEntry, nil
}

// DebitAccount debits an account and logs one debit entry atomically. Used
// for simulated purchases; bills and repayments have their own compound
// operations that add their extra writes to the same transaction.
func (r *PostgresRepository) DebitAccount(ctx context.Context, p DebitParams) (*domain.Transaction, error) {
	var entry *domain.Transaction
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		account, err := lockAccountRow(ctx, tx, p.AccountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountStatusActive {
			return ErrAccountNotActive
		}
		if account.Balance < p.Amount {
			return ErrInsufficientFunds
		}

		newBalance := account.Balance - p.Amount
		if err := setBalance(ctx, tx, p.AccountID, newBalance); err != nil {
			return err
		}

		entry = &domain.Transaction{
			AccountID:        p.AccountID,
			Type:             domain.TransactionTypeDebit,
			Category:         p.Category,
			Amount:           p.Amount,
			BalanceAfter:     newBalance,
			Description:      p.Description,
			MerchantName:     p.MerchantName,
			SpendingCategory: p.SpendingCategory,
		}
		return insertEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// FindTransactionsByAccountID returns an account's ledger entries, newest
// first.
func (r *PostgresRepository) FindTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// FindTransactionByIdempotencyKey resolves a previously committed entry for a
// client-supplied request id, allowing safe retries of deposit and transfer.
func (r *PostgresRepository) FindTransactionByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = $1 AND idempotency_key = $2`
	return scanTransaction(r.db.QueryRow(ctx, query, accountID, key))
}

// FindTransactionsByReferenceID returns both legs of a logical transfer.
func (r *PostgresRepository) FindTransactionsByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference_id = $1 ORDER BY type DESC`
	rows, err := r.db.Query(ctx, query, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var entries []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Category, &t.Amount, &t.BalanceAfter,
			&t.ReferenceID, &t.RelatedTransactionID, &t.Description, &t.MerchantName,
			&t.SpendingCategory, &t.IdempotencyKey, &t.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}
