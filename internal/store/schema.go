/**
 * @description
 * Idempotent schema bootstrap. Run once at startup so the service works
 * against a fresh database without an external migration step.
 */

package store

import "context"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    account_type TEXT NOT NULL,
    balance BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    round_up_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts (user_id);

CREATE TABLE IF NOT EXISTS transactions (
    id UUID PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts (id),
    type TEXT NOT NULL,
    category TEXT NOT NULL,
    amount BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    reference_id UUID,
    related_transaction_id UUID,
    description TEXT NOT NULL DEFAULT '',
    merchant_name TEXT NOT NULL DEFAULT '',
    spending_category TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions (account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions (reference_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency
    ON transactions (account_id, idempotency_key)
    WHERE idempotency_key IS NOT NULL;

CREATE TABLE IF NOT EXISTS advances (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    account_id UUID NOT NULL REFERENCES accounts (id),
    amount BIGINT NOT NULL,
    fee BIGINT NOT NULL DEFAULT 0,
    tip BIGINT NOT NULL DEFAULT 0,
    delivery_speed TEXT NOT NULL,
    status TEXT NOT NULL,
    eligibility_score INT NOT NULL DEFAULT 0,
    repayment_date TIMESTAMPTZ NOT NULL,
    disbursed_at TIMESTAMPTZ,
    repaid_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_advances_user_status ON advances (user_id, status);

CREATE TABLE IF NOT EXISTS goals (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    savings_account_id UUID NOT NULL REFERENCES accounts (id),
    name TEXT NOT NULL,
    target_amount BIGINT NOT NULL,
    current_amount BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_goals_user_id ON goals (user_id);

CREATE TABLE IF NOT EXISTS bills (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    account_id UUID NOT NULL REFERENCES accounts (id),
    name TEXT NOT NULL,
    amount BIGINT NOT NULL,
    frequency TEXT NOT NULL,
    due_day INT NOT NULL,
    next_due_date TIMESTAMPTZ NOT NULL,
    auto_pay BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bills_user_id ON bills (user_id);

CREATE TABLE IF NOT EXISTS bill_payments (
    id UUID PRIMARY KEY,
    bill_id UUID NOT NULL REFERENCES bills (id),
    transaction_id UUID NOT NULL REFERENCES transactions (id),
    amount BIGINT NOT NULL,
    paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bill_payments_bill_id ON bill_payments (bill_id);

CREATE TABLE IF NOT EXISTS linked_accounts (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    bank_name TEXT NOT NULL,
    account_holder_name TEXT NOT NULL,
    routing_number TEXT NOT NULL,
    account_number_last4 TEXT NOT NULL,
    verification_status TEXT NOT NULL DEFAULT 'pending',
    is_primary BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, account_number_last4, bank_name)
);
CREATE INDEX IF NOT EXISTS idx_linked_accounts_user_id ON linked_accounts (user_id);

CREATE TABLE IF NOT EXISTS user_security_credentials (
    user_id UUID PRIMARY KEY,
    pin_hash TEXT NOT NULL DEFAULT '',
    failed_attempts INT NOT NULL DEFAULT 0,
    locked_until TIMESTAMPTZ
);
`

// EnsureSchema creates the tables and indexes this service needs if they do
// not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaDDL)
	return err
}
