package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "transactions_account_idempotency_key"}
	if !IsUniqueViolation(unique) {
		t.Error("expected 23505 to be a unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", unique)) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}

	other := &pgconn.PgError{Code: "23503"}
	if IsUniqueViolation(other) {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("connection refused")) {
		t.Error("plain errors are not unique violations")
	}
	if IsUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
}
