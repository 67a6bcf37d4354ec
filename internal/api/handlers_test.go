package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/app"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

func testHandlers() *Handlers {
	return &Handlers{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"account not found", store.ErrAccountNotFound, http.StatusNotFound},
		{"advance not found", store.ErrAdvanceNotFound, http.StatusNotFound},
		{"insufficient funds", store.ErrInsufficientFunds, http.StatusBadRequest},
		{"account not active", store.ErrAccountNotActive, http.StatusConflict},
		{"duplicate linked account", store.ErrDuplicateLinkedAccount, http.StatusConflict},
		{"pin not set", store.ErrPINNotSet, http.StatusPreconditionFailed},
		{"invalid amount", app.ErrInvalidAmount, http.StatusBadRequest},
		{"same account", app.ErrSameAccount, http.StatusBadRequest},
		{"not eligible", app.ErrNotEligible, http.StatusBadRequest},
		{"no linked bank", app.ErrNoLinkedBank, http.StatusBadRequest},
		{"amount out of range", app.ErrAmountOutOfRange, http.StatusBadRequest},
		{"advance not repayable", app.ErrAdvanceNotRepayable, http.StatusBadRequest},
		{"goal not active", app.ErrGoalNotActive, http.StatusBadRequest},
		{"pin required", app.ErrPINRequired, http.StatusPreconditionRequired},
		{"invalid pin", app.ErrInvalidPIN, http.StatusUnauthorized},
		{"pin locked", app.ErrPINLocked, http.StatusLocked},
		{"rate limited", app.ErrRateLimited, http.StatusTooManyRequests},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	h := testHandlers()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.handleServiceError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("error response must be JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("error response must carry a message")
			}
		})
	}
}

func TestBuildRepaymentResponse(t *testing.T) {
	repaidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resp := buildRepaymentResponse(&domain.RepaymentResult{
		AmountRepaid: 10700,
		NewBalance:   4300,
		RepaidAt:     repaidAt,
	})

	if resp["repaid"] != true {
		t.Error("repayment response must carry repaid=true")
	}
	if resp["amountRepaid"] != 107.0 {
		t.Errorf("expected amountRepaid 107.0, got %v", resp["amountRepaid"])
	}
	if resp["newBalance"] != 43.0 {
		t.Errorf("expected newBalance 43.0, got %v", resp["newBalance"])
	}
	if resp["repaidAt"] != repaidAt {
		t.Errorf("expected repaidAt %v, got %v", repaidAt, resp["repaidAt"])
	}
}

func TestBuildBillPaymentResponse(t *testing.T) {
	txID := uuid.New()
	nextDue := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	resp := buildBillPaymentResponse(&domain.BillPaymentResult{
		Payment: &domain.BillPayment{
			ID:            uuid.New(),
			BillID:        uuid.New(),
			TransactionID: txID,
			Amount:        6000,
			PaidAt:        time.Now(),
		},
		Bill:       &domain.Bill{NextDueDate: nextDue},
		NewBalance: 14000,
	})

	payment, ok := resp["payment"].(map[string]any)
	if !ok {
		t.Fatal("bill payment response must nest a payment object")
	}
	if payment["amount"] != 60.0 {
		t.Errorf("expected payment amount 60.0, got %v", payment["amount"])
	}
	if resp["transactionId"] != txID {
		t.Errorf("expected transactionId %v, got %v", txID, resp["transactionId"])
	}
	if resp["newBalance"] != 140.0 {
		t.Errorf("expected newBalance 140.0, got %v", resp["newBalance"])
	}
	if resp["nextDueDate"] != nextDue {
		t.Errorf("expected nextDueDate %v, got %v", nextDue, resp["nextDueDate"])
	}
}

func TestMaskRoutingNumber(t *testing.T) {
	if got := maskRoutingNumber("021000021"); got != "*****0021" {
		t.Errorf("expected *****0021, got %q", got)
	}
	if got := maskRoutingNumber("0021"); got != "0021" {
		t.Errorf("short values pass through, got %q", got)
	}
}

func TestIdempotencyKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
	if idempotencyKey(req) != nil {
		t.Error("expected nil without header")
	}

	req.Header.Set("Idempotency-Key", "retry-42")
	key := idempotencyKey(req)
	if key == nil || *key != "retry-42" {
		t.Errorf("expected retry-42, got %v", key)
	}
}
