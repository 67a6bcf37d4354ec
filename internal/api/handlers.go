/**
 * @description
 * This file contains the HTTP handlers for accounts and ledger operations.
 * Handlers parse incoming requests, call the application service, and write
 * JSON responses. Monetary values cross the wire as decimal dollars; the
 * handlers convert to and from integer cents at this boundary.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/app"
	"github.com/perchfin/perch-backend/internal/domain"
	"github.com/perchfin/perch-backend/internal/store"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
	logger  *slog.Logger
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.logger.Error("failed to encode response", "error", err)
		}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleServiceError maps service and store errors to HTTP status codes.
func (h *Handlers) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrAdvanceNotFound),
		errors.Is(err, store.ErrGoalNotFound),
		errors.Is(err, store.ErrBillNotFound),
		errors.Is(err, store.ErrLinkedAccountNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, store.ErrAccountNotActive):
		h.writeError(w, http.StatusConflict, "Account is not active")
	case errors.Is(err, store.ErrDuplicateLinkedAccount):
		h.writeError(w, http.StatusConflict, "Linked account already exists")
	case errors.Is(err, store.ErrPINNotSet):
		h.writeError(w, http.StatusPreconditionFailed, "Transaction PIN is not set")
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrSameAccount),
		errors.Is(err, app.ErrInvalidDeliverySpeed),
		errors.Is(err, app.ErrInvalidFrequency),
		errors.Is(err, app.ErrInvalidDueDay),
		errors.Is(err, app.ErrCheckingRequired),
		errors.Is(err, app.ErrNotEligible),
		errors.Is(err, app.ErrNoLinkedBank),
		errors.Is(err, app.ErrAmountOutOfRange),
		errors.Is(err, app.ErrAdvanceNotRepayable),
		errors.Is(err, app.ErrGoalNotActive):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrPINRequired):
		h.writeError(w, http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, app.ErrInvalidPIN):
		h.writeError(w, http.StatusUnauthorized, "Invalid transaction PIN")
	case errors.Is(err, app.ErrPINLocked):
		h.writeError(w, http.StatusLocked, "Too many incorrect PIN attempts. Please wait and try again.")
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		h.logger.Error("unhandled service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireUserID pulls the authenticated user from the context or writes 401.
func (h *Handlers) requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
	}
	return userID, ok
}

// urlUUID parses a UUID path parameter or writes 400.
func (h *Handlers) urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// idempotencyKey extracts the optional Idempotency-Key request header.
func idempotencyKey(r *http.Request) *string {
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		return &key
	}
	return nil
}

type accountResponse struct {
	ID             uuid.UUID `json:"id"`
	AccountType    string    `json:"accountType"`
	Balance        float64   `json:"balance"`
	Status         string    `json:"status"`
	RoundUpEnabled bool      `json:"roundUpEnabled"`
	CreatedAt      time.Time `json:"createdAt"`
}

func buildAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		AccountType:    a.AccountType,
		Balance:        domain.Dollars(a.Balance),
		Status:         a.Status,
		RoundUpEnabled: a.RoundUpEnabled,
		CreatedAt:      a.CreatedAt,
	}
}

type transactionResponse struct {
	ID                   uuid.UUID  `json:"id"`
	AccountID            uuid.UUID  `json:"accountId"`
	Type                 string     `json:"type"`
	Category             string     `json:"category"`
	Amount               float64    `json:"amount"`
	BalanceAfter         float64    `json:"balanceAfter"`
	ReferenceID          *uuid.UUID `json:"referenceId,omitempty"`
	RelatedTransactionID *uuid.UUID `json:"relatedTransactionId,omitempty"`
	Description          string     `json:"description"`
	MerchantName         string     `json:"merchantName,omitempty"`
	SpendingCategory     string     `json:"spendingCategory,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func buildTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:                   t.ID,
		AccountID:            t.AccountID,
		Type:                 t.Type,
		Category:             t.Category,
		Amount:               domain.Dollars(t.Amount),
		BalanceAfter:         domain.Dollars(t.BalanceAfter),
		ReferenceID:          t.ReferenceID,
		RelatedTransactionID: t.RelatedTransactionID,
		Description:          t.Description,
		MerchantName:         t.MerchantName,
		SpendingCategory:     t.SpendingCategory,
		CreatedAt:            t.CreatedAt,
	}
}

// CreateAccountHandler handles POST /accounts.
func (h *Handlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), userID, req.AccountType)
	if err != nil {
		if errors.Is(err, app.ErrInvalidAccountType) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildAccountResponse(account))
}

// ListAccountsHandler handles GET /accounts.
func (h *Handlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		views = append(views, buildAccountResponse(&accounts[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

// GetAccountHandler handles GET /accounts/{accountID}.
func (h *Handlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), userID, accountID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildAccountResponse(account))
}

// DepositHandler handles POST /accounts/{accountID}/deposit.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}

	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.service.Deposit(r.Context(), userID, accountID, domain.Cents(req.Amount), req.Description, idempotencyKey(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": buildTransactionResponse(entry),
		"newBalance":  domain.Dollars(entry.BalanceAfter),
	})
}

// TransferHandler handles POST /accounts/transfer.
func (h *Handlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	debit, credit, err := h.service.Transfer(r.Context(), userID, req.FromAccountID, req.ToAccountID, domain.Cents(req.Amount), idempotencyKey(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := map[string]any{
		"fromBalance": domain.Dollars(debit.BalanceAfter),
		"debit":       buildTransactionResponse(debit),
	}
	if debit.ReferenceID != nil {
		resp["referenceId"] = *debit.ReferenceID
	}
	if credit != nil {
		resp["toBalance"] = domain.Dollars(credit.BalanceAfter)
		resp["credit"] = buildTransactionResponse(credit)
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// ListTransactionsHandler handles GET /accounts/{accountID}/transactions.
func (h *Handlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	accountID, ok := h.urlUUID(w, r, "accountID")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.service.ListTransactions(r.Context(), userID, accountID, limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := make([]transactionResponse, 0, len(entries))
	for i := range entries {
		views = append(views, buildTransactionResponse(&entries[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"transactions": views})
}
