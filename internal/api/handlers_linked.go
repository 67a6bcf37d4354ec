/**
 * @description
 * HTTP handlers for linked external bank accounts and transaction PIN
 * security. Routing numbers are masked in list responses; PIN verification
 * returns a short-lived confirmation token for large advances.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
)

type linkedAccountResponse struct {
	ID                 uuid.UUID `json:"id"`
	BankName           string    `json:"bankName"`
	AccountHolderName  string    `json:"accountHolderName"`
	RoutingNumber      string    `json:"routingNumber"`
	AccountNumberLast4 string    `json:"accountNumberLast4"`
	VerificationStatus string    `json:"verificationStatus"`
	IsPrimary          bool      `json:"isPrimary"`
	CreatedAt          time.Time `json:"createdAt"`
}

func buildLinkedAccountResponse(la *domain.LinkedAccount) linkedAccountResponse {
	return linkedAccountResponse{
		ID:                 la.ID,
		BankName:           la.BankName,
		AccountHolderName:  la.AccountHolderName,
		RoutingNumber:      maskRoutingNumber(la.RoutingNumber),
		AccountNumberLast4: la.AccountNumberLast4,
		VerificationStatus: la.VerificationStatus,
		IsPrimary:          la.IsPrimary,
		CreatedAt:          la.CreatedAt,
	}
}

func maskRoutingNumber(routing string) string {
	if len(routing) <= 4 {
		return routing
	}
	return strings.Repeat("*", len(routing)-4) + routing[len(routing)-4:]
}

// LinkAccountHandler handles POST /linked-accounts.
func (h *Handlers) LinkAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.LinkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	linked, err := h.service.LinkAccount(r.Context(), userID, req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildLinkedAccountResponse(linked))
}

// ListLinkedAccountsHandler handles GET /linked-accounts.
func (h *Handlers) ListLinkedAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	linked, err := h.service.ListLinkedAccounts(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := make([]linkedAccountResponse, 0, len(linked))
	for i := range linked {
		views = append(views, buildLinkedAccountResponse(&linked[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"linkedAccounts": views})
}

// VerifyLinkedAccountHandler handles POST /linked-accounts/{linkedAccountID}/verify.
func (h *Handlers) VerifyLinkedAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	linkedAccountID, ok := h.urlUUID(w, r, "linkedAccountID")
	if !ok {
		return
	}

	linked, err := h.service.VerifyLinkedAccount(r.Context(), userID, linkedAccountID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildLinkedAccountResponse(linked))
}

// SetPrimaryLinkedAccountHandler handles PUT /linked-accounts/{linkedAccountID}/primary.
func (h *Handlers) SetPrimaryLinkedAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	linkedAccountID, ok := h.urlUUID(w, r, "linkedAccountID")
	if !ok {
		return
	}

	if err := h.service.SetPrimaryLinkedAccount(r.Context(), userID, linkedAccountID); err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "primary updated"})
}

// SetPINHandler handles POST /security/pin.
func (h *Handlers) SetPINHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.PINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetPIN(r.Context(), userID, req.PIN); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

// VerifyPINHandler handles POST /security/pin/verify.
func (h *Handlers) VerifyPINHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.PINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.service.VerifyPINAndIssueToken(r.Context(), userID, req.PIN)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"pinToken": token})
}
