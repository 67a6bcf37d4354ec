/**
 * @description
 * HTTP handlers for bill pay and purchase simulation endpoints.
 */

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
)

type billResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Amount      float64   `json:"amount"`
	Frequency   string    `json:"frequency"`
	DueDay      int       `json:"dueDay"`
	NextDueDate time.Time `json:"nextDueDate"`
	AutoPay     bool      `json:"autoPay"`
	CreatedAt   time.Time `json:"createdAt"`
}

func buildBillResponse(b *domain.Bill) billResponse {
	return billResponse{
		ID:          b.ID,
		Name:        b.Name,
		Amount:      domain.Dollars(b.Amount),
		Frequency:   b.Frequency,
		DueDay:      b.DueDay,
		NextDueDate: b.NextDueDate,
		AutoPay:     b.AutoPay,
		CreatedAt:   b.CreatedAt,
	}
}

// CreateBillHandler handles POST /bills.
func (h *Handlers) CreateBillHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Bill name is required")
		return
	}

	bill, err := h.service.CreateBill(r.Context(), userID, req, domain.Cents(req.Amount))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildBillResponse(bill))
}

// ListBillsHandler handles GET /bills.
func (h *Handlers) ListBillsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	bills, err := h.service.ListBills(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := make([]billResponse, 0, len(bills))
	for i := range bills {
		views = append(views, buildBillResponse(&bills[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"bills": views})
}

// PayBillHandler handles POST /bills/{billID}/pay.
func (h *Handlers) PayBillHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	billID, ok := h.urlUUID(w, r, "billID")
	if !ok {
		return
	}

	result, err := h.service.PayBill(r.Context(), userID, billID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildBillPaymentResponse(result))
}

func buildBillPaymentResponse(result *domain.BillPaymentResult) map[string]any {
	return map[string]any{
		"payment": map[string]any{
			"id":     result.Payment.ID,
			"billId": result.Payment.BillID,
			"amount": domain.Dollars(result.Payment.Amount),
			"paidAt": result.Payment.PaidAt,
		},
		"transactionId": result.Payment.TransactionID,
		"newBalance":    domain.Dollars(result.NewBalance),
		"nextDueDate":   result.Bill.NextDueDate,
	}
}

// SimulatePurchaseHandler handles POST /transactions/simulate.
func (h *Handlers) SimulatePurchaseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.SimulatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MerchantName == "" {
		h.writeError(w, http.StatusBadRequest, "Merchant name is required")
		return
	}

	outcome, err := h.service.SimulatePurchase(r.Context(), userID, req, domain.Cents(req.Amount))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := map[string]any{
		"transaction": buildTransactionResponse(outcome.Purchase),
		"newBalance":  domain.Dollars(outcome.Purchase.BalanceAfter),
	}
	if outcome.RoundUp != nil {
		resp["roundUp"] = map[string]any{
			"amount":           domain.Dollars(outcome.RoundUp.Amount),
			"savingsAccountId": outcome.RoundUp.SavingsAccountID,
			"transactionId":    outcome.RoundUp.TransactionID,
		}
	}
	h.writeJSON(w, http.StatusCreated, resp)
}
