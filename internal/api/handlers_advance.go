/**
 * @description
 * HTTP handlers for ExtraCash advance endpoints: eligibility checks, advance
 * requests, repayment and history. Large advance requests carry an
 * `X-PIN-Token` header obtained from the PIN verification endpoint.
 */

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
)

type advanceResponse struct {
	ID               uuid.UUID  `json:"id"`
	Amount           float64    `json:"amount"`
	Fee              float64    `json:"fee"`
	Tip              float64    `json:"tip"`
	DeliverySpeed    string     `json:"deliverySpeed"`
	Status           string     `json:"status"`
	EligibilityScore int        `json:"eligibilityScore"`
	RepaymentDate    time.Time  `json:"repaymentDate"`
	DisbursedAt      *time.Time `json:"disbursedAt,omitempty"`
	RepaidAt         *time.Time `json:"repaidAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func buildAdvanceResponse(a *domain.Advance) advanceResponse {
	return advanceResponse{
		ID:               a.ID,
		Amount:           domain.Dollars(a.Amount),
		Fee:              domain.Dollars(a.Fee),
		Tip:              domain.Dollars(a.Tip),
		DeliverySpeed:    a.DeliverySpeed,
		Status:           a.Status,
		EligibilityScore: a.EligibilityScore,
		RepaymentDate:    a.RepaymentDate,
		DisbursedAt:      a.DisbursedAt,
		RepaidAt:         a.RepaidAt,
		CreatedAt:        a.CreatedAt,
	}
}

// EligibilityHandler handles GET /advances/eligibility.
func (h *Handlers) EligibilityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.CheckEligibility(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"eligible":      result.Eligible,
		"score":         result.Score,
		"maxAmount":     domain.Dollars(result.MaxAmount),
		"factors":       result.Factors,
		"message":       result.Message,
		"hasLinkedBank": result.HasLinkedBank,
	})
}

// RequestAdvanceHandler handles POST /advances.
func (h *Handlers) RequestAdvanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	advance, err := h.service.RequestAdvance(
		r.Context(), userID,
		domain.Cents(req.Amount), domain.Cents(req.Tip),
		req.DeliverySpeed, r.Header.Get("X-PIN-Token"),
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildAdvanceResponse(advance))
}

// ListAdvancesHandler handles GET /advances.
func (h *Handlers) ListAdvancesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	advances, err := h.service.ListAdvances(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := make([]advanceResponse, 0, len(advances))
	for i := range advances {
		views = append(views, buildAdvanceResponse(&advances[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"advances": views})
}

// GetAdvanceHandler handles GET /advances/{advanceID}.
func (h *Handlers) GetAdvanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	advanceID, ok := h.urlUUID(w, r, "advanceID")
	if !ok {
		return
	}

	advance, err := h.service.GetAdvance(r.Context(), userID, advanceID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildAdvanceResponse(advance))
}

func buildRepaymentResponse(result *domain.RepaymentResult) map[string]any {
	return map[string]any{
		"repaid":       true,
		"amountRepaid": domain.Dollars(result.AmountRepaid),
		"newBalance":   domain.Dollars(result.NewBalance),
		"repaidAt":     result.RepaidAt,
	}
}

// RepayAdvanceHandler handles POST /advances/{advanceID}/repay.
func (h *Handlers) RepayAdvanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	advanceID, ok := h.urlUUID(w, r, "advanceID")
	if !ok {
		return
	}

	result, err := h.service.RepayAdvance(r.Context(), userID, advanceID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRepaymentResponse(result))
}
