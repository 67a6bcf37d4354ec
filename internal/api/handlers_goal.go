/**
 * @description
 * HTTP handlers for savings goal endpoints. Goal progress is reported as a
 * percentage with one decimal and may exceed 100 when the final funding
 * increment overshoots the target.
 */

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/domain"
)

type goalResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	TargetAmount     float64   `json:"targetAmount"`
	CurrentAmount    float64   `json:"currentAmount"`
	Progress         float64   `json:"progress"`
	Status           string    `json:"status"`
	SavingsAccountID uuid.UUID `json:"savingsAccountId"`
	CreatedAt        time.Time `json:"createdAt"`
}

func buildGoalResponse(g *domain.Goal) goalResponse {
	return goalResponse{
		ID:               g.ID,
		Name:             g.Name,
		TargetAmount:     domain.Dollars(g.TargetAmount),
		CurrentAmount:    domain.Dollars(g.CurrentAmount),
		Progress:         domain.Progress(g.CurrentAmount, g.TargetAmount),
		Status:           g.Status,
		SavingsAccountID: g.SavingsAccountID,
		CreatedAt:        g.CreatedAt,
	}
}

// CreateGoalHandler handles POST /goals.
func (h *Handlers) CreateGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	var req domain.CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "Goal name is required")
		return
	}

	goal, err := h.service.CreateGoal(r.Context(), userID, req.Name, domain.Cents(req.TargetAmount))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildGoalResponse(goal))
}

// ListGoalsHandler handles GET /goals.
func (h *Handlers) ListGoalsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	goals, err := h.service.ListGoals(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	views := make([]goalResponse, 0, len(goals))
	for i := range goals {
		views = append(views, buildGoalResponse(&goals[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"goals": views})
}

// GetGoalHandler handles GET /goals/{goalID}.
func (h *Handlers) GetGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	goalID, ok := h.urlUUID(w, r, "goalID")
	if !ok {
		return
	}

	goal, err := h.service.GetGoal(r.Context(), userID, goalID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildGoalResponse(goal))
}

// FundGoalHandler handles POST /goals/{goalID}/fund.
func (h *Handlers) FundGoalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	goalID, ok := h.urlUUID(w, r, "goalID")
	if !ok {
		return
	}

	var req domain.FundGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.FundGoal(r.Context(), userID, goalID, domain.Cents(req.Amount))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"goalId":        result.Goal.ID,
		"funded":        domain.Dollars(result.Funded),
		"currentAmount": domain.Dollars(result.Goal.CurrentAmount),
		"targetAmount":  domain.Dollars(result.Goal.TargetAmount),
		"progress":      domain.Progress(result.Goal.CurrentAmount, result.Goal.TargetAmount),
		"status":        result.Goal.Status,
		"referenceId":   result.ReferenceID,
	})
}
