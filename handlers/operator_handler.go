package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/xp"
	"fitQuestAPI/services"
)

// OperatorHandler serves maintenance endpoints: streak recompute and XP adjustments.
type OperatorHandler struct {
	streakService *services.StreakService
	xpService     *services.XPService
}

func NewOperatorHandler(streakService *services.StreakService, xpService *services.XPService) *OperatorHandler {
	return &OperatorHandler{
		streakService: streakService,
		xpService:     xpService,
	}
}

func (h *OperatorHandler) RecomputeStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	vars := mux.Vars(r)
	userID, err := services.ParseUserID(vars["userId"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	t, err := activity.ParseType(vars["type"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.streakService.Recompute(ctx, userID, t)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

type adjustmentRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

func (h *OperatorHandler) CreditAdjustment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := services.ParseUserID(mux.Vars(r)["userId"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Description == "" {
		respondWithError(w, http.StatusBadRequest, "description is required")
		return
	}

	txn, err := h.xpService.Credit(ctx, userID, req.Amount, xp.SourceAdjustment, req.Description)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, txn)
}
