package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fitQuestAPI/services"
)

type ProgressionHandler struct {
	progressionService *services.ProgressionService
}

func NewProgressionHandler(progressionService *services.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: progressionService,
	}
}

func (h *ProgressionHandler) GetProgression(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshot, err := h.progressionService.GetProgress(ctx, mux.Vars(r)["userId"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}

func (h *ProgressionHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	achievements, err := h.progressionService.GetAchievements(ctx, mux.Vars(r)["userId"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, achievements)
}

func (h *ProgressionHandler) GetStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	streaks, err := h.progressionService.GetStreaks(ctx, mux.Vars(r)["userId"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, streaks)
}

func (h *ProgressionHandler) GetXPHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, err := limitParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.progressionService.GetXPHistory(ctx, mux.Vars(r)["userId"], limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

func (h *ProgressionHandler) GetProgressView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, err := limitParam(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.progressionService.GetProgressView(ctx, mux.Vars(r)["userId"], limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}
