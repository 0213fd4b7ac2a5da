package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/services"
)

type EventSubmitter interface {
	Submit(e activity.Event) error
}

// ActivityHandler accepts activity reported by the meal, exercise and water flows.
// Events are checked for shape here and ingested asynchronously.
type ActivityHandler struct {
	dispatcher EventSubmitter
	loc        *time.Location
	now        func() time.Time
}

func NewActivityHandler(dispatcher EventSubmitter, loc *time.Location, now func() time.Time) *ActivityHandler {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ActivityHandler{dispatcher: dispatcher, loc: loc, now: now}
}

type activityEnvelope struct {
	UserID     string     `json:"user_id"`
	Date       string     `json:"date"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

type mealRequest struct {
	activityEnvelope
	Calories float64 `json:"calories"`
	services.Macros
}

type exerciseRequest struct {
	activityEnvelope
	DurationMinutes int     `json:"duration_minutes"`
	CaloriesBurned  float64 `json:"calories_burned"`
}

type waterRequest struct {
	activityEnvelope
	AmountMl int `json:"amount_ml"`
}

type acceptedResponse struct {
	EventID     string `json:"event_id"`
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"`
}

func (h *ActivityHandler) LogMeal(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.accept(w, r, req.activityEnvelope, activity.Nutrition{
		Calories: req.Calories,
		ProteinG: req.ProteinG,
		CarbsG:   req.CarbsG,
		FatG:     req.FatG,
	})
}

func (h *ActivityHandler) LogExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.accept(w, r, req.activityEnvelope, activity.Exercise{
		DurationMinutes: req.DurationMinutes,
		CaloriesBurned:  req.CaloriesBurned,
	})
}

func (h *ActivityHandler) LogWater(w http.ResponseWriter, r *http.Request) {
	var req waterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.accept(w, r, req.activityEnvelope, activity.Hydration{AmountMl: req.AmountMl})
}

func (h *ActivityHandler) accept(w http.ResponseWriter, r *http.Request, env activityEnvelope, p activity.Payload) {
	userID, err := services.ParseUserID(env.UserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "user_id must be a UUID")
		return
	}

	now := h.now()
	date := activity.Today(now, h.loc)
	if env.Date != "" {
		date, err = activity.ParseDate(env.Date)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	var occurredAt time.Time
	if env.OccurredAt != nil {
		occurredAt = *env.OccurredAt
	}

	e := activity.New(userID, date, occurredAt, p, now)
	if err := activity.Validate(e, activity.Today(now, h.loc)); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	if err := h.dispatcher.Submit(e); err != nil {
		if errors.Is(err, services.ErrDispatcherStopped) {
			respondWithError(w, http.StatusServiceUnavailable, "Service is shutting down")
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "Activity queue is full, retry later")
		return
	}

	respondWithJSON(w, http.StatusAccepted, acceptedResponse{
		EventID:     e.ID.String(),
		Fingerprint: e.Fingerprint,
		Status:      "queued",
	})
}
