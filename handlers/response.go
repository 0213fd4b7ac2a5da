package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/internal/xp"
	"fitQuestAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps the domain error types onto status codes.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *services.UserNotFoundError
		invalid    *activity.InvalidEventError
		amount     *xp.InvalidAmountError
		outOfOrder *streak.OutOfOrderEventError
	)
	switch {
	case errors.As(err, &notFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid), errors.As(err, &amount):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &outOfOrder):
		respondWithError(w, http.StatusConflict, err.Error())
	default:
		logrus.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// limitParam reads ?limit=N. A missing value yields 0, leaving the default to the service.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}
