package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const ServiceTokenHeader = "X-Service-Token"

// ServiceTokenMiddleware admits collaborator and operator calls carrying the shared
// service token. An empty token rejects every request.
func ServiceTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(ServiceTokenHeader)
			if got == "" {
				respondWithError(w, http.StatusUnauthorized, ServiceTokenHeader+" header required")
				return
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logrus.WithField("path", r.URL.Path).Warn("Rejected request with invalid service token")
				respondWithError(w, http.StatusForbidden, "Invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
