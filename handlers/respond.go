package handlers

import (
	"encoding/json"
	"net/http"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/logger"
)

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps engine errors onto status codes. Server side failures are
// logged here so handlers don't have to.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Status(err)
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondWithError(w, code, apperr.Message(err))
}
