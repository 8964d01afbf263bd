package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// WriteJSON writes payload as the response body with the given status.
func WriteJSON(log zerolog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}
