package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// maxLogValue bounds client-supplied values written to the log.
const maxLogValue = 128

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log
// injection and truncates long values.
func sanitizeForLog(s string) string {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	if len(s) > maxLogValue {
		s = s[:maxLogValue] + "..."
	}
	return s
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
