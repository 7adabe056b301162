package handlers

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Checker verifies that the attendance store is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// StatusInfo is static information reported by the status endpoint.
type StatusInfo struct {
	Version       string `json:"version"`
	LedgerBackend string `json:"ledger_backend"`
	Prefix        string `json:"prefix"`
	Station       bool   `json:"station"`
}

// StatusHandler reports service status and checks the ledger connection.
type StatusHandler struct {
	info    StatusInfo
	checker Checker
}

// NewStatusHandler creates a new status handler. checker may be nil when the
// backend has nothing to check.
func NewStatusHandler(info StatusInfo, checker Checker) *StatusHandler {
	return &StatusHandler{info: info, checker: checker}
}

// Get handles GET /status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"timestamp": time.Now().Format(time.RFC3339),
		"info":      h.info,
	})
}

// CheckLedger handles GET /ledger/check.
func (h *StatusHandler) CheckLedger(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "nothing to check for the " + h.info.LedgerBackend + " ledger",
		})
		return
	}
	if err := h.checker.Check(r.Context()); err != nil {
		log.Printf("Ledger check failed: %v", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": "Connection failed: " + err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connection successful",
	})
}
