package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"cadence/internal/engine"
	"cadence/internal/recovery"
)

// CronHandler serves the externally scheduled trigger endpoints. Both sit
// behind the shared-secret middleware.
type CronHandler struct {
	Engine  *engine.Engine
	Scanner *recovery.Scanner
}

// Tick runs one evaluation batch against the current instant.
func (h *CronHandler) Tick(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Engine.RunDue(r.Context(), time.Now())
	if err != nil {
		http.Error(w, "batch failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

// Recover runs one recovery sweep.
func (h *CronHandler) Recover(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Scanner.Sweep(r.Context())
	if err != nil {
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}
