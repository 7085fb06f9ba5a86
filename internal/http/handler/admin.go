package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"cadence/internal/engine"
	"cadence/internal/schedule"
)

// AdminHandler serves the operator-triggered administrative operations. None
// of these run automatically; the trigger path never reshuffles assignments.
type AdminHandler struct {
	Allocator *schedule.Allocator
	Detector  *schedule.Detector
	Engine    *engine.Engine
}

// AssignSlot assigns (or returns) the tenant's day-pair and time-slot.
func (h *AdminHandler) AssignSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}

	pair, slot, err := h.Allocator.Assign(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"tenant_id": id,
		"day_pair":  string(pair),
		"time_slot": int(slot),
		"hour":      slot.Hour(),
	})
}

// Conflicts lists all current (weekday, slot) collisions.
func (h *AdminHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Detector.Detect(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		out = append(out, map[string]any{
			"weekday":    g.Key.Day.String(),
			"time_slot":  int(g.Key.Slot),
			"tenant_ids": g.TenantIDs,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"conflicts": out})
}

// ResolveConflicts clears and reassigns every colliding tenant but the first
// of each group.
func (h *AdminHandler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Detector.ResolveAll(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

// RunTenant force-runs the pipeline for one tenant, bypassing the timezone
// gate.
func (h *AdminHandler) RunTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantID(w, r)
	if !ok {
		return
	}

	out, err := h.Engine.ForceRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// RunAll force-runs the pipeline for every eligible tenant.
func (h *AdminHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Engine.ForceRunAll(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

func tenantID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
