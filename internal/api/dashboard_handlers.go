package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HandleTrafficLights evaluates the full board and returns the flat
// node_id → {status, metadata} map.
//
//	GET /api/traffic-lights
func (h *Handlers) HandleTrafficLights(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.board.Evaluate(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

// HandleListAlerts lists unresolved alerts, newest first.
//
//	GET /api/alerts?week_key=2026-W34
func (h *Handlers) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	open, err := h.emitter.ListOpen(r.Context(), r.URL.Query().Get("week_key"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": open, "count": len(open)})
}

// HandleResolveAlert marks an alert resolved. Resolving a rate-limit alert
// unblocks the affected subsystem for the rest of the week.
//
//	POST /api/alerts/{alertID}/resolve  {"resolved_by": "..."}
func (h *Handlers) HandleResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResolvedBy string `json:"resolved_by"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if err := h.emitter.Resolve(r.Context(), chi.URLParam(r, "alertID"), req.ResolvedBy); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// HandleSchedulerStatus reports every registered job with its cadence and
// last-run outcome.
//
//	GET /api/scheduler/status
func (h *Handlers) HandleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		respondError(w, http.StatusServiceUnavailable, "scheduler not running in this process")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": h.sched.Status()})
}

// HandleMergeCandidates serves the cached likely-duplicate contact pairs.
//
//	GET /api/merge-candidates
func (h *Handlers) HandleMergeCandidates(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.caches.MergeCandidates(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"candidates": pairs, "count": len(pairs)})
}
