package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/domain"
)

// HandleClassify runs one job title through the classifier. Diagnostic use:
// the response carries every match, not just the winner.
//
//	GET /api/classifier/classify?title=VP%20of%20Sales
func (h *Handlers) HandleClassify(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	respondJSON(w, http.StatusOK, h.classifier.Classify(r.Context(), title))
}

// HandleListKeywords returns the full keyword dictionary.
//
//	GET /api/classifier/keywords
func (h *Handlers) HandleListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.dictionary.ListKeywords(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"keywords":   keywords,
		"count":      len(keywords),
		"generation": h.classifier.Generation(),
	})
}

// HandleAddKeywords inserts keywords for a persona. Ownership collisions
// against higher-priority personas are reported per keyword, not as a
// request-level failure.
//
//	POST /api/classifier/keywords
//	{"persona_id": "...", "persona_name": "...", "keywords": ["...", ...]}
func (h *Handlers) HandleAddKeywords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonaID   string   `json:"persona_id"`
		PersonaName string   `json:"persona_name"`
		Keywords    []string `json:"keywords"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.PersonaID == "" || len(req.Keywords) == 0 {
		respondError(w, http.StatusBadRequest, "persona_id and keywords are required")
		return
	}

	added, failed := h.dictionary.AddKeywords(r.Context(), req.PersonaID, req.PersonaName, req.Keywords)

	rejected := make(map[string]string, len(failed))
	for kw, err := range failed {
		rejected[kw] = err.Error()
	}
	// Only successful mutations move the cache generation and trigger the
	// background sweep. New keywords can capture titles currently assigned
	// to any persona, so the sweep is unscoped; the reclassifier skips
	// persona-locked contacts on its own.
	var reclassifyJobID string
	if len(added) > 0 {
		h.classifier.Invalidate()
		reclassifyJobID = h.enqueueReclassify(r.Context(), bson.M{})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"added":             added,
		"rejected":          rejected,
		"generation":        h.classifier.Generation(),
		"reclassify_job_id": reclassifyJobID,
	})
}

// HandleDeleteKeyword removes one keyword from the dictionary.
//
//	DELETE /api/classifier/keywords/{keyword}
func (h *Handlers) HandleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	removed, err := h.dictionary.DeleteKeyword(r.Context(), chi.URLParam(r, "keyword"))
	if err != nil {
		if errors.Is(err, classifier.ErrKeywordNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.classifier.Invalidate()
	// Only contacts the removed keyword could have assigned need another
	// pass, so the sweep is scoped to its persona.
	reclassifyJobID := h.enqueueReclassify(r.Context(), bson.M{"buyer_persona": removed.PersonaID})
	respondJSON(w, http.StatusOK, map[string]any{
		"deleted":           true,
		"generation":        h.classifier.Generation(),
		"reclassify_job_id": reclassifyJobID,
	})
}

// HandleListPriorities returns the persona priority table.
//
//	GET /api/classifier/priorities
func (h *Handlers) HandleListPriorities(w http.ResponseWriter, r *http.Request) {
	priorities, err := h.dictionary.ListPriorities(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"priorities": priorities})
}

// HandleSetPriority upserts one persona's priority.
//
//	PUT /api/classifier/priorities
//	{"persona_id": "...", "persona_name": "...", "priority": 1}
func (h *Handlers) HandleSetPriority(w http.ResponseWriter, r *http.Request) {
	var p domain.PersonaPriority
	if err := decodeBody(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if p.PersonaID == "" {
		respondError(w, http.StatusBadRequest, "persona_id is required")
		return
	}
	if err := h.dictionary.SetPriority(r.Context(), p); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.classifier.Invalidate()
	respondJSON(w, http.StatusOK, map[string]any{
		"saved":      true,
		"generation": h.classifier.Generation(),
	})
}

// HandleReclassify enqueues a background reclassification sweep. The drain
// tick picks it up; nothing runs synchronously.
//
//	POST /api/classifier/reclassify  {"persona_id": "..."} (optional filter)
func (h *Handlers) HandleReclassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonaID string `json:"persona_id"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	filter := bson.M{}
	if req.PersonaID != "" {
		filter["buyer_persona"] = req.PersonaID
	}
	jobID, err := h.reclassifier.Enqueue(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}

// HandleClassifierMetrics serves the cached persona distribution snapshot.
//
//	GET /api/classifier/metrics
func (h *Handlers) HandleClassifierMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, ok, err := h.caches.ClassifierMetricsSnapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no snapshot taken yet")
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}
