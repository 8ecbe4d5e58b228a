package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/importer"
)

// maxUploadBytes caps a single CSV upload.
const maxUploadBytes = 200 << 20 // 200 MB

// HandleUpload accepts a multipart CSV upload for a profile and creates the
// job in uploaded state. Processing does not start until the mapping is
// confirmed via start.
//
//	POST /api/imports/upload  (multipart: profile, file)
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	profile := r.FormValue("profile")
	if profile == "" {
		respondError(w, http.StatusBadRequest, "profile is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	result, err := h.imports.Upload(r.Context(), profile, header.Filename, file)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// HandlePreview returns the cached first rows plus header and mapping info.
//
//	GET /api/imports/{jobID}/preview
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	result, err := h.imports.Preview(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondImportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleStart confirms the column mapping and queues the job. No processing
// happens synchronously; the dispatch tick picks the job up.
//
//	POST /api/imports/{jobID}/start  {"column_mapping": {...}}
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ColumnMapping map[string]string `json:"column_mapping"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.imports.StartJob(r.Context(), chi.URLParam(r, "jobID"), req.ColumnMapping); err != nil {
		respondImportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// HandleProgress returns counters, status and last heartbeat for a job.
//
//	GET /api/imports/{jobID}/progress
func (h *Handlers) HandleProgress(w http.ResponseWriter, r *http.Request) {
	job, err := h.imports.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondImportError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"job_id":           job.JobID,
		"status":           job.Status,
		"progress_percent": job.ProgressPercent,
		"total_rows":       job.TotalRows,
		"processed_rows":   job.ProcessedRows,
		"contacts_created": job.ContactsCreated,
		"contacts_updated": job.ContactsUpdated,
		"conflicts":        job.ConflictsCount,
		"invalid_rows":     job.InvalidRows,
		"parse_failures":   job.ParseFailures,
		"persona_tally":    job.PersonaTally,
		"attempts":         job.Attempts,
		"heartbeat_at":     job.HeartbeatAt,
		"error_summary":    job.ErrorSummary,
		"error_breakdown":  job.ErrorBreakdown,
	})
}

// HandleCancel requests cooperative cancellation.
//
//	POST /api/imports/{jobID}/cancel
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.imports.Cancel(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		respondImportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleListJobs lists jobs, optionally filtered by profile and status.
//
//	GET /api/imports?profile=GB&status=processing&limit=50
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	jobs, err := h.imports.ListJobs(r.Context(),
		r.URL.Query().Get("profile"),
		domain.JobStatus(r.URL.Query().Get("status")),
		limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// HandleAuditRows serves one audit collection for a job, as JSON or as a CSV
// download when ?format=csv.
//
//	GET /api/imports/{jobID}/conflicts
//	GET /api/imports/{jobID}/invalid_rows
//	GET /api/imports/{jobID}/parse_failures
func (h *Handlers) HandleAuditRows(kind domain.AuditKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition",
				fmt.Sprintf(`attachment; filename="%s_%s.csv"`, jobID, kind))
			if err := h.imports.ExportAuditCSV(r.Context(), jobID, kind, w); err != nil {
				// Headers are already out; the truncated body is the signal.
				return
			}
			return
		}

		rows, err := h.imports.AuditRows(r.Context(), jobID, kind)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
	}
}

// respondImportError maps the importer's sentinel errors to HTTP statuses.
func respondImportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, importer.ErrJobNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, importer.ErrBadMapping),
		errors.Is(err, importer.ErrJobNotPending),
		errors.Is(err, importer.ErrJobNotCancellable):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, importer.ErrProfileBusy):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
