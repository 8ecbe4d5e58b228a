// Package api exposes the import job lifecycle, the traffic-light board,
// classifier diagnostics and alert resolution over HTTP. Handlers are thin
// JSON adapters over the core services; caller identity arrives from the
// outside and is consumed, never produced here.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ignite/contact-core/internal/alerts"
	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/importer"
	"github.com/ignite/contact-core/internal/maintenance"
	"github.com/ignite/contact-core/internal/pkg/httputil"
	"github.com/ignite/contact-core/internal/scheduler"
	"github.com/ignite/contact-core/internal/trafficlight"
)

// KeywordStore is the dictionary surface the classifier routes mutate.
// *classifier.StoreDictionary implements it.
type KeywordStore interface {
	ListKeywords(ctx context.Context) ([]domain.Keyword, error)
	AddKeywords(ctx context.Context, personaID, personaName string, keywords []string) ([]domain.Keyword, map[string]error)
	DeleteKeyword(ctx context.Context, keyword string) (*domain.Keyword, error)
	ListPriorities(ctx context.Context) ([]domain.PersonaPriority, error)
	SetPriority(ctx context.Context, p domain.PersonaPriority) error
}

// ReclassifyQueue enqueues background reclassification sweeps.
// *classifier.Reclassifier implements it.
type ReclassifyQueue interface {
	Enqueue(ctx context.Context, filter bson.M) (string, error)
}

// Handlers carries the services the HTTP layer fronts.
type Handlers struct {
	imports      *importer.Service
	board        *trafficlight.Board
	classifier   *classifier.Classifier
	dictionary   KeywordStore
	reclassifier ReclassifyQueue
	emitter      *alerts.Emitter
	sched        *scheduler.Scheduler
	caches       *maintenance.Caches
	startTime    time.Time
}

// NewHandlers wires the handler set. Any service may be nil; its routes then
// answer 503.
func NewHandlers(
	imports *importer.Service,
	board *trafficlight.Board,
	cls *classifier.Classifier,
	dict KeywordStore,
	recls ReclassifyQueue,
	emitter *alerts.Emitter,
	sched *scheduler.Scheduler,
	caches *maintenance.Caches,
) *Handlers {
	return &Handlers{
		imports:      imports,
		board:        board,
		classifier:   cls,
		dictionary:   dict,
		reclassifier: recls,
		emitter:      emitter,
		sched:        sched,
		caches:       caches,
		startTime:    time.Now(),
	}
}

// HealthCheck reports liveness and uptime.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	httputil.Error(w, status, message)
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// enqueueReclassify schedules the sweep that follows a dictionary mutation;
// the drain tick picks it up. The mutation is already committed when this
// runs, so a failed enqueue is logged and the sweep can be re-issued through
// the reclassify endpoint.
func (h *Handlers) enqueueReclassify(ctx context.Context, filter bson.M) string {
	if h.reclassifier == nil {
		return ""
	}
	jobID, err := h.reclassifier.Enqueue(ctx, filter)
	if err != nil {
		log.Printf("[API] reclassify enqueue failed: %v", err)
		return ""
	}
	return jobID
}
