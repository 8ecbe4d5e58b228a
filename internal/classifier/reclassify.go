package classifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// RECLASSIFICATION DRIVER
// =============================================================================
// Keyword mutations never touch contacts inline; they enqueue a
// reclassification job here. The drain (a 30s scheduler tick) picks up
// queued jobs and re-runs the classifier over the contact corpus, skipping
// persona-locked records. Writes are idempotent $sets, so running the same
// job twice is a no-op.

const (
	reclassifyBatchSize    = 500
	reclassifyBatchRetries = 3
)

// ReclassifyJob is the job-like progress document for one reclassification
// run.
type ReclassifyJob struct {
	JobID     string     `json:"job_id" bson:"job_id"`
	Status    string     `json:"status" bson:"status"` // queued, running, completed, failed
	Filter    bson.M     `json:"-" bson:"filter,omitempty"`
	Processed int        `json:"processed" bson:"processed"`
	Changed   int        `json:"changed" bson:"changed"`
	Skipped   int        `json:"skipped" bson:"skipped"`
	Error     string     `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
}

// Reclassifier drains queued reclassification jobs.
type Reclassifier struct {
	store      *store.Store
	classifier *Classifier
}

// NewReclassifier creates the driver.
func NewReclassifier(s *store.Store, c *Classifier) *Reclassifier {
	return &Reclassifier{store: s, classifier: c}
}

// Enqueue registers a reclassification run over contacts matching filter
// (nil means all). Safe to call repeatedly; each call is its own job.
func (r *Reclassifier) Enqueue(ctx context.Context, filter bson.M) (string, error) {
	job := ReclassifyJob{
		JobID:     uuid.New().String(),
		Status:    "queued",
		Filter:    filter,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.store.ReclassifyJobs().InsertOne(ctx, job); err != nil {
		return "", err
	}
	return job.JobID, nil
}

// DrainOne claims and runs the oldest queued job. Returns false when the
// queue is empty.
func (r *Reclassifier) DrainOne(ctx context.Context) (bool, error) {
	now := time.Now().UTC()
	res := r.store.ReclassifyJobs().FindOneAndUpdate(ctx,
		bson.M{"status": "queued"},
		bson.M{"$set": bson.M{"status": "running", "started_at": now}},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetReturnDocument(options.After))

	var job ReclassifyJob
	if err := res.Decode(&job); err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}

	if err := r.run(ctx, &job); err != nil {
		ended := time.Now().UTC()
		r.store.ReclassifyJobs().UpdateOne(ctx, bson.M{"job_id": job.JobID},
			bson.M{"$set": bson.M{"status": "failed", "error": err.Error(), "ended_at": ended}})
		return true, err
	}
	return true, nil
}

// run iterates the contact corpus and applies the classifier per contact.
func (r *Reclassifier) run(ctx context.Context, job *ReclassifyJob) error {
	filter := bson.M{"persona_locked": bson.M{"$ne": true}}
	for k, v := range job.Filter {
		filter[k] = v
	}

	cur, err := r.store.Contacts().Find(ctx, filter,
		options.Find().SetProjection(bson.M{"id": 1, "job_title": 1, "buyer_persona": 1}))
	if err != nil {
		return fmt.Errorf("reclassify find: %w", err)
	}
	defer cur.Close(ctx)

	var models []mongo.WriteModel
	processed, changed, skipped := 0, 0, 0

	flush := func() error {
		if len(models) == 0 {
			return nil
		}
		var lastErr error
		for attempt := 1; attempt <= reclassifyBatchRetries; attempt++ {
			_, lastErr = r.store.BulkWriteUnordered(ctx, store.CollContacts, models)
			if lastErr == nil || store.IsPartialBulkError(lastErr) {
				if lastErr != nil {
					log.Printf("[Reclassify] job %s: partial bulk failure: %v", job.JobID, lastErr)
				}
				models = models[:0]
				return nil
			}
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		return fmt.Errorf("reclassify bulk write: %w", lastErr)
	}

	for cur.Next(ctx) {
		var contact domain.Contact
		if err := cur.Decode(&contact); err != nil {
			skipped++
			continue
		}
		processed++

		result := r.classifier.Classify(ctx, contact.JobTitle)
		if result.PersonaID == contact.BuyerPersona {
			// Set-to-same-value is what makes re-runs idempotent, but
			// skipping unchanged contacts keeps the bulks small.
			skipped++
			continue
		}
		changed++

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"id": contact.ID, "persona_locked": bson.M{"$ne": true}}).
			SetUpdate(bson.M{"$set": bson.M{
				"buyer_persona":        result.PersonaID,
				"buyer_persona_name":   result.PersonaName,
				"job_title_normalized": result.NormalizedTitle,
				"updated_at":           time.Now().UTC(),
			}}))

		if len(models) >= reclassifyBatchSize {
			if err := flush(); err != nil {
				return err
			}
			r.store.ReclassifyJobs().UpdateOne(ctx, bson.M{"job_id": job.JobID},
				bson.M{"$set": bson.M{"processed": processed, "changed": changed, "skipped": skipped}})
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("reclassify cursor: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	ended := time.Now().UTC()
	_, err = r.store.ReclassifyJobs().UpdateOne(ctx, bson.M{"job_id": job.JobID},
		bson.M{"$set": bson.M{
			"status": "completed", "processed": processed,
			"changed": changed, "skipped": skipped, "ended_at": ended,
		}})
	if err == nil {
		log.Printf("[Reclassify] job %s completed: processed=%d changed=%d skipped=%d",
			job.JobID, processed, changed, skipped)
	}
	return err
}
