package importer

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/alerts"
	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// IMPORT WORKER - Claim, Lock, Stream, Merge
// =============================================================================
// One dispatch cycle recovers orphaned jobs, claims the oldest runnable job
// by compare-and-set, takes the per-profile lock and streams the CSV through
// the classifier and the merge pipeline. Liveness is heartbeat-based: a
// worker that dies mid-job is detected by the next cycle's orphan sweep.
// Any number of worker processes may run concurrently; the profile lock
// guarantees no two of them touch the same profile at once.

// Worker processes import jobs to a terminal status.
type Worker struct {
	store      *store.Store
	classifier *classifier.Classifier
	emitter    *alerts.Emitter
	cfg        config.ImporterConfig
	workerID   string
}

// NewWorker creates a worker with a process-unique id.
func NewWorker(s *store.Store, c *classifier.Classifier, e *alerts.Emitter, cfg config.ImporterConfig) *Worker {
	hostname, _ := os.Hostname()
	return &Worker{
		store:      s,
		classifier: c,
		emitter:    e,
		cfg:        cfg,
		workerID:   fmt.Sprintf("import-%s-%d", hostname, os.Getpid()),
	}
}

// WorkerID returns the process-unique worker id.
func (w *Worker) WorkerID() string { return w.workerID }

// Dispatch runs one cycle: orphan recovery, then at most one job to a
// terminal or retryable state. Returns true when a job was claimed.
func (w *Worker) Dispatch(ctx context.Context) (bool, error) {
	if err := w.RecoverOrphans(ctx); err != nil {
		log.Printf("[ImportWorker] orphan recovery error: %v", err)
	}

	job, err := w.FindNextJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.processJob(ctx, job)
	return true, nil
}

// FindNextJob claims the oldest runnable job with a single compare-and-set:
// {uploaded | pending_retry with retry_after ≤ now} → processing. A nil
// job means nothing was runnable this tick.
func (w *Worker) FindNextJob(ctx context.Context) (*domain.ImportJob, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"column_mapping": bson.M{"$exists": true, "$ne": nil},
		"$or": []bson.M{
			{"status": domain.JobUploaded},
			{"status": domain.JobPendingRetry, "retry_after": bson.M{"$lte": now}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":       domain.JobProcessing,
		"started_at":   now,
		"heartbeat_at": now,
		"worker_id":    w.workerID,
		"updated_at":   now,
	}}

	res := w.store.Jobs().FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "created_at", Value: 1}}).
			SetReturnDocument(options.After))

	var job domain.ImportJob
	if err := res.Decode(&job); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

// processJob runs a claimed job, converting panics and errors into the
// retry policy. Row-level problems never reach this level.
func (w *Worker) processJob(ctx context.Context, job *domain.ImportJob) {
	started := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			w.handleFailure(ctx, job, started, fmt.Errorf("panic: %v", r), string(debug.Stack()))
		}
	}()

	log.Printf("[ImportWorker] %s claimed job %s (profile=%s)", w.workerID, job.JobID, job.Profile)

	acquired, err := w.acquireLock(ctx, job)
	if err != nil {
		w.handleFailure(ctx, job, started, fmt.Errorf("lock acquire: %w", err), "")
		return
	}
	if !acquired {
		// Contention is not a failure: back off without burning an attempt.
		retryAt := time.Now().UTC().Add(w.cfg.LockRetry())
		w.store.Jobs().UpdateOne(ctx, bson.M{"job_id": job.JobID},
			bson.M{"$set": bson.M{
				"status":      domain.JobPendingRetry,
				"retry_after": retryAt,
				"updated_at":  time.Now().UTC(),
			}})
		log.Printf("[ImportWorker] job %s: profile %s locked elsewhere, retry at %s",
			job.JobID, job.Profile, retryAt.Format(time.RFC3339))
		return
	}

	if err := w.runPipeline(ctx, job); err != nil {
		if err == errJobCancelled {
			// Cancellation is terminal: release the lock and the upload.
			// Cancel skips file removal for processing jobs and leaves it
			// to the worker holding the file.
			w.removeUpload(job)
			w.releaseLock(ctx, job)
			log.Printf("[ImportWorker] job %s cancelled, lock and file released", job.JobID)
			return
		}
		w.handleFailure(ctx, job, started, err, string(debug.Stack()))
		return
	}
}

// acquireLock upserts the profile lock when it is missing, expired, or
// already held by this job. The unique index on profile turns a losing
// race into a duplicate-key error, reported as contention.
func (w *Worker) acquireLock(ctx context.Context, job *domain.ImportJob) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"profile": job.Profile,
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"job_id": job.JobID},
		},
	}
	update := bson.M{"$set": bson.M{
		"profile":     job.Profile,
		"job_id":      job.JobID,
		"worker_id":   w.workerID,
		"acquired_at": now,
		"expires_at":  now.Add(w.cfg.LockTTL()),
	}}

	_, err := w.store.Locks().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// refreshLock extends the lock expiry; called from the heartbeat.
func (w *Worker) refreshLock(ctx context.Context, job *domain.ImportJob) {
	now := time.Now().UTC()
	w.store.Locks().UpdateOne(ctx,
		bson.M{"profile": job.Profile, "job_id": job.JobID},
		bson.M{"$set": bson.M{"expires_at": now.Add(w.cfg.LockTTL())}})
}

// releaseLock drops the lock if this job still holds it.
func (w *Worker) releaseLock(ctx context.Context, job *domain.ImportJob) {
	w.store.Locks().DeleteOne(ctx, bson.M{"profile": job.Profile, "job_id": job.JobID})
}

// removeUpload deletes the job's CSV once no further attempt will read it.
// Best effort: an already-missing file is fine.
func (w *Worker) removeUpload(job *domain.ImportJob) {
	if job.FilePath == "" {
		return
	}
	if rmErr := os.Remove(job.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
		log.Printf("[ImportWorker] job %s: could not remove %s: %v", job.JobID, job.FilePath, rmErr)
	}
}

// handleFailure applies the retry policy: record the attempt, then either
// pending_retry with backoff or terminal failed after max attempts.
func (w *Worker) handleFailure(ctx context.Context, job *domain.ImportJob, started time.Time, cause error, stack string) {
	now := time.Now().UTC()
	attempts := job.Attempts + 1
	attempt := domain.ImportAttempt{
		Attempt:    attempts,
		WorkerID:   w.workerID,
		StartedAt:  started,
		EndedAt:    now,
		Error:      cause.Error(),
		StackTrace: stack,
	}

	set := bson.M{
		"attempts":   attempts,
		"updated_at": now,
	}
	if attempts >= w.cfg.MaxAttempts {
		set["status"] = domain.JobFailed
		set["error_summary"] = fmt.Sprintf("failed after %d attempts: %v", attempts, cause)
		set["completed_at"] = now
	} else {
		set["status"] = domain.JobPendingRetry
		set["retry_after"] = now.Add(w.cfg.Backoff(attempts))
	}

	_, err := w.store.Jobs().UpdateOne(ctx, bson.M{"job_id": job.JobID}, bson.M{
		"$set":  set,
		"$push": bson.M{"attempt_history": attempt},
	})
	if err != nil {
		log.Printf("[ImportWorker] job %s: failed to record failure: %v", job.JobID, err)
	}

	w.releaseLock(ctx, job)

	if attempts >= w.cfg.MaxAttempts {
		log.Printf("[ImportWorker] job %s FAILED after %d attempts: %v", job.JobID, attempts, cause)
		w.emitter.Notify(ctx, domain.NotifyJobFailed,
			fmt.Sprintf("Import job %s failed", job.JobID),
			fmt.Sprintf("profile=%s attempts=%d error=%v", job.Profile, attempts, cause))
	} else {
		log.Printf("[ImportWorker] job %s attempt %d failed, retrying in %s: %v",
			job.JobID, attempts, w.cfg.Backoff(attempts), cause)
	}
}

// RecoverOrphans sweeps processing jobs whose heartbeat went stale: the
// worker died. Each gets the failure treatment appropriate to its attempt
// count, and any lock it held is removed so the profile is not wedged
// until the TTL monitor catches up.
func (w *Worker) RecoverOrphans(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.cfg.OrphanTimeout())
	filter := bson.M{
		"status": domain.JobProcessing,
		"$or": []bson.M{
			{"heartbeat_at": bson.M{"$lt": cutoff}},
			{"heartbeat_at": nil},
		},
	}

	cur, err := w.store.Jobs().Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("orphan scan: %w", err)
	}
	defer cur.Close(ctx)

	var orphans []domain.ImportJob
	if err := cur.All(ctx, &orphans); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, job := range orphans {
		attempts := job.Attempts + 1
		attempt := domain.ImportAttempt{
			Attempt:   attempts,
			WorkerID:  job.WorkerID,
			StartedAt: derefTime(job.StartedAt, now),
			EndedAt:   now,
			Error:     fmt.Sprintf("worker %s stopped heartbeating", job.WorkerID),
		}

		set := bson.M{"attempts": attempts, "updated_at": now}
		if attempts >= w.cfg.MaxAttempts {
			set["status"] = domain.JobFailed
			set["error_summary"] = fmt.Sprintf("abandoned by worker %s after %d attempts", job.WorkerID, attempts)
			set["completed_at"] = now
		} else {
			set["status"] = domain.JobPendingRetry
			set["retry_after"] = now.Add(w.cfg.Backoff(attempts))
		}

		// Guard on heartbeat_at so a worker that resumed between scan and
		// update keeps its job.
		res, err := w.store.Jobs().UpdateOne(ctx,
			bson.M{"job_id": job.JobID, "status": domain.JobProcessing, "heartbeat_at": job.HeartbeatAt},
			bson.M{"$set": set, "$push": bson.M{"attempt_history": attempt}})
		if err != nil {
			log.Printf("[ImportWorker] orphan %s: recovery update failed: %v", job.JobID, err)
			continue
		}
		if res.ModifiedCount == 0 {
			continue
		}

		w.store.Locks().DeleteOne(ctx, bson.M{"job_id": job.JobID})
		log.Printf("[ImportWorker] recovered orphan job %s (worker=%s, attempts=%d)",
			job.JobID, job.WorkerID, attempts)

		if attempts >= w.cfg.MaxAttempts {
			w.emitter.Notify(ctx, domain.NotifyJobFailed,
				fmt.Sprintf("Import job %s failed", job.JobID),
				fmt.Sprintf("abandoned by worker %s", job.WorkerID))
		}
	}
	return nil
}

func derefTime(t *time.Time, fallback time.Time) time.Time {
	if t != nil {
		return *t
	}
	return fallback
}
