package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// UPLOAD SERVICE - Job Lifecycle (operator side)
// =============================================================================
// The Service owns everything up to the moment a worker claims the job:
// file intake, header detection, the preview cache, mapping confirmation,
// progress reads, cancellation and the audit exports.

var (
	ErrJobNotFound       = errors.New("import job not found")
	ErrJobNotCancellable = errors.New("job is already terminal")
	ErrProfileBusy       = errors.New("another import for this profile is still running")
	ErrBadMapping        = errors.New("column mapping must bind email or linkedin_url")
	ErrJobNotPending     = errors.New("job has already started processing")
)

const (
	previewRows       = 50
	previewTTL        = time.Hour
	previewKeyPattern = "import:preview:%s"
)

// UploadResult is what the operator sees right after intake: enough to
// render the mapping screen.
type UploadResult struct {
	JobID            string            `json:"job_id"`
	FileName         string            `json:"file_name"`
	Headers          []string          `json:"headers"`
	Delimiter        string            `json:"delimiter"`
	SuggestedMapping map[string]string `json:"suggested_mapping"`
	PreviewRows      [][]string        `json:"preview_rows"`
	TotalRows        int               `json:"total_rows"`
}

// preview is the redis-cached mapping-screen payload.
type preview struct {
	Headers   []string   `json:"headers"`
	Delimiter string     `json:"delimiter"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

// Service drives the operator-facing side of the import lifecycle.
type Service struct {
	store *store.Store
	redis *redis.Client
	cfg   config.ImporterConfig
}

// NewService creates the upload service.
func NewService(s *store.Store, r *redis.Client, cfg config.ImporterConfig) *Service {
	return &Service{store: s, redis: r, cfg: cfg}
}

// Upload stores the file, registers the job in uploaded state and returns
// the mapping-screen payload. The job is not claimable until StartJob
// records a column mapping.
func (s *Service) Upload(ctx context.Context, profile, fileName string, src io.Reader) (*UploadResult, error) {
	jobID := uuid.New().String()

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, jobID+".csv")

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	csvFile, err := OpenCSV(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	rows, _ := csvFile.ReadBatch(previewRows)
	csvFile.Close()

	// Drop unparseable lines from the preview; the worker audits them later.
	shown := rows[:0]
	for _, r := range rows {
		if r != nil {
			shown = append(shown, r)
		}
	}

	total, err := CountRows(path)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	now := time.Now().UTC()
	job := domain.ImportJob{
		JobID:     jobID,
		Profile:   profile,
		WeekStart: domain.WeekStart(now),
		FilePath:  path,
		FileName:  fileName,
		Status:    domain.JobUploaded,
		TotalRows: total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.store.Jobs().InsertOne(ctx, job); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("register job: %w", err)
	}

	s.cachePreview(ctx, jobID, preview{
		Headers:   csvFile.Headers,
		Delimiter: string(csvFile.Delimiter),
		Rows:      shown,
		TotalRows: total,
	})

	log.Printf("[ImportService] uploaded job %s (profile=%s file=%s rows=%d)", jobID, profile, fileName, total)
	return &UploadResult{
		JobID:            jobID,
		FileName:         fileName,
		Headers:          csvFile.Headers,
		Delimiter:        string(csvFile.Delimiter),
		SuggestedMapping: SuggestMapping(csvFile.Headers),
		PreviewRows:      shown,
		TotalRows:        total,
	}, nil
}

// Preview returns the cached mapping-screen payload, re-reading the file on
// a cache miss.
func (s *Service) Preview(ctx context.Context, jobID string) (*UploadResult, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if p, ok := s.cachedPreview(ctx, jobID); ok {
		return &UploadResult{
			JobID:            jobID,
			FileName:         job.FileName,
			Headers:          p.Headers,
			Delimiter:        p.Delimiter,
			SuggestedMapping: SuggestMapping(p.Headers),
			PreviewRows:      p.Rows,
			TotalRows:        p.TotalRows,
		}, nil
	}

	csvFile, err := OpenCSV(job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reopen upload: %w", err)
	}
	defer csvFile.Close()
	rows, _ := csvFile.ReadBatch(previewRows)
	shown := rows[:0]
	for _, r := range rows {
		if r != nil {
			shown = append(shown, r)
		}
	}

	p := preview{
		Headers:   csvFile.Headers,
		Delimiter: string(csvFile.Delimiter),
		Rows:      shown,
		TotalRows: job.TotalRows,
	}
	s.cachePreview(ctx, jobID, p)

	return &UploadResult{
		JobID:            jobID,
		FileName:         job.FileName,
		Headers:          p.Headers,
		Delimiter:        p.Delimiter,
		SuggestedMapping: SuggestMapping(p.Headers),
		PreviewRows:      p.Rows,
		TotalRows:        p.TotalRows,
	}, nil
}

// StartJob records the confirmed column mapping, making the job claimable.
// Rejected when the mapping binds no identifier column, when the job left
// uploaded, or when the profile already has a live import.
func (s *Service) StartJob(ctx context.Context, jobID string, mapping map[string]string) error {
	hasIdentifier := false
	for _, field := range mapping {
		if field == FieldEmail || field == FieldLinkedInURL {
			hasIdentifier = true
			break
		}
	}
	if !hasIdentifier {
		return ErrBadMapping
	}

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobUploaded {
		return ErrJobNotPending
	}

	busy, err := s.store.Jobs().CountDocuments(ctx, bson.M{
		"profile": job.Profile,
		"job_id":  bson.M{"$ne": jobID},
		"status":  bson.M{"$in": []domain.JobStatus{domain.JobProcessing, domain.JobPendingRetry}},
	})
	if err != nil {
		return fmt.Errorf("profile busy check: %w", err)
	}
	if busy > 0 {
		return ErrProfileBusy
	}

	res, err := s.store.Jobs().UpdateOne(ctx,
		bson.M{"job_id": jobID, "status": domain.JobUploaded},
		bson.M{"$set": bson.M{
			"column_mapping": mapping,
			"updated_at":     time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("record mapping: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrJobNotPending
	}

	log.Printf("[ImportService] job %s mapping confirmed, queued for processing", jobID)
	return nil
}

// GetJob loads one job by id.
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	var job domain.ImportJob
	err := s.store.Jobs().FindOne(ctx, bson.M{"job_id": jobID}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns recent jobs, optionally narrowed by profile and status.
func (s *Service) ListJobs(ctx context.Context, profile string, status domain.JobStatus, limit int) ([]domain.ImportJob, error) {
	filter := bson.M{}
	if profile != "" {
		filter["profile"] = profile
	}
	if status != "" {
		filter["status"] = status
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	cur, err := s.store.Jobs().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var jobs []domain.ImportJob
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Cancel flips a non-terminal job to cancelled. A processing worker notices
// at its next heartbeat and releases its lock; for queued jobs the upload
// file is removed here.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrJobNotCancellable
	}

	now := time.Now().UTC()
	res, err := s.store.Jobs().UpdateOne(ctx,
		bson.M{"job_id": jobID, "status": bson.M{"$in": []domain.JobStatus{
			domain.JobUploaded, domain.JobPendingRetry, domain.JobProcessing,
		}}},
		bson.M{"$set": bson.M{
			"status":       domain.JobCancelled,
			"completed_at": now,
			"updated_at":   now,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrJobNotCancellable
	}

	if job.Status != domain.JobProcessing {
		if rmErr := os.Remove(job.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("[ImportService] job %s: could not remove %s: %v", jobID, job.FilePath, rmErr)
		}
	}
	s.redis.Del(ctx, fmt.Sprintf(previewKeyPattern, jobID))

	log.Printf("[ImportService] job %s cancelled (was %s)", jobID, job.Status)
	return nil
}

// AuditRows returns the audit rows of one kind for a job, oldest first.
func (s *Service) AuditRows(ctx context.Context, jobID string, kind domain.AuditKind) ([]domain.AuditRow, error) {
	var coll *mongo.Collection
	switch kind {
	case domain.AuditConflict:
		coll = s.store.Conflicts()
	case domain.AuditInvalidRow:
		coll = s.store.InvalidRows()
	case domain.AuditParseFailure:
		coll = s.store.ParseFailures()
	default:
		return nil, fmt.Errorf("unknown audit kind %q", kind)
	}

	cur, err := coll.Find(ctx, bson.M{"job_id": jobID},
		options.Find().SetSort(bson.D{{Key: "row_number", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []domain.AuditRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExportAuditCSV streams one audit kind as CSV for operator download.
func (s *Service) ExportAuditCSV(ctx context.Context, jobID string, kind domain.AuditKind, w io.Writer) error {
	rows, err := s.AuditRows(ctx, jobID, kind)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"row_number", "reason_code", "reason_detail",
		FieldFirstName, FieldLastName, FieldEmail, FieldCompany, FieldJobTitle, FieldLinkedInURL, FieldConnectedOn}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.RowNumber),
			row.ReasonCode,
			row.ReasonDetail,
			row.RawRow[FieldFirstName],
			row.RawRow[FieldLastName],
			row.RawRow[FieldEmail],
			row.RawRow[FieldCompany],
			row.RawRow[FieldJobTitle],
			row.RawRow[FieldLinkedInURL],
			row.RawRow[FieldConnectedOn],
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) cachePreview(ctx context.Context, jobID string, p preview) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, fmt.Sprintf(previewKeyPattern, jobID), data, previewTTL).Err(); err != nil {
		log.Printf("[ImportService] preview cache write failed for %s: %v", jobID, err)
	}
}

func (s *Service) cachedPreview(ctx context.Context, jobID string) (preview, bool) {
	data, err := s.redis.Get(ctx, fmt.Sprintf(previewKeyPattern, jobID)).Bytes()
	if err != nil {
		return preview{}, false
	}
	var p preview
	if err := json.Unmarshal(data, &p); err != nil {
		return preview{}, false
	}
	return p, true
}
