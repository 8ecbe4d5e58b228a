package domain

import "time"

// JobStatus enumerates the import-job state machine.
//
//	uploaded → processing → completed
//	              ↓
//	          pending_retry → processing → …
//	              ↓
//	           failed (after max attempts)
//	uploaded|pending_retry → cancelled (by operator)
type JobStatus string

const (
	JobUploaded     JobStatus = "uploaded"
	JobProcessing   JobStatus = "processing"
	JobPendingRetry JobStatus = "pending_retry"
	JobCompleted    JobStatus = "completed"
	JobFailed       JobStatus = "failed"
	JobCancelled    JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends job progression.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ImportAttempt records one processing attempt, successful or not.
type ImportAttempt struct {
	Attempt    int       `json:"attempt" bson:"attempt"`
	WorkerID   string    `json:"worker_id" bson:"worker_id"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	EndedAt    time.Time `json:"ended_at" bson:"ended_at"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	StackTrace string    `json:"stack_trace,omitempty" bson:"stack_trace,omitempty"`
}

// ImportJob is one uploaded CSV awaiting or undergoing processing. Workers
// claim jobs by compare-and-set on Status and keep liveness via HeartbeatAt.
type ImportJob struct {
	JobID     string    `json:"job_id" bson:"job_id"`
	Profile   string    `json:"profile" bson:"profile"`       // e.g. GB, MG
	WeekStart string    `json:"week_start" bson:"week_start"` // ISO date of Monday
	FilePath  string    `json:"file_path" bson:"file_path"`
	FileName  string    `json:"file_name" bson:"file_name"`
	Status    JobStatus `json:"status" bson:"status"`

	// ColumnMapping maps CSV header → internal field name. Must be set
	// before the job leaves uploaded.
	ColumnMapping map[string]string `json:"column_mapping,omitempty" bson:"column_mapping,omitempty"`

	Attempts       int             `json:"attempts" bson:"attempts"`
	AttemptHistory []ImportAttempt `json:"attempt_history,omitempty" bson:"attempt_history,omitempty"`
	RetryAfter     *time.Time      `json:"retry_after,omitempty" bson:"retry_after,omitempty"`

	WorkerID    string     `json:"worker_id,omitempty" bson:"worker_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty" bson:"heartbeat_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`

	TotalRows       int `json:"total_rows" bson:"total_rows"`
	ProcessedRows   int `json:"processed_rows" bson:"processed_rows"`
	ContactsCreated int `json:"contacts_created" bson:"contacts_created"`
	ContactsUpdated int `json:"contacts_updated" bson:"contacts_updated"`
	ConflictsCount  int `json:"conflicts_count" bson:"conflicts_count"`
	InvalidRows     int `json:"invalid_rows_count" bson:"invalid_rows_count"`
	ParseFailures   int `json:"parse_failures_count" bson:"parse_failures_count"`
	ProgressPercent int `json:"progress_percent" bson:"progress_percent"`

	// PersonaTally counts classified personas over processed rows.
	PersonaTally map[string]int `json:"persona_tally,omitempty" bson:"persona_tally,omitempty"`

	ErrorSummary   string         `json:"error_summary,omitempty" bson:"error_summary,omitempty"`
	ErrorBreakdown map[string]int `json:"error_breakdown,omitempty" bson:"error_breakdown,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ProfileLock is the per-profile mutex document. At most one non-expired
// lock exists per profile (unique index on profile, TTL on expires_at).
type ProfileLock struct {
	Profile    string    `json:"profile" bson:"profile"`
	JobID      string    `json:"job_id" bson:"job_id"`
	WorkerID   string    `json:"worker_id" bson:"worker_id"`
	AcquiredAt time.Time `json:"acquired_at" bson:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
}

// ImportTask tracks per-profile, per-week workflow flags such as
// import_completed, used by the weekly rollups and the traffic lights.
type ImportTask struct {
	Profile         string     `json:"profile" bson:"profile"`
	WeekStart       string     `json:"week_start" bson:"week_start"`
	ImportCompleted bool       `json:"import_completed" bson:"import_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// Audit reason codes emitted by the import worker.
const (
	ReasonMissingIdentifiers   = "invalid_missing_identifiers"
	ReasonRowUnparseable       = "row_unparseable"
	ReasonEmailURLMismatch     = "email_url_mismatch"
	ReasonConnectedOnParse     = "connected_on_parse_failed"
	ReasonMalformedEmail       = "malformed_email"
	ReasonMalformedLinkedInURL = "malformed_linkedin_url"
)

// AuditKind distinguishes the three audit collections.
type AuditKind string

const (
	AuditConflict     AuditKind = "conflict"
	AuditInvalidRow   AuditKind = "invalid_row"
	AuditParseFailure AuditKind = "parse_failure"
)

// AuditRow records one offending source row. Rows expire after the
// configured retention window via a TTL index on created_at.
type AuditRow struct {
	JobID        string            `json:"job_id" bson:"job_id"`
	Profile      string            `json:"profile" bson:"profile"`
	WeekStart    string            `json:"week_start" bson:"week_start"`
	RowNumber    int               `json:"row_number" bson:"row_number"`
	ReasonCode   string            `json:"reason_code" bson:"reason_code"`
	ReasonDetail string            `json:"reason_detail,omitempty" bson:"reason_detail,omitempty"`
	RawRow       map[string]string `json:"raw_row,omitempty" bson:"raw_row,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}
