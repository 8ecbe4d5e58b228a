// Package store provides typed views over the document store, index
// bootstrap and the bulk-write primitives the workers build on.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names. Everything the core persists lives in one database.
const (
	CollContacts          = "contacts"
	CollCompanies         = "companies"
	CollJobs              = "import_jobs"
	CollLocks             = "profile_locks"
	CollConflicts         = "import_conflicts"
	CollInvalidRows       = "import_invalid_rows"
	CollParseFailures     = "import_parse_failures"
	CollKeywords          = "keywords"
	CollPersonaPriorities = "persona_priorities"
	CollCases             = "cases"
	CollCaseChecklists    = "case_checklists"
	CollCaseContactRoles  = "case_contact_roles"
	CollSchedules         = "search_schedules"
	CollAlerts            = "alerts"
	CollNotifications     = "notifications"
	CollEmailLog          = "email_log"
	CollImportTasks       = "import_tasks"
	CollWeeklyCounters    = "weekly_counters"
	CollReclassifyJobs    = "reclassify_jobs"
	CollNewsletters       = "newsletters"
)

// Connect opens a client against the store with sane pool limits and
// verifies the connection with a ping.
func Connect(url string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	return client, nil
}

// Store wraps the database handle with typed collection accessors.
type Store struct {
	db *mongo.Database
}

// New creates a Store over the named database.
func New(client *mongo.Client, database string) *Store {
	return &Store{db: client.Database(database)}
}

// Database exposes the raw handle for callers with needs the typed
// accessors don't cover (tests, migrations).
func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Contacts() *mongo.Collection          { return s.db.Collection(CollContacts) }
func (s *Store) Companies() *mongo.Collection         { return s.db.Collection(CollCompanies) }
func (s *Store) Jobs() *mongo.Collection              { return s.db.Collection(CollJobs) }
func (s *Store) Locks() *mongo.Collection             { return s.db.Collection(CollLocks) }
func (s *Store) Conflicts() *mongo.Collection         { return s.db.Collection(CollConflicts) }
func (s *Store) InvalidRows() *mongo.Collection       { return s.db.Collection(CollInvalidRows) }
func (s *Store) ParseFailures() *mongo.Collection     { return s.db.Collection(CollParseFailures) }
func (s *Store) Keywords() *mongo.Collection          { return s.db.Collection(CollKeywords) }
func (s *Store) PersonaPriorities() *mongo.Collection { return s.db.Collection(CollPersonaPriorities) }
func (s *Store) Cases() *mongo.Collection             { return s.db.Collection(CollCases) }
func (s *Store) CaseChecklists() *mongo.Collection    { return s.db.Collection(CollCaseChecklists) }
func (s *Store) CaseContactRoles() *mongo.Collection  { return s.db.Collection(CollCaseContactRoles) }
func (s *Store) Schedules() *mongo.Collection         { return s.db.Collection(CollSchedules) }
func (s *Store) Alerts() *mongo.Collection            { return s.db.Collection(CollAlerts) }
func (s *Store) Notifications() *mongo.Collection     { return s.db.Collection(CollNotifications) }
func (s *Store) EmailLog() *mongo.Collection          { return s.db.Collection(CollEmailLog) }
func (s *Store) ImportTasks() *mongo.Collection       { return s.db.Collection(CollImportTasks) }
func (s *Store) WeeklyCounters() *mongo.Collection    { return s.db.Collection(CollWeeklyCounters) }
func (s *Store) ReclassifyJobs() *mongo.Collection    { return s.db.Collection(CollReclassifyJobs) }
func (s *Store) Newsletters() *mongo.Collection       { return s.db.Collection(CollNewsletters) }

// BulkWriteOrdered executes models stopping at the first error. Used for
// single-row critical updates where partial application is unacceptable.
func (s *Store) BulkWriteOrdered(ctx context.Context, coll string, models []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	if len(models) == 0 {
		return &mongo.BulkWriteResult{}, nil
	}
	return s.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
}

// BulkWriteUnordered executes models continuing past per-op failures.
// Partial failures come back as a mongo.BulkWriteException alongside the
// result; callers log the failed ops and keep the rest.
func (s *Store) BulkWriteUnordered(ctx context.Context, coll string, models []mongo.WriteModel) (*mongo.BulkWriteResult, error) {
	if len(models) == 0 {
		return &mongo.BulkWriteResult{}, nil
	}
	return s.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
}

// IsPartialBulkError reports whether err is a bulk-write exception carrying
// per-op errors, i.e. some operations may still have succeeded.
func IsPartialBulkError(err error) bool {
	_, ok := err.(mongo.BulkWriteException)
	return ok
}
