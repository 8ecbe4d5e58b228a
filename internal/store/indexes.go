package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// defaultAuditRetentionDays is the fallback retention window for conflict /
// invalid-row / parse-failure audit documents.
const defaultAuditRetentionDays = 90

// EnsureIndexes creates every index the core relies on. Run at startup;
// CreateMany is idempotent for identical definitions. auditRetentionDays
// sizes the TTL on audit rows (0 means the default).
func (s *Store) EnsureIndexes(ctx context.Context, auditRetentionDays int) error {
	if auditRetentionDays <= 0 {
		auditRetentionDays = defaultAuditRetentionDays
	}
	auditTTLSeconds := int32((time.Duration(auditRetentionDays) * 24 * time.Hour) / time.Second)

	specs := map[string][]mongo.IndexModel{
		CollContacts: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "linkedin_url_normalized", Value: 1}}},
			{Keys: bson.D{{Key: "email", Value: 1}}},
			{Keys: bson.D{{Key: "emails.email", Value: 1}}},
			{Keys: bson.D{{Key: "job_title_normalized", Value: 1}}},
			{Keys: bson.D{{Key: "buyer_persona", Value: 1}}},
			{Keys: bson.D{{Key: "persona_locked", Value: 1}}},
		},
		CollCompanies: {
			{Keys: bson.D{{Key: "normalized_name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollJobs: {
			{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "heartbeat_at", Value: 1}}},
			{Keys: bson.D{{Key: "profile", Value: 1}, {Key: "week_start", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		CollLocks: {
			{Keys: bson.D{{Key: "profile", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		CollConflicts: {
			{Keys: bson.D{{Key: "job_id", Value: 1}}},
			{Keys: bson.D{{Key: "profile", Value: 1}, {Key: "week_start", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(auditTTLSeconds)},
		},
		CollInvalidRows: {
			{Keys: bson.D{{Key: "job_id", Value: 1}}},
			{Keys: bson.D{{Key: "profile", Value: 1}, {Key: "week_start", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(auditTTLSeconds)},
		},
		CollParseFailures: {
			{Keys: bson.D{{Key: "job_id", Value: 1}}},
			{Keys: bson.D{{Key: "profile", Value: 1}, {Key: "week_start", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(auditTTLSeconds)},
		},
		CollKeywords: {
			{Keys: bson.D{{Key: "keyword_normalized", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "persona_id", Value: 1}}},
		},
		CollPersonaPriorities: {
			{Keys: bson.D{{Key: "persona_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollAlerts: {
			{Keys: bson.D{{Key: "week_key", Value: 1}, {Key: "persona_id", Value: 1}, {Key: "kind", Value: 1}}},
			{Keys: bson.D{{Key: "resolved", Value: 1}}},
		},
		CollImportTasks: {
			{Keys: bson.D{{Key: "profile", Value: 1}, {Key: "week_start", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollWeeklyCounters: {
			{Keys: bson.D{{Key: "week_key", Value: 1}, {Key: "persona_id", Value: 1}, {Key: "source", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollEmailLog: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		},
		CollSchedules: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "next_run", Value: 1}}},
		},
		CollReclassifyJobs: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		CollNewsletters: {
			{Keys: bson.D{{Key: "week_key", Value: 1}, {Key: "auto_generated", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		},
		CollCaseChecklists: {
			{Keys: bson.D{{Key: "case_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollCaseContactRoles: {
			{Keys: bson.D{{Key: "case_id", Value: 1}, {Key: "contact_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}
