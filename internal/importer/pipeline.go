package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// IMPORT PIPELINE - Parse, Dedupe, Merge
// =============================================================================
// The pipeline streams the CSV in fixed-size batches. Each batch is parsed,
// classified, matched against existing contacts on two identifier namespaces
// (email list, normalized LinkedIn URL) and flushed as one unordered bulk
// write. Row-level problems go to the audit collections and never abort the
// job; only infrastructure errors bubble up into the retry policy.

// errJobCancelled aborts the pipeline without burning an attempt.
var errJobCancelled = errors.New("job cancelled")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// parsedRow is one usable CSV row after field extraction and validation.
type parsedRow struct {
	rowNum      int
	firstName   string
	lastName    string
	email       string // lowercased, validated; empty when absent or malformed
	company     string
	jobTitle    string
	linkedinURL string // as given, trimmed
	normURL     string // normalized dedup key; empty when absent or malformed
	connectedOn string // ISO date; empty when absent or unparseable
	raw         map[string]string
}

// identifiers returns the row's dedup keys for within-batch collision checks.
func (r *parsedRow) identifiers() []string {
	var ids []string
	if r.normURL != "" {
		ids = append(ids, "url:"+r.normURL)
	}
	if r.email != "" {
		ids = append(ids, "email:"+r.email)
	}
	return ids
}

// pipelineState accumulates counters across batches.
type pipelineState struct {
	processed     int
	created       int
	updated       int
	conflicts     int
	invalidRows   int
	parseFailures int
	personaTally  map[string]int
	breakdown     map[string]int
	lastHeartbeat time.Time
}

// runPipeline executes the claimed job end to end. Returns errJobCancelled
// when an operator cancelled the job mid-flight.
func (w *Worker) runPipeline(ctx context.Context, job *domain.ImportJob) error {
	total, titles, companyNames, fieldIdx, err := w.prePass(job)
	if err != nil {
		return err
	}

	classified := w.classifier.ClassifyBatch(ctx, titles)
	companies, err := ResolveCompanies(ctx, w.store, companyNames)
	if err != nil {
		return err
	}

	csvFile, err := OpenCSV(job.FilePath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer csvFile.Close()

	now := time.Now().UTC()
	w.store.Jobs().UpdateOne(ctx, bson.M{"job_id": job.JobID},
		bson.M{"$set": bson.M{"total_rows": total, "updated_at": now}})

	st := &pipelineState{
		personaTally:  map[string]int{},
		breakdown:     map[string]int{},
		lastHeartbeat: now,
	}

	rowNum := 1 // header is row 1; data starts at 2
	batchSize := w.cfg.BatchSize
	for {
		records, readErr := csvFile.ReadBatch(batchSize)
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read batch: %w", readErr)
		}

		rows := w.parseBatch(ctx, job, records, fieldIdx, &rowNum, st)
		if err := w.flushBatch(ctx, job, rows, classified, companies, st); err != nil {
			return err
		}
		st.processed += len(records)

		if err := w.heartbeat(ctx, job, total, st, readErr == io.EOF); err != nil {
			return err
		}
		if readErr == io.EOF {
			break
		}
	}

	return w.complete(ctx, job, total, st)
}

// prePass streams the file once to establish the progress denominator and
// collect the distinct job titles and company names, so classification and
// company resolution each happen exactly once per distinct value.
func (w *Worker) prePass(job *domain.ImportJob) (int, []string, []string, map[string]int, error) {
	csvFile, err := OpenCSV(job.FilePath)
	if err != nil {
		return 0, nil, nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer csvFile.Close()

	fieldIdx, err := resolveColumns(csvFile.Headers, job.ColumnMapping)
	if err != nil {
		return 0, nil, nil, nil, err
	}

	total := 0
	titleSet := map[string]bool{}
	companySet := map[string]bool{}
	var titles, companyNames []string
	for {
		records, readErr := csvFile.ReadBatch(1000)
		if readErr != nil && readErr != io.EOF {
			return 0, nil, nil, nil, fmt.Errorf("pre-pass read: %w", readErr)
		}
		total += len(records)
		for _, record := range records {
			if record == nil {
				continue
			}
			if t := cell(record, fieldIdx, FieldJobTitle); t != "" && !titleSet[t] {
				titleSet[t] = true
				titles = append(titles, t)
			}
			if c := cell(record, fieldIdx, FieldCompany); c != "" && !companySet[c] {
				companySet[c] = true
				companyNames = append(companyNames, c)
			}
		}
		if readErr == io.EOF {
			return total, titles, companyNames, fieldIdx, nil
		}
	}
}

// resolveColumns turns the job's header → field mapping into field → column
// index against the actual header row.
func resolveColumns(headers []string, mapping map[string]string) (map[string]int, error) {
	idxByHeader := make(map[string]int, len(headers))
	for i, h := range headers {
		idxByHeader[h] = i
	}

	fieldIdx := make(map[string]int, len(mapping))
	for header, field := range mapping {
		if field == "" {
			continue
		}
		i, ok := idxByHeader[header]
		if !ok {
			return nil, fmt.Errorf("mapped column %q not present in file", header)
		}
		fieldIdx[field] = i
	}

	if _, hasEmail := fieldIdx[FieldEmail]; !hasEmail {
		if _, hasURL := fieldIdx[FieldLinkedInURL]; !hasURL {
			return nil, fmt.Errorf("column mapping carries neither %s nor %s", FieldEmail, FieldLinkedInURL)
		}
	}
	return fieldIdx, nil
}

// parseBatch converts raw records into parsedRows, writing audit rows for
// everything it drops or degrades.
func (w *Worker) parseBatch(ctx context.Context, job *domain.ImportJob, records [][]string, fieldIdx map[string]int, rowNum *int, st *pipelineState) []*parsedRow {
	rows := make([]*parsedRow, 0, len(records))
	for _, record := range records {
		*rowNum++
		n := *rowNum

		if record == nil {
			st.parseFailures++
			st.breakdown[domain.ReasonRowUnparseable]++
			w.audit(ctx, job, domain.AuditParseFailure, n, domain.ReasonRowUnparseable, "csv reader could not parse the line", nil)
			continue
		}

		raw := rawRowMap(record, fieldIdx)
		row := &parsedRow{rowNum: n, raw: raw}
		row.firstName = cell(record, fieldIdx, FieldFirstName)
		row.lastName = cell(record, fieldIdx, FieldLastName)
		row.company = cell(record, fieldIdx, FieldCompany)
		row.jobTitle = cell(record, fieldIdx, FieldJobTitle)

		if v := cell(record, fieldIdx, FieldEmail); v != "" {
			addr := strings.ToLower(strings.TrimSpace(v))
			if emailPattern.MatchString(addr) {
				row.email = addr
			} else {
				st.parseFailures++
				st.breakdown[domain.ReasonMalformedEmail]++
				w.audit(ctx, job, domain.AuditParseFailure, n, domain.ReasonMalformedEmail, v, raw)
			}
		}

		if v := cell(record, fieldIdx, FieldLinkedInURL); v != "" {
			norm, err := NormalizeLinkedInURL(v)
			if err != nil {
				st.parseFailures++
				st.breakdown[domain.ReasonMalformedLinkedInURL]++
				w.audit(ctx, job, domain.AuditParseFailure, n, domain.ReasonMalformedLinkedInURL, v, raw)
			} else {
				row.linkedinURL = strings.TrimSpace(v)
				row.normURL = norm
			}
		}

		if v := cell(record, fieldIdx, FieldConnectedOn); v != "" {
			iso, err := ParseConnectedOn(v)
			if err != nil {
				st.parseFailures++
				st.breakdown[domain.ReasonConnectedOnParse]++
				w.audit(ctx, job, domain.AuditParseFailure, n, domain.ReasonConnectedOnParse, v, raw)
			} else {
				row.connectedOn = iso
			}
		}

		// A row carrying neither a name nor a LinkedIn URL is unusable.
		if row.firstName == "" && row.lastName == "" && row.normURL == "" {
			st.invalidRows++
			st.breakdown[domain.ReasonMissingIdentifiers]++
			w.audit(ctx, job, domain.AuditInvalidRow, n, domain.ReasonMissingIdentifiers, "", raw)
			continue
		}

		rows = append(rows, row)
	}
	return rows
}

// flushBatch matches the batch against existing contacts and applies the
// merge rules in one unordered bulk write. Rows whose identifiers were
// already written earlier in the same batch force an intermediate flush so
// the later row merges into the contact the earlier one created.
func (w *Worker) flushBatch(ctx context.Context, job *domain.ImportJob, rows []*parsedRow, classified map[string]classifier.Result, companies map[string]domain.Company, st *pipelineState) error {
	for len(rows) > 0 {
		existing, err := w.lookupContacts(ctx, rows)
		if err != nil {
			return err
		}

		var models []mongo.WriteModel
		seen := map[string]bool{}
		rest := rows[:0]
		deferred := false

		for i, row := range rows {
			if deferred {
				rest = append(rest, rows[i])
				continue
			}
			collides := false
			for _, id := range row.identifiers() {
				if seen[id] {
					collides = true
					break
				}
			}
			if collides {
				// Flush what we have, then rerun the remainder against the
				// now-updated store.
				deferred = true
				rest = append(rest, rows[i])
				continue
			}
			for _, id := range row.identifiers() {
				seen[id] = true
			}

			model := w.buildRowModel(ctx, job, row, existing, classified, companies, st)
			if model != nil {
				models = append(models, model)
			}
		}

		if err := w.writeModels(ctx, models, st); err != nil {
			return err
		}
		rows = rest
	}
	return nil
}

// lookupContacts loads every contact matching any of the batch identifiers,
// keyed by both namespaces.
func (w *Worker) lookupContacts(ctx context.Context, rows []*parsedRow) (map[string]*domain.Contact, error) {
	var emails, urls []string
	for _, r := range rows {
		if r.email != "" {
			emails = append(emails, r.email)
		}
		if r.normURL != "" {
			urls = append(urls, r.normURL)
		}
	}

	var clauses []bson.M
	if len(emails) > 0 {
		clauses = append(clauses,
			bson.M{"email": bson.M{"$in": emails}},
			bson.M{"emails.email": bson.M{"$in": emails}})
	}
	if len(urls) > 0 {
		clauses = append(clauses, bson.M{"linkedin_url_normalized": bson.M{"$in": urls}})
	}
	if len(clauses) == 0 {
		return map[string]*domain.Contact{}, nil
	}

	cur, err := w.store.Contacts().Find(ctx, bson.M{"$or": clauses})
	if err != nil {
		return nil, fmt.Errorf("contact lookup: %w", err)
	}
	defer cur.Close(ctx)

	index := map[string]*domain.Contact{}
	for cur.Next(ctx) {
		var c domain.Contact
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		contact := c
		if contact.Email != "" {
			index["email:"+contact.Email] = &contact
		}
		for _, e := range contact.Emails {
			index["email:"+e.Email] = &contact
		}
		if contact.LinkedInURLNormalized != "" {
			index["url:"+contact.LinkedInURLNormalized] = &contact
		}
	}
	return index, cur.Err()
}

// buildRowModel decides between merge, conflict-merge and insert for one row.
func (w *Worker) buildRowModel(ctx context.Context, job *domain.ImportJob, row *parsedRow, existing map[string]*domain.Contact, classified map[string]classifier.Result, companies map[string]domain.Company, st *pipelineState) mongo.WriteModel {
	result, ok := classified[row.jobTitle]
	if !ok {
		result = w.classifier.Classify(ctx, row.jobTitle)
	}
	st.personaTally[result.PersonaID]++

	var byEmail, byURL *domain.Contact
	if row.email != "" {
		byEmail = existing["email:"+row.email]
	}
	if row.normURL != "" {
		byURL = existing["url:"+row.normURL]
	}

	switch {
	case byEmail != nil && byURL != nil && byEmail.ID != byURL.ID:
		// Identifiers point at two different people. Merge into the email
		// side without touching its LinkedIn fields and record the conflict
		// for manual review.
		st.conflicts++
		st.breakdown[domain.ReasonEmailURLMismatch]++
		w.audit(ctx, job, domain.AuditConflict, row.rowNum, domain.ReasonEmailURLMismatch,
			fmt.Sprintf("email matches contact %s, url matches contact %s", byEmail.ID, byURL.ID), row.raw)
		return w.mergeModel(job, row, byEmail, result, companies, false)

	case byEmail != nil:
		return w.mergeModel(job, row, byEmail, result, companies, true)

	case byURL != nil:
		return w.mergeModel(job, row, byURL, result, companies, true)

	default:
		return w.insertModel(job, row, result, companies)
	}
}

// mergeModel builds the update applying the merge rules against an existing
// contact. allowLinkedIn gates the LinkedIn fields: a conflicted row must
// never overwrite the email-side contact's URL.
func (w *Worker) mergeModel(job *domain.ImportJob, row *parsedRow, contact *domain.Contact, result classifier.Result, companies map[string]domain.Company, allowLinkedIn bool) mongo.WriteModel {
	now := time.Now().UTC()
	set := bson.M{
		"updated_at":     now,
		"stage_1_status": "accepted",
	}

	// Names fill empty slots only; an import never renames a person.
	if contact.FirstName == "" && row.firstName != "" {
		set["first_name"] = row.firstName
	}
	if contact.LastName == "" && row.lastName != "" {
		set["last_name"] = row.lastName
	}
	if contact.Name == "" && (row.firstName != "" || row.lastName != "") {
		set["name"] = strings.TrimSpace(row.firstName + " " + row.lastName)
	}

	// Job titles track the freshest source. A changed title re-runs
	// classification unless an operator pinned the persona.
	if row.jobTitle != "" && !strings.EqualFold(contact.JobTitle, row.jobTitle) {
		set["job_title"] = row.jobTitle
		set["job_title_normalized"] = result.NormalizedTitle
		if !contact.PersonaLocked {
			set["buyer_persona"] = result.PersonaID
			set["buyer_persona_name"] = result.PersonaName
		}
	}

	if allowLinkedIn && contact.LinkedInURLNormalized == "" && row.normURL != "" {
		set["linkedin_url"] = row.linkedinURL
		set["linkedin_url_normalized"] = row.normURL
	}

	if contact.FirstConnectedOnLinkedIn == "" && row.connectedOn != "" {
		set["first_connected_on_linkedin"] = row.connectedOn
	}

	update := bson.M{
		"$set":      set,
		"$addToSet": bson.M{"linkedin_accepted_by": job.Profile},
	}

	var push bson.M
	if row.email != "" && !contact.HasEmail(row.email) {
		push = bson.M{"emails": domain.ContactEmail{Email: row.email, IsPrimary: false}}
		if contact.Email == "" {
			set["email"] = row.email
		}
	}

	if row.company != "" {
		if company, ok := companies[NormalizeCompanyName(row.company)]; ok && !contact.HasCompany(company.ID) {
			entry := domain.ContactCompany{CompanyID: company.ID, CompanyName: company.Name}
			if _, hasPrimary := contact.PrimaryCompany(); !hasPrimary {
				entry.IsPrimary = true
				set["company"] = company.Name
				set["company_id"] = company.ID
			}
			if push == nil {
				push = bson.M{}
			}
			push["companies"] = entry
		}
	}
	if push != nil {
		update["$push"] = push
	}

	return mongo.NewUpdateOneModel().
		SetFilter(bson.M{"id": contact.ID}).
		SetUpdate(update)
}

// insertModel builds the upsert creating a new contact. The upsert is keyed
// by the strongest identifier present so a concurrent import of the same
// person collapses to one document.
func (w *Worker) insertModel(job *domain.ImportJob, row *parsedRow, result classifier.Result, companies map[string]domain.Company) mongo.WriteModel {
	now := time.Now().UTC()
	contact := domain.Contact{
		ID:                       uuid.New().String(),
		FirstName:                row.firstName,
		LastName:                 row.lastName,
		Name:                     strings.TrimSpace(row.firstName + " " + row.lastName),
		JobTitle:                 row.jobTitle,
		JobTitleNormalized:       result.NormalizedTitle,
		BuyerPersona:             result.PersonaID,
		BuyerPersonaName:         result.PersonaName,
		Stage:                    domain.StageConnected,
		Stage1Status:             "accepted",
		Source:                   "linkedin_import",
		SourceDetails:            job.FileName,
		LinkedInAcceptedBy:       []string{job.Profile},
		FirstConnectedOnLinkedIn: row.connectedOn,
		Emails:                   []domain.ContactEmail{},
		Companies:                []domain.ContactCompany{},
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if row.email != "" {
		contact.Email = row.email
		contact.Emails = []domain.ContactEmail{{Email: row.email, IsPrimary: true}}
	}
	if row.normURL != "" {
		contact.LinkedInURL = row.linkedinURL
		contact.LinkedInURLNormalized = row.normURL
	}
	if row.company != "" {
		if company, ok := companies[NormalizeCompanyName(row.company)]; ok {
			contact.Company = company.Name
			contact.CompanyID = company.ID
			contact.Companies = []domain.ContactCompany{{
				CompanyID:   company.ID,
				CompanyName: company.Name,
				IsPrimary:   true,
			}}
		}
	}

	// Upsert keyed by the strongest identifier. A row with neither (name
	// only) cannot be deduplicated and inserts directly.
	var filter bson.M
	switch {
	case row.normURL != "":
		filter = bson.M{"linkedin_url_normalized": row.normURL}
	case row.email != "":
		filter = bson.M{"email": row.email}
	default:
		return mongo.NewInsertOneModel().SetDocument(contact)
	}

	return mongo.NewUpdateOneModel().
		SetFilter(filter).
		SetUpdate(bson.M{"$setOnInsert": contact}).
		SetUpsert(true)
}

// writeModels flushes the batch unordered and folds the result into the
// stats. Partial bulk failures (duplicate-key races with a concurrent
// import) are tolerated; the surviving writes still count.
func (w *Worker) writeModels(ctx context.Context, models []mongo.WriteModel, st *pipelineState) error {
	if len(models) == 0 {
		return nil
	}
	res, err := w.store.BulkWriteUnordered(ctx, store.CollContacts, models)
	if err != nil {
		if !store.IsPartialBulkError(err) {
			return fmt.Errorf("contact bulk write: %w", err)
		}
		log.Printf("[ImportWorker] partial contact bulk failure: %v", err)
	}
	if res != nil {
		st.created += int(res.UpsertedCount + res.InsertedCount)
		st.updated += int(res.MatchedCount)
	}
	return nil
}

// heartbeat publishes progress and lock liveness, and honors operator
// cancellation. force makes the final batch always publish.
func (w *Worker) heartbeat(ctx context.Context, job *domain.ImportJob, total int, st *pipelineState, force bool) error {
	now := time.Now().UTC()
	if !force && now.Sub(st.lastHeartbeat) < w.cfg.HeartbeatInterval() {
		return nil
	}
	st.lastHeartbeat = now

	progress := 0
	if total > 0 {
		progress = st.processed * 100 / total
	}

	res := w.store.Jobs().FindOneAndUpdate(ctx,
		bson.M{"job_id": job.JobID},
		bson.M{"$set": bson.M{
			"heartbeat_at":         now,
			"updated_at":           now,
			"processed_rows":       st.processed,
			"contacts_created":     st.created,
			"contacts_updated":     st.updated,
			"conflicts_count":      st.conflicts,
			"invalid_rows_count":   st.invalidRows,
			"parse_failures_count": st.parseFailures,
			"progress_percent":     progress,
			"persona_tally":        st.personaTally,
		}})

	var current domain.ImportJob
	if err := res.Decode(&current); err != nil {
		if err == mongo.ErrNoDocuments {
			return fmt.Errorf("job %s vanished mid-processing", job.JobID)
		}
		return fmt.Errorf("heartbeat: %w", err)
	}
	if current.Status == domain.JobCancelled {
		return errJobCancelled
	}

	w.refreshLock(ctx, job)
	return nil
}

// complete finalizes the job, marks the weekly import task done, removes the
// uploaded file and releases the profile lock.
func (w *Worker) complete(ctx context.Context, job *domain.ImportJob, total int, st *pipelineState) error {
	now := time.Now().UTC()
	attempt := domain.ImportAttempt{
		Attempt:   job.Attempts + 1,
		WorkerID:  w.workerID,
		StartedAt: derefTime(job.StartedAt, now),
		EndedAt:   now,
	}

	_, err := w.store.Jobs().UpdateOne(ctx, bson.M{"job_id": job.JobID}, bson.M{
		"$set": bson.M{
			"status":               domain.JobCompleted,
			"completed_at":         now,
			"updated_at":           now,
			"attempts":             job.Attempts + 1,
			"total_rows":           total,
			"processed_rows":       st.processed,
			"contacts_created":     st.created,
			"contacts_updated":     st.updated,
			"conflicts_count":      st.conflicts,
			"invalid_rows_count":   st.invalidRows,
			"parse_failures_count": st.parseFailures,
			"progress_percent":     100,
			"persona_tally":        st.personaTally,
			"error_breakdown":      st.breakdown,
		},
		"$push": bson.M{"attempt_history": attempt},
	})
	if err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}

	w.markImportTask(ctx, job, now)

	w.removeUpload(job)
	w.releaseLock(ctx, job)

	log.Printf("[ImportWorker] job %s completed: %d rows, %d created, %d updated, %d conflicts, %d invalid, %d parse failures",
		job.JobID, st.processed, st.created, st.updated, st.conflicts, st.invalidRows, st.parseFailures)
	return nil
}

// markImportTask flips the per-profile weekly import flag.
func (w *Worker) markImportTask(ctx context.Context, job *domain.ImportJob, now time.Time) {
	weekStart := job.WeekStart
	if weekStart == "" {
		weekStart = domain.WeekStart(now)
	}
	_, err := w.store.ImportTasks().UpdateOne(ctx,
		bson.M{"profile": job.Profile, "week_start": weekStart},
		bson.M{"$set": bson.M{
			"import_completed": true,
			"completed_at":     now,
			"updated_at":       now,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		log.Printf("[ImportWorker] job %s: import task update failed: %v", job.JobID, err)
	}
}

// audit writes one row to the audit collection matching kind. Audit writes
// are best effort: a failed insert is logged, never fatal.
func (w *Worker) audit(ctx context.Context, job *domain.ImportJob, kind domain.AuditKind, rowNum int, reason, detail string, raw map[string]string) {
	row := domain.AuditRow{
		JobID:        job.JobID,
		Profile:      job.Profile,
		WeekStart:    job.WeekStart,
		RowNumber:    rowNum,
		ReasonCode:   reason,
		ReasonDetail: detail,
		RawRow:       raw,
		CreatedAt:    time.Now().UTC(),
	}

	var coll *mongo.Collection
	switch kind {
	case domain.AuditConflict:
		coll = w.store.Conflicts()
	case domain.AuditInvalidRow:
		coll = w.store.InvalidRows()
	default:
		coll = w.store.ParseFailures()
	}
	if _, err := coll.InsertOne(ctx, row); err != nil {
		log.Printf("[ImportWorker] job %s: audit insert failed (%s row %d): %v", job.JobID, reason, rowNum, err)
	}
}

// cell reads the mapped column for field, trimmed; missing mappings and
// short records read as empty.
func cell(record []string, fieldIdx map[string]int, field string) string {
	i, ok := fieldIdx[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// rawRowMap snapshots the mapped cells of a record for audit storage.
func rawRowMap(record []string, fieldIdx map[string]int) map[string]string {
	raw := make(map[string]string, len(fieldIdx))
	for field, i := range fieldIdx {
		if i < len(record) {
			raw[field] = record[i]
		}
	}
	return raw
}
