package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ignite/contact-core/internal/domain"
)

// =============================================================================
// SCHEDULED EXECUTIONS
// =============================================================================
// search_schedules rows describe recurring scraping/search runs. The hourly
// scheduler tick calls RunDueSchedules, which dispatches each due row to the
// handler for its type and advances next_run by the frequency interval.

// scheduleHandler runs one due schedule row.
type scheduleHandler func(ctx context.Context, sched domain.SearchSchedule) error

// handlers maps the closed schedule-type set to behavior. Adding a type
// means adding an entry here.
func (d *Driver) handlers() map[domain.ScheduleType]scheduleHandler {
	return map[domain.ScheduleType]scheduleHandler{
		domain.SchedulePersonaSearch:       d.runPersonaSchedule,
		domain.ScheduleKeywordSearch:       d.runKeywordSchedule,
		domain.ScheduleBusinessUnitSearch:  d.runEntitySchedule,
		domain.ScheduleSmallBusinessSearch: d.runEntitySchedule,
		domain.ScheduleMedicalSocietyScrap: d.runEntitySchedule,
		domain.SchedulePharmaPipelineScrap: d.runEntitySchedule,
	}
}

// RunDueSchedules executes every active schedule whose next_run has passed.
// Per-schedule failures are recorded on the row and do not stop the sweep.
func (d *Driver) RunDueSchedules(ctx context.Context) error {
	now := time.Now().UTC()
	cur, err := d.store.Schedules().Find(ctx, bson.M{
		"active": true,
		"$or": []bson.M{
			{"next_run": bson.M{"$lte": now}},
			{"next_run": nil},
		},
	})
	if err != nil {
		return fmt.Errorf("load due schedules: %w", err)
	}
	defer cur.Close(ctx)

	var due []domain.SearchSchedule
	if err := cur.All(ctx, &due); err != nil {
		return err
	}

	handlers := d.handlers()
	failures := 0
	for _, sched := range due {
		handler, ok := handlers[sched.ScheduleType]
		if !ok {
			log.Printf("[Search] schedule %s has unknown type %q, deactivating", sched.ID, sched.ScheduleType)
			d.store.Schedules().UpdateOne(ctx, bson.M{"id": sched.ID},
				bson.M{"$set": bson.M{"active": false, "last_run_status": "unknown_type"}})
			continue
		}

		runErr := handler(ctx, sched)
		d.recordRun(ctx, sched, now, runErr)
		if runErr != nil {
			failures++
			log.Printf("[Search] schedule %s (%s) failed: %v", sched.ID, sched.ScheduleType, runErr)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d due schedules failed", failures, len(due))
	}
	return nil
}

// recordRun stamps last_run/last_run_status and advances next_run by the
// schedule's frequency.
func (d *Driver) recordRun(ctx context.Context, sched domain.SearchSchedule, now time.Time, runErr error) {
	days := sched.FrequencyDays
	if days <= 0 {
		days = sched.Frequency.Days()
	}

	status := "success"
	if runErr != nil {
		status = "failed: " + runErr.Error()
	}

	_, err := d.store.Schedules().UpdateOne(ctx, bson.M{"id": sched.ID},
		bson.M{"$set": bson.M{
			"last_run":        now,
			"last_run_status": status,
			"next_run":        now.AddDate(0, 0, days),
		}})
	if err != nil {
		log.Printf("[Search] schedule %s: record run failed: %v", sched.ID, err)
	}
}

// runPersonaSchedule runs one quota pass for the persona named by entity_id.
func (d *Driver) runPersonaSchedule(ctx context.Context, sched domain.SearchSchedule) error {
	return d.RunPersona(ctx, sched.EntityID)
}

// runKeywordSchedule searches a fixed keyword outside the rotation; created
// contacts still count toward the persona's week.
func (d *Driver) runKeywordSchedule(ctx context.Context, sched domain.SearchSchedule) error {
	keyword := sched.Params["keyword"]
	if keyword == "" {
		keyword = sched.EntityName
	}
	personaID := sched.Params["persona_id"]
	if personaID == "" {
		personaID = domain.DefaultPersonaID
	}

	now := time.Now().UTC()
	weekKey := domain.WeekKey(now)
	blocked, err := d.emitter.HasUnresolvedRateLimit(ctx, weekKey, personaID)
	if err != nil {
		return err
	}
	if blocked {
		return nil
	}

	candidates, err := d.actor.Search(ctx, keyword, d.cfg.WeeklyGoalPerFinder)
	if err != nil {
		if IsRateLimitError(err) {
			return d.emitter.RaiseRateLimit(ctx, weekKey, personaID, "prospecting", err.Error())
		}
		return err
	}

	created, err := d.insertCandidates(ctx, personaID, candidates, d.cfg.WeeklyGoalPerFinder)
	if err != nil {
		return err
	}
	return IncrementWeeklyCounter(ctx, d.store, weekKey, personaID, SourcePositionSearch, created)
}

// runEntitySchedule covers the entity-scoped search and scrape types: the
// entity name is the query, results land under the schedule's persona (or
// the default) and are tagged with the schedule type as source detail.
func (d *Driver) runEntitySchedule(ctx context.Context, sched domain.SearchSchedule) error {
	query := sched.Params["query"]
	if query == "" {
		query = sched.EntityName
	}
	if query == "" {
		return fmt.Errorf("schedule %s has no query or entity name", sched.ID)
	}
	personaID := sched.Params["persona_id"]
	if personaID == "" {
		personaID = domain.DefaultPersonaID
	}

	now := time.Now().UTC()
	weekKey := domain.WeekKey(now)

	candidates, err := d.actor.Search(ctx, query, d.cfg.WeeklyGoalPerFinder)
	if err != nil {
		if IsRateLimitError(err) {
			return d.emitter.RaiseRateLimit(ctx, weekKey, personaID, string(sched.ScheduleType), err.Error())
		}
		return err
	}

	created, err := d.insertCandidates(ctx, personaID, candidates, d.cfg.WeeklyGoalPerFinder)
	if err != nil {
		return err
	}
	log.Printf("[Search] schedule %s (%s) created %d contacts", sched.ID, sched.ScheduleType, created)
	return nil
}
