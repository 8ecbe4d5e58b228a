package trafficlight

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// =============================================================================
// CURRENT CASES SECTION
// =============================================================================
// Won ("ganados") projects are tracked through their checklists. A project
// with no pending task is green; one with pending tasks is yellow while the
// team checked anything this week, red once activity stopped.

// CaseStatus applies the per-project rule for one case and its checklist.
func CaseStatus(c domain.Case, checklist *domain.CaseChecklist, now time.Time) Status {
	if checklist == nil {
		return StatusGreen
	}
	if !hasPendingTask(c, checklist, now) {
		return StatusGreen
	}
	if checkedThisWeek(checklist, now) {
		return StatusYellow
	}
	return StatusRed
}

// hasPendingTask reports whether any live column due today or earlier has an
// unchecked or missing cell for any of the case's contacts.
func hasPendingTask(c domain.Case, checklist *domain.CaseChecklist, now time.Time) bool {
	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	for _, group := range checklist.Groups {
		for _, col := range group.Columns {
			if col.Deleted || col.DueDate == nil || col.DueDate.After(endOfToday) {
				continue
			}
			for _, contactID := range c.ContactIDs {
				cell, ok := group.Cells[contactID][col.ID]
				if !ok || !cell.Checked {
					return true
				}
			}
		}
	}
	return false
}

// checkedThisWeek reports whether any cell of the checklist was checked
// within the current ISO week.
func checkedThisWeek(checklist *domain.CaseChecklist, now time.Time) bool {
	weekKey := domain.WeekKey(now)
	for _, group := range checklist.Groups {
		for _, byColumn := range group.Cells {
			for _, cell := range byColumn {
				if cell.Checked && cell.CheckedAt != nil && domain.WeekKey(*cell.CheckedAt) == weekKey {
					return true
				}
			}
		}
	}
	return false
}

// CurrentCasesLeaf evaluates every active won case and aggregates them. The
// metadata carries the per-case breakdown for the drill-down view.
func CurrentCasesLeaf(s *store.Store) Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		cur, err := s.Cases().Find(ctx, bson.M{
			"stage":  domain.CaseStageGanados,
			"status": domain.CaseStatusActive,
		})
		if err != nil {
			return NodeResult{}, fmt.Errorf("load cases: %w", err)
		}
		defer cur.Close(ctx)

		var cases []domain.Case
		if err := cur.All(ctx, &cases); err != nil {
			return NodeResult{}, err
		}

		perCase := map[string]Status{}
		statuses := make([]Status, 0, len(cases))
		for _, c := range cases {
			checklist, err := loadChecklist(ctx, s, c.ID)
			if err != nil {
				return NodeResult{}, err
			}
			st := CaseStatus(c, checklist, now)
			perCase[c.ID] = st
			statuses = append(statuses, st)
		}

		// A board with no won cases shows green, not gray: there is simply
		// nothing pending.
		status := StatusGreen
		if len(statuses) > 0 {
			status = Aggregate(statuses)
		}
		return NodeResult{
			Status:   status,
			Metadata: map[string]any{"cases": perCase},
		}, nil
	})
}

func loadChecklist(ctx context.Context, s *store.Store, caseID string) (*domain.CaseChecklist, error) {
	var checklist domain.CaseChecklist
	err := s.CaseChecklists().FindOne(ctx, bson.M{"case_id": caseID}).Decode(&checklist)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checklist %s: %w", caseID, err)
	}
	return &checklist, nil
}
