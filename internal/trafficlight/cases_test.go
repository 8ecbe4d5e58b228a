package trafficlight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/contact-core/internal/domain"
)

func tp(t time.Time) *time.Time { return &t }

func TestCaseStatusNoPendingTasks(t *testing.T) {
	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC) // Wednesday
	due := now.AddDate(0, 0, -1)

	c := domain.Case{ID: "case1", ContactIDs: []string{"c1"}}
	checklist := &domain.CaseChecklist{
		CaseID: "case1",
		Groups: map[string]domain.ChecklistGroup{
			"g1": {
				Columns: []domain.ChecklistColumn{{ID: "col1", DueDate: &due}},
				Cells: map[string]map[string]domain.ChecklistCell{
					"c1": {"col1": {Checked: true, CheckedAt: tp(now.AddDate(0, 0, -10))}},
				},
			},
		},
	}

	assert.Equal(t, StatusGreen, CaseStatus(c, checklist, now))
}

func TestCaseStatusMissingCellCountsAsPending(t *testing.T) {
	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -1)

	c := domain.Case{ID: "case1", ContactIDs: []string{"c1", "c2"}}
	checklist := &domain.CaseChecklist{
		Groups: map[string]domain.ChecklistGroup{
			"g1": {
				Columns: []domain.ChecklistColumn{{ID: "col1", DueDate: &due}},
				Cells: map[string]map[string]domain.ChecklistCell{
					// c2 has no cell at all for col1
					"c1": {"col1": {Checked: true, CheckedAt: tp(now.AddDate(0, 0, -20))}},
				},
			},
		},
	}

	// Pending and no activity this week.
	assert.Equal(t, StatusRed, CaseStatus(c, checklist, now))
}

func TestCaseStatusPendingWithRecentActivity(t *testing.T) {
	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -1)
	checkedMonday := time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC) // same ISO week

	c := domain.Case{ID: "case1", ContactIDs: []string{"c1", "c2"}}
	checklist := &domain.CaseChecklist{
		Groups: map[string]domain.ChecklistGroup{
			"g1": {
				Columns: []domain.ChecklistColumn{{ID: "col1", DueDate: &due}},
				Cells: map[string]map[string]domain.ChecklistCell{
					"c1": {"col1": {Checked: true, CheckedAt: &checkedMonday}},
				},
			},
		},
	}

	assert.Equal(t, StatusYellow, CaseStatus(c, checklist, now))
}

func TestCaseStatusIgnoresDeletedAndFutureColumns(t *testing.T) {
	now := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 3)

	c := domain.Case{ID: "case1", ContactIDs: []string{"c1"}}
	checklist := &domain.CaseChecklist{
		Groups: map[string]domain.ChecklistGroup{
			"g1": {
				Columns: []domain.ChecklistColumn{
					{ID: "deleted", DueDate: &past, Deleted: true},
					{ID: "future", DueDate: &future},
					{ID: "nodue"},
				},
				Cells: map[string]map[string]domain.ChecklistCell{},
			},
		},
	}

	assert.Equal(t, StatusGreen, CaseStatus(c, checklist, now))
}

func TestCaseStatusDueTodayIsPending(t *testing.T) {
	now := time.Date(2026, 8, 19, 8, 0, 0, 0, time.UTC)
	dueToday := time.Date(2026, 8, 19, 18, 0, 0, 0, time.UTC)

	c := domain.Case{ID: "case1", ContactIDs: []string{"c1"}}
	checklist := &domain.CaseChecklist{
		Groups: map[string]domain.ChecklistGroup{
			"g1": {
				Columns: []domain.ChecklistColumn{{ID: "col1", DueDate: &dueToday}},
				Cells:   map[string]map[string]domain.ChecklistCell{},
			},
		},
	}

	assert.Equal(t, StatusRed, CaseStatus(c, checklist, now))
}

func TestCaseStatusNilChecklist(t *testing.T) {
	c := domain.Case{ID: "case1", ContactIDs: []string{"c1"}}
	assert.Equal(t, StatusGreen, CaseStatus(c, nil, time.Now()))
}
