package domain

import "time"

// Case stages and statuses used by the traffic-light aggregator. Names come
// from the operating team's pipeline vocabulary.
const (
	CaseStageGanados = "ganados"

	CaseStatusActive     = "active"
	CaseStatusConcluidos = "concluidos"
)

// Case is a customer project grouping contacts. Per-case contact roles live
// in the case_contact_roles side-collection, not on the case itself.
type Case struct {
	ID         string    `json:"id" bson:"id"`
	Name       string    `json:"name" bson:"name"`
	Stage      string    `json:"stage" bson:"stage"`
	Status     string    `json:"status" bson:"status"`
	ContactIDs []string  `json:"contact_ids" bson:"contact_ids"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// ChecklistColumn is one task column of a checklist group. Columns are
// soft-deleted so historic cells keep their meaning.
type ChecklistColumn struct {
	ID      string     `json:"id" bson:"id"`
	Title   string     `json:"title" bson:"title"`
	DueDate *time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
	Deleted bool       `json:"deleted,omitempty" bson:"deleted,omitempty"`
}

// ChecklistCell records completion of one column for one contact.
type ChecklistCell struct {
	Checked   bool       `json:"checked" bson:"checked"`
	CheckedAt *time.Time `json:"checked_at,omitempty" bson:"checked_at,omitempty"`
}

// ChecklistGroup holds the columns and per-contact cells of one group.
// Cells are keyed cells[contact_id][column_id]; a missing cell for a due
// column counts as unchecked.
type ChecklistGroup struct {
	Columns []ChecklistColumn                   `json:"columns" bson:"columns"`
	Cells   map[string]map[string]ChecklistCell `json:"cells" bson:"cells"`
}

// CaseChecklist is the sibling document of a Case carrying its task grid.
type CaseChecklist struct {
	CaseID    string                    `json:"case_id" bson:"case_id"`
	Groups    map[string]ChecklistGroup `json:"groups" bson:"groups"`
	UpdatedAt time.Time                 `json:"updated_at" bson:"updated_at"`
}

// CaseContactRole holds the role set a contact plays within one case,
// keyed (case_id, contact_id). Distinct from any global contact roles.
type CaseContactRole struct {
	CaseID    string    `json:"case_id" bson:"case_id"`
	ContactID string    `json:"contact_id" bson:"contact_id"`
	Roles     []string  `json:"roles" bson:"roles"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
