package domain

import "time"

// ScheduleType is the closed set of scheduled search/scrape job types.
// New types are added by extending this set and registering a handler.
type ScheduleType string

const (
	ScheduleBusinessUnitSearch  ScheduleType = "business_unit_search"
	ScheduleKeywordSearch       ScheduleType = "keyword_search"
	SchedulePersonaSearch       ScheduleType = "persona_search"
	ScheduleSmallBusinessSearch ScheduleType = "small_business_search"
	ScheduleMedicalSocietyScrap ScheduleType = "medical_society_scrape"
	SchedulePharmaPipelineScrap ScheduleType = "pharma_pipeline_scrape"
)

// ScheduleFrequency maps to a day count between runs.
type ScheduleFrequency string

const (
	FrequencyDaily    ScheduleFrequency = "daily"
	FrequencyWeekly   ScheduleFrequency = "weekly"
	FrequencyBiweekly ScheduleFrequency = "biweekly"
	FrequencyMonthly  ScheduleFrequency = "monthly"
)

// Days returns the interval in days for the frequency, defaulting to weekly.
func (f ScheduleFrequency) Days() int {
	switch f {
	case FrequencyDaily:
		return 1
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyMonthly:
		return 30
	default:
		return 7
	}
}

// SearchSchedule is one recurring scraping/search execution definition.
type SearchSchedule struct {
	ID            string            `json:"id" bson:"id"`
	ScheduleType  ScheduleType      `json:"schedule_type" bson:"schedule_type"`
	EntityID      string            `json:"entity_id" bson:"entity_id"`
	EntityName    string            `json:"entity_name" bson:"entity_name"`
	Frequency     ScheduleFrequency `json:"frequency" bson:"frequency"`
	FrequencyDays int               `json:"frequency_days" bson:"frequency_days"`
	Params        map[string]string `json:"params,omitempty" bson:"params,omitempty"`
	Active        bool              `json:"active" bson:"active"`
	LastRun       *time.Time        `json:"last_run,omitempty" bson:"last_run,omitempty"`
	LastRunStatus string            `json:"last_run_status,omitempty" bson:"last_run_status,omitempty"`
	NextRun       *time.Time        `json:"next_run,omitempty" bson:"next_run,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
}

// WeeklyCounter tracks contacts created per (week, persona, source), the
// input to the weekly-quota driver and the time-gated traffic lights.
type WeeklyCounter struct {
	WeekKey   string    `json:"week_key" bson:"week_key"` // ISO year-week, e.g. 2026-W35
	PersonaID string    `json:"persona_id" bson:"persona_id"`
	Source    string    `json:"source" bson:"source"`
	Count     int       `json:"count" bson:"count"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
