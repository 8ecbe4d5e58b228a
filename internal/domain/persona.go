package domain

import "time"

// DefaultPersonaID is assigned when no keyword matches a job title.
const DefaultPersonaID = "mateo"

// Keyword maps a normalized keyword to its owning persona. The normalized
// form carries a unique index; ownership collisions are resolved by persona
// priority (lower number wins).
type Keyword struct {
	ID                string     `json:"id" bson:"id"`
	KeywordNormalized string     `json:"keyword_normalized" bson:"keyword_normalized"`
	PersonaID         string     `json:"persona_id" bson:"persona_id"`
	PersonaName       string     `json:"persona_name" bson:"persona_name"`
	LastUsed          *time.Time `json:"last_used,omitempty" bson:"last_used,omitempty"`
	UseCount          int        `json:"use_count" bson:"use_count"`
	ContactsFound     int        `json:"contacts_found" bson:"contacts_found"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
}

// PersonaPriority orders personas for keyword-ownership tie breaks.
// Lower priority numbers win.
type PersonaPriority struct {
	PersonaID   string `json:"persona_id" bson:"persona_id"`
	PersonaName string `json:"persona_name" bson:"persona_name"`
	Priority    int    `json:"priority" bson:"priority"`
}
