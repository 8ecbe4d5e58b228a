package domain

import "time"

// ContactStage is the pipeline stage a contact sits in (1..5).
type ContactStage int

const (
	StageConnected ContactStage = 1
	StageEngaged   ContactStage = 2
	StageQualified ContactStage = 3
	StageWon       ContactStage = 4
	StageDormant   ContactStage = 5
)

// ContactEmail is one address in a contact's email list. Exactly one entry
// may carry IsPrimary when any primary exists.
type ContactEmail struct {
	Email     string `json:"email" bson:"email"`
	IsPrimary bool   `json:"is_primary" bson:"is_primary"`
}

// ContactCompany links a contact to a company. At most one entry is primary.
type ContactCompany struct {
	CompanyID   string `json:"company_id" bson:"company_id"`
	CompanyName string `json:"company_name" bson:"company_name"`
	IsPrimary   bool   `json:"is_primary" bson:"is_primary"`
}

// WebinarAttendance records a contact's relationship to one webinar event.
type WebinarAttendance struct {
	EventID      string    `json:"event_id" bson:"event_id"`
	Status       string    `json:"status" bson:"status"` // registered, attended, no_show
	RegisteredAt time.Time `json:"registered_at" bson:"registered_at"`
}

// Contact is the unified identity for a person across import sources.
// Deduplication runs on two identifier namespaces: the email list and the
// normalized LinkedIn URL.
type Contact struct {
	ID string `json:"id" bson:"id"`

	Email  string         `json:"email" bson:"email"` // primary address
	Emails []ContactEmail `json:"emails" bson:"emails"`

	LinkedInURL           string `json:"linkedin_url" bson:"linkedin_url"`
	LinkedInURLNormalized string `json:"linkedin_url_normalized,omitempty" bson:"linkedin_url_normalized,omitempty"`

	Name      string `json:"name" bson:"name"`
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`

	JobTitle           string `json:"job_title" bson:"job_title"`
	JobTitleNormalized string `json:"job_title_normalized" bson:"job_title_normalized"`

	Company   string           `json:"company" bson:"company"` // primary company display name
	CompanyID string           `json:"company_id" bson:"company_id"`
	Companies []ContactCompany `json:"companies" bson:"companies"`

	Stage        ContactStage `json:"stage" bson:"stage"`
	Stage1Status string       `json:"stage_1_status,omitempty" bson:"stage_1_status,omitempty"`
	Stage2Status string       `json:"stage_2_status,omitempty" bson:"stage_2_status,omitempty"`
	Stage3Status string       `json:"stage_3_status,omitempty" bson:"stage_3_status,omitempty"`
	Stage4Status string       `json:"stage_4_status,omitempty" bson:"stage_4_status,omitempty"`
	Stage5Status string       `json:"stage_5_status,omitempty" bson:"stage_5_status,omitempty"`

	BuyerPersona     string `json:"buyer_persona,omitempty" bson:"buyer_persona,omitempty"`
	BuyerPersonaName string `json:"buyer_persona_name,omitempty" bson:"buyer_persona_name,omitempty"`
	PersonaLocked    bool   `json:"persona_locked" bson:"persona_locked"`

	Webinars []WebinarAttendance `json:"webinars,omitempty" bson:"webinars,omitempty"`

	Source        string `json:"source" bson:"source"`
	SourceDetails string `json:"source_details,omitempty" bson:"source_details,omitempty"`

	// LinkedInAcceptedBy holds the profiles whose import marked this
	// contact as connected (stage 1 accepted).
	LinkedInAcceptedBy []string `json:"linkedin_accepted_by,omitempty" bson:"linkedin_accepted_by,omitempty"`

	// FirstConnectedOnLinkedIn is an ISO date (YYYY-MM-DD), absent when
	// the source row carried no parseable date.
	FirstConnectedOnLinkedIn string `json:"first_connected_on_linkedin,omitempty" bson:"first_connected_on_linkedin,omitempty"`

	// Email-cadence sentinels keyed by rule name, e.g.
	// last_email_followup_sent / last_email_followup_content.
	LastEmailSent    map[string]time.Time `json:"last_email_sent,omitempty" bson:"last_email_sent,omitempty"`
	LastEmailContent map[string]string    `json:"last_email_content,omitempty" bson:"last_email_content,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// PrimaryEmail returns the address flagged primary, falling back to the
// top-level Email field.
func (c *Contact) PrimaryEmail() string {
	for _, e := range c.Emails {
		if e.IsPrimary {
			return e.Email
		}
	}
	return c.Email
}

// HasEmail reports whether addr (already lowercased) is in the email list.
func (c *Contact) HasEmail(addr string) bool {
	if c.Email == addr {
		return true
	}
	for _, e := range c.Emails {
		if e.Email == addr {
			return true
		}
	}
	return false
}

// PrimaryCompany returns the primary entry of Companies, if any.
func (c *Contact) PrimaryCompany() (ContactCompany, bool) {
	for _, cc := range c.Companies {
		if cc.IsPrimary {
			return cc, true
		}
	}
	return ContactCompany{}, false
}

// HasCompany reports whether the company id is already linked.
func (c *Contact) HasCompany(companyID string) bool {
	for _, cc := range c.Companies {
		if cc.CompanyID == companyID {
			return true
		}
	}
	return false
}
