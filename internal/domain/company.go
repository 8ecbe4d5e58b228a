package domain

import "time"

// CompanySource tags how a company document came to exist.
const (
	CompanySourceManual         = "manual"
	CompanySourceAutoCreated    = "auto_created"
	CompanySourceLinkedInImport = "linkedin_import"
)

// Company is keyed by NormalizedName (lowercased, trimmed), which carries a
// unique index. Companies created by the import or contact-association path
// stay inactive until an operator promotes them.
type Company struct {
	ID             string    `json:"id" bson:"id"`
	Name           string    `json:"name" bson:"name"`
	NormalizedName string    `json:"normalized_name" bson:"normalized_name"`
	Aliases        []string  `json:"aliases" bson:"aliases"`
	Domains        []string  `json:"domains" bson:"domains"`
	Classification string    `json:"classification,omitempty" bson:"classification,omitempty"`
	IsActive       bool      `json:"is_active" bson:"is_active"`
	Source         string    `json:"source" bson:"source"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}
