package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/domain"
)

func TestResolveColumns(t *testing.T) {
	headers := []string{"First Name", "Last Name", "Email Address", "URL"}
	mapping := map[string]string{
		"First Name":    FieldFirstName,
		"Last Name":     FieldLastName,
		"Email Address": FieldEmail,
		"URL":           FieldLinkedInURL,
	}

	idx, err := resolveColumns(headers, mapping)
	require.NoError(t, err)
	assert.Equal(t, 0, idx[FieldFirstName])
	assert.Equal(t, 2, idx[FieldEmail])
	assert.Equal(t, 3, idx[FieldLinkedInURL])
}

func TestResolveColumnsRequiresIdentifier(t *testing.T) {
	headers := []string{"First Name"}
	_, err := resolveColumns(headers, map[string]string{"First Name": FieldFirstName})
	assert.Error(t, err)
}

func TestResolveColumnsUnknownHeader(t *testing.T) {
	_, err := resolveColumns([]string{"Email"}, map[string]string{"Correo": FieldEmail})
	assert.Error(t, err)
}

func TestCellHandlesShortRecords(t *testing.T) {
	idx := map[string]int{FieldEmail: 2}
	assert.Equal(t, "", cell([]string{"a", "b"}, idx, FieldEmail))
	assert.Equal(t, "x", cell([]string{"a", "b", " x "}, idx, FieldEmail))
	assert.Equal(t, "", cell([]string{"a", "b", "c"}, idx, FieldFirstName))
}

func updateModel(t *testing.T, m mongo.WriteModel) *mongo.UpdateOneModel {
	t.Helper()
	um, ok := m.(*mongo.UpdateOneModel)
	require.True(t, ok)
	return um
}

func setClause(t *testing.T, m *mongo.UpdateOneModel) bson.M {
	t.Helper()
	update, ok := m.Update.(bson.M)
	require.True(t, ok)
	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	return set
}

func TestMergeModelFillsEmptyNamesOnly(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{firstName: "Jane", lastName: "Doe", email: "jane@example.com"}
	existing := &domain.Contact{ID: "c1", FirstName: "Janet", Email: "jane@example.com",
		Emails: []domain.ContactEmail{{Email: "jane@example.com", IsPrimary: true}}}

	m := updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, nil, true))
	set := setClause(t, m)

	_, renamed := set["first_name"]
	assert.False(t, renamed, "existing first name must not be overwritten")
	assert.Equal(t, "Doe", set["last_name"])
	assert.Equal(t, "accepted", set["stage_1_status"])
}

func TestMergeModelJobTitleChangeReclassifies(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{email: "x@example.com", jobTitle: "VP Marketing"}
	existing := &domain.Contact{ID: "c1", Email: "x@example.com", JobTitle: "Engineer"}
	result := classifier.Result{PersonaID: "sofia", PersonaName: "Sofia", NormalizedTitle: "vp marketing"}

	set := setClause(t, updateModel(t, w.mergeModel(job, row, existing, result, nil, true)))
	assert.Equal(t, "VP Marketing", set["job_title"])
	assert.Equal(t, "vp marketing", set["job_title_normalized"])
	assert.Equal(t, "sofia", set["buyer_persona"])
}

func TestMergeModelSameTitleDifferentCaseNoOverwrite(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{email: "x@example.com", jobTitle: "ENGINEER"}
	existing := &domain.Contact{ID: "c1", Email: "x@example.com", JobTitle: "Engineer"}

	set := setClause(t, updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, nil, true)))
	_, changed := set["job_title"]
	assert.False(t, changed)
}

func TestMergeModelLockedPersonaKeepsPersona(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{email: "x@example.com", jobTitle: "VP Marketing"}
	existing := &domain.Contact{ID: "c1", Email: "x@example.com", JobTitle: "Engineer", PersonaLocked: true}
	result := classifier.Result{PersonaID: "sofia", PersonaName: "Sofia", NormalizedTitle: "vp marketing"}

	set := setClause(t, updateModel(t, w.mergeModel(job, row, existing, result, nil, true)))
	assert.Equal(t, "VP Marketing", set["job_title"])
	_, reclassified := set["buyer_persona"]
	assert.False(t, reclassified)
}

func TestMergeModelConflictNeverTouchesLinkedIn(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{
		email:       "x@example.com",
		linkedinURL: "https://linkedin.com/in/other",
		normURL:     "https://linkedin.com/in/other",
	}
	existing := &domain.Contact{ID: "c1", Email: "x@example.com"}

	set := setClause(t, updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, nil, false)))
	_, touched := set["linkedin_url_normalized"]
	assert.False(t, touched)
}

func TestMergeModelSetsLinkedInWhenAbsent(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{
		email:       "x@example.com",
		linkedinURL: "https://linkedin.com/in/jane",
		normURL:     "https://linkedin.com/in/jane",
	}
	existing := &domain.Contact{ID: "c1", Email: "x@example.com"}

	set := setClause(t, updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, nil, true)))
	assert.Equal(t, "https://linkedin.com/in/jane", set["linkedin_url_normalized"])
}

func TestMergeModelAppendsSecondaryEmail(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{email: "new@example.com", normURL: "https://linkedin.com/in/jane"}
	existing := &domain.Contact{
		ID:                    "c1",
		Email:                 "old@example.com",
		Emails:                []domain.ContactEmail{{Email: "old@example.com", IsPrimary: true}},
		LinkedInURLNormalized: "https://linkedin.com/in/jane",
	}

	m := updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, nil, true))
	update := m.Update.(bson.M)
	push, ok := update["$push"].(bson.M)
	require.True(t, ok)
	entry, ok := push["emails"].(domain.ContactEmail)
	require.True(t, ok)
	assert.Equal(t, "new@example.com", entry.Email)
	assert.False(t, entry.IsPrimary)
}

func TestMergeModelCompanyPrimaryThenSecondary(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	companies := map[string]domain.Company{
		"acme": {ID: "co1", Name: "Acme", NormalizedName: "acme"},
	}

	// No primary yet: the import company becomes primary.
	row := &parsedRow{email: "x@example.com", company: "Acme"}
	existing := &domain.Contact{ID: "c1", Email: "x@example.com"}
	m := updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, companies, true))
	set := setClause(t, m)
	assert.Equal(t, "Acme", set["company"])
	push := m.Update.(bson.M)["$push"].(bson.M)
	entry := push["companies"].(domain.ContactCompany)
	assert.True(t, entry.IsPrimary)

	// Primary exists: the import company is appended secondary.
	existing = &domain.Contact{ID: "c2", Email: "x@example.com",
		Companies: []domain.ContactCompany{{CompanyID: "co9", CompanyName: "Other", IsPrimary: true}}}
	m = updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, companies, true))
	set = setClause(t, m)
	_, overwrote := set["company"]
	assert.False(t, overwrote)
	entry = m.Update.(bson.M)["$push"].(bson.M)["companies"].(domain.ContactCompany)
	assert.False(t, entry.IsPrimary)

	// Already linked: nothing appended.
	existing = &domain.Contact{ID: "c3", Email: "x@example.com",
		Companies: []domain.ContactCompany{{CompanyID: "co1", CompanyName: "Acme", IsPrimary: true}}}
	m = updateModel(t, w.mergeModel(job, row, existing, classifier.Result{}, companies, true))
	_, pushed := m.Update.(bson.M)["$push"]
	assert.False(t, pushed)
}

func TestMergeModelFirstConnectedOnSetOnce(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB"}
	row := &parsedRow{email: "x@example.com", connectedOn: "2024-08-12"}

	set := setClause(t, updateModel(t, w.mergeModel(job, row,
		&domain.Contact{ID: "c1", Email: "x@example.com"}, classifier.Result{}, nil, true)))
	assert.Equal(t, "2024-08-12", set["first_connected_on_linkedin"])

	set = setClause(t, updateModel(t, w.mergeModel(job, row,
		&domain.Contact{ID: "c1", Email: "x@example.com", FirstConnectedOnLinkedIn: "2020-01-01"},
		classifier.Result{}, nil, true)))
	_, changed := set["first_connected_on_linkedin"]
	assert.False(t, changed)
}

func TestInsertModelKeyedByURLOverEmail(t *testing.T) {
	w := &Worker{}
	job := &domain.ImportJob{JobID: "j1", Profile: "GB", FileName: "conns.csv"}
	result := classifier.Result{PersonaID: "mateo", PersonaName: "Mateo"}

	row := &parsedRow{email: "x@example.com", normURL: "https://linkedin.com/in/x", linkedinURL: "https://linkedin.com/in/x"}
	m := updateModel(t, w.insertModel(job, row, result, nil))
	assert.True(t, *m.Upsert)
	filter := m.Filter.(bson.M)
	assert.Equal(t, "https://linkedin.com/in/x", filter["linkedin_url_normalized"])

	row = &parsedRow{email: "x@example.com"}
	m = updateModel(t, w.insertModel(job, row, result, nil))
	filter = m.Filter.(bson.M)
	assert.Equal(t, "x@example.com", filter["email"])

	contact := m.Update.(bson.M)["$setOnInsert"].(domain.Contact)
	assert.Equal(t, domain.StageConnected, contact.Stage)
	assert.Equal(t, "accepted", contact.Stage1Status)
	assert.Equal(t, []string{"GB"}, contact.LinkedInAcceptedBy)
	require.Len(t, contact.Emails, 1)
	assert.True(t, contact.Emails[0].IsPrimary)
}

func TestParsedRowIdentifiers(t *testing.T) {
	r := &parsedRow{email: "a@b.com", normURL: "https://linkedin.com/in/a"}
	assert.Equal(t, []string{"url:https://linkedin.com/in/a", "email:a@b.com"}, r.identifiers())

	r = &parsedRow{email: "a@b.com"}
	assert.Equal(t, []string{"email:a@b.com"}, r.identifiers())

	r = &parsedRow{}
	assert.Empty(t, r.identifiers())
}

func TestEmailPattern(t *testing.T) {
	assert.True(t, emailPattern.MatchString("jane@example.com"))
	assert.True(t, emailPattern.MatchString("a.b+c@sub.example.co"))
	assert.False(t, emailPattern.MatchString("not-an-email"))
	assert.False(t, emailPattern.MatchString("a@b"))
	assert.False(t, emailPattern.MatchString("a b@example.com"))
}
