package maintenance

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSubject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		subject string
		body    string
	}{
		{
			name:    "plain first line",
			input:   "Weekly wins\n<p>Hello</p>",
			subject: "Weekly wins",
			body:    "<p>Hello</p>",
		},
		{
			name:    "subject prefix stripped",
			input:   "Subject: Big news\n<p>Body</p>",
			subject: "Big news",
			body:    "<p>Body</p>",
		},
		{
			name:    "multi line body preserved",
			input:   "Title\nline one\nline two",
			subject: "Title",
			body:    "line one\nline two",
		},
		{
			name:    "single line falls back to full text body",
			input:   "Only a title",
			subject: "Only a title",
			body:    "Only a title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := splitSubject(tt.input)
			assert.Equal(t, tt.subject, subject)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestSplitSubjectEmptyInput(t *testing.T) {
	subject, _ := splitSubject("")
	assert.Equal(t, "Weekly update", subject)
}

func TestWithFooter(t *testing.T) {
	bare := &Newsletters{}
	assert.Equal(t, "<p>Hi</p>", bare.withFooter("<p>Hi</p>"))

	linked := &Newsletters{frontendURL: "https://app.example.com/"}
	html := linked.withFooter("<p>Hi</p>")
	assert.Contains(t, html, `href="https://app.example.com/preferences"`)
	assert.Contains(t, html, "<p>Hi</p>")
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, nameKey("Jane", "Doe"), nameKey(" JANE ", "doe"))
	assert.Equal(t, "jane|doe", nameKey("Jane", "Doe"))
	assert.NotEqual(t, nameKey("Jane", "Doe"), nameKey("Jane", "Roe"))

	// Punctuation and accents in the ASCII range are stripped, not folded.
	assert.Equal(t, "oconnor|smith", nameKey("O'Connor", "Smith"))

	// A contact with no usable name never groups.
	assert.Equal(t, "", nameKey("", ""))
	assert.Equal(t, "", nameKey("  ", "--"))
}

func newTestCaches(t *testing.T) (*Caches, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCaches(nil, client), client
}

func TestMergeCandidatesColdCache(t *testing.T) {
	c, _ := newTestCaches(t)

	pairs, err := c.MergeCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestMergeCandidatesRoundTrip(t *testing.T) {
	c, client := newTestCaches(t)
	ctx := context.Background()

	seeded := []MergeCandidate{
		{ContactA: "a", ContactB: "b", Reason: "same_company_and_name"},
		{ContactA: "a", ContactB: "c", Reason: "same_name"},
	}
	data, err := json.Marshal(seeded)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, mergeCandidatesKey, data, mergeCandidatesTTL).Err())

	pairs, err := c.MergeCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, seeded, pairs)
}

func TestClassifierMetricsSnapshotColdCache(t *testing.T) {
	c, _ := newTestCaches(t)

	_, ok, err := c.ClassifierMetricsSnapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
