package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactLinkedInURL(t *testing.T) {
	assert.Equal(t, "https://linkedin.com/in/ja***", RedactLinkedInURL("https://linkedin.com/in/jane-doe"))
	assert.Equal(t, "https://linkedin.com/in/***", RedactLinkedInURL("https://linkedin.com/in/j"))
	assert.Equal(t, "https://linkedin.com/company/acme", RedactLinkedInURL("https://linkedin.com/company/acme"))
}
