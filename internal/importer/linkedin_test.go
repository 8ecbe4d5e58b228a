package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLinkedInURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.linkedin.com/in/JaneDoe/", "https://www.linkedin.com/in/janedoe"},
		{"https://www.linkedin.com/in/janedoe?utm_source=share", "https://www.linkedin.com/in/janedoe"},
		{"https://www.linkedin.com/in/janedoe/overlay/contact-info/", "https://www.linkedin.com/in/janedoe"},
		{"  https://linkedin.com/in/janedoe  ", "https://linkedin.com/in/janedoe"},
		{"https://www.linkedin.com/in/janedoe/overlay/about-this-profile/?foo=1", "https://www.linkedin.com/in/janedoe"},
	}
	for _, tc := range cases {
		got, err := NormalizeLinkedInURL(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeLinkedInURLIdempotent(t *testing.T) {
	once, err := NormalizeLinkedInURL("https://www.linkedin.com/in/JaneDoe/?src=x")
	assert.NoError(t, err)
	twice, err := NormalizeLinkedInURL(once)
	assert.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeLinkedInURLRejectsEmpty(t *testing.T) {
	_, err := NormalizeLinkedInURL("")
	assert.ErrorIs(t, err, ErrInvalidLinkedInURL)

	_, err = NormalizeLinkedInURL("   ")
	assert.ErrorIs(t, err, ErrInvalidLinkedInURL)

	_, err = NormalizeLinkedInURL("?only=query")
	assert.ErrorIs(t, err, ErrInvalidLinkedInURL)
}
