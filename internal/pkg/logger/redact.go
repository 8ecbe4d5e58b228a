package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactLinkedInURL masks the profile slug of a LinkedIn URL.
// "https://linkedin.com/in/jane-doe" → "https://linkedin.com/in/ja***"
// Non-profile URLs pass through unchanged.
func RedactLinkedInURL(url string) string {
	idx := strings.Index(url, "/in/")
	if idx < 0 {
		return url
	}
	slug := url[idx+4:]
	if len(slug) > 2 {
		slug = slug[:2] + "***"
	} else if slug != "" {
		slug = "***"
	}
	return url[:idx+4] + slug
}
