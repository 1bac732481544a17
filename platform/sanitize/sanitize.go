// Package sanitize provides text sanitization and redaction utilities for
// user-provided message content.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// phoneRegex matches phone-number-looking runs (7+ digits with separators).
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
	// emailRegex matches email addresses.
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a string for safe text storage by stripping HTML
// and normalizing whitespace.
func Text(s string) string {
	return StripHTML(s)
}

// Redact masks phone numbers and email addresses embedded in message
// bodies before they are persisted to the conversation log.
func Redact(s string) string {
	result := phoneRegex.ReplaceAllString(s, "[phone]")
	result = emailRegex.ReplaceAllString(result, "[email]")
	return result
}

// RedactText strips HTML and redacts contact details in one pass. Used for
// every logged message body.
func RedactText(s string) string {
	return Redact(Text(s))
}
