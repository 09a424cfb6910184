package util

import (
	"html"
	"strings"
)

// SanitizeInput trims and escapes HTML/script-like characters from free-form
// profile fields before they are forwarded to the backend.
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
