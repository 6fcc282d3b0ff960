// Package phone normalizes Spanish phone numbers to E.164.
package phone

import (
	"regexp"
	"strings"
)

var (
	separators  = regexp.MustCompile(`[\s\-().]`)
	spanishE164 = regexp.MustCompile(`^\+34[6-9]\d{8}$`)
)

// NormalizeES converts a free-form Spanish number to +34XXXXXXXXX.
// It accepts 0034 and 34 prefixes and bare national numbers, and rejects
// anything that is not a 9-digit number starting with 6, 7, 8 or 9.
func NormalizeES(raw string) (string, bool) {
	cleaned := separators.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "0034") {
		cleaned = "+34" + cleaned[4:]
	}
	if !strings.HasPrefix(cleaned, "+") {
		if strings.HasPrefix(cleaned, "34") {
			cleaned = "+" + cleaned
		} else {
			cleaned = "+34" + cleaned
		}
	}
	if !spanishE164.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}
