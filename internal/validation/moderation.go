// Package validation normalizes and checks free-text moderation input.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"warden/internal/models"
)

const (
	MaxReportTypeLen = 64
	MaxReasonLen     = 2000
	MaxAdminNoteLen  = 2000
)

var (
	reportTypeRegex = regexp.MustCompile(`^[a-z0-9_ -]+$`)
	groupSlugRegex  = regexp.MustCompile(`^[a-z0-9-]{3,48}$`)
)

var reservedGroupSlugs = map[string]struct{}{
	"admin":    {},
	"api":      {},
	"groups":   {},
	"posts":    {},
	"reports":  {},
	"users":    {},
	"ws":       {},
	"swagger":  {},
	"metrics":  {},
	"health":   {},
	"settings": {},
}

// ReportType lowercases and trims raw, then checks it is present, short and
// plain. Types are free-form so clients can send categories this service
// does not enumerate.
func ReportType(raw string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case t == "":
		return "", models.NewValidationError("Report type is required")
	case utf8.RuneCountInString(t) > MaxReportTypeLen:
		return "", models.NewValidationError(fmt.Sprintf("Report type too long (max %d characters)", MaxReportTypeLen))
	case !reportTypeRegex.MatchString(t):
		return "", models.NewValidationError("Report type may only contain letters, digits, spaces, '_' and '-'")
	}
	return t, nil
}

// Reason trims an optional reason and bounds its length.
func Reason(raw string) (string, error) {
	r := strings.TrimSpace(raw)
	if utf8.RuneCountInString(r) > MaxReasonLen {
		return "", models.NewValidationError(fmt.Sprintf("Reason too long (max %d characters)", MaxReasonLen))
	}
	return r, nil
}

// AdminNote trims a moderator note. required rejects blank notes.
func AdminNote(raw string, required bool) (string, error) {
	n := strings.TrimSpace(raw)
	if required && n == "" {
		return "", models.NewValidationError("Admin note is required")
	}
	if utf8.RuneCountInString(n) > MaxAdminNoteLen {
		return "", models.NewValidationError(fmt.Sprintf("Admin note too long (max %d characters)", MaxAdminNoteLen))
	}
	return n, nil
}

// GroupSlug validates slug format and reserved names.
func GroupSlug(slug string) error {
	if !groupSlugRegex.MatchString(slug) {
		return models.NewValidationError("slug must be 3-48 characters of lowercase letters, numbers and hyphens")
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return models.NewValidationError("slug cannot start or end with a hyphen")
	}
	if _, reserved := reservedGroupSlugs[slug]; reserved {
		return models.NewValidationError("slug is reserved")
	}
	return nil
}
