package validation

import (
	"errors"
	"strings"
	"testing"

	"warden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertValidationErr(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "want *models.AppError, got %v", err)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestReportType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"Normalized", "  SPAM ", "spam", false},
		{"Underscore", "hate_speech", "hate_speech", false},
		{"Free Form", "Fake Giveaway", "fake giveaway", false},
		{"Empty", "   ", "", true},
		{"Too Long", strings.Repeat("a", MaxReportTypeLen+1), "", true},
		{"Exactly Max", strings.Repeat("a", MaxReportTypeLen), strings.Repeat("a", MaxReportTypeLen), false},
		{"Markup", "<script>", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReportType(tt.in)
			if tt.wantErr {
				assertValidationErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReasonAndAdminNote(t *testing.T) {
	t.Parallel()

	r, err := Reason("  link farm  ")
	require.NoError(t, err)
	assert.Equal(t, "link farm", r)

	_, err = Reason(strings.Repeat("é", MaxReasonLen+1))
	assertValidationErr(t, err)

	n, err := AdminNote("", false)
	require.NoError(t, err)
	assert.Empty(t, n)

	_, err = AdminNote("  ", true)
	assertValidationErr(t, err)

	_, err = AdminNote(strings.Repeat("x", MaxAdminNoteLen+1), false)
	assertValidationErr(t, err)
}

func TestGroupSlug(t *testing.T) {
	t.Parallel()
	assert.NoError(t, GroupSlug("book-club-42"))
	assertValidationErr(t, GroupSlug("ab"))
	assertValidationErr(t, GroupSlug("Book-Club"))
	assertValidationErr(t, GroupSlug("-club"))
	assertValidationErr(t, GroupSlug("admin"))
	assertValidationErr(t, GroupSlug(strings.Repeat("a", 49)))
}
