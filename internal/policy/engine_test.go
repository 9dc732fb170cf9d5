package policy

import (
	"testing"
	"time"

	"warden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func group(warnings, pending int) Subject {
	return Subject{
		Kind:               models.SubjectGroup,
		ID:                 7,
		Status:             models.ModerationStatusActive,
		Severity:           DefaultEngine().SeverityFor(warnings),
		WarningCount:       warnings,
		PendingReportCount: pending,
		TotalReportCount:   pending,
		Version:            1,
	}
}

func warn(note string) Action {
	return Action{
		Kind:          ActionSendWarning,
		ActorID:       1,
		ViolationType: models.ViolationSpam,
		AdminNote:     note,
		Now:           fixedNow,
	}
}

func TestSendWarning_FourthToFifthIsCritical(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	d, err := e.Decide(group(4, 2), warn("third offense"))
	require.NoError(t, err)

	assert.Equal(t, ActionSendWarning, d.Action)
	assert.False(t, d.Escalated)
	assert.Equal(t, 5, d.NewWarningCount)
	assert.Equal(t, models.SeverityCritical, d.NewSeverity)
	assert.Equal(t, models.ModerationStatusActive, d.NewStatus)
	require.NotNil(t, d.Warning)
	assert.Equal(t, 5, d.Warning.Sequence)
	require.Len(t, d.Transitions, 1)
	assert.Equal(t, models.ReportStatusResolved, d.Transitions[0].To)
	assert.Equal(t, models.ReportActionWarningSent, d.Transitions[0].ActionTaken)
	assert.Equal(t, 2, d.ExpectedTransitions)
}

func TestSendWarning_SixthEscalatesToDelete(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	s := group(5, 1)
	s.InvestigatingReportCount = 2
	d, err := e.Decide(s, warn("final offense"))
	require.NoError(t, err)

	assert.Equal(t, ActionSendWarning, d.Requested)
	assert.Equal(t, ActionDeleteForSevereViolation, d.Action)
	assert.True(t, d.Escalated)
	assert.Equal(t, models.ModerationStatusDeleted, d.NewStatus)
	assert.Equal(t, 5, d.NewWarningCount)
	assert.Nil(t, d.Warning, "no sixth warning event")
	assert.True(t, d.CascadeRemoval)
	require.Len(t, d.Transitions, 1)
	assert.ElementsMatch(t,
		[]models.ReportStatus{models.ReportStatusPending, models.ReportStatusInvestigating},
		d.Transitions[0].From)
	assert.Equal(t, models.ReportActionGroupSuspended, d.Transitions[0].ActionTaken)
	assert.Equal(t, 3, d.ExpectedTransitions)
	require.NotNil(t, d.Audit)
	assert.Equal(t, "final offense", d.Audit.AdminNote)
}

func TestSendWarning_WarningCountNeverExceedsCap(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	s := group(0, 0)
	for i := 0; i < 10; i++ {
		d, err := e.Decide(s, warn("again"))
		require.NoError(t, err)
		assert.LessOrEqual(t, d.NewWarningCount, e.MaxWarnings())
		s.WarningCount = d.NewWarningCount
		s.Severity = d.NewSeverity
		s.Status = d.NewStatus
		if s.Status == models.ModerationStatusDeleted {
			assert.Equal(t, 5, i, "deletion happens on the sixth call")
			break
		}
	}
	assert.Equal(t, models.ModerationStatusDeleted, s.Status)
}

func TestSendWarning_Validation(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	tests := []struct {
		name    string
		subject Subject
		action  Action
	}{
		{"missing note", group(1, 1), warn("")},
		{"blank note", group(1, 1), warn("   ")},
		{"bad violation", group(1, 1), func() Action { a := warn("x"); a.ViolationType = "rudeness"; return a }()},
		{"post subject", Subject{Kind: models.SubjectPost, ID: 3, Status: models.ModerationStatusActive}, warn("x")},
		{"missing note at cap", group(5, 1), warn("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Decide(tt.subject, tt.action)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

func TestDeleted_IsTerminal(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()
	s := group(5, 0)
	s.Status = models.ModerationStatusDeleted

	for _, kind := range []ActionKind{
		ActionSendWarning,
		ActionMarkInvestigating,
		ActionDismissAllPending,
		ActionDeleteForSevereViolation,
		ActionReviewReport,
	} {
		a := warn("note")
		a.Kind = kind
		_, err := e.Decide(s, a)
		require.Error(t, err, kind)
		assert.True(t, models.IsCode(err, models.CodeTerminalState), "%s: %v", kind, err)
	}
}

func TestDismissAllPending(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	s := group(2, 3)
	s.Status = models.ModerationStatusInvestigating
	d, err := e.Decide(s, Action{Kind: ActionDismissAllPending, Now: fixedNow})
	require.NoError(t, err)
	assert.False(t, d.NoOp)
	assert.Equal(t, models.ModerationStatusActive, d.NewStatus)
	assert.Equal(t, 2, d.NewWarningCount)
	require.Len(t, d.Transitions, 1)
	assert.Equal(t, models.ReportStatusDismissed, d.Transitions[0].To)
	assert.Equal(t, models.ReportActionNone, d.Transitions[0].ActionTaken)
	assert.Equal(t, 3, d.ExpectedTransitions)

	// Nothing pending on an active subject is a zero-effect success.
	d, err = e.Decide(group(2, 0), Action{Kind: ActionDismissAllPending, Now: fixedNow})
	require.NoError(t, err)
	assert.True(t, d.NoOp)
	assert.Empty(t, d.Transitions)
	assert.Nil(t, d.Audit)
}

func TestMarkInvestigating(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	d, err := e.Decide(group(0, 1), Action{Kind: ActionMarkInvestigating, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, models.ModerationStatusInvestigating, d.NewStatus)
	assert.Empty(t, d.Transitions, "reports stay pending while investigated")

	again := group(0, 1)
	again.Status = models.ModerationStatusInvestigating
	d, err = e.Decide(again, Action{Kind: ActionMarkInvestigating, Now: fixedNow})
	require.NoError(t, err)
	assert.True(t, d.NoOp)
	assert.False(t, d.StatusChanged(again))

	_, err = e.Decide(group(0, 0), Action{Kind: ActionMarkInvestigating, Now: fixedNow})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	resolved := group(1, 2)
	resolved.Status = models.ModerationStatusResolved
	d, err = e.Decide(resolved, Action{Kind: ActionMarkInvestigating, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, models.ModerationStatusInvestigating, d.NewStatus)
}

func TestDeleteForSevereViolation(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()

	t.Run("group below cap records a ledger entry", func(t *testing.T) {
		a := warn("csam link")
		a.Kind = ActionDeleteForSevereViolation
		a.ViolationType = models.ViolationIllegalContent
		d, err := e.Decide(group(1, 2), a)
		require.NoError(t, err)
		assert.False(t, d.Escalated)
		assert.Equal(t, models.ModerationStatusDeleted, d.NewStatus)
		assert.Equal(t, models.SeverityCritical, d.NewSeverity)
		assert.Equal(t, 2, d.NewWarningCount)
		require.NotNil(t, d.Warning)
		assert.Equal(t, 2, d.Warning.Sequence)
	})

	t.Run("post settles reports as content removed", func(t *testing.T) {
		a := warn("scam ad")
		a.Kind = ActionDeleteForSevereViolation
		a.ViolationType = models.ViolationScam
		post := Subject{Kind: models.SubjectPost, ID: 9, Status: models.ModerationStatusInvestigating, PendingReportCount: 1}
		d, err := e.Decide(post, a)
		require.NoError(t, err)
		assert.Nil(t, d.Warning)
		assert.Equal(t, 0, d.NewWarningCount)
		require.Len(t, d.Transitions, 1)
		assert.Equal(t, models.ReportActionContentRemoved, d.Transitions[0].ActionTaken)
	})

	t.Run("note required", func(t *testing.T) {
		a := warn("")
		a.Kind = ActionDeleteForSevereViolation
		_, err := e.Decide(group(0, 1), a)
		assert.True(t, models.IsCode(err, models.CodeValidation))
	})
}

func TestReviewReport(t *testing.T) {
	t.Parallel()
	e := DefaultEngine()
	s := group(0, 1)

	review := func(from, to models.ReportStatus) (Decision, error) {
		return e.Decide(s, Action{
			Kind:         ActionReviewReport,
			Report:       &ReportRef{ID: 11, Status: from},
			ReviewStatus: to,
			Now:          fixedNow,
		})
	}

	d, err := review(models.ReportStatusPending, models.ReportStatusInvestigating)
	require.NoError(t, err)
	require.Len(t, d.Transitions, 1)
	assert.Equal(t, uint(11), d.Transitions[0].ReportID)

	d, err = review(models.ReportStatusInvestigating, models.ReportStatusDismissed)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusDismissed, d.Transitions[0].To)

	d, err = review(models.ReportStatusDismissed, models.ReportStatusDismissed)
	require.NoError(t, err)
	assert.True(t, d.NoOp)

	_, err = review(models.ReportStatusResolved, models.ReportStatusInvestigating)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = review(models.ReportStatusPending, models.ReportStatusResolved)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(MustParseSeverityTable(DefaultSeverityTable), 0)
	assert.Error(t, err)

	_, err = NewEngine(SeverityTable{{MinWarnings: 1, Severity: models.SeverityLow}}, 5)
	assert.Error(t, err)
}
