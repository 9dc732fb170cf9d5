package server

import (
	"fmt"
	"net/http"
	"testing"

	"warden/internal/models"
	"warden/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationRoutes_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	member := env.user(t, "member", false)

	resp := env.do(t, http.MethodGet, "/api/admin/moderation/groups/reports", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/moderation/groups/reports", member.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/moderation/groups/reports", admin.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetGroupedReports(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "noisy")
	env.report(t, models.SubjectGroup, g.ID, 10, models.ReportStatusPending)
	env.report(t, models.SubjectGroup, g.ID, 11, models.ReportStatusPending)
	ad := env.post(t, owner.ID, true)
	env.post(t, owner.ID, false)
	env.report(t, models.SubjectPost, ad.ID, 12, models.ReportStatusPending)

	resp := env.do(t, http.MethodGet, "/api/admin/moderation/groups/reports?sort=report_count&order=desc", admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res service.GroupedReportsResult
	decodeBody(t, resp, &res)
	require.Len(t, res.Data, 1)
	assert.Equal(t, g.ID, res.Data[0].Subject.ID)
	assert.Equal(t, 2, res.Data[0].ReportCount)
	assert.Equal(t, map[string]int{"spam": 2}, res.Data[0].ReportTypeCount)
	assert.EqualValues(t, 1, res.Pagination.Total)
	require.NotNil(t, res.Stats)

	resp = env.do(t, http.MethodGet, "/api/admin/moderation/ads/reports", admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = service.GroupedReportsResult{}
	decodeBody(t, resp, &res)
	require.Len(t, res.Data, 1)
	assert.True(t, res.Data[0].Subject.IsAd)

	resp = env.do(t, http.MethodGet, "/api/admin/moderation/groups/reports?status=open", admin.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/admin/moderation/comments/reports", admin.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetModerationStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "g")
	env.report(t, models.SubjectGroup, g.ID, 5, models.ReportStatusPending)
	env.report(t, models.SubjectGroup, g.ID, 6, models.ReportStatusDismissed)

	resp := env.do(t, http.MethodGet, "/api/admin/moderation/groups/stats", admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]interface{}
	decodeBody(t, resp, &stats)
	assert.NotEmpty(t, stats)
}

func TestDismissPendingReports(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "g")
	env.report(t, models.SubjectGroup, g.ID, 5, models.ReportStatusPending)
	env.report(t, models.SubjectGroup, g.ID, 6, models.ReportStatusPending)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/moderation/groups/%d/dismiss", g.ID), admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary service.ActionSummary
	decodeBody(t, resp, &summary)
	assert.EqualValues(t, 2, summary.DismissedCount)
	assert.Equal(t, models.ModerationStatusActive, summary.NewStatus)

	var pending int64
	require.NoError(t, env.db.Model(&models.Report{}).Where("status = ?", models.ReportStatusPending).Count(&pending).Error)
	assert.Zero(t, pending)

	resp = env.do(t, http.MethodPost, "/api/admin/moderation/groups/999/dismiss", admin.ID, noteRequest{AdminNote: "n/a"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarkInvestigating_Routes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	first := env.group(t, owner.ID, "first")
	second := env.group(t, owner.ID, "second")
	env.report(t, models.SubjectGroup, first.ID, 5, models.ReportStatusPending)
	env.report(t, models.SubjectGroup, second.ID, 5, models.ReportStatusPending)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/moderation/groups/%d/investigate", first.ID), admin.ID, noteRequest{AdminNote: "looking"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary service.ActionSummary
	decodeBody(t, resp, &summary)
	assert.EqualValues(t, 1, summary.TransitionedReports)
	assert.False(t, summary.NoOp)

	resp = env.do(t, http.MethodPost, "/api/admin/moderation/groups/investigate/bulk", admin.ID,
		bulkRequest{IDs: []uint{first.ID, second.ID, 999}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bulk service.BulkResult
	decodeBody(t, resp, &bulk)
	assert.True(t, bulk.Partial)
	assert.Len(t, bulk.Succeeded, 2)
	require.Len(t, bulk.Failed, 1)
	assert.Equal(t, uint(999), bulk.Failed[0].ID)
	assert.Equal(t, models.CodeNotFound, bulk.Failed[0].Code)

	resp = env.do(t, http.MethodPost, "/api/admin/moderation/groups/investigate/bulk", admin.ID, bulkRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGroupWarnings_Routes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "g")
	env.report(t, models.SubjectGroup, g.ID, 5, models.ReportStatusPending)
	path := fmt.Sprintf("/api/admin/moderation/groups/%d/warnings", g.ID)

	resp := env.do(t, http.MethodPost, path, admin.ID, violationRequest{ViolationType: "spam"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody models.ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Equal(t, models.CodeValidation, errBody.Code)

	resp = env.do(t, http.MethodPost, path, admin.ID, violationRequest{ViolationType: "SPAM", AdminNote: "first strike"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		WarningCount    int                     `json:"warningCount"`
		Severity        models.Severity         `json:"severity"`
		ResolvedReports int64                   `json:"resolvedReports"`
		GroupStatus     models.ModerationStatus `json:"groupStatus"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, 1, body.WarningCount)
	assert.Equal(t, models.SeverityLow, body.Severity)
	assert.EqualValues(t, 1, body.ResolvedReports)
	assert.Equal(t, models.ModerationStatusActive, body.GroupStatus)

	resp = env.do(t, http.MethodGet, path, admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ledger struct {
		Data []models.WarningEvent `json:"data"`
	}
	decodeBody(t, resp, &ledger)
	require.Len(t, ledger.Data, 1)
	assert.Equal(t, "first strike", ledger.Data[0].AdminNote)

	resp = env.do(t, http.MethodGet, "/api/admin/moderation/groups/999/warnings", admin.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteForSevereViolation_Routes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	author := env.user(t, "author", false)
	p := env.post(t, author.ID, false)
	env.report(t, models.SubjectPost, p.ID, 5, models.ReportStatusPending)
	path := fmt.Sprintf("/api/admin/moderation/posts/%d/delete", p.ID)
	req := violationRequest{ViolationType: "scam", AdminNote: "phishing link"}

	resp := env.do(t, http.MethodPost, path, admin.ID, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary service.ActionSummary
	decodeBody(t, resp, &summary)
	assert.Equal(t, models.ModerationStatusDeleted, summary.NewStatus)
	assert.EqualValues(t, 1, summary.ResolvedReports)

	resp = env.do(t, http.MethodPost, path, admin.ID, req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var errBody models.ErrorResponse
	decodeBody(t, resp, &errBody)
	assert.Equal(t, models.CodeTerminalState, errBody.Code)
	assert.False(t, errBody.Retryable)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/moderation/posts/%d/dismiss", p.ID), admin.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReviewReport_Route(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "g")
	r := env.report(t, models.SubjectGroup, g.ID, 5, models.ReportStatusPending)
	path := fmt.Sprintf("/api/admin/reports/%d/review", r.ID)

	resp := env.do(t, http.MethodPost, path, admin.ID, reviewRequest{Status: "Dismissed", AdminNote: "not spam"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res service.ReviewResult
	decodeBody(t, resp, &res)
	require.NotNil(t, res.Report)
	assert.Equal(t, models.ReportStatusDismissed, res.Report.Status)

	resp = env.do(t, http.MethodPost, path, admin.ID, reviewRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/admin/reports/999/review", admin.ID, reviewRequest{Status: "resolved"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Resolving is reserved for warnings and deletions.
	open := env.report(t, models.SubjectGroup, g.ID, 6, models.ReportStatusPending)
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/reports/%d/review", open.ID), admin.ID, reviewRequest{Status: "resolved"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/reports/%d/review", open.ID), admin.ID, reviewRequest{Status: "investigating"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetModerationAudit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "g")
	other := env.group(t, owner.ID, "other")
	env.report(t, models.SubjectGroup, g.ID, 5, models.ReportStatusPending)
	env.report(t, models.SubjectGroup, other.ID, 5, models.ReportStatusPending)

	for _, id := range []uint{g.ID, other.ID} {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/moderation/groups/%d/dismiss", id), admin.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/moderation/audit?subject_kind=groups&subject_id=%d", g.ID), admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data  []models.ModerationAudit `json:"data"`
		Total int64                    `json:"total"`
	}
	decodeBody(t, resp, &body)
	assert.EqualValues(t, 1, body.Total)
	require.Len(t, body.Data, 1)
	assert.Equal(t, g.ID, body.Data[0].SubjectID)
	assert.Equal(t, admin.ID, body.Data[0].ActorID)
}

func TestGetFeatureFlags(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)

	resp := env.do(t, http.MethodGet, "/api/admin/feature-flags", admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Evaluated map[string]bool `json:"evaluated"`
	}
	decodeBody(t, resp, &body)
	assert.True(t, body.Evaluated["reporter_notices"])
	assert.False(t, body.Evaluated["creator_notices"])
}
