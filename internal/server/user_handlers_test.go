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

func TestGetMyProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "someone", false)

	resp := env.do(t, http.MethodGet, "/api/users/me", u.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body models.User
	decodeBody(t, resp, &body)
	assert.Equal(t, u.ID, body.ID)
	assert.False(t, body.IsAdmin)
}

func TestBanAndUnbanUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	target := env.user(t, "target", false)
	owner := env.user(t, "owner", false)
	g := env.group(t, owner.ID, "g")
	banPath := fmt.Sprintf("/api/admin/users/%d/ban", target.ID)

	resp := env.do(t, http.MethodPost, banPath, admin.ID, banRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "reason is required")

	resp = env.do(t, http.MethodPost, banPath, admin.ID, banRequest{Reason: "ban evasion"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res service.BanResult
	decodeBody(t, resp, &res)
	assert.True(t, res.Changed)
	require.NotNil(t, res.User)
	assert.True(t, res.User.IsBlocked)
	assert.Equal(t, "ban evasion", res.User.BlockedReason)

	resp = env.do(t, http.MethodPost, banPath, admin.ID, banRequest{Reason: "again"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = service.BanResult{}
	decodeBody(t, resp, &res)
	assert.False(t, res.Changed)

	// Blocked users cannot file reports.
	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/groups/%d/report", g.ID), target.ID, fileReportRequest{ReportType: "spam"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/unban", target.ID), admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = service.BanResult{}
	decodeBody(t, resp, &res)
	assert.True(t, res.Changed)
	assert.False(t, res.User.IsBlocked)

	var audits int64
	require.NoError(t, env.db.Model(&models.ModerationAudit{}).Where("subject_kind = ?", "user").Count(&audits).Error)
	assert.EqualValues(t, 2, audits)
}

func TestBanUser_Rejections(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	other := env.user(t, "other-admin", true)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", admin.ID), admin.ID, banRequest{Reason: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", other.ID), admin.ID, banRequest{Reason: "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/admin/users/999/ban", admin.ID, banRequest{Reason: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/admin/users/abc/ban", admin.ID, banRequest{Reason: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminUserListings(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin", true)
	env.user(t, "a", false)
	env.user(t, "b", false)

	resp := env.do(t, http.MethodGet, "/api/admin/users?limit=2", admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []models.User
	decodeBody(t, resp, &users)
	assert.Len(t, users, 2)

	resp = env.do(t, http.MethodGet, "/api/admin/users/admins", admin.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var admins []models.User
	decodeBody(t, resp, &admins)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", admin.ID), admin.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
