package server

import (
	"strings"

	"warden/internal/models"
	"warden/internal/repository"
	"warden/internal/service"

	"github.com/gofiber/fiber/v2"
)

type noteRequest struct {
	AdminNote string `json:"adminNote"`
}

type bulkRequest struct {
	IDs       []uint `json:"ids"`
	AdminNote string `json:"adminNote"`
}

type violationRequest struct {
	ViolationType string `json:"violationType"`
	AdminNote     string `json:"adminNote"`
	Reason        string `json:"reason"`
}

func (r violationRequest) input() service.ViolationInput {
	return service.ViolationInput{
		ViolationType: models.ViolationType(strings.ToLower(strings.TrimSpace(r.ViolationType))),
		AdminNote:     r.AdminNote,
		Reason:        r.Reason,
	}
}

type reviewRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"adminNote"`
}

// warningResponse adds the group's status under the name admin clients read.
type warningResponse struct {
	*service.ActionSummary
	GroupStatus models.ModerationStatus `json:"groupStatus"`
}

// bindBody parses a JSON body into dest. An empty body is accepted when
// optional is set. Same contract as parseID.
func bindBody(c *fiber.Ctx, dest interface{}, optional bool) error {
	if optional && len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// GetGroupedReports handles GET /api/admin/moderation/:kind/reports.
// @Summary List reports grouped by subject
// @Description One row per reported group, post or ad with its reports, type tally and timestamps.
// @Tags moderation-admin
// @Produce json
// @Param kind path string true "Subject kind (groups, posts, ads)"
// @Param status query string false "pending, investigating, resolved, dismissed or all" default(pending)
// @Param sort query string false "latest_report_at, earliest_report_at, report_count, warning_count or id"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Param ads_only query bool false "Only ads (posts only)"
// @Success 200 {object} service.GroupedReportsResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/{kind}/reports [get]
func (s *Server) GetGroupedReports(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}

	res, err := s.reportingService.GroupedReports(c.UserContext(), service.GroupedReportsQuery{
		Kind:    kind,
		Status:  c.Query("status"),
		AdsOnly: adsRoute(c) || c.QueryBool("ads_only", false),
		Sort:    c.Query("sort"),
		Order:   c.Query("order"),
		Page:    c.QueryInt("page", 1),
		Limit:   c.QueryInt("limit", 20),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// GetModerationStats handles GET /api/admin/moderation/:kind/stats.
// @Summary Moderation counters
// @Description Report and subject counters for one kind. Served from cache when available.
// @Tags moderation-admin
// @Produce json
// @Param kind path string true "Subject kind (groups, posts, ads)"
// @Success 200 {object} repository.ModerationStats
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/{kind}/stats [get]
func (s *Server) GetModerationStats(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	stats, err := s.reportingService.Stats(c.UserContext(), kind, adsRoute(c) || c.QueryBool("ads_only", false))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(stats)
}

// DismissPendingReports handles POST /api/admin/moderation/:kind/:id/dismiss.
// @Summary Dismiss all pending reports
// @Description Dismisses every pending report on the subject and clears its pending flag.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param kind path string true "Subject kind"
// @Param id path int true "Subject ID"
// @Param request body noteRequest false "Optional admin note"
// @Success 200 {object} service.ActionSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/{kind}/{id}/dismiss [post]
func (s *Server) DismissPendingReports(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req noteRequest
	if err := bindBody(c, &req, true); err != nil {
		return nil
	}

	summary, err := s.moderationService.DismissAllPending(c.UserContext(), kind, id, currentUserID(c), req.AdminNote)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(summary)
}

// MarkInvestigating handles POST /api/admin/moderation/:kind/:id/investigate.
// @Summary Mark subject under investigation
// @Description Puts a subject with pending reports under investigation. Its reports stay pending until settled. Repeating the call is a no-op.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param kind path string true "Subject kind"
// @Param id path int true "Subject ID"
// @Param request body noteRequest false "Optional admin note"
// @Success 200 {object} service.ActionSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/{kind}/{id}/investigate [post]
func (s *Server) MarkInvestigating(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req noteRequest
	if err := bindBody(c, &req, true); err != nil {
		return nil
	}

	summary, err := s.moderationService.MarkInvestigating(c.UserContext(), kind, id, currentUserID(c), req.AdminNote)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(summary)
}

// BulkMarkInvestigating handles POST /api/admin/moderation/:kind/investigate/bulk.
// @Summary Mark many subjects under investigation
// @Description Each id is handled independently. Failures are listed and do not roll back the rest.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param kind path string true "Subject kind"
// @Param request body bulkRequest true "Subject IDs (max 100)"
// @Success 200 {object} service.BulkResult
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/{kind}/investigate/bulk [post]
func (s *Server) BulkMarkInvestigating(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	var req bulkRequest
	if err := bindBody(c, &req, false); err != nil {
		return nil
	}

	res, err := s.moderationService.BulkMarkInvestigating(c.UserContext(), kind, req.IDs, currentUserID(c), req.AdminNote)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// SendGroupWarning handles POST /api/admin/moderation/groups/:id/warnings.
// @Summary Warn a group
// @Description Appends a warning to the group's ledger and resolves its open reports. A group at the warning cap is deleted instead.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body violationRequest true "Violation details; adminNote is required"
// @Success 200 {object} warningResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/groups/{id}/warnings [post]
func (s *Server) SendGroupWarning(c *fiber.Ctx) error {
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req violationRequest
	if err := bindBody(c, &req, false); err != nil {
		return nil
	}

	summary, err := s.moderationService.SendWarning(c.UserContext(), groupID, currentUserID(c), req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(warningResponse{ActionSummary: summary, GroupStatus: summary.NewStatus})
}

// GetGroupWarnings handles GET /api/admin/moderation/groups/:id/warnings.
// @Summary Warning ledger
// @Description Every warning issued to the group, oldest first.
// @Tags moderation-admin
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} object{data=[]models.WarningEvent}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/groups/{id}/warnings [get]
func (s *Server) GetGroupWarnings(c *fiber.Ctx) error {
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	events, err := s.moderationService.ListWarnings(c.UserContext(), groupID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"data": events})
}

// DeleteForSevereViolation handles POST /api/admin/moderation/:kind/:id/delete.
// @Summary Delete for a severe violation
// @Description Deletes the subject, resolves its open reports and removes what it owns. Deletion is final.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param kind path string true "Subject kind"
// @Param id path int true "Subject ID"
// @Param request body violationRequest true "Violation details; adminNote is required"
// @Success 200 {object} service.ActionSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/{kind}/{id}/delete [post]
func (s *Server) DeleteForSevereViolation(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req violationRequest
	if err := bindBody(c, &req, false); err != nil {
		return nil
	}

	summary, err := s.moderationService.DeleteForSevereViolation(c.UserContext(), kind, id, currentUserID(c), req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(summary)
}

// ReviewReport handles POST /api/admin/reports/:id/review.
// @Summary Review one report
// @Description Moves a single report from pending to investigating, or from pending or investigating to dismissed.
// @Tags moderation-admin
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body reviewRequest true "Target status"
// @Success 200 {object} service.ReviewResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/{id}/review [post]
func (s *Server) ReviewReport(c *fiber.Ctx) error {
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req reviewRequest
	if err := bindBody(c, &req, false); err != nil {
		return nil
	}
	status := models.ReportStatus(strings.ToLower(strings.TrimSpace(req.Status)))

	res, err := s.moderationService.ReviewReport(c.UserContext(), reportID, currentUserID(c), status, req.AdminNote)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}

// GetModerationAudit handles GET /api/admin/moderation/audit.
// @Summary Moderation audit log
// @Description Moderation actions newest first.
// @Tags moderation-admin
// @Produce json
// @Param subject_kind query string false "group, post or user"
// @Param subject_id query int false "Subject ID"
// @Param actor_id query int false "Acting admin"
// @Param action query string false "Audit action"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} object{data=[]models.ModerationAudit,total=int,limit=int,offset=int}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/audit [get]
func (s *Server) GetModerationAudit(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	filter := repository.AuditFilter{
		SubjectKind: strings.TrimSpace(c.Query("subject_kind")),
		SubjectID:   uint(max(c.QueryInt("subject_id", 0), 0)),
		ActorID:     uint(max(c.QueryInt("actor_id", 0), 0)),
		Action:      models.AuditAction(strings.TrimSpace(c.Query("action"))),
		Limit:       page.Limit,
		Offset:      page.Offset,
	}
	if kind, ok := models.ParseSubjectKind(filter.SubjectKind); ok {
		filter.SubjectKind = string(kind)
	}

	entries, total, err := s.moderationService.ListAudit(c.UserContext(), filter)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"data":   entries,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}
