package server

import (
	"warden/internal/models"
	"warden/internal/service"

	"github.com/gofiber/fiber/v2"
)

type fileReportRequest struct {
	ReportType string `json:"reportType"`
	Reason     string `json:"reason"`
}

// ReportGroup handles POST /api/groups/:id/report.
// @Summary Report a group
// @Description File a report against a group. One open report per reporter and group.
// @Tags reports
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body fileReportRequest true "Report type and optional reason"
// @Success 201 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /groups/{id}/report [post]
func (s *Server) ReportGroup(c *fiber.Ctx) error {
	return s.fileReport(c, models.SubjectGroup)
}

// ReportPost handles POST /api/posts/:id/report.
// @Summary Report a post
// @Description File a report against a post or ad. One open report per reporter and post.
// @Tags reports
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body fileReportRequest true "Report type and optional reason"
// @Success 201 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/report [post]
func (s *Server) ReportPost(c *fiber.Ctx) error {
	return s.fileReport(c, models.SubjectPost)
}

func (s *Server) fileReport(c *fiber.Ctx, kind models.SubjectKind) error {
	subjectID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req fileReportRequest
	if err := bindBody(c, &req, false); err != nil {
		return nil
	}

	report, err := s.reportService.FileReport(c.UserContext(), service.FileReportInput{
		Kind:       kind,
		SubjectID:  subjectID,
		ReporterID: currentUserID(c),
		ReportType: req.ReportType,
		Reason:     req.Reason,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}
