package server

import (
	"warden/internal/models"
	"warden/internal/service"

	"github.com/gofiber/fiber/v2"
)

type banRequest struct {
	Reason    string `json:"reason"`
	AdminNote string `json:"adminNote"`
}

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Description The authenticated account, including its admin and block flags.
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetAllUsers handles GET /api/admin/users
// @Summary List users
// @Tags users-admin
// @Produce json
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Security BearerAuth
// @Router /admin/users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 50)

	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetAdmins handles GET /api/admin/users/admins
// @Summary List admins
// @Tags users-admin
// @Produce json
// @Success 200 {array} models.User
// @Security BearerAuth
// @Router /admin/users/admins [get]
func (s *Server) GetAdmins(c *fiber.Ctx) error {
	admins, err := s.userService.ListAdmins(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(admins)
}

// GetUserProfile handles GET /api/admin/users/:id
// @Summary Get user
// @Tags users-admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// BanUser handles POST /api/admin/users/:id/ban.
// @Summary Ban a user
// @Description Blocks the account. Reports the user filed are left as they are.
// @Tags users-admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body banRequest true "Ban reason"
// @Success 200 {object} service.BanResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/ban [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	return s.setUserBlocked(c, true)
}

// UnbanUser handles POST /api/admin/users/:id/unban.
// @Summary Unban a user
// @Description Lifts a block. Unbanning an active user changes nothing.
// @Tags users-admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body banRequest false "Optional reason"
// @Success 200 {object} service.BanResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/unban [post]
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	return s.setUserBlocked(c, false)
}

func (s *Server) setUserBlocked(c *fiber.Ctx, blocked bool) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req banRequest
	if err := bindBody(c, &req, !blocked); err != nil {
		return nil
	}

	in := service.BanInput{
		TargetID:  targetID,
		ActorID:   currentUserID(c),
		Reason:    req.Reason,
		AdminNote: req.AdminNote,
	}
	var res *service.BanResult
	if blocked {
		res, err = s.userService.BanUser(c.UserContext(), in)
	} else {
		res, err = s.userService.UnbanUser(c.UserContext(), in)
	}
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(res)
}
