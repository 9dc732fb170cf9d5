package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"warden/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// AdminStreamUpgrade rejects plain HTTP requests to the admin stream.
func (s *Server) AdminStreamUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	if s.hub == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(nil))
	}
	return c.Next()
}

// AdminStreamHandler registers an admin connection with the Hub. Admin
// events and the admin's own notices are pushed as JSON text frames; the
// first frame is a stats snapshot for both subject kinds. ?kinds=group,post
// narrows admin events to those subject kinds.
// Authentication and the admin check are handled by route middleware.
func (s *Server) AdminStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || s.hub == nil {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("websocket close error: %v", cerr)
			}
			return
		}

		var kinds []string
		if raw := conn.Query("kinds"); raw != "" {
			kinds = strings.Split(raw, ",")
		}
		client, err := s.hub.Register(uid, conn, kinds...)
		if err != nil {
			log.Printf("admin stream: failed to register user %d: %v", uid, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		if snapshot, err := s.statsSnapshot(); err == nil {
			client.TrySend(snapshot)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func (s *Server) statsSnapshot() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload := map[string]interface{}{}
	for _, kind := range []models.SubjectKind{models.SubjectGroup, models.SubjectPost} {
		stats, err := s.reportingService.Stats(ctx, kind, false)
		if err != nil {
			return nil, err
		}
		payload[string(kind)] = stats
	}
	return json.Marshal(map[string]interface{}{
		"type":    "stats_snapshot",
		"payload": payload,
		"at":      time.Now().UTC(),
	})
}

type onlineModerator struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// GetOnlineModerators godoc
// @Summary Admins with the moderation stream open
// @Description Lists admins connected to the admin stream on any API instance.
// @Tags moderation-admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation/online [get]
func (s *Server) GetOnlineModerators(c *fiber.Ctx) error {
	online := []onlineModerator{}
	if s.hub == nil || s.hub.Presence() == nil {
		return c.JSON(fiber.Map{"data": online, "count": 0})
	}

	ids, err := s.hub.Presence().Online(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	if len(ids) > 0 {
		if err := s.db.WithContext(c.UserContext()).Model(&models.User{}).
			Select("id", "username").
			Where("id IN ?", ids).
			Order("id").
			Find(&online).Error; err != nil {
			return models.RespondWithAppError(c, models.NewInternalError(err))
		}
	}
	return c.JSON(fiber.Map{"data": online, "count": len(online)})
}
