package server

import (
	"log/slog"

	"tarsvoice/app/service/dialogue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type chatRequest struct {
	Messages []dialogue.Entry `json:"messages"`
	Humor    int              `json:"humor"`
	Honesty  int              `json:"honesty"`
	// SessionID is null on the first exchange of a tab
	SessionID *string `json:"sessionId"`
	UserName  string  `json:"userName"`
}

type chatReply struct {
	Content string `json:"content"`
}

type chatResponse struct {
	Reply     chatReply `json:"reply"`
	SessionID string    `json:"sessionId"`
}

func (s *Service) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	humor := min(max(req.Humor, 0), 100)
	honesty := min(max(req.Honesty, 0), 100)

	sid := ""
	if req.SessionID != nil {
		sid = *req.SessionID
	}
	if sid == "" {
		sid = uuid.NewString()
		slog.Debug("Minted dialogue session", "sessionId", sid)
	}

	reply, err := s.upstreamClient.Complete(c.Context(), req.Messages, humor, honesty, req.UserName)
	if err != nil {
		slog.Error("Upstream completion failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream completion failed"})
	}

	return c.JSON(chatResponse{
		Reply:     chatReply{Content: reply},
		SessionID: sid,
	})
}
