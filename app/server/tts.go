package server

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
)

const maxCacheEntries = 32

type ttsRequest struct {
	Text      string `json:"text"`
	VoiceName string `json:"voiceName"`
}

// ttsCache keeps recently synthesized lines. Simple FIFO, keyed by
// voice::text; repeated stock lines (fallback, greetings) hit it often.
type ttsCache struct {
	mu    sync.Mutex
	data  map[string][]byte
	order []string
}

func (c *ttsCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wav, ok := c.data[key]
	return wav, ok
}

func (c *ttsCache) put(key string, wav []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		c.data = make(map[string][]byte)
	}

	if _, exists := c.data[key]; !exists {
		c.order = append(c.order, key)
	}
	c.data[key] = wav

	for len(c.order) > maxCacheEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}
}

func (s *Service) handleTTS(c *fiber.Ctx) error {
	if !s.ttsClient.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "tts is not configured"})
	}

	var req ttsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no text provided"})
	}

	voiceName := req.VoiceName
	if voiceName == "" {
		voiceName = s.cfg.Gemini.VoiceName
	}

	key := voiceName + "::" + text

	if wav, ok := s.cache.get(key); ok {
		c.Set(fiber.HeaderContentType, "audio/wav")
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Send(wav)
	}

	wav, err := s.ttsClient.Synthesize(c.Context(), text, voiceName)
	if err != nil {
		slog.Error("TTS synthesis failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "tts synthesis failed"})
	}

	s.cache.put(key, wav)

	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(wav)
}
