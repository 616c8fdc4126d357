package server

import (
	"context"

	"tarsvoice/app/client/geminitts"
	"tarsvoice/app/client/tarsapi"
	"tarsvoice/app/client/upstream"
	"tarsvoice/app/config"
	"tarsvoice/app/service/session"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

// Service is the HTTP surface: the chat backend route, the TTS proxy and
// the per-tab voice bridge socket.
type Service struct {
	cfg    *config.Config
	appCtx context.Context
	app    *fiber.App

	upstreamClient *upstream.Client
	ttsClient      *geminitts.Client
	backendClient  *tarsapi.Client
	sessionStore   *session.Store

	cache ttsCache
}

func New(di *do.Injector) (*Service, error) {
	s := &Service{
		cfg:            do.MustInvoke[*config.Config](di),
		appCtx:         do.MustInvoke[context.Context](di),
		upstreamClient: do.MustInvoke[*upstream.Client](di),
		ttsClient:      do.MustInvoke[*geminitts.Client](di),
		backendClient:  do.MustInvoke[*tarsapi.Client](di),
		sessionStore:   do.MustInvoke[*session.Store](di),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Post("/api/chat", s.handleChat)
	app.Post("/api/tts", s.handleTTS)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}

		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice", websocket.New(s.handleVoice))

	s.app = app

	return s, nil
}

func (s *Service) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	return s.app.Listen(s.cfg.Server.Listen)
}
