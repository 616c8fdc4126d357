package server

import (
	"context"
	"errors"
	"log/slog"

	"tarsvoice/app/bridge"
	"tarsvoice/app/service/dialogue"
	"tarsvoice/app/service/voice"

	"github.com/gofiber/contrib/websocket"
	"golang.org/x/sync/errgroup"
)

// Tone defaults for a fresh tab.
const (
	defaultHumor   = 50
	defaultHonesty = 100
)

// handleVoice runs one tab's dialogue session: restore the persisted
// transcript, wire the bridge channels into a turn controller, then pump
// until the socket drops.
func (s *Service) handleVoice(conn *websocket.Conn) {
	defer conn.Close()

	br := bridge.New(conn)

	hello, err := br.AwaitHello()
	if err != nil {
		slog.Warn("Voice session rejected", "error", err)
		return
	}

	tab := s.sessionStore.Open(hello.Tab)
	entries, sid, seeded := tab.Restore()

	resolver := voice.NewResolver(s.cfg.Voice, br)

	ctrl := dialogue.NewController(br.Input(), br.Output(), s.backendClient, tab, resolver, dialogue.Params{
		UserName:  hello.UserName,
		Humor:     defaultHumor,
		Honesty:   defaultHonesty,
		Entries:   entries,
		SessionID: sid,
		Seeded:    seeded,
	})
	ctrl.OnStage(br.PushStage)
	ctrl.OnEntry(br.PushEntry)
	ctrl.OnHumor(br.PushHumor)

	slog.Info("Voice session started",
		"tab", hello.Tab,
		"userName", hello.UserName,
		"restoredEntries", len(entries))

	ctx, cancel := context.WithCancel(s.appCtx)
	defer cancel()

	// unblock the read loop when the app shuts down
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(ctx)
	})

	g.Go(func() error {
		defer cancel()
		return br.ReadLoop(ctrl)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("Voice session ended", "tab", hello.Tab, "error", err)
	}
}
