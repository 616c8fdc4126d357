package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"tarsvoice/app/client/geminitts"
	"tarsvoice/app/client/tarsapi"
	"tarsvoice/app/client/upstream"
	"tarsvoice/app/config"
	"tarsvoice/app/server"
	"tarsvoice/app/service/session"
	"tarsvoice/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, upstream.NewClient)
	do.Provide(di, geminitts.NewClient)
	do.Provide(di, tarsapi.NewClient)
	do.Provide(di, session.New)
	do.Provide(di, server.New)

	slog.Info("Service started", "listen", cfg.Server.Listen)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go func() {
		if err := do.MustInvoke[*server.Service](di).Run(appCtx); err != nil {
			slog.Error("Server stopped", "error", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}
