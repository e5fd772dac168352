package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/talent-client/internal/api/http"
	"github.com/spec-kit/talent-client/internal/api/http/handlers"
	"github.com/spec-kit/talent-client/internal/app"
	"github.com/spec-kit/talent-client/internal/config"
	"github.com/spec-kit/talent-client/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build runtime", zap.Error(err))
	}
	defer rt.Close()

	dependencies := map[string]handlers.Pinger{"backend": rt.Client}
	if rt.Redis != nil {
		dependencies["redis"] = rt.Redis
	}
	if rt.Postgres != nil {
		dependencies["postgres"] = rt.Postgres
	}

	server := httptransport.NewApp(cfg, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Upload:       handlers.NewUploadHandler(rt.Client),
		Metrics:      rt.Metrics,
		CookieName:   cfg.Session.CookieName,
		UploadLimits: cfg.Upload,
	}, logger)

	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("upload passthrough listening",
		zap.String("addr", cfg.App.Addr()),
		zap.String("backend", cfg.Backend.Endpoint("")))

	waitForShutdown(logger)

	_ = server.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
