package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"houzel-server/internal/config"
	"houzel-server/internal/domain/chat"
	"houzel-server/internal/domain/title"
	"houzel-server/internal/infrastructure"
	"houzel-server/internal/infrastructure/crontab"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/infrastructure/observability"
	"houzel-server/internal/interfaces/httpserver"
	"houzel-server/internal/interfaces/httpserver/handlers/chathandler"
	"houzel-server/internal/interfaces/httpserver/handlers/imagehandler"
	v1 "houzel-server/internal/interfaces/httpserver/routes/v1"
	chatroute "houzel-server/internal/interfaces/httpserver/routes/v1/chat"
	imageroute "houzel-server/internal/interfaces/httpserver/routes/v1/image"
)

type Application struct {
	httpServer  *httpserver.HTTPServer
	crontab     *crontab.Crontab
	metricsPort int
}

func (application *Application) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", application.metricsPort),
		Handler: promhttp.Handler(),
	}

	var eg errgroup.Group
	eg.Go(func() error {
		err := metricsServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			cancel()
			return err
		}
		return nil
	})
	eg.Go(func() error {
		err := application.crontab.Run(ctx)
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		err := application.httpServer.Run()
		if err != nil {
			cancel()
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return application.httpServer.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func buildApplication(cfg *config.Config) (*Application, error) {
	log := logger.GetLogger()

	infra, err := infrastructure.NewInfrastructure(cfg, log)
	if err != nil {
		return nil, err
	}

	chatService := chat.NewChatService(infra.ChatRepo)
	titleService := title.NewTitleService(infra.ChatRepo, infra.Model).
		WithCadence(cfg.TitleWatchInterval, cfg.TitleWatchCeiling)

	chatHandler := chathandler.NewChatHandler(chatService)
	streamHandler := chathandler.NewStreamHandler(chatService, infra.Model, infra.Compiler, titleService)
	titleHandler := chathandler.NewTitleHandler(titleService)
	imageHandler := imagehandler.NewImageHandler(infra.ImageStore)

	v1Route := v1.NewV1Route(
		chatroute.NewChatRoute(chatHandler, streamHandler, titleHandler),
		imageroute.NewImageRoute(imageHandler),
	)

	return &Application{
		httpServer:  httpserver.NewHttpServer(v1Route, infra, cfg),
		crontab:     crontab.NewCrontab(titleService),
		metricsPort: cfg.MetricsPort,
	}, nil
}

func main() {
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if log, err = logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		log = logger.GetLogger()
		log.Warn().Err(err).Msg("invalid log configuration, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	application, err := buildApplication(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build application")
	}

	log.Info().Int("port", cfg.HTTPPort).Str("environment", cfg.Environment).Msg("starting server")
	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
