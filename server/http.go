package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"video-branding-worker/config"
	jobHandler "video-branding-worker/handler"
	"video-branding-worker/pkg/ffmpeg"
	"video-branding-worker/pkg/ffprobe"
	"video-branding-worker/pkg/filtergraph"
	"video-branding-worker/pkg/rabbitmq"
	"video-branding-worker/repository"
	"video-branding-worker/service"
	"video-branding-worker/storage"
)

const shutdownTimeout = 30 * time.Second

// RunHttp starts the consumer and the status API and blocks until SIGINT or
// SIGTERM. Every client is built here once and closed on the way out.
func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.IsProduction()).Send()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	journal, err := repository.OpenFailureJournal(cfg.Worker.FailureJournalPath, nil)
	if err != nil {
		return err
	}
	defer journal.Close()

	var minioClient *minio.Client
	if cfg.MinIO.URL != "" {
		if minioClient, err = storage.NewMinIOClient(cfg.MinIO); err != nil {
			return err
		}
	}

	store, err := storage.New(ctx, cfg, minioClient)
	if err != nil {
		return err
	}
	defer store.Close()

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()

	brandingService := service.NewService(service.Dependencies{
		Repo:          repo,
		Journal:       journal,
		Fetcher:       storage.NewFetcher(minioClient, nil),
		Inspector:     ffprobe.NewProber(cfg.FFmpeg.FFprobeBinary),
		Transcoder:    ffmpeg.NewExecutor(cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.Preset),
		Publisher:     service.NewPublisher(store, cfg.Storage.KeyPrefix),
		DisclaimerRef: cfg.Assets.Disclaimer,
		Fonts:         filtergraph.Fonts{Bold: cfg.Assets.FontBold, Regular: cfg.Assets.FontRegular},
		TempDir:       cfg.Worker.TempDir,
	})

	serviceDeps := jobHandler.ServiceDependencies{
		BrandingService: brandingService,
	}

	consumerDone := make(chan struct{})
	brandingConsumer := rabbitmq.NewConsumer(conn, rabbitmq.TopologyFromConfig(cfg.Queue), cfg.Server.Workers, jobHandler.JobHandler)
	go func() {
		defer close(consumerDone)
		err := brandingConsumer.Consume(ctx, serviceDeps)
		if err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Branding consumer error")
			cancel()
		}
	}()

	handler := http.Server{
		Handler:           newRouter(*zerolog.Ctx(ctx), repo, journal),
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		zerolog.Ctx(ctx).Warn().Msg("consumer did not stop in time")
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}
