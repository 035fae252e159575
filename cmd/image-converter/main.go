package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-converter/internal/api/handlers/image"
	"github.com/aliskhannn/image-converter/internal/api/router"
	"github.com/aliskhannn/image-converter/internal/api/server"
	"github.com/aliskhannn/image-converter/internal/config"
	"github.com/aliskhannn/image-converter/internal/infra/kafka/producer"
	"github.com/aliskhannn/image-converter/internal/metrics"
	"github.com/aliskhannn/image-converter/internal/processor"
	imagesvc "github.com/aliskhannn/image-converter/internal/service/image"
	"github.com/aliskhannn/image-converter/internal/storage/file"
	"github.com/aliskhannn/image-converter/internal/storage/object"
	"github.com/aliskhannn/image-converter/internal/telemetry"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	tracer, err := telemetry.NewTracer(ctx, cfg.Telemetry)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	if err := processor.Startup(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to start image codecs")
	}
	defer processor.Shutdown()

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	m := metrics.New()
	imageProcessor := processor.New(
		processor.WithBounds(cfg.Processing.PreviewBound, cfg.Processing.ProcessedBound),
		processor.WithMaxInputPixels(cfg.Processing.MaxInputPixels),
		processor.WithObserver(m),
	)

	var (
		service *imagesvc.Service
		p       *producer.Producer
		opts    []imagesvc.Option
	)

	// Kafka is optional; without it no artifact events are published.
	if cfg.Kafka.Enabled {
		p = producer.New(&cfg.Kafka, strategy)
		opts = append(opts, imagesvc.WithPublisher(p))
	}

	switch cfg.Storage.Driver {
	case config.DriverMinIO:
		store, err := object.NewStorage(ctx, object.Options{
			Endpoint:   cfg.Storage.MinIO.Endpoint,
			AccessKey:  cfg.Storage.MinIO.AccessKey,
			SecretKey:  cfg.Storage.MinIO.SecretKey,
			BucketName: cfg.Storage.MinIO.BucketName,
			Prefix:     cfg.Storage.MinIO.Prefix,
			Region:     cfg.Storage.MinIO.Region,
			UseSSL:     cfg.Storage.MinIO.UseSSL,
		}, strategy)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
		service = imagesvc.NewService(imageProcessor, store, opts...)
	default:
		service = imagesvc.NewService(imageProcessor, file.NewStorage(cfg.Storage.BaseDir), opts...)
	}

	zlog.Logger.Info().
		Str("driver", cfg.Storage.Driver).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("storage ready")

	// Start HTTP server in a separate goroutine.
	imgHandler := image.NewHandler(service, cfg.Server.MaxUploadBytes)
	r := router.Setup(imgHandler, m, cfg.Server.PublicDir)
	s := server.New(cfg.Server, r)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close Kafka producer client.
	if p != nil {
		if err := p.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shut down tracer")
	}
}

