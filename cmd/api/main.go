package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fileshare/docs"
	"fileshare/internal/admission"
	"fileshare/internal/config"
	handlers "fileshare/internal/http/handler"
	"fileshare/internal/http/middleware"
	"fileshare/internal/logging"
	"fileshare/internal/naming"
	"fileshare/internal/otel"
	"fileshare/internal/service"
)

const serviceName = "fileshare"

// multipart framing on top of the largest admissible file
const bodyOverhead = 1 << 20

// @title File Share API
// @version 1.0
// @description Uploads files to object storage and tracks them in a metadata table.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel).With(slog.String("service", serviceName))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger, serviceName)
	if err != nil {
		logger.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backends, err := buildBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize backends", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backends.Close()

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		logger.Error("failed to register service metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fileSvc := service.NewFileService(
		backends.Storage,
		backends.Repository,
		admission.NewPolicy(cfg.Upload.MaxBytes, cfg.Upload.AllowedTypes),
		naming.NewResolver(cfg.Upload.KeyStrategy),
		service.Options{
			CompensateOrphans: cfg.Upload.CompensateOrphans,
			Logger:            logger,
			Metrics:           metrics,
		},
	)

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		logger.Error("failed to register http metrics", slog.String("error", err.Error()))
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Oversize files must reach the admission policy to be rejected as too large.
		BodyLimit: bodyLimit(cfg.Upload.MaxBytes),
	})

	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		Files:    fileSvc,
		Sessions: handlers.NewSessionStore(),
		Health:   backends.Repository,
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			logger.Warn("http shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("server starting",
		slog.String("addr", ":"+cfg.Port),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("metadata_backend", cfg.MetadataBackend),
		slog.String("key_strategy", cfg.Upload.KeyStrategy),
	)
	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func bodyLimit(maxUpload int64) int {
	limit := 2*maxUpload + bodyOverhead
	if limit < fiber.DefaultBodyLimit {
		return fiber.DefaultBodyLimit
	}
	return int(limit)
}
