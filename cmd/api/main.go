package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"textshare/docs"
	"textshare/internal/config"
	"textshare/internal/database"
	"textshare/internal/database/migration"
	handlers "textshare/internal/http/handler"
	"textshare/internal/http/middleware"
	"textshare/internal/logging"
	"textshare/internal/otel"
	"textshare/internal/repository"
	"textshare/internal/repository/memory"
	"textshare/internal/repository/objectstore"
	"textshare/internal/repository/postgres"
	"textshare/internal/service"
	"textshare/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title TextShare API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.AppConfig, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	noteSvc := service.NewNoteService(repo, service.NewBcryptHasher(cfg.Note.BcryptCost), service.Options{
		StoreTimeout: cfg.Note.StoreTimeout,
		Logger:       log,
	})

	sweeper, err := service.NewSweeper(repo, service.SweeperOptions{
		Interval:   cfg.Note.SweepInterval,
		Timeout:    cfg.Note.StoreTimeout,
		Logger:     log,
		Registerer: reg,
	})
	if err != nil {
		return fmt.Errorf("init sweeper: %w", err)
	}
	go sweeper.Run(ctx)

	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(otelfiber.Middleware())
	app.Use(metrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

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

	handlers.RegisterRoutes(app, repo, noteSvc, log)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("store", cfg.StoreDriver).Msg("server listening")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// openStore builds the note repository selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (repository.NoteRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return postgres.NewNotePostgres(db), func() { _ = db.Close() }, nil

	case config.StoreDriverMinIO:
		objStore, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize object storage: %w", err)
		}
		return objectstore.NewNoteObjectStore(objStore), func() {}, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory note store; notes are lost on restart")
		return memory.NewNoteMemory(), func() {}, nil

	default:
		return nil, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}
