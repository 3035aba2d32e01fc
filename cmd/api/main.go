package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/database/migration"
	handlers "docstore/internal/http/handler"
	"docstore/internal/http/middleware"
	"docstore/internal/logger"
	"docstore/internal/otel"
	"docstore/internal/service"
	"docstore/internal/storage"
	"docstore/internal/storage/postgres"
)

// backend is a storage driver that can also report its health.
type backend interface {
	storage.Backend
	storage.Pinger
}

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.Setup(os.Stdout, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server_exited")
		os.Exit(1)
	}
}

// run wires the service and blocks until the server stops. Every deferred cleanup
// runs before it returns.
func run(cfg *config.AppConfig, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger.Component("otel"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("tracing_shutdown_failed")
		}
	}()

	be, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Store.Driver, err)
	}
	defer closeBackend()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	instrumented, err := storage.Instrument(be, cfg.Store.Driver, reg)
	if err != nil {
		return fmt.Errorf("register storage metrics: %w", err)
	}

	store := service.NewDocumentStore(instrumented, service.Config{
		Bucket:        cfg.Store.Bucket,
		KeyNamePrefix: cfg.Store.KeyNamePrefix,
		PublicBaseURL: cfg.Store.PublicBaseURL,
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	// RequestID must run before Logger so every log line carries request_id
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger.Component("http")))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, instrumented, reg, store)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("http_shutdown_failed")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("driver", cfg.Store.Driver).
		Str("bucket", cfg.Store.Bucket).
		Str("key_name_prefix", cfg.Store.KeyNamePrefix).
		Msg("server_starting")

	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}

// openBackend builds the storage driver named in cfg.Store.Driver.
func openBackend(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (backend, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.DriverMinIO:
		m, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, noop, err
		}
		if cfg.Store.Bucket != "" {
			if err := m.EnsureBucket(ctx, cfg.Store.Bucket); err != nil {
				return nil, noop, err
			}
		}
		return m, noop, nil

	case config.DriverS3:
		s, err := storage.NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case config.DriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() { closeQuietly(db, log) }
		if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
			closeDB()
			return nil, noop, err
		}
		return postgres.NewObjectsPostgres(db), closeDB, nil

	case config.DriverMemory:
		return storage.NewMemory(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Store.Driver)
	}
}

func closeQuietly(db *sql.DB, log zerolog.Logger) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("db_close_failed")
	}
}
