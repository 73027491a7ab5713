package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldhire/internal/api"
	"fieldhire/internal/config"
	"fieldhire/internal/database"
	"fieldhire/internal/dispatch"
	"fieldhire/internal/domain"
	"fieldhire/internal/events"
	"fieldhire/internal/export"
	"fieldhire/internal/logging"
	"fieldhire/internal/metrics"
	"fieldhire/internal/models"
	"fieldhire/internal/notify"
	"fieldhire/internal/repository"
	"fieldhire/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	resources, err := loadResources(cfg, logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, resources, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	index := initOfferIndex(cfg, redisClient, logger)
	bus := events.NewEventBus()
	subscribeBookingEvents(bus, logger)

	detector := dispatch.NewDetector(db, logger)
	router := dispatch.NewRouter(db, index, detector, bus,
		cfg.Engine.MaxBookingDays, cfg.Engine.BroadcastHorizonDays, logger)
	coordinator := dispatch.NewCoordinator(db, index, detector, router, bus, logger)
	lifecycle := dispatch.NewLifecycle(db, index, bus, logger)
	resolver := dispatch.NewResolver(db, bus, logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, logger)

	httpServer := api.NewHTTPServer(cfg.API, db, router, coordinator, lifecycle, resolver, exporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, logger)
	startWorkers(ctx, cfg, db, lifecycle, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

// loadResources merges the catalog embedded in the config with the optional
// standalone resources file.
func loadResources(cfg *config.Config, logger *zerolog.Logger) ([]models.Resource, error) {
	resources := cfg.Resources

	resourcesPath := os.Getenv("RESOURCES_PATH")
	if resourcesPath == "" {
		resourcesPath = "configs/resources.yaml"
	}
	data, err := os.ReadFile(resourcesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return resources, nil
		}
		logger.Error().Err(err).Str("resources_path", resourcesPath).Msg("read resources")
		return nil, err
	}

	var fileConfig struct {
		Resources []models.Resource `yaml:"resources"`
	}
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		logger.Error().Err(err).Str("resources_path", resourcesPath).Msg("parse resources")
		return nil, err
	}

	resources = append(resources, fileConfig.Resources...)
	if err := config.ValidateResources(resources); err != nil {
		return nil, err
	}
	return resources, nil
}

func initDatabase(cfg *config.Config, resources []models.Resource, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	pointers := make([]*models.Resource, len(resources))
	for i := range resources {
		pointers[i] = &resources[i]
	}
	db.SetResources(pointers)
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initOfferIndex(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.OfferIndex {
	ttl := time.Duration(cfg.Engine.OfferIndexTTLSeconds) * time.Second
	memory := repository.NewMemoryOfferIndex(ttl)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisOfferIndex(redisClient, ttl)
	return repository.NewFailoverOfferIndex(primary, memory, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.Enabled {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, falling back to log notifier")
		} else {
			logger.Info().Msg("telegram notifier connected")
			return notifier
		}
	}
	return notify.NewLogNotifier(logger)
}

// subscribeBookingEvents attaches the audit log and metrics consumers so every
// published booking event leaves a trace.
func subscribeBookingEvents(bus *events.EventBus, logger *zerolog.Logger) {
	if bus == nil {
		return
	}

	audit := logger.With().Str("component", "audit").Logger()
	handler := func(ev *events.Event) error {
		metrics.IncBookingEvent(ev.Type)

		var payload events.BookingEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			audit.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		audit.Info().
			Str("event", ev.Type).
			Str("booking_id", payload.BookingID).
			Str("farmer_id", payload.FarmerID).
			Str("supplier_id", payload.SupplierID).
			Str("status", payload.Status).
			Str("changed_by", payload.ChangedBy).
			Msg("booking event")
		return nil
	}

	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingAccepted,
		events.EventBookingRejected,
		events.EventBookingAllocated,
		events.EventBookingCancelled,
		events.EventBookingExpired,
		events.EventBookingCompleted,
		events.EventConflictOverride,
		events.EventDisputeRaised,
		events.EventDisputeResolved,
		events.EventDamageReported,
		events.EventDamageResolved,
		events.EventOperatorRequested,
	} {
		bus.Subscribe(eventType, handler)
	}
}

func startWorkers(ctx context.Context, cfg *config.Config, db *database.DB, lifecycle *dispatch.Lifecycle, logger *zerolog.Logger) {
	notifier := initNotifier(cfg, logger)
	notifyWorker := worker.NewNotifyWorker(db, notifier, worker.RetryPolicy{}, logger)
	go notifyWorker.Start(ctx)

	sweepInterval := time.Duration(cfg.Engine.SweepIntervalSeconds) * time.Second
	sweeper := worker.NewSweeper(lifecycle, sweepInterval, logger)
	go sweeper.Start(ctx)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backup.Start(ctx)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("dispatch engine started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("dispatch engine stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
