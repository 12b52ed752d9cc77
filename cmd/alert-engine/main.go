// Package main is the entry point of the alert engine. It loads
// configuration, wires the ingestion, dispatch and dashboard components,
// and runs them until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afikmenashe/alert-engine/internal/config"
	"github.com/afikmenashe/alert-engine/internal/consumer"
	"github.com/afikmenashe/alert-engine/internal/cooldown"
	"github.com/afikmenashe/alert-engine/internal/database"
	"github.com/afikmenashe/alert-engine/internal/dispatch"
	"github.com/afikmenashe/alert-engine/internal/engine"
	"github.com/afikmenashe/alert-engine/internal/handlers"
	"github.com/afikmenashe/alert-engine/internal/hub"
	"github.com/afikmenashe/alert-engine/internal/logging"
	"github.com/afikmenashe/alert-engine/internal/metrics"
	"github.com/afikmenashe/alert-engine/internal/notification"
	"github.com/afikmenashe/alert-engine/internal/router"
	"github.com/afikmenashe/alert-engine/internal/rules"
	"github.com/afikmenashe/alert-engine/internal/sender"
	"github.com/afikmenashe/alert-engine/internal/stats"
	pkgmetrics "github.com/afikmenashe/alert-engine/pkg/metrics"
	"github.com/afikmenashe/alert-engine/pkg/shared"
)

const (
	serviceName           = "alert-engine"
	serverShutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("Alert engine failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Alert engine stopped")
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("Starting alert engine",
		"http_addr", cfg.HTTPAddr,
		"postgres_dsn", shared.MaskDSN(cfg.PostgresDSN),
		"kafka_brokers", cfg.Kafka.Brokers,
		"redis_addr", cfg.Redis.Addr,
		"rules_file", cfg.RulesFile,
	)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Connecting to PostgreSQL database")
	db, err := database.NewDB(cfg.PostgresDSN)
	if err != nil {
		slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or ensure Postgres is running")
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient, err = shared.ConnectRedis(ctx, shared.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Warn("Redis unavailable, service metrics and stats mirror disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Metrics: Prometheus for /metrics, the Redis collector for the platform dashboard.
	prom, err := metrics.NewPrometheus()
	if err != nil {
		return err
	}
	collector := pkgmetrics.NewCollector(serviceName, instanceID(cfg), redisClient)
	collector.SetReportInterval(cfg.Metrics.ReportInterval)
	recorder := metrics.Multi{prom, metrics.NewCollectorAdapter(collector)}

	// Dashboard aggregation and live feed.
	var statsOpts []stats.Option
	if redisClient != nil {
		statsOpts = append(statsOpts, stats.WithSink(stats.NewRedisSink(redisClient, cfg.Stats.RedisKey, cfg.Stats.RedisTTL)))
	}
	aggregator, err := stats.New(db, cfg.Stats.RecentCapacity, cfg.Stats.Window, statsOpts...)
	if err != nil {
		return err
	}
	liveHub := hub.New(func() any { return aggregator.Snapshot() }, cfg.AllowedOrigins...)

	// Channels and the dispatch path.
	channels, closeChannels, err := buildChannels(ctx, cfg, liveHub)
	if err != nil {
		return err
	}
	queue := dispatch.NewQueue(cfg.Dispatch.QueueCapacity)
	worker := dispatch.NewWorker(dispatch.WorkerConfig{
		Queue:      queue,
		Dispatcher: sender.NewDispatcher(channels, cfg.Dispatch.SendTimeout, recorder),
		Store:      db,
		Stats:      aggregator,
		Publisher:  liveHub,
		Metrics:    recorder,
	})

	eng := engine.New(engine.Config{
		Registry:       rules.NewRegistry(),
		Tracker:        cooldown.NewTracker(),
		Builder:        notification.NewBuilder(cfg.Dispatch.Bucket),
		Store:          db,
		Queue:          queue,
		Worker:         worker,
		Metrics:        recorder,
		EnqueueTimeout: cfg.Dispatch.EnqueueTimeout,
		OnShutdown:     []func(){liveHub.Close, collector.Stop, closeChannels},
	})

	if err := startup(ctx, cfg, eng, aggregator); err != nil {
		return err
	}

	// The worker outlives the signal context so Shutdown can drain it.
	worker.Start(context.Background())
	if _, err := eng.Recover(ctx, cfg.Dispatch.RecoverLimit); err != nil {
		slog.Error("Failed to recover pending notifications", "error", err)
	}
	go aggregator.Run(ctx, cfg.Stats.Interval)
	collector.Start(ctx)

	// HTTP API.
	handlerOpts := []handlers.Option{handlers.WithMetrics(recorder)}
	if redisClient != nil {
		handlerOpts = append(handlerOpts, handlers.WithServiceMetrics(pkgmetrics.NewReader(redisClient)))
	}
	h := handlers.NewHandlers(eng, eng, db, aggregator, handlerOpts...)
	server := router.NewServer(cfg.HTTPAddr, router.NewRouter(h,
		router.WithWebSocket(liveHub.ServeWS),
		router.WithMetricsHandler(prom.Handler()),
		router.WithCollector(collector),
		router.WithHealthCheck(db.Ping),
	))
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Kafka ingestion.
	consumerDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		kafkaConsumer, err := consumer.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		if err != nil {
			return err
		}
		defer kafkaConsumer.Close()
		go func() {
			defer close(consumerDone)
			if err := consumer.NewProcessor(kafkaConsumer, eng).Run(ctx); err != nil {
				slog.Error("Event consumption failed", "error", err)
			}
		}()
	} else {
		close(consumerDone)
		slog.Info("Kafka ingestion disabled, accepting events over HTTP only")
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal, shutting down gracefully...")
	case runErr = <-serverErr:
		slog.Error("HTTP server error", "error", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down server", "error", err)
	}
	<-consumerDone

	if err := eng.Shutdown(cfg.Dispatch.DrainTimeout); err != nil {
		slog.Warn("Shutdown finished with undelivered notifications", "error", err)
	}
	return runErr
}

// startup restores rule, cooldown and stats state before any event is
// accepted.
func startup(ctx context.Context, cfg *config.Config, eng *engine.Engine, aggregator *stats.Aggregator) error {
	rejected, err := eng.LoadRules(ctx, cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	if len(rejected) > 0 {
		slog.Warn("Some rules were rejected", "count", len(rejected))
	}
	if err := eng.RestoreCooldowns(ctx); err != nil {
		slog.Warn("Failed to restore cooldowns, starting with all rules idle", "error", err)
	}
	if err := aggregator.Reconcile(ctx); err != nil {
		slog.Warn("Failed to seed dashboard stats", "error", err)
	}
	return nil
}

// loadConfig reads the config file named by -config and applies the
// command-line flags that were set explicitly.
func loadConfig() (*config.Config, error) {
	var (
		configPath   string
		httpAddr     string
		postgresDSN  string
		kafkaBrokers string
		redisAddr    string
		rulesFile    string
		logLevel     string
	)
	flag.StringVar(&configPath, "config", shared.GetEnvOrDefault("CONFIG_FILE", ""), "Path to the YAML config file")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	flag.StringVar(&kafkaBrokers, "kafka-brokers", "", "Kafka broker addresses (comma-separated)")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address for service metrics")
	flag.StringVar(&rulesFile, "rules-file", "", "YAML file seeding an empty rule store")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = httpAddr
		case "postgres-dsn":
			cfg.PostgresDSN = postgresDSN
		case "kafka-brokers":
			cfg.Kafka.Brokers = kafkaBrokers
		case "redis-addr":
			cfg.Redis.Addr = redisAddr
		case "rules-file":
			cfg.RulesFile = rulesFile
		case "log-level":
			cfg.Log.Level = logLevel
		}
	})
	return cfg, nil
}

func instanceID(cfg *config.Config) string {
	if cfg.Metrics.InstanceID != "" {
		return cfg.Metrics.InstanceID
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}
