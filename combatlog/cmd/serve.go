package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/buffer"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/catalog"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/indexer"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/metrics"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/worker"
	"github.com/telhawk-systems/telhawk-combatlog/common/config"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
	"github.com/telhawk-systems/telhawk-combatlog/common/messaging"
	natsclient "github.com/telhawk-systems/telhawk-combatlog/common/messaging/nats"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the batch worker",
	Long: `Consume raw log batches from NATS JetStream, buffer the parsed packets in
Redis and publish the reports of every flushed partition.

Configuration is read from $COMBATLOG_CONFIG_DIR/config.yaml and environment
variables.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("skip-migrations", false, "do not apply catalog migrations on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load("combatlog")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("combatlog"))
	logging.SetDefault(logger)

	slog.Info("Starting combat log worker",
		slog.String("bucket", cfg.CombatLog.Bucket),
		slog.String("object_store", cfg.ObjectStore.Backend),
		slog.String("database", cfg.Database.Type),
		slog.Int("concurrency", cfg.CombatLog.Concurrency),
	)

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Redis.Enabled {
		return errors.New("redis is required by the worker (redis.enabled=false)")
	}
	rdb, err := newRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	slog.Info("Connected to Redis")

	skipMigrations, _ := cmd.Flags().GetBool("skip-migrations")
	repo, err := newCatalog(ctx, cfg.Database, skipMigrations)
	if err != nil {
		return err
	}
	defer repo.Close()

	store, err := newObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return err
	}
	pub := blob.NewPublisher(store, blob.Options{
		SegmentSize:     cfg.Publisher.SegmentSize,
		MaxAttempts:     cfg.Publisher.MaxAttempts,
		InitialInterval: cfg.Publisher.InitialInterval,
		MaxInterval:     cfg.Publisher.MaxInterval,
		PartConcurrency: cfg.Publisher.PartConcurrency,
	})

	if !cfg.NATS.Enabled {
		return errors.New("nats is required by the worker (nats.enabled=false)")
	}
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "combatlog-worker",
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer js.Close()
	slog.Info("Connected to NATS", slog.String("url", cfg.NATS.URL))

	if err := setupStreams(ctx, js); err != nil {
		return err
	}

	opts := []worker.Option{worker.WithEvents(js)}
	if cfg.OpenSearch.Enabled {
		client, err := indexer.NewClient(cfg.OpenSearch)
		if err != nil {
			slog.Warn("Failed to connect to OpenSearch (continuing without indexing)",
				slog.String("url", cfg.OpenSearch.URL),
				logging.Error(err))
		} else {
			slog.Info("Connected to OpenSearch", slog.String("url", cfg.OpenSearch.URL))
			opts = append(opts, worker.WithIndexer(indexer.New(client, cfg.OpenSearch)))
		}
	}

	w := worker.New(worker.Config{
		Bucket:  cfg.CombatLog.Bucket,
		WorkDir: cfg.CombatLog.WorkDir,
	}, buffer.New(rdb, cfg.CombatLog.PartitionTTL), repo, pub, opts...)

	stopConsume, err := w.Start(ctx, js,
		messaging.WithNakDelay(cfg.CombatLog.NakDelay),
		messaging.WithMaxInFlight(cfg.CombatLog.Concurrency))
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", healthHandler(js, rdb))
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Metrics listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logging.Error(err))
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	stopConsume()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", logging.Error(err))
		}
	}
	if err := js.Drain(); err != nil {
		slog.Warn("NATS drain failed", logging.Error(err))
	}
	return nil
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// newCatalog opens the configured repository. The postgres schema is
// migrated first unless skipMigrations is set.
func newCatalog(ctx context.Context, cfg config.DatabaseConfig, skipMigrations bool) (catalog.Repository, error) {
	switch cfg.Type {
	case "memory":
		slog.Warn("Using in-memory catalog; combat log state is lost on restart")
		return catalog.NewMemoryRepository(), nil
	case "postgres", "":
		url := cfg.Postgres.URL()
		if !skipMigrations {
			slog.Info("Running database migrations")
			if err := runMigrations(url); err != nil {
				return nil, err
			}
			slog.Info("Database migrations completed")
		}
		return catalog.NewPostgresRepository(ctx, url)
	}
	return nil, fmt.Errorf("unknown database type %q", cfg.Type)
}

func setupStreams(ctx context.Context, js *natsclient.JetStreamClient) error {
	for _, sc := range []natsclient.StreamConfig{natsclient.BatchesStream, natsclient.ReportsStream} {
		if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
			return err
		}
	}
	_, err := js.CreateOrUpdateConsumer(ctx, messaging.StreamBatches,
		natsclient.DefaultConsumerConfig(messaging.ConsumerWorkers, messaging.SubjectBatches+".>"))
	return err
}

// Health is the body of /healthz.
type Health struct {
	Status string                 `json:"status"`
	NATS   messaging.HealthStatus `json:"nats"`
	Redis  string                 `json:"redis"`
}

func healthHandler(broker messaging.Pinger, rdb redis.UniversalClient) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		h := Health{Status: "ok", NATS: messaging.CheckHealth(ctx, broker), Redis: "ok"}
		if err := rdb.Ping(ctx).Err(); err != nil {
			h.Redis = err.Error()
			h.Status = "degraded"
		}
		if h.NATS.Error != "" {
			h.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if h.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	})
}
