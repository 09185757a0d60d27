// Command ingestion starts the write-side HTTP service.
//
// Documents posted to /api/v1/documents are validated and published to
// Kafka for the indexer. The sync endpoints read products from the
// relational catalog (PostgreSQL or SQLite) and index them directly.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/ingestion/syncer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("ingestion", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port, "source_driver", cfg.Source.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openCatalog(ctx, cfg)
	if err != nil {
		slog.Error("failed to open catalog source", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	src, err := source.New(db, cfg.Source.Driver, cfg.Source.Table, cfg.Source.Name)
	if err != nil {
		slog.Error("invalid catalog source", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("redis unavailable", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	engine := indexer.NewEngine(redisClient, cfg.Search, cfg.Suggest)

	var queryCache *cache.QueryCache
	if cfg.Redis.CacheEnabled {
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	var invalidator syncer.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	s := syncer.New(src, engine, invalidator, cfg.Sync, m)
	h := handler.New(publisher.New(producer), s, engine, invalidator, cfg.Sync)

	checker := health.NewChecker("ingestion")
	checker.Register("redis", health.Ping(redisClient.Ping, true))
	checker.Register("catalog", health.Ping(src.Ping, false))
	checker.Register("kafka", health.Ping(producer.Ping, false))

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.NewCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	// No write timeout: a bulk sync answers only once the whole catalog is
	// indexed.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}

func openCatalog(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Source.Driver == source.DriverSQLite {
		slog.Info("opening sqlite catalog", "path", cfg.Source.SQLitePath)
		return source.OpenSQLite(cfg.Source.SQLitePath)
	}
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	return client.DB, nil
}
