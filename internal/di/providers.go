package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"CoilScan/internal/domain/repository"
	"CoilScan/internal/handler/api"
	internalrepo "CoilScan/internal/repository"
	"CoilScan/internal/service/binance"
	"CoilScan/internal/usecase"
	"CoilScan/pkg/cache"
	pkgch "CoilScan/pkg/clickhouse"
	"CoilScan/pkg/config"
	xhttp "CoilScan/pkg/http"
	pkgkafka "CoilScan/pkg/kafka"
	applogger "CoilScan/pkg/logger"
	"CoilScan/pkg/metrics"
	"CoilScan/pkg/server"
)

// ProvideLogger creates the application logger. Production gets JSON output.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCandleStore creates the candle store and initializes its schema.
func ProvideCandleStore(chClient *pkgch.Client, lgr *applogger.Logger) (repository.CandleStore, error) {
	store := internalrepo.NewCHCandleStore(chClient, lgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("candle schema: %w", err)
	}
	return store, nil
}

// ProvideCandleSource creates the Binance REST source.
func ProvideCandleSource(cfg *config.Config, lgr *applogger.Logger) repository.CandleSource {
	return binance.New(
		cfg.Binance.RESTURL,
		lgr,
		binance.WithRateLimit(cfg.Binance.RatePerSec, cfg.Binance.Burst),
		binance.WithTimeout(cfg.Binance.Timeout),
	)
}

// ProvideCandleStream creates the Binance kline tail stream when enabled,
// subscribed to the explicit universe. Pattern-based universes skip the tail:
// the symbol set is only known after a catalog fetch.
func ProvideCandleStream(cfg *config.Config, lgr *applogger.Logger) repository.CandleStream {
	if !cfg.Binance.StreamEnabled || len(cfg.Universe.Explicit) == 0 {
		return nil
	}
	return binance.NewStream(
		cfg.Binance.WebSocketURL,
		cfg.Universe.Explicit,
		repository.DefaultTimeframe(),
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
		lgr,
	)
}

// ProvideCache creates the report cache: Redis when enabled, else in-memory.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideReportPublisher creates the Kafka report publisher, or a no-op one
// when Kafka is disabled.
func ProvideReportPublisher(cfg *config.Config) (repository.ReportPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopReportPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideUniverseResolver creates the universe resolver use case.
func ProvideUniverseResolver(source repository.CandleSource, cfg *config.Config, m repository.Metrics, lgr *applogger.Logger) *usecase.UniverseResolver {
	return usecase.NewUniverseResolver(source, cfg.Universe, m, lgr)
}

// ProvideIngestor creates the candle ingestor use case.
func ProvideIngestor(source repository.CandleSource, store repository.CandleStore, cfg *config.Config, m repository.Metrics, lgr *applogger.Logger) *usecase.Ingestor {
	return usecase.NewIngestor(source, store, cfg.Scan, cfg.Binance.PageSize, m, lgr)
}

// ProvideStageEvaluator creates the staged gate evaluator.
func ProvideStageEvaluator(cfg *config.Config, m repository.Metrics) *usecase.StageEvaluator {
	return usecase.NewStageEvaluator(cfg.Pipeline, m)
}

// ProvideMTFAAggregator creates the cross-timeframe aggregator.
func ProvideMTFAAggregator(cfg *config.Config) *usecase.MTFAAggregator {
	return usecase.NewMTFAAggregator(cfg.MTFA)
}

// ProvideScanner creates the scan orchestrator.
func ProvideScanner(
	resolver *usecase.UniverseResolver,
	ingestor *usecase.Ingestor,
	stages *usecase.StageEvaluator,
	mtfa *usecase.MTFAAggregator,
	store repository.CandleStore,
	publisher repository.ReportPublisher,
	cacheSvc cache.Service,
	cfg *config.Config,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.Scanner {
	return usecase.NewScanner(resolver, ingestor, stages, mtfa, store, publisher, cacheSvc, cfg, m, lgr)
}

// ProvideTailCollector creates the live candle tail, nil when no stream.
func ProvideTailCollector(stream repository.CandleStream, m repository.Metrics, lgr *applogger.Logger) *usecase.TailCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewTailCollector(stream, m, lgr)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(lgr *applogger.Logger, scanner *usecase.Scanner, store repository.CandleStore, cacheSvc cache.Service) xhttp.Handler {
	return api.NewScanEchoHandler(lgr, scanner, store, cacheSvc)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	scanner *usecase.Scanner,
	tail *usecase.TailCollector,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	lgr *applogger.Logger,
) *server.App {
	return server.New(cfg, scanner, tail, chClient, handler, lgr)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
