package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/repository"
	domsvc "FinFuse/internal/domain/service"
	"FinFuse/internal/handler/api"
	mid "FinFuse/internal/middleware"
	internalrepo "FinFuse/internal/repository"
	icache "FinFuse/internal/service/cache"
	"FinFuse/internal/service/feed"
	"FinFuse/internal/services/fusion"
	"FinFuse/internal/services/marketctx"
	"FinFuse/internal/usecase"
	pkgcache "FinFuse/pkg/cache"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	applogger "FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"
	pkgqueue "FinFuse/pkg/queue"
	"FinFuse/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	l, err := applogger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
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
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.intents (at DateTime, ticker String, direction LowCardinality(String), confidence Float64, composite Float64, rationale String, gates Array(String), size_adj Float64) ENGINE=MergeTree ORDER BY (ticker, at)", db),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient creates the client the retry queue runs on, or nil when
// the queue is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Queue.Enabled {
		return nil
	}
	addr := cfg.Cache.Redis.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
}

// ProvideRedisQueue creates the retry queue, or nil when disabled.
func ProvideRedisQueue(cfg *config.Config, rc *redis.Client, l *applogger.Logger) *pkgqueue.RedisQueue {
	if rc == nil {
		return nil
	}
	return pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc, pkgqueue.ModeProducerConsumer,
		pkgqueue.WithKeyPrefix("finfuse:replay"))
}

// ProvideCacheService creates the layered context cache; memory-only unless
// Redis is enabled.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	host, port := splitHostPort(cfg.Cache.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideBytesCache creates the HTTP response cache.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return "localhost", 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideIntentStore creates the ClickHouse audit store.
func ProvideIntentStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.IntentStore {
	store := internalrepo.NewClickHouseIntentStore(chClient.DB(), cfg.ClickHouse.Database+".intents")
	store.SetLogger(l)
	return store
}

// ProvideIntentPublisher creates the Kafka intent publisher.
func ProvideIntentPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.IntentPublisher {
	return internalrepo.NewKafkaIntentPublisher(producer, cfg.Kafka.Topic)
}

// ProvideSignalStream creates the feed WebSocket stream.
func ProvideSignalStream(cfg *config.Config) repository.SignalStream {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.URL,
		cfg.Feed.Tickers,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideContextProvider creates the market context provider.
func ProvideContextProvider(cfg *config.Config, cache pkgcache.Service, l *applogger.Logger) domsvc.ContextProvider {
	return marketctx.New(
		cfg.ContextService.URL,
		cfg.ContextService.Timeout,
		cfg.ContextService.CacheTTL,
		cache,
		l,
	)
}

// ProvideFusionEngine builds the engine from configured thresholds, falling
// back to the documented defaults when the section is absent.
func ProvideFusionEngine(cfg *config.Config) (*fusion.Engine, error) {
	fc := fusion.Config{
		MinChartVolume:    cfg.Fusion.MinChartVolume,
		ImpactEpsilon:     cfg.Fusion.ImpactEpsilon,
		ImpactScaling:     cfg.Fusion.ImpactScaling,
		HighImportance:    cfg.Fusion.HighImportance,
		ChartDampening:    cfg.Fusion.ChartDampening,
		NewsAmplification: cfg.Fusion.NewsAmplification,
		DisagreementFloor: cfg.Fusion.DisagreementFloor,
		HighVolatility:    cfg.Fusion.HighVolatility,
		ConfidenceCeiling: cfg.Fusion.ConfidenceCeiling,
	}
	if fc == (fusion.Config{}) {
		fc = fusion.DefaultConfig()
	}
	engine, err := fusion.NewEngine(fc)
	if err != nil {
		return nil, fmt.Errorf("fusion engine: %w", err)
	}
	return engine, nil
}

// ProvideFuseUseCase creates the single-ticker fuse use case.
func ProvideFuseUseCase(engine *fusion.Engine, provider domsvc.ContextProvider, metrics repository.Metrics) *usecase.FuseUseCase {
	return usecase.NewFuseUseCase(engine, provider, metrics)
}

// ProvideFuseBatchUseCase creates the batch fuse use case.
func ProvideFuseBatchUseCase(fuse *usecase.FuseUseCase) *usecase.FuseBatchUseCase {
	return usecase.NewFuseBatchUseCase(fuse)
}

// ProvideIntentsQueryUseCase creates the audit read use case.
func ProvideIntentsQueryUseCase(store repository.IntentStore) *usecase.IntentsQueryUseCase {
	return usecase.NewIntentsQueryUseCase(store)
}

// ProvideIntentProcessor creates the intent processor use case.
func ProvideIntentProcessor(
	pub repository.IntentPublisher,
	store repository.IntentStore,
	metrics repository.Metrics,
	q *pkgqueue.RedisQueue,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.IntentProcessor {
	// A nil *RedisQueue must stay a nil interface.
	var qs pkgqueue.QueueService
	if q != nil {
		qs = q
	}
	return usecase.NewIntentProcessor(
		pub,
		store,
		metrics,
		qs,
		l,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideSnapshotTable creates the per-ticker signal snapshot table.
func ProvideSnapshotTable(cfg *config.Config) *usecase.SnapshotTable {
	return usecase.NewSnapshotTable(cfg.Fusion.SnapshotTTL)
}

// ProvideSignalIngest creates the shared live fuse path.
func ProvideSignalIngest(
	snapshots *usecase.SnapshotTable,
	fuse *usecase.FuseUseCase,
	proc *usecase.IntentProcessor,
	metrics repository.Metrics,
) *usecase.SignalIngest {
	return usecase.NewSignalIngest(snapshots, fuse, proc, metrics)
}

// ProvideSignalCollector creates the feed collector use case.
func ProvideSignalCollector(
	stream repository.SignalStream,
	ingest *usecase.SignalIngest,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.SignalCollector {
	// Build intake middleware between the WebSocket feed and the fuse path
	pipe := mid.NewIntakePipeline(ingest, metrics,
		mid.WithMaxRPS(cfg.Intake.MaxRPS),
		mid.WithBufferSize(cfg.Intake.BufferSize),
		mid.WithTransform(normalizeEnvelope),
	)
	return usecase.NewSignalCollector(stream, ingest, metrics, pipe)
}

func normalizeEnvelope(env *models.SignalEnvelope) *models.SignalEnvelope {
	env.Ticker = strings.ToUpper(strings.TrimSpace(env.Ticker))
	return env
}

// ProvideKafkaSignalsHandler registers the handler for the signals topic.
func ProvideKafkaSignalsHandler(ingest *usecase.SignalIngest, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, ingest, metrics)
}

// ProvideFusionHandler assembles the HTTP handler with its cache, limiter
// and logger.
func ProvideFusionHandler(
	fuse *usecase.FuseUseCase,
	batch *usecase.FuseBatchUseCase,
	intents *usecase.IntentsQueryUseCase,
	bcache icache.BytesCache,
	l *applogger.Logger,
	cfg *config.Config,
) xhttp.Handler {
	h := api.NewFusionHandler(fuse, batch, intents)
	h.SetCache(bcache)
	h.SetLogger(l)
	h.SetResponseTTL(cfg.Cache.ResponseTTL)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.SignalCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
	q *pkgqueue.RedisQueue,
	producer *pkgkafka.Producer,
	proc *usecase.IntentProcessor,
	h xhttp.Handler,
) *server.App {
	// Trace hook stamps start time and header trace id before each handle
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook()))
	}
	// Register replay jobs before the queue starts consuming
	if q != nil {
		q.RegisterJob(usecase.NewRecordIntentJob(proc, l))
		if cfg.Logging.CollectErrors && cfg.Logging.LogTopic != "" {
			q.RegisterJob(usecase.NewLogForwardJob(producer, cfg.Logging.LogTopic, l))
		}
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, q)
	app.IntentProc = proc
	app.SetHTTPHandler(h)
	return app
}
