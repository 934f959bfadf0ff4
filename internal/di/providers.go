package di

import (
	"context"
	"fmt"
	"time"

	domrepo "MDK/internal/domain/repository"
	"MDK/internal/handler/api"
	internalrepo "MDK/internal/repository"
	icache "MDK/internal/service/cache"
	"MDK/internal/service/ratelimit"
	"MDK/internal/services/metric"
	modelsvc "MDK/internal/services/models"
	"MDK/internal/usecase"
	"MDK/pkg/cache"
	pkgch "MDK/pkg/clickhouse"
	"MDK/pkg/config"
	xhttp "MDK/pkg/http"
	pkgkafka "MDK/pkg/kafka"
	applogger "MDK/pkg/logger"
	"MDK/pkg/metrics"
	"MDK/pkg/queue"
	"MDK/pkg/server"
)

// ProvideLogger builds the process logger from the logging section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics registers the training and serving collectors on the
// default registry, which /metrics serves.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

// ProvideKVStore returns Redis when enabled, otherwise a process-local
// store with the same semantics.
func ProvideKVStore(cfg *config.Config, log *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithCapacity(cfg.Redis.MemoryMaxKeys))
		log.Warn("redis disabled; experiments are kept in memory")
		return mc, func() { _ = mc.Close() }, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisEndpoint(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, 0),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

func ProvideExperimentStore(kv cache.Service, cfg *config.Config) *internalrepo.ExperimentStore {
	return internalrepo.NewExperimentStore(kv, cfg.Redis.ExperimentPrefix, cfg.Redis.TTL)
}

// ProvideCandleSource connects to ClickHouse when enabled. A nil source
// limits training to inline rows.
func ProvideCandleSource(cfg *config.Config, log *applogger.Logger) (domrepo.DatasetSource, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(context.Background(),
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithPool(cfg.ClickHouse.MaxOpenConns, 0, 0),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	src, err := internalrepo.NewCHCandleSource(client.DB(), cfg.ClickHouse.CandlesTable, log)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if cfg.ClickHouse.InitSchema {
		if err := client.InitSchema(context.Background(), src.SchemaDDL()); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
	}
	return src, func() { _ = client.Close() }, nil
}

func ProvideModelFactory(cfg *config.Config, log *applogger.Logger) *modelsvc.Factory {
	return modelsvc.NewFactory(
		modelsvc.WithSeed(cfg.MDK.Seed),
		modelsvc.WithSaveDir(cfg.MDK.ArtifactDir),
		modelsvc.WithWorkers(cfg.MDK.FitWorkers),
		modelsvc.WithLegacyGlobalSeed(cfg.MDK.LegacyGlobalSeed),
		modelsvc.WithLogger(log),
	)
}

func ProvideTrainer(f *modelsvc.Factory, log *applogger.Logger) *usecase.Trainer {
	return usecase.NewTrainer(f, log)
}

// Transport holds the job and event plumbing. With Kafka enabled it has a
// producer and consumer; otherwise, with Redis enabled, a work queue;
// otherwise nothing and jobs run in process.
type Transport struct {
	Producer *pkgkafka.Producer
	Consumer *pkgkafka.Consumer
	Queue    *queue.RedisQueue
}

// ProvideTransport opens the configured transport. With Kafka it also
// routes deduplicated warn/error digests to the digest topic.
func ProvideTransport(cfg *config.Config, kv cache.Service, log *applogger.Logger) (*Transport, func(), error) {
	if cfg.Kafka.Enabled {
		return kafkaTransport(cfg, log)
	}
	if rc, ok := kv.(*cache.RedisCache); ok {
		q := queue.NewRedisQueue(rc.Client(), log,
			queue.WithWorkers(cfg.MDK.TrainWorkers),
			queue.WithKeyPrefix(cfg.Redis.QueuePrefix),
			queue.WithRetry(cfg.Kafka.Consumer.RetryMax, cfg.Redis.QueueRetryDelay),
			queue.WithPermanent(pkgkafka.IsPermanent),
		)
		return &Transport{Queue: q}, func() {}, nil
	}
	return &Transport{}, func() {}, nil
}

func kafkaTransport(cfg *config.Config, log *applogger.Logger) (*Transport, func(), error) {
	k := cfg.Kafka
	producer, err := pkgkafka.NewProducer(log,
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.Producer.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(k.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(k.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(k.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
	)
	if err != nil {
		_ = producer.Close()
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.TraceHook())

	var collector *applogger.LogCollector
	if cfg.Logging.DigestTopic != "" {
		collector = applogger.NewLogCollector(applogger.CollectionConfig{
			FlushInterval: cfg.Logging.DigestInterval,
			Topic:         cfg.Logging.DigestTopic,
			Publisher:     internalrepo.NewLogDigestPublisher(producer),
		})
		log.AttachCollector(collector)
	}

	cleanup := func() {
		if collector != nil {
			collector.Close()
		}
		_ = producer.Close()
	}
	return &Transport{Producer: producer, Consumer: consumer}, cleanup, nil
}

func ProvideEventPublisher(t *Transport, cfg *config.Config) domrepo.EventPublisher {
	if t.Producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(t.Producer, cfg.Kafka.EventsTopic)
}

func ProvideTrainingRunner(
	cfg *config.Config,
	trainer *usecase.Trainer,
	store domrepo.ExperimentStore,
	source domrepo.DatasetSource,
	events domrepo.EventPublisher,
	kv cache.Service,
	rec domrepo.Metrics,
	log *applogger.Logger,
) *usecase.TrainingRunner {
	return usecase.NewTrainingRunner(cfg.Kafka.JobsTopic, cfg.MDK.ArtifactDir, usecase.RunnerDeps{
		Trainer: trainer,
		Store:   store,
		Source:  source,
		Events:  events,
		Locker:  kv,
		Metrics: rec,
		Log:     log,
	})
}

// ProvideDispatcher picks the dispatcher matching the transport.
func ProvideDispatcher(cfg *config.Config, t *Transport, runner *usecase.TrainingRunner, log *applogger.Logger) (domrepo.JobDispatcher, func()) {
	switch {
	case t.Producer != nil:
		return internalrepo.NewKafkaJobDispatcher(t.Producer, cfg.Kafka.JobsTopic), func() {}
	case t.Queue != nil:
		return internalrepo.NewQueueJobDispatcher(t.Queue, cfg.Kafka.JobsTopic), func() {}
	}
	d := usecase.NewInProcessDispatcher(runner, cfg.MDK.TrainWorkers, log)
	return d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := d.Close(ctx); err != nil {
			log.Warn("in-process dispatcher close", applogger.Error(err))
		}
	}
}

func ProvideModelCache(cfg *config.Config, rec domrepo.Metrics) *icache.ModelCache {
	return icache.NewModelCache(cfg.Serving.ModelCacheTTL, icache.WithEventHook(rec.RecordCache))
}

func ProvideExperimentService(
	store domrepo.ExperimentStore,
	dispatch domrepo.JobDispatcher,
	events domrepo.EventPublisher,
	rec domrepo.Metrics,
	log *applogger.Logger,
) *usecase.ExperimentService {
	return usecase.NewExperimentService(store, dispatch, events, rec, log)
}

func ProvidePredictor(
	cfg *config.Config,
	store domrepo.ExperimentStore,
	source domrepo.DatasetSource,
	f *modelsvc.Factory,
	mc *icache.ModelCache,
	rec domrepo.Metrics,
	log *applogger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(store, source, f, mc,
		usecase.WithRecentRows(cfg.MDK.RecentRows),
		usecase.WithPredictorMetrics(rec),
		usecase.WithPredictorLogger(log),
	)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Serving.TrainRatePerMin, cfg.Serving.TrainBurst)
}

func ProvideHandlers(
	log *applogger.Logger,
	experiments *usecase.ExperimentService,
	predictor *usecase.Predictor,
	limiter *ratelimit.Limiter,
	f *modelsvc.Factory,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewExperimentHandler(log, experiments, predictor, limiter),
		api.NewCatalogHandler(log, f, metric.NewFactory()),
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, log *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(path),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithLogger(log),
	)
}

func ProvideApp(
	cfg *config.Config,
	srv *xhttp.Server,
	t *Transport,
	runner *usecase.TrainingRunner,
	mc *icache.ModelCache,
	log *applogger.Logger,
) *server.App {
	return server.New(server.Components{
		HTTP:            srv,
		Consumer:        t.Consumer,
		Queue:           t.Queue,
		Jobs:            runner,
		ModelCache:      mc,
		SweepInterval:   time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Log:             log,
	})
}
