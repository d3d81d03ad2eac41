package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/domain/repository"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/handler/api"
	mid "SigPulse/internal/middleware"
	internalrepo "SigPulse/internal/repository"
	"SigPulse/internal/service/exchange"
	"SigPulse/internal/service/trendapi"
	"SigPulse/internal/services/consensus"
	"SigPulse/internal/services/indicator"
	"SigPulse/internal/services/volume"
	"SigPulse/internal/usecase"
	pkgcache "SigPulse/pkg/cache"
	pkgch "SigPulse/pkg/clickhouse"
	"SigPulse/pkg/config"
	pkgkafka "SigPulse/pkg/kafka"
	applogger "SigPulse/pkg/logger"
	"SigPulse/pkg/metrics"
	"SigPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client when the decision
// backend needs one.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideDecisionStore creates the ClickHouse decision store and its schema.
func ProvideDecisionStore(chClient *pkgch.Client, cfg *config.Config) (repository.DecisionStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseDecisionStore(chClient.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("decision store schema: %w", err)
	}
	return store, nil
}

// ProvideDecisionPublisher creates the Kafka decision publisher.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.DecisionPublisher {
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
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

// ProvideKafkaTicksHandler registers the handler for the tick intake topic.
func ProvideKafkaTicksHandler(proc *usecase.TickProcessor, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Consumer.Topic, proc, m)
}

// ProvideExchangeStream creates the exchange WebSocket stream.
func ProvideExchangeStream(cfg *config.Config) repository.MarketStream {
	return exchange.New(
		cfg.Exchange.APIKey,
		cfg.Exchange.WebSocketURL,
		cfg.Exchange.Symbols,
		cfg.Exchange.ReconnectDelay,
		cfg.Exchange.PingInterval,
	)
}

// ProvideTrendFetcher creates the trend API fetcher.
func ProvideTrendFetcher(cfg *config.Config) domsvc.TimeframeFetcher {
	return trendapi.New(cfg.TrendAPI.BaseURL,
		trendapi.WithAPIKey(cfg.TrendAPI.APIKey),
		trendapi.WithTimeout(cfg.TrendAPI.Timeout),
		trendapi.WithRetries(cfg.TrendAPI.Retries),
	)
}

// ProvideSignalPipeline assembles the engine core.
func ProvideSignalPipeline(cfg *config.Config, fetcher domsvc.TimeframeFetcher, l *applogger.Logger) (*usecase.SignalPipeline, error) {
	checkMode, err := indicator.ParseCheckMode(cfg.Engine.Indicator.CheckMode)
	if err != nil {
		return nil, err
	}
	indCfg := indicator.Config{
		RSIPeriod:      cfg.Engine.Indicator.RSIPeriod,
		StochPeriod:    cfg.Engine.Indicator.StochPeriod,
		KPeriod:        cfg.Engine.Indicator.KPeriod,
		DPeriod:        cfg.Engine.Indicator.DPeriod,
		CheckMode:      checkMode,
		CheckInterval:  cfg.Engine.Indicator.CheckInterval,
		CheckTolerance: cfg.Engine.Indicator.CheckTolerance,
	}

	volCfg := volume.DefaultConfig()
	volCfg.LookbackPeriod = cfg.Engine.Volume.Lookback
	volCfg.PercentilePeriod = cfg.Engine.Volume.PercentileDepth
	volCfg.PercentileUpdateInterval = cfg.Engine.Volume.RefreshInterval
	volCfg.BuyThreshold = cfg.Engine.Volume.BuyThreshold
	volCfg.SellThreshold = cfg.Engine.Volume.SellThreshold
	volCfg.HighConfidenceThreshold = cfg.Engine.Volume.HighConfidence

	cache := consensus.NewSnapshotCache(models.DefaultTTLs(), models.DefaultSnapshotTTL)
	if cfg.Redis.Enabled {
		host, port := splitHostPort(cfg.Redis.Addr)
		redisCache, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Redis.Password),
			pkgcache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		cache.SetL2(redisCache)
	}

	coord, err := consensus.NewCoordinator(cache, fetcher, consensus.CoordinatorConfig{
		MaxWorkers:    cfg.Engine.Consensus.MaxWorkers,
		BaseTimeout:   cfg.Engine.Consensus.BaseTimeout,
		TimeoutBuffer: cfg.Engine.Consensus.TimeoutBuffer,
		LatencyWindow: cfg.Engine.Consensus.LatencyWindow,
	})
	if err != nil {
		return nil, err
	}
	coord.SetLogger(l)

	scorerCfg := consensus.DefaultScorerConfig()
	scorerCfg.ConsensusThreshold = cfg.Engine.Consensus.Threshold
	scorerCfg.HighConfidenceThreshold = cfg.Engine.Consensus.HighConfidence
	scorerCfg.MinimumTimeframes = cfg.Engine.Consensus.MinTimeframes
	scorer, err := consensus.NewScorer(scorerCfg)
	if err != nil {
		return nil, err
	}

	tfs := make([]models.Timeframe, 0, len(cfg.TimeframeList()))
	for _, s := range cfg.TimeframeList() {
		tfs = append(tfs, models.NormalizeTimeframe(s))
	}

	pipeline, err := usecase.NewSignalPipeline(indCfg, volCfg, coord, scorer, usecase.PipelineConfig{
		Timeframes:                tfs,
		RequireVolumeConfirmation: cfg.Engine.RequireVolumeConfirmation,
	})
	if err != nil {
		return nil, err
	}
	pipeline.SetLogger(l)
	return pipeline, nil
}

// ProvideDecisionProcessor creates the decision routing use case.
func ProvideDecisionProcessor(
	pub repository.DecisionPublisher,
	store repository.DecisionStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.DecisionProcessor {
	return usecase.NewDecisionProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideTickProcessor creates the tick handling use case.
func ProvideTickProcessor(
	pipeline *usecase.SignalPipeline,
	decision *usecase.DecisionProcessor,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.TickProcessor {
	proc := usecase.NewTickProcessor(pipeline, decision, m, cfg.Backend.EmitRejected)
	proc.SetLogger(l)
	return proc
}

// ProvideTickCollector creates the tick collector use case.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.TickProcessor,
	m repository.Metrics,
) *usecase.TickCollector {
	// Middleware pipeline between WebSocket and the engine
	pipe := mid.NewTickPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe)
}

// ProvideEngineHandler creates the HTTP API handler.
func ProvideEngineHandler(
	l *applogger.Logger,
	pipeline *usecase.SignalPipeline,
	decision *usecase.DecisionProcessor,
	store repository.DecisionStore,
	cfg *config.Config,
) *api.EngineEchoHandler {
	evaluate := usecase.NewEvaluateUseCase(pipeline, decision, cfg.Backend.EmitRejected)
	var decisions *usecase.DecisionsUseCase
	if store != nil {
		decisions = usecase.NewDecisionsUseCase(store)
	}
	return api.NewEngineEchoHandler(l, pipeline, evaluate, decisions)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	handler *api.EngineEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      logPublisher{producer},
		})
	}
	app := server.New(cfg, collector, consumer, kh, chClient)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.DecisionProc = collector.Processor().Decision()
	}
	return app
}

// logPublisher adapts the Kafka producer to the log collector sink.
type logPublisher struct {
	p *pkgkafka.Producer
}

func (lp logPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return lp.p.Publish(ctx, topic, nil, payload)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
