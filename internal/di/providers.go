package di

import (
	"context"
	"fmt"
	"time"

	"EmeraldAgent/internal/domain/repository"
	"EmeraldAgent/internal/engine"
	"EmeraldAgent/internal/handler/api"
	internalrepo "EmeraldAgent/internal/repository"
	"EmeraldAgent/internal/usecase"
	pkgch "EmeraldAgent/pkg/clickhouse"
	"EmeraldAgent/pkg/config"
	xhttp "EmeraldAgent/pkg/http"
	pkgkafka "EmeraldAgent/pkg/kafka"
	applogger "EmeraldAgent/pkg/logger"
	"EmeraldAgent/pkg/metrics"
	"EmeraldAgent/pkg/queue"
	"EmeraldAgent/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRedisPublisher connects the error-log publisher and attaches the
// log collector to l. Returns nil when redis is disabled.
func ProvideRedisPublisher(cfg *config.Config, l *applogger.Logger) (*queue.RedisPublisher, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pub := queue.NewRedisPublisher(l, client,
		queue.WithKeyPrefix(cfg.Redis.KeyPrefix),
		queue.WithMaxLen(cfg.Redis.MaxLen),
	)
	if err := pub.Start(context.Background()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis publisher: %w", err)
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Redis.FlushInterval,
		CountThreshold: cfg.Redis.FlushCount,
		Topic:          cfg.Redis.Topic,
		Publisher:      pub,
	})
	return pub, nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideLocator(cfg *config.Config) *engine.Locator {
	runner := func(r config.RunnerConfig) engine.Runner {
		return engine.Runner{Runtime: r.Runtime, Args: r.Args, Entry: r.Entry}
	}
	return engine.NewLocator(engine.LocatorConfig{
		RootDir:     cfg.Engine.RootDir,
		Compiled:    runner(cfg.Engine.Compiled),
		Interpreted: runner(cfg.Engine.Interpreted),
	})
}

func ProvideInvoker(cfg *config.Config) *engine.Invoker {
	return engine.NewInvoker(cfg.Engine.RootDir,
		engine.WithTimeout(cfg.Engine.AttemptTimeout),
		engine.WithWaitDelay(cfg.Engine.WaitDelay),
		engine.WithEnv(cfg.Engine.Env),
	)
}

func ProvideCatalog(locator *engine.Locator, invoker *engine.Invoker) *engine.Catalog {
	return engine.NewCatalog(locator, invoker)
}

func ProvideFallbackController(catalog *engine.Catalog, cfg *config.Config, l *applogger.Logger, m repository.Metrics) *usecase.FallbackController {
	return usecase.NewFallbackController(catalog, cfg.Engine.TotalBudget, l, m)
}

// ProvideClickHouseClient creates a ClickHouse client and the attempts table.
// Returns nil when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
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
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.AttemptSchema(attemptTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func attemptTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideAttemptStore returns nil when clickhouse is disabled.
func ProvideAttemptStore(client *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.AttemptStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewClickHouseAttemptStore(client.DB(), attemptTable(cfg), l)
}

func ProvideDecisionService(c *usecase.FallbackController, store repository.AttemptStore, l *applogger.Logger, m repository.Metrics) *usecase.DecisionService {
	return usecase.NewDecisionService(c, store, l, m)
}

func ProvideDecisionHandler(l *applogger.Logger, svc *usecase.DecisionService, catalog *engine.Catalog) *api.DecisionEchoHandler {
	return api.NewDecisionEchoHandler(l, svc, catalog)
}

func ProvideHTTPServer(cfg *config.Config, h *api.DecisionEchoHandler, l *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
		xhttp.WithMetrics(reg, reg),
	)
}

// ProvideKafkaProducer creates the result producer. Returns nil when kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideResultPublisher returns nil when there is no producer.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultTopic)
}

// ProvideKafkaConsumer creates the request consumer. Returns nil when kafka is
// disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(c.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerRegisterer(reg),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaDecisionHandler returns nil when there is nowhere to publish results.
func ProvideKafkaDecisionHandler(cfg *config.Config, svc *usecase.DecisionService, pub repository.ResultPublisher, m repository.Metrics, l *applogger.Logger) *usecase.KafkaDecisionHandler {
	if pub == nil {
		return nil
	}
	return usecase.NewKafkaDecisionHandler(cfg.Kafka.RequestTopic, svc, pub, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	svc *usecase.DecisionService,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaDecisionHandler,
	results repository.ResultPublisher,
	store repository.AttemptStore,
	chClient *pkgch.Client,
	logs *queue.RedisPublisher,
) *server.App {
	var handler pkgkafka.MessageHandler
	if kh != nil {
		handler = kh
	}

	var closers []server.Closer
	if results != nil {
		closers = append(closers, server.Closer{Name: "kafka producer", Close: results.Close})
	}
	if store != nil {
		closers = append(closers, server.Closer{Name: "attempt store", Close: store.Close})
	}
	if chClient != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: chClient.Close})
	}
	if logs != nil {
		// Flush aggregated logs before the publisher goes away.
		closers = append(closers, server.Closer{Name: "redis", Close: func() error {
			l.RemoveCollector()
			return logs.Close()
		}})
	}

	return server.New(l, httpServer, svc, consumer, handler, cfg.Server.ShutdownTimeout, closers...)
}
