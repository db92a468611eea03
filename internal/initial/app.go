package initial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"EstateGuru/internal/config"
	"EstateGuru/internal/modules/estate/application/service"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/agent"
	"EstateGuru/internal/modules/estate/infrastructure/chunking"
	"EstateGuru/internal/modules/estate/infrastructure/docparser"
	"EstateGuru/internal/modules/estate/infrastructure/embedding"
	"EstateGuru/internal/modules/estate/infrastructure/llm"
	"EstateGuru/internal/modules/estate/infrastructure/mcpserver"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/internal/modules/estate/infrastructure/mq"
	"EstateGuru/internal/modules/estate/infrastructure/mq/kafka"
	"EstateGuru/internal/modules/estate/infrastructure/persistence"
	"EstateGuru/internal/modules/estate/infrastructure/pipeline"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"EstateGuru/internal/modules/estate/infrastructure/queue"
	"EstateGuru/internal/modules/estate/infrastructure/router"
	"EstateGuru/internal/modules/estate/infrastructure/session"
	"EstateGuru/internal/modules/estate/infrastructure/tools"
	"EstateGuru/internal/modules/estate/interface/scheduler"
	"EstateGuru/pkg/zlog"

	mcpgo "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 进程内组装好的全部组件
type App struct {
	Conf    *config.Config
	Metrics *metrics.Metrics

	Preprocessor *preprocess.Preprocessor
	VectorStore  repository.VectorStore
	Catalog      repository.PropertyCatalog
	Sources      repository.SourceRepository
	Sessions     repository.SessionStore
	Registry     *tools.Registry

	QuerySvc       service.QueryService
	IngestSvc      service.IngestService
	AsyncIngestSvc service.AsyncIngestService // 未启用异步入库时为 nil

	MCP     *mcpgo.MCPServer
	Worker  *queue.IngestConsumerWorker // 未启用异步入库时为 nil
	Reindex *scheduler.ReindexManager

	closers []func()
}

// NewApp 按配置组装；外部依赖（MySQL、Redis、Milvus、Kafka）未配置时退回进程内实现
func NewApp(ctx context.Context, conf *config.Config) (*App, error) {
	a := &App{Conf: conf, Metrics: metrics.NewMetrics()}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	conf := a.Conf
	a.Preprocessor = preprocess.New(preprocess.WithExtraLocalities(conf.PreprocessConfig.ExtraLocalities))

	store, closeStore, err := NewVectorStore(ctx, conf)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	a.VectorStore = store
	a.closers = append(a.closers, closeStore)

	embedder, emeta, err := embedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	chatModel, cmeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		return fmt.Errorf("chat model: %w", err)
	}
	zlog.Info("ai providers ready",
		zap.String("embedding", emeta.Provider), zap.String("embedding_model", emeta.Model),
		zap.String("chat", cmeta.Provider), zap.String("chat_model", cmeta.Model))

	if err := a.buildStorage(ctx); err != nil {
		return err
	}

	rc := conf.RetrieveConfig
	retrieve, err := pipeline.NewRetrievePipeline(embedder, store, a.Preprocessor, pipeline.RetrieveOptions{
		DefaultTopK:     rc.DefaultTopK,
		MaxTopK:         rc.MaxTopK,
		OverFetchFactor: rc.OverFetchFactor,
		LocationStrict:  rc.LocationStrict,
	}, a.Metrics)
	if err != nil {
		return err
	}
	knowledge, err := pipeline.NewKnowledgePipeline(a.Preprocessor, retrieve, chatModel)
	if err != nil {
		return err
	}
	ic := conf.IngestConfig
	ingest, err := pipeline.NewIngestPipeline(a.Sources, store, embedder,
		chunking.New(ic.Splitter, ic.ChunkSize, ic.ChunkOverlap), a.Preprocessor,
		pipeline.IngestOptions{
			EmbedBatchSize:   ic.EmbedBatchSize,
			EmbedConcurrency: ic.EmbedConcurrency,
			MaxContentBytes:  ic.MaxContentBytes,
		}, a.Metrics)
	if err != nil {
		return err
	}

	a.Registry, err = tools.NewRegistry(a.Catalog, retrieve, a.Preprocessor)
	if err != nil {
		return err
	}
	rt, err := router.New(chatModel, a.Preprocessor, a.Metrics)
	if err != nil {
		return err
	}
	ac := conf.AgentConfig
	runtime, err := agent.NewRuntime(chatModel, a.Registry, agent.Options{
		MaxIterations:   ac.MaxIterations,
		HistoryLimit:    ac.HistoryLimit,
		MaxToolFailures: ac.MaxToolFailures,
	}, a.Metrics)
	if err != nil {
		return err
	}

	a.QuerySvc, err = service.NewQueryService(service.QueryDeps{
		Analyzer:  a.Preprocessor,
		Knowledge: knowledge,
		Retrieve:  retrieve,
		Router:    rt,
		Agent:     runtime,
		ChatModel: chatModel,
		Sessions:  a.Sessions,
		Catalog:   a.Catalog,
	})
	if err != nil {
		return err
	}
	docs, err := docparser.New(ctx)
	if err != nil {
		return err
	}
	a.IngestSvc = service.NewIngestService(ingest, a.Sources, store, docs)
	if err := a.buildQueue(ingest, docs); err != nil {
		return err
	}

	if conf.MCPConfig.Enabled {
		a.MCP = mcpserver.NewServer(mcpserver.ServerConfig{Name: conf.MCPConfig.Name, Version: conf.MCPConfig.Version}, a.Registry)
	}
	a.Reindex = scheduler.NewReindexManager(a.IngestSvc, conf.MainConfig.UploadDir, 0)
	return nil
}

// buildStorage 目录、源登记、会话的存储选择
func (a *App) buildStorage(ctx context.Context) error {
	conf := a.Conf
	var db *gorm.DB
	if conf.MysqlConfig.Host != "" {
		var err error
		if db, err = NewGormDB(conf); err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
	}

	if strings.EqualFold(conf.CatalogConfig.Backend, "mysql") && db != nil {
		a.Catalog = persistence.NewPropertyRepository(db)
	} else {
		a.Catalog = persistence.NewMemoryCatalog()
	}
	if conf.CatalogConfig.SeedDemo {
		if err := a.Catalog.Upsert(ctx, persistence.DemoProperties()); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	if db != nil {
		a.Sources = persistence.NewSourceRepository(db)
	} else {
		a.Sources = persistence.NewMemorySourceRepository()
	}

	ttl := time.Duration(conf.SessionConfig.TTLMinutes) * time.Minute
	if strings.EqualFold(conf.SessionConfig.Backend, "redis") {
		client, err := NewRedisClient(ctx, conf)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if client != nil {
			a.closers = append(a.closers, func() { _ = client.Close() })
			a.Sessions = session.NewRedisStore(client, conf.SessionConfig.KeyPrefix, ttl)
			return nil
		}
		zlog.Warn("session backend redis requested but redis is not configured, using memory")
	}
	a.Sessions = session.NewMemoryStore(ttl)
	return nil
}

// buildQueue Kafka 启用时走 broker；仅开启 async 时用进程内队列
func (a *App) buildQueue(ingest *pipeline.IngestPipeline, docs service.DocumentParser) error {
	conf := a.Conf
	kc := conf.KafkaConfig
	switch {
	case kc.Enabled:
		cfg := kafka.Config{
			Brokers:     kc.Brokers,
			ClientID:    kc.ClientID,
			GroupID:     kc.ConsumerGroupID,
			Topic:       kc.IngestTopic,
			Partitions:  kc.Partitions,
			Replication: kc.Replication,
		}
		if err := kafka.EnsureTopic(cfg); err != nil {
			return fmt.Errorf("kafka topic: %w", err)
		}
		pub, err := kafka.NewPublisher(cfg)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		consumer, err := kafka.NewConsumer(cfg)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.closers = append(a.closers, func() { _ = consumer.Close() })
		a.AsyncIngestSvc = service.NewAsyncIngestService(pub, kc.IngestTopic, conf.IngestConfig.MaxContentBytes, docs)
		a.Worker = queue.NewIngestConsumerWorker(consumer, ingest)
	case conf.IngestConfig.Async:
		bus := mq.NewMemoryBus(64)
		a.closers = append(a.closers, func() { _ = bus.Close() })
		a.AsyncIngestSvc = service.NewAsyncIngestService(bus, kc.IngestTopic, conf.IngestConfig.MaxContentBytes, docs)
		a.Worker = queue.NewIngestConsumerWorker(bus, ingest)
	}
	return nil
}

// Close 逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if a.closers[i] != nil {
			a.closers[i]()
		}
	}
	a.closers = nil
}
