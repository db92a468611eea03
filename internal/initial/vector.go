package initial

import (
	"context"
	"fmt"
	"strings"

	"EstateGuru/internal/config"
	"EstateGuru/internal/modules/estate/domain/repository"
	"EstateGuru/internal/modules/estate/infrastructure/vectordb"
	"EstateGuru/pkg/zlog"

	"go.uber.org/zap"
)

// NewVectorStore 按 vectorConfig.backend 构造向量库；返回的 closer 在退出时调用
func NewVectorStore(ctx context.Context, conf *config.Config) (repository.VectorStore, func(), error) {
	backend := strings.ToLower(strings.TrimSpace(conf.VectorConfig.Backend))
	zlog.Info("vector store init", zap.String("backend", backend), zap.Int("dim", conf.VectorConfig.Dim))
	switch backend {
	case "memory":
		s, err := vectordb.NewChromemStore("", conf.VectorConfig.Collection, conf.VectorConfig.Dim)
		return s, func() {}, err
	case "chromem":
		s, err := vectordb.NewChromemStore(conf.VectorConfig.PersistPath, conf.VectorConfig.Collection, conf.VectorConfig.Dim)
		return s, func() {}, err
	case "milvus":
		metric := metricOf(conf.MilvusConfig.MetricType)
		// 建集合前先拦下，避免用 L2 建出索引
		if err := vectordb.CheckMetric(metric); err != nil {
			return nil, nil, err
		}
		cli, err := NewMilvusClient(ctx, conf)
		if err != nil {
			return nil, nil, err
		}
		s, err := vectordb.NewMilvusStore(cli, conf.MilvusConfig.CollectionName, conf.VectorConfig.Dim, metric)
		if err != nil {
			_ = cli.Close()
			return nil, nil, err
		}
		return s, func() { _ = cli.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend: %s", backend)
	}
}
