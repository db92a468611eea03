package initial

import (
	"context"
	"fmt"
	"strings"

	"EstateGuru/internal/config"
	"EstateGuru/internal/modules/estate/infrastructure/vectordb"
	"EstateGuru/pkg/zlog"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// NewMilvusClient 连接 Milvus，按需建库、建集合、建索引并加载
func NewMilvusClient(ctx context.Context, conf *config.Config) (mclient.Client, error) {
	addr := strings.TrimSpace(conf.MilvusConfig.Address)
	if addr == "" {
		return nil, fmt.Errorf("milvus address not configured")
	}
	dbName := strings.TrimSpace(conf.MilvusConfig.DBName)
	collection := strings.TrimSpace(conf.MilvusConfig.CollectionName)
	dim := conf.VectorConfig.Dim

	defaultCli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  addr,
		Username: strings.TrimSpace(conf.MilvusConfig.Username),
		Password: strings.TrimSpace(conf.MilvusConfig.Password),
		DBName:   "default",
	})
	if err != nil {
		return nil, err
	}
	defer defaultCli.Close()

	dbs, err := defaultCli.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	exists := false
	for _, db := range dbs {
		if db.Name == dbName {
			exists = true
			break
		}
	}
	if !exists {
		if err := defaultCli.CreateDatabase(ctx, dbName); err != nil {
			return nil, err
		}
	}

	cli, err := mclient.NewClient(ctx, mclient.Config{
		Address:  addr,
		Username: strings.TrimSpace(conf.MilvusConfig.Username),
		Password: strings.TrimSpace(conf.MilvusConfig.Password),
		DBName:   dbName,
	})
	if err != nil {
		return nil, err
	}

	has, err := cli.HasCollection(ctx, collection)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	if !has {
		if err := createEstateCollection(ctx, cli, collection, dim, metricOf(conf.MilvusConfig.MetricType)); err != nil {
			_ = cli.Close()
			return nil, err
		}
		zlog.Info("milvus collection created", zap.String("collection", collection), zap.Int("dim", dim))
	}

	if err := cli.LoadCollection(ctx, collection, false); err != nil {
		zlog.Warn("milvus load collection failed", zap.String("collection", collection), zap.Error(err))
	}
	return cli, nil
}

func createEstateCollection(ctx context.Context, cli mclient.Client, collection string, dim int, metric entity.MetricType) error {
	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "real estate document chunks",
		Fields: []*entity.Field{
			{
				Name:       vectordb.FieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       vectordb.FieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{entity.TypeParamDim: fmt.Sprintf("%d", dim)},
			},
			{
				Name:       vectordb.FieldSourceID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     vectordb.FieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       vectordb.FieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       vectordb.FieldLocality,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     vectordb.FieldMetadata,
				DataType: entity.FieldTypeJSON,
			},
		},
	}
	if err := cli.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return err
	}
	idx, err := entity.NewIndexAUTOINDEX(metric)
	if err != nil {
		return err
	}
	return cli.CreateIndex(ctx, collection, vectordb.FieldVector, idx, false)
}

func metricOf(s string) entity.MetricType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IP":
		return entity.IP
	case "L2":
		return entity.L2
	default:
		return entity.COSINE
	}
}
