package initial

import (
	"context"
	"testing"
	"time"

	"EstateGuru/internal/config"
	"EstateGuru/internal/modules/estate/application/dto/request"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	conf := config.Default()
	conf.MainConfig.UploadDir = t.TempDir()
	conf.VectorConfig.Dim = 64
	conf.AIConfig.Embedding.Provider = "hash"
	// openai 客户端构造时不联网
	conf.AIConfig.ChatModel.Provider = "openai"
	conf.AIConfig.ChatModel.APIKey = "test-key"
	conf.AIConfig.ChatModel.Model = "gpt-4o-mini"
	conf.CatalogConfig.SeedDemo = true
	return conf
}

func TestNewAppInMemory(t *testing.T) {
	conf := testConfig(t)
	conf.MCPConfig.Enabled = true

	app, err := NewApp(context.Background(), conf)
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.QuerySvc)
	assert.NotNil(t, app.IngestSvc)
	assert.NotNil(t, app.MCP)
	assert.NotNil(t, app.Reindex)
	assert.Nil(t, app.AsyncIngestSvc)
	assert.Nil(t, app.Worker)

	got, err := app.QuerySvc.SearchProperties(context.Background(), request.PropertySearchRequest{Locality: "baner"})
	require.NoError(t, err)
	assert.NotZero(t, got.Total)

	res, err := app.IngestSvc.IngestDocument(context.Background(), request.IngestDocumentRequest{
		Filename: "wakad_guide.txt",
		Content:  "Wakad is close to the Hinjewadi IT park and has many new apartments.",
	})
	require.NoError(t, err)
	assert.Positive(t, res.ChunksCreated)

	n, err := app.VectorStore.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.ChunksCreated, n)
}

func TestNewAppAsyncIngestUsesMemoryBus(t *testing.T) {
	conf := testConfig(t)
	conf.IngestConfig.Async = true

	app, err := NewApp(context.Background(), conf)
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.AsyncIngestSvc)
	require.NotNil(t, app.Worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Worker.Run(ctx) }()

	queued, err := app.AsyncIngestSvc.EnqueueDocument(ctx, request.IngestDocumentRequest{
		SourceID: "doc-baner",
		Filename: "baner.txt",
		Content:  "Baner offers premium apartments near the Mumbai Pune highway.",
	})
	require.NoError(t, err)
	assert.True(t, queued.Queued)

	assert.Eventually(t, func() bool {
		srcs, err := app.IngestSvc.ListSources(ctx)
		return err == nil && len(srcs) == 1 && srcs[0].SourceID == "doc-baner"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewAppRejectsUnknownVectorBackend(t *testing.T) {
	conf := testConfig(t)
	conf.VectorConfig.Backend = "faiss"

	_, err := NewApp(context.Background(), conf)
	assert.Error(t, err)
}

func TestNewAppRequiresChatModel(t *testing.T) {
	conf := testConfig(t)
	conf.AIConfig.ChatModel.Provider = "none"

	_, err := NewApp(context.Background(), conf)
	assert.Error(t, err)
}

func TestNewVectorStoreRejectsDistanceMetric(t *testing.T) {
	conf := testConfig(t)
	conf.VectorConfig.Backend = "milvus"
	conf.MilvusConfig.MetricType = "L2"

	// 在连接 milvus 之前就失败
	_, _, err := NewVectorStore(context.Background(), conf)
	assert.ErrorContains(t, err, "unsupported milvus metric type")
}
