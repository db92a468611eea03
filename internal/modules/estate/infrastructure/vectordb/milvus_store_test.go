package vectordb

import (
	"testing"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idleClient 只用于构造，任何 RPC 都不会被调用
type idleClient struct {
	mclient.Client
}

func TestNewMilvusStoreMetric(t *testing.T) {
	s, err := NewMilvusStore(idleClient{}, "estate", 8, "")
	require.NoError(t, err)
	assert.Equal(t, entity.COSINE, s.metricType)

	s, err = NewMilvusStore(idleClient{}, "estate", 8, entity.IP)
	require.NoError(t, err)
	assert.Equal(t, entity.IP, s.metricType)

	_, err = NewMilvusStore(idleClient{}, "estate", 8, entity.L2)
	assert.ErrorContains(t, err, "unsupported milvus metric type")

	_, err = NewMilvusStore(nil, "estate", 8, entity.COSINE)
	assert.Error(t, err)
	_, err = NewMilvusStore(idleClient{}, " ", 8, entity.COSINE)
	assert.Error(t, err)
}

func TestMilvusExpressions(t *testing.T) {
	assert.Equal(t, `id in ["a", "b\"c"]`, idInExpr([]string{"a", `b"c`}))
	assert.Equal(t, `x\\y`, escapeExpr(`x\y`))
}
