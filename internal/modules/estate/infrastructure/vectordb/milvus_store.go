package vectordb

import (
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Milvus 集合字段名
const (
	FieldID         = "id"
	FieldVector     = "vector"
	FieldSourceID   = "source_id"
	FieldChunkIndex = "chunk_index"
	FieldText       = "text"
	FieldLocality   = "locality"
	FieldMetadata   = "metadata"
)

var milvusOutputFields = []string{FieldSourceID, FieldChunkIndex, FieldText, FieldLocality, FieldMetadata}

type MilvusStore struct {
	cli         mclient.Client
	collection  string
	metricType  entity.MetricType
	vectorDim   int
	searchParam entity.SearchParam
}

// CheckMetric 检索结果按分数降序使用，只接受越大越相似的度量；L2 是距离，排序会反过来
func CheckMetric(m entity.MetricType) error {
	switch m {
	case entity.COSINE, entity.IP:
		return nil
	default:
		return fmt.Errorf("unsupported milvus metric type %q: use COSINE or IP", m)
	}
}

func NewMilvusStore(cli mclient.Client, collection string, vectorDim int, metricType entity.MetricType) (*MilvusStore, error) {
	if cli == nil {
		return nil, errors.New("milvus client is nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("collection is empty")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	if metricType == "" {
		metricType = entity.COSINE
	}
	if err := CheckMetric(metricType); err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	return &MilvusStore{cli: cli, collection: collection, metricType: metricType, vectorDim: vectorDim, searchParam: sp}, nil
}

func (s *MilvusStore) Dim() int { return s.vectorDim }

func (s *MilvusStore) Upsert(ctx context.Context, chunks []rag.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	sourceIDs := make([]string, 0, len(chunks))
	indexes := make([]int64, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	localities := make([]string, 0, len(chunks))
	metas := make([][]byte, 0, len(chunks))

	for _, c := range chunks {
		if c.ID == "" {
			return errors.New("chunk missing ID")
		}
		if len(c.Embedding) != s.vectorDim {
			return fmt.Errorf("vector dim mismatch for id=%s, got=%d want=%d", c.ID, len(c.Embedding), s.vectorDim)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		ids = append(ids, c.ID)
		vectors = append(vectors, c.Embedding)
		sourceIDs = append(sourceIDs, c.SourceID)
		indexes = append(indexes, int64(c.ChunkIndex))
		texts = append(texts, c.Text)
		localities = append(localities, strings.ToLower(c.Metadata[rag.MetaLocality]))
		metas = append(metas, meta)
	}

	_, err := s.cli.Upsert(
		ctx,
		s.collection,
		"",
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldVector, s.vectorDim, vectors),
		entity.NewColumnVarChar(FieldSourceID, sourceIDs),
		entity.NewColumnInt64(FieldChunkIndex, indexes),
		entity.NewColumnVarChar(FieldText, texts),
		entity.NewColumnVarChar(FieldLocality, localities),
		entity.NewColumnJSONBytes(FieldMetadata, metas),
	)
	return err
}

func (s *MilvusStore) DeleteBySource(ctx context.Context, sourceID string) error {
	if strings.TrimSpace(sourceID) == "" {
		return errors.New("source id is empty")
	}
	expr := fmt.Sprintf(`%s == "%s"`, FieldSourceID, escapeExpr(sourceID))
	return s.cli.Delete(ctx, s.collection, "", expr)
}

func (s *MilvusStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.cli.Delete(ctx, s.collection, "", idInExpr(ids))
}

func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]repository.VectorSearchHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("vector dim mismatch, got=%d want=%d", len(vector), s.vectorDim)
	}
	if topK <= 0 {
		topK = 5
	}
	res, err := s.cli.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		FieldVector,
		s.metricType,
		topK,
		s.searchParam,
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return []repository.VectorSearchHit{}, nil
	}
	return parseSearchResult(res[0])
}

func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	stats, err := s.cli.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(stats["row_count"])
}

func parseSearchResult(sr mclient.SearchResult) ([]repository.VectorSearchHit, error) {
	if sr.Err != nil {
		return nil, sr.Err
	}
	hits := make([]repository.VectorSearchHit, 0, sr.ResultCount)

	sourceCol := columnByName(sr.Fields, FieldSourceID)
	indexCol := columnByName(sr.Fields, FieldChunkIndex)
	textCol := columnByName(sr.Fields, FieldText)
	localityCol := columnByName(sr.Fields, FieldLocality)
	metaCol := columnByName(sr.Fields, FieldMetadata)

	for i := 0; i < sr.ResultCount; i++ {
		id, _ := sr.IDs.GetAsString(i)
		score := float32(0)
		if i < len(sr.Scores) {
			score = sr.Scores[i]
		}
		h := repository.VectorSearchHit{ID: id, Score: score, Metadata: map[string]string{}}
		if metaCol != nil {
			v, _ := metaCol.Get(i)
			if bs, ok := v.([]byte); ok && len(bs) > 0 {
				_ = json.Unmarshal(bs, &h.Metadata)
			}
		}
		if sourceCol != nil {
			h.SourceID, _ = sourceCol.GetAsString(i)
		}
		if indexCol != nil {
			v, _ := indexCol.GetAsInt64(i)
			h.ChunkIndex = int(v)
		}
		if textCol != nil {
			h.Text, _ = textCol.GetAsString(i)
		}
		if localityCol != nil {
			if loc, _ := localityCol.GetAsString(i); loc != "" {
				if _, ok := h.Metadata[rag.MetaLocality]; !ok {
					h.Metadata[rag.MetaLocality] = loc
				}
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func columnByName(cols mclient.ResultSet, name string) entity.Column {
	for _, c := range cols {
		if c != nil && c.Name() == name {
			return c
		}
	}
	return nil
}

func idInExpr(ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, `"`+escapeExpr(id)+`"`)
	}
	return fmt.Sprintf(`%s in [%s]`, FieldID, strings.Join(quoted, ", "))
}

func escapeExpr(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

var _ repository.VectorStore = (*MilvusStore)(nil)
