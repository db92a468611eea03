package tools

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/infrastructure/persistence"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"EstateGuru/pkg/xerr"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRetriever struct {
	query    string
	analysis analysis.QueryAnalysis
	topK     int
	err      error
}

func (r *recordingRetriever) Retrieve(ctx context.Context, query string, a analysis.QueryAnalysis, topK int) ([]rag.RetrievalResult, error) {
	r.query, r.analysis, r.topK = query, a, topK
	if r.err != nil {
		return nil, r.err
	}
	return []rag.RetrievalResult{{
		ChunkRef: "c1",
		Text:     "Summit Residency in Baner offers rooftop gardens.",
		Score:    0.82,
		Metadata: map[string]string{rag.MetaLocality: "baner", rag.MetaFilename: "baner.txt"},
	}}, nil
}

func newTestRegistry(t *testing.T, ret *recordingRetriever) *Registry {
	t.Helper()
	reg, err := NewRegistry(persistence.NewMemoryCatalog(persistence.DemoProperties()...), ret, preprocess.New())
	require.NoError(t, err)
	return reg
}

func TestToolInfosCoverAllKinds(t *testing.T) {
	infos := newTestRegistry(t, &recordingRetriever{}).ToolInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, "search_properties", infos[0].Name)
	assert.Equal(t, "retrieve_documents", infos[1].Name)
	js, err := infos[1].ParamsOneOf.ToJSONSchema()
	require.NoError(t, err)
	assert.Contains(t, js.Required, "query")
}

func TestSearchProperties(t *testing.T) {
	reg := newTestRegistry(t, &recordingRetriever{})
	res := reg.Execute(context.Background(), Call{
		ID:        "c1",
		Name:      "search_properties",
		Arguments: `{"locality":"baner","transaction_type":"Sale","max_price":"9000000"}`,
	})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, KindSearchProperties, res.Kind)

	var body struct {
		Count      int `json:"count"`
		Properties []struct {
			PropertyID string  `json:"property_id"`
			Price      float64 `json:"price"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "PROP-BAN-001", body.Properties[0].PropertyID)
}

func TestSearchPropertiesNoMatch(t *testing.T) {
	res := newTestRegistry(t, &recordingRetriever{}).Execute(context.Background(),
		Call{Name: "search_properties", Arguments: `{"locality":"kothrud"}`})
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content, "No properties matched")
}

func TestValidationErrors(t *testing.T) {
	reg := newTestRegistry(t, &recordingRetriever{})
	cases := map[string]Call{
		"unknown argument":  {Name: "search_properties", Arguments: `{"city":"Pune"}`},
		"enum":              {Name: "search_properties", Arguments: `{"transaction_type":"lease"}`},
		"range":             {Name: "search_properties", Arguments: `{"bedrooms":0}`},
		"integer":           {Name: "search_properties", Arguments: `{"bedrooms":2.5}`},
		"type":              {Name: "search_properties", Arguments: `{"min_price":"cheap"}`},
		"min above max":     {Name: "search_properties", Arguments: `{"min_price":500,"max_price":100}`},
		"missing required":  {Name: "retrieve_documents", Arguments: `{"locality":"wakad"}`},
		"not a json object": {Name: "retrieve_documents", Arguments: `["wakad"]`},
	}
	for name, call := range cases {
		res := reg.Execute(context.Background(), call)
		assert.True(t, res.IsError, name)
		assert.Contains(t, res.Content, "Error:", name)
	}
}

func TestUnknownTool(t *testing.T) {
	res := newTestRegistry(t, &recordingRetriever{}).Execute(context.Background(), Call{ID: "x", Name: "delete_everything"})
	assert.True(t, res.IsError)
	assert.Equal(t, "x", res.CallID)
	assert.Contains(t, res.Content, "unknown tool")
	assert.Contains(t, res.Content, "search_properties, retrieve_documents")
}

func TestRetrieveDocuments(t *testing.T) {
	ret := &recordingRetriever{}
	res := newTestRegistry(t, ret).Execute(context.Background(), Call{
		Name:      "retrieve_documents",
		Arguments: `{"query":"rooftop amenities","locality":"Baner","top_k":3}`,
	})
	require.False(t, res.IsError, res.Content)
	assert.Equal(t, "rooftop amenities", ret.query)
	assert.Equal(t, 3, ret.topK)
	assert.Equal(t, []string{"baner"}, ret.analysis.Locations)
	assert.Contains(t, res.Content, "[1] (score 0.82, locality baner, source baner.txt)")
	assert.Contains(t, res.Content, "rooftop gardens")
}

func TestRetrieveDocumentsUpstreamFailure(t *testing.T) {
	ret := &recordingRetriever{err: xerr.Upstream("embedding service unavailable", errors.New("dial tcp: refused"))}
	res := newTestRegistry(t, ret).Execute(context.Background(), Call{Name: "retrieve_documents", Arguments: `{"query":"wakad"}`})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "embedding service unavailable")
	assert.NotContains(t, res.Content, "dial tcp")
	assert.Equal(t, defaultDocTopK, ret.topK)
}
