package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"EstateGuru/internal/modules/estate/application/dto/request"
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/infrastructure/agent"
	"EstateGuru/internal/modules/estate/infrastructure/chunking"
	"EstateGuru/internal/modules/estate/infrastructure/docparser"
	"EstateGuru/internal/modules/estate/infrastructure/embedding"
	"EstateGuru/internal/modules/estate/infrastructure/llm/llmtest"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/internal/modules/estate/infrastructure/mq"
	"EstateGuru/internal/modules/estate/infrastructure/persistence"
	"EstateGuru/internal/modules/estate/infrastructure/pipeline"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"EstateGuru/internal/modules/estate/infrastructure/router"
	"EstateGuru/internal/modules/estate/infrastructure/session"
	"EstateGuru/internal/modules/estate/infrastructure/tools"
	"EstateGuru/internal/modules/estate/infrastructure/vectordb"
	"EstateGuru/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 64

type fixture struct {
	query    QueryService
	ingest   IngestService
	model    *llmtest.ScriptedModel
	sessions *session.MemoryStore
}

func newFixture(t *testing.T, steps ...llmtest.Step) *fixture {
	t.Helper()
	m := metrics.NewMetrics()
	model := llmtest.NewScripted(steps...)
	pre := preprocess.New()
	emb := embedding.NewHashEmbedder(testDim)
	store, err := vectordb.NewChromemStore("", "svc_docs", testDim)
	require.NoError(t, err)

	ret, err := pipeline.NewRetrievePipeline(emb, store, pre, pipeline.RetrieveOptions{}, m)
	require.NoError(t, err)
	kp, err := pipeline.NewKnowledgePipeline(pre, ret, model)
	require.NoError(t, err)
	rt, err := router.New(model, pre, m)
	require.NoError(t, err)
	catalog := persistence.NewMemoryCatalog(persistence.DemoProperties()...)
	reg, err := tools.NewRegistry(catalog, ret, pre)
	require.NoError(t, err)
	runtime, err := agent.NewRuntime(model, reg, agent.Options{}, m)
	require.NoError(t, err)

	sources := persistence.NewMemorySourceRepository()
	ing, err := pipeline.NewIngestPipeline(sources, store, emb, chunking.NewWindowChunker(400, 60), pre, pipeline.IngestOptions{}, m)
	require.NoError(t, err)

	sessions := session.NewMemoryStore(0)
	qs, err := NewQueryService(QueryDeps{
		Analyzer:  pre,
		Knowledge: kp,
		Retrieve:  ret,
		Router:    rt,
		Agent:     runtime,
		ChatModel: model,
		Sessions:  sessions,
		Catalog:   catalog,
	})
	require.NoError(t, err)
	docs, err := docparser.New(context.Background())
	require.NoError(t, err)
	return &fixture{query: qs, ingest: NewIngestService(ing, sources, store, docs), model: model, sessions: sessions}
}

func (f *fixture) seedDocs(t *testing.T) {
	t.Helper()
	docs := map[string]string{
		"wakad_overview.txt": "Evergreen Heights in Wakad offers 2 BHK and 3 BHK apartments with clubhouse, gym and swimming pool near the Mumbai-Pune expressway.",
		"baner_overview.txt": "Summit Residency in Baner offers furnished 2 BHK apartments close to Baner hill and Balewadi high street.",
		"kharadi_towers.txt": "Skyline Orchid in Kharadi is an IT corridor project with 2 BHK units near EON IT park.",
	}
	for name, content := range docs {
		_, err := f.ingest.IngestDocument(context.Background(), request.IngestDocumentRequest{Filename: name, Content: content})
		require.NoError(t, err)
	}
}

func TestSubmitKnowledgeQueryFiltersByLocality(t *testing.T) {
	f := newFixture(t, llmtest.Text("Evergreen Heights is the best option in Wakad."))
	f.seedDocs(t)

	resp, err := f.query.SubmitKnowledgeQuery(context.Background(), request.KnowledgeQueryRequest{Query: "show best 2 bhk property in wakad"})
	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Evergreen Heights is the best option in Wakad.", resp.Answer)
	require.NotEmpty(t, resp.Sources)
	for _, s := range resp.Sources {
		assert.Equal(t, "wakad", s.Metadata[rag.MetaLocality])
	}
	assert.Equal(t, []string{"wakad"}, resp.Analysis.Locations)
}

func TestSubmitKnowledgeQueryWithoutCorpus(t *testing.T) {
	f := newFixture(t)

	resp, err := f.query.SubmitKnowledgeQuery(context.Background(), request.KnowledgeQueryRequest{Query: "2 bhk in baner"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.NoInformationAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, f.model.CallCount())

	_, err = f.query.SubmitKnowledgeQuery(context.Background(), request.KnowledgeQueryRequest{Query: "   "})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestSubmitAutoQueryGreeting(t *testing.T) {
	f := newFixture(t, llmtest.Text("Hello! I can help you find homes in Pune."))

	resp, err := f.query.SubmitAutoQuery(context.Background(), request.AutoQueryRequest{Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "greeting", resp.Route)
	assert.Equal(t, "Hello! I can help you find homes in Pune.", resp.Answer)
	assert.Empty(t, resp.Sources)
	require.Equal(t, 1, f.model.CallCount())
	assert.Contains(t, f.model.Calls[0][0].Content, "friendly Real Estate Assistant")
	require.Len(t, resp.History, 2)
	assert.NotEmpty(t, resp.SessionID)
}

func TestSubmitAutoQueryGreetingFallback(t *testing.T) {
	f := newFixture(t, llmtest.Fail(errors.New("model down")))

	resp, err := f.query.SubmitAutoQuery(context.Background(), request.AutoQueryRequest{Query: "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "greeting", resp.Route)
	assert.Equal(t, GreetingFallback, resp.Answer)
}

func TestSubmitAutoQueryRoutesToRentAgent(t *testing.T) {
	f := newFixture(t,
		llmtest.Text("rent"),
		llmtest.ToolCall("call_1", "search_properties", `{"locality":"Wakad","transaction_type":"rent","bedrooms":2}`),
		llmtest.Text("Evergreen Heights in Wakad rents for INR 25,000 per month."),
	)

	resp, err := f.query.SubmitAutoQuery(context.Background(), request.AutoQueryRequest{Query: "2bhk for rent in wakad", SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "rent", resp.Route)
	assert.False(t, resp.Fallback)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "Evergreen Heights in Wakad rents for INR 25,000 per month.", resp.Answer)
	assert.Equal(t, 3, f.model.CallCount())

	// agent 首次调用带上路由阶段抽取的实体
	agentInput := f.model.Calls[1]
	turn := agentInput[len(agentInput)-1].Content
	assert.Contains(t, turn, "locality: wakad")
	assert.Contains(t, turn, "bedrooms: 2")

	require.NotEmpty(t, resp.History)
	assert.Equal(t, conversation.RoleUser, resp.History[0].Role)
	assert.Equal(t, "2bhk for rent in wakad", resp.History[0].Content)
	last := resp.History[len(resp.History)-1]
	assert.Equal(t, conversation.RoleAssistant, last.Role)
	assert.Equal(t, resp.Answer, last.Content)

	sess, err := f.sessions.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, conversation.AgentRent, sess.AgentType)
	assert.Equal(t, resp.History, sess.Messages)
}

func TestSubmitAgentQueryUsesStoredSession(t *testing.T) {
	f := newFixture(t, llmtest.Text("What budget do you have in mind?"), llmtest.Text("Noted, around 80 lakh."))
	ctx := context.Background()

	first, err := f.query.SubmitAgentQuery(ctx, request.AgentQueryRequest{AgentType: "buy", Message: "I want to buy a flat in Baner", SessionID: "s-2"})
	require.NoError(t, err)
	assert.Equal(t, "done", first.State)
	assert.Equal(t, "s-2", first.SessionID)

	second, err := f.query.SubmitAgentQuery(ctx, request.AgentQueryRequest{AgentType: "buy", Message: "about 80 lakh", SessionID: "s-2"})
	require.NoError(t, err)
	require.Len(t, second.History, 4)
	assert.Equal(t, "I want to buy a flat in Baner", second.History[0].Content)

	// 第二次调用模型时带上了上一轮的问答
	prompt := f.model.Calls[1]
	require.Len(t, prompt, 4)
	assert.Equal(t, "I want to buy a flat in Baner", prompt[1].Content)
	assert.Equal(t, "What budget do you have in mind?", prompt[2].Content)
}

func TestSubmitAgentQueryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.query.SubmitAgentQuery(ctx, request.AgentQueryRequest{AgentType: "sell", Message: "hi"})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))

	_, err = f.query.SubmitAgentQuery(ctx, request.AgentQueryRequest{AgentType: "rent", Message: " "})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))

	_, err = f.query.SubmitAgentQuery(ctx, request.AgentQueryRequest{
		AgentType: "rent",
		Message:   "hi",
		History:   []conversation.Message{{Role: "system", Content: "x"}},
	})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
	assert.Zero(t, f.model.CallCount())
}

func TestSubmitAgentQueryModelFailureIsDegraded(t *testing.T) {
	f := newFixture(t, llmtest.Fail(errors.New("503")), llmtest.Fail(errors.New("503")))

	resp, err := f.query.SubmitAgentQuery(context.Background(), request.AgentQueryRequest{AgentType: "details", Message: "tell me about Summit Residency"})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, string(xerr.KindUpstreamUnavailable), resp.ErrorKind)
	assert.Equal(t, agent.ApologyAnswer, resp.Answer)
}

func TestSubmitAutoQueryRouterFallback(t *testing.T) {
	f := newFixture(t, llmtest.Text("banana"), llmtest.Text("Evergreen Heights has a clubhouse and pool."))
	f.seedDocs(t)

	resp, err := f.query.SubmitAutoQuery(context.Background(), request.AutoQueryRequest{Query: "what amenities are there in wakad projects"})
	require.NoError(t, err)
	assert.Equal(t, "knowledge", resp.Route)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "Evergreen Heights has a clubhouse and pool.", resp.Answer)
	require.NotEmpty(t, resp.Sources)
	for _, s := range resp.Sources {
		assert.Equal(t, "wakad", s.Metadata[rag.MetaLocality])
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.seedDocs(t)

	resp, err := f.query.Search(context.Background(), request.SearchRequest{Query: "apartments in kharadi", TopK: 2})
	require.NoError(t, err)
	assert.False(t, resp.Fallback)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "kharadi", resp.Results[0].Metadata[rag.MetaLocality])
	assert.NotEmpty(t, resp.QueryID)

	_, err = f.query.Search(context.Background(), request.SearchRequest{Query: ""})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestSearchProperties(t *testing.T) {
	f := newFixture(t)

	resp, err := f.query.SearchProperties(context.Background(), request.PropertySearchRequest{Locality: "baner"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "PROP-BAN-001", resp.Items[0].PropertyID)
	assert.Equal(t, "PROP-BAN-001-R", resp.Items[1].PropertyID)

	resp, err = f.query.SearchProperties(context.Background(), request.PropertySearchRequest{Locality: "aundh"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Items)
	assert.Zero(t, resp.Total)

	_, err = f.query.SearchProperties(context.Background(), request.PropertySearchRequest{Limit: 500})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestIngestDirectorySkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wakad_guide.txt"), []byte("Wakad has good connectivity to Hinjewadi IT park."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "baner_notes.md"), []byte("Baner is a premium residential area."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brochure.pdf"), []byte("%PDF-1.7"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("  "), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))

	// 损坏的 PDF 和空文件计为失败，png 不在扫描范围
	rep, err := f.ingest.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Files)
	assert.Equal(t, 2, rep.Ingested)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2, rep.Chunks)

	rep, err = f.ingest.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Unchanged)
	assert.Zero(t, rep.Ingested)
	assert.Equal(t, 2, rep.Chunks)

	rep, err = f.ingest.IngestDirectory(context.Background(), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, rep.Files)

	list, err := f.ingest.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, "active", s.Status)
	}
}

func TestIngestDocumentReportsLocality(t *testing.T) {
	f := newFixture(t)

	resp, err := f.ingest.IngestDocument(context.Background(), request.IngestDocumentRequest{
		Filename: "projects.txt",
		Content:  "New launches in Hinjewadi phase 2.",
	})
	require.NoError(t, err)
	assert.Equal(t, "hinjewadi", resp.Locality)
	assert.Equal(t, 1, resp.ChunksCreated)

	_, err = f.ingest.IngestDocument(context.Background(), request.IngestDocumentRequest{Filename: "x.txt"})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
}

func TestEnqueueDocument(t *testing.T) {
	bus := mq.NewMemoryBus(1)
	svc := NewAsyncIngestService(bus, "estate.ingest", 1024, nil)
	ctx := context.Background()

	resp, err := svc.EnqueueDocument(ctx, request.IngestDocumentRequest{Filename: "wakad.txt", Content: "Wakad listing", Locality: "wakad"})
	require.NoError(t, err)
	assert.True(t, resp.Queued)
	assert.NotEmpty(t, resp.EventID)

	_, err = svc.EnqueueDocument(ctx, request.IngestDocumentRequest{Filename: "empty.txt"})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))
	_, err = svc.EnqueueDocument(ctx, request.IngestDocumentRequest{Filename: "big.txt", Content: string(make([]byte, 2048))})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))

	got := make(chan mq.IngestEvent, 1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = bus.Run(runCtx, mq.HandlerFunc(func(_ context.Context, msg mq.Message) error {
			ev, err := mq.DecodeIngestEvent(msg)
			if err == nil {
				got <- ev
			}
			return err
		}))
	}()
	ev := <-got
	assert.Equal(t, resp.EventID, ev.EventID)
	assert.Equal(t, "wakad", ev.Locality)
}

func TestEnqueueDocumentPublishFailure(t *testing.T) {
	bus := mq.NewMemoryBus(1)
	require.NoError(t, bus.Close())
	_, err := NewAsyncIngestService(bus, "estate.ingest", 0, nil).EnqueueDocument(context.Background(), request.IngestDocumentRequest{Filename: "a.txt", Content: "x"})
	assert.True(t, xerr.IsKind(err, xerr.KindUpstreamUnavailable))
}

// stubParser 把任何 .pdf 转成固定文本
type stubParser struct {
	text  string
	calls int
}

func (p *stubParser) Supports(filename string) bool {
	return strings.HasSuffix(filename, ".pdf") || strings.HasSuffix(filename, ".txt")
}

func (p *stubParser) NeedsParsing(filename string, raw []byte) bool {
	return strings.HasSuffix(filename, ".pdf")
}

func (p *stubParser) Extract(ctx context.Context, filename string, raw []byte) (string, error) {
	p.calls++
	if p.text == "" {
		return "", xerr.Input("no text could be extracted from " + filename)
	}
	return p.text, nil
}

func TestIngestDocumentParsesPDF(t *testing.T) {
	store, err := vectordb.NewChromemStore("", "pdf_docs", testDim)
	require.NoError(t, err)
	sources := persistence.NewMemorySourceRepository()
	ing, err := pipeline.NewIngestPipeline(sources, store, embedding.NewHashEmbedder(testDim),
		chunking.NewWindowChunker(400, 60), preprocess.New(), pipeline.IngestOptions{}, nil)
	require.NoError(t, err)
	parser := &stubParser{text: "Skyline Orchid in Kharadi offers 3 BHK homes."}
	svc := NewIngestService(ing, sources, store, parser)
	ctx := context.Background()

	resp, err := svc.IngestDocument(ctx, request.IngestDocumentRequest{Filename: "kharadi.pdf", Content: "%PDF-1.7 ..."})
	require.NoError(t, err)
	assert.Equal(t, 1, parser.calls)
	assert.Equal(t, "kharadi", resp.Locality)
	assert.Equal(t, 1, resp.ChunksCreated)

	// 纯文本不经过解析器
	_, err = svc.IngestDocument(ctx, request.IngestDocumentRequest{Filename: "wakad.txt", Content: "Wakad listings"})
	require.NoError(t, err)
	assert.Equal(t, 1, parser.calls)

	parser.text = ""
	_, err = svc.IngestDocument(ctx, request.IngestDocumentRequest{Filename: "scan.pdf", Content: "%PDF-1.7 ..."})
	assert.True(t, xerr.IsKind(err, xerr.KindInput))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 2, stats.ActiveSources)
	assert.Zero(t, stats.FailedSources)
}

func TestEnqueueDocumentSendsExtractedText(t *testing.T) {
	bus := mq.NewMemoryBus(1)
	parser := &stubParser{text: "Baner premium villas"}
	svc := NewAsyncIngestService(bus, "estate.ingest", 1024, parser)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.EnqueueDocument(ctx, request.IngestDocumentRequest{Filename: "baner.pdf", Content: "%PDF-1.4 binary"})
	require.NoError(t, err)

	got := make(chan mq.IngestEvent, 1)
	go func() {
		_ = bus.Run(ctx, mq.HandlerFunc(func(_ context.Context, msg mq.Message) error {
			ev, err := mq.DecodeIngestEvent(msg)
			if err == nil {
				got <- ev
			}
			return err
		}))
	}()
	ev := <-got
	assert.Equal(t, "Baner premium villas", ev.Content)
	assert.Equal(t, "baner.pdf", ev.Filename)
}
