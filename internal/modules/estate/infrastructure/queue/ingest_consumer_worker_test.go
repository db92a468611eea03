package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"EstateGuru/internal/modules/estate/infrastructure/mq"
	"EstateGuru/internal/modules/estate/infrastructure/pipeline"
	"EstateGuru/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	mu   sync.Mutex
	reqs []*pipeline.IngestRequest
	err  error
	done chan struct{}
}

func (f *fakeIngester) Ingest(_ context.Context, req *pipeline.IngestRequest) (*pipeline.IngestResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.IngestResult{SourceID: "src", ChunksCreated: 2}, nil
}

func ingestMsg(t *testing.T, ev mq.IngestEvent) mq.Message {
	t.Helper()
	msg, err := mq.NewIngestMessage("estate.ingest", ev)
	require.NoError(t, err)
	return msg
}

func TestHandleRunsPipeline(t *testing.T) {
	ing := &fakeIngester{}
	w := NewIngestConsumerWorker(nil, ing)

	err := w.Handle(context.Background(), ingestMsg(t, mq.IngestEvent{
		EventID:  "e1",
		Filename: "wakad.txt",
		Content:  "2 BHK in Wakad",
		Locality: "wakad",
		Force:    true,
	}))
	require.NoError(t, err)
	require.Len(t, ing.reqs, 1)
	assert.Equal(t, "wakad.txt", ing.reqs[0].Filename)
	assert.Equal(t, "wakad", ing.reqs[0].Locality)
	assert.True(t, ing.reqs[0].Force)
}

func TestHandleDropsMalformedEvent(t *testing.T) {
	ing := &fakeIngester{}
	w := NewIngestConsumerWorker(nil, ing)

	err := w.Handle(context.Background(), mq.Message{Topic: "estate.ingest", Value: []byte("{not json")})
	assert.NoError(t, err)
	assert.Empty(t, ing.reqs)
}

func TestHandleErrorClassification(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"input error dropped", xerr.Input("content is empty"), false},
		{"upstream error redelivered", xerr.Upstream("embedding unavailable", errors.New("timeout")), true},
		{"unknown error dropped", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewIngestConsumerWorker(nil, &fakeIngester{err: tc.err})
			err := w.Handle(context.Background(), ingestMsg(t, mq.IngestEvent{Filename: "a.txt", Content: "x"}))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkerConsumesFromMemoryBus(t *testing.T) {
	bus := mq.NewMemoryBus(4)
	ing := &fakeIngester{done: make(chan struct{}, 1)}
	w := NewIngestConsumerWorker(bus, ing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	_, err := bus.Publish(ctx, ingestMsg(t, mq.IngestEvent{Filename: "baner.txt", Content: "Baner listing"}))
	require.NoError(t, err)

	select {
	case <-ing.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not consumed")
	}
	cancel()
	assert.NoError(t, <-errCh)
}

func TestRunRequiresConsumer(t *testing.T) {
	assert.Error(t, NewIngestConsumerWorker(nil, &fakeIngester{}).Run(context.Background()))
}

func TestScrubErrMsg(t *testing.T) {
	assert.Equal(t, "redacted", scrubErrMsg("bad api_key=abc"))
	assert.Len(t, scrubErrMsg(string(make([]byte, 400))), 255)
}
