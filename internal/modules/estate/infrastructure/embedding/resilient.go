package embedding

import (
	"EstateGuru/internal/modules/estate/infrastructure/upstream"
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Resilient 限流 + 至多一次重试；最终失败返回 xerr UpstreamUnavailable
type Resilient struct {
	inner  embedding.Embedder
	caller *upstream.Caller
}

func NewResilient(inner embedding.Embedder, perSecond float64) *Resilient {
	return &Resilient{inner: inner, caller: upstream.NewCaller("embedding service", perSecond, 200*time.Millisecond)}
}

func (r *Resilient) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	var out [][]float64
	err := r.caller.Do(ctx, func(ctx context.Context) error {
		vecs, err := r.inner.EmbedStrings(ctx, texts, opts...)
		if err != nil {
			return err
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got=%d want=%d", len(vecs), len(texts))
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ embedding.Embedder = (*Resilient)(nil)
