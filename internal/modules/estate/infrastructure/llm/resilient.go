package llm

import (
	"EstateGuru/internal/modules/estate/infrastructure/upstream"
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Resilient 对 Generate 做限流 + 至多一次重试；Stream 同样限流，但不重试
type Resilient struct {
	inner  model.BaseChatModel
	caller *upstream.Caller
}

func NewResilient(inner model.BaseChatModel, perSecond float64) *Resilient {
	return &Resilient{inner: inner, caller: upstream.NewCaller("llm service", perSecond, 500*time.Millisecond)}
}

func (r *Resilient) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var out *schema.Message
	err := r.caller.Do(ctx, func(ctx context.Context) error {
		msg, err := r.inner.Generate(ctx, input, opts...)
		if err != nil {
			return err
		}
		out = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resilient) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var out *schema.StreamReader[*schema.Message]
	err := r.caller.Once(ctx, func(ctx context.Context) error {
		sr, err := r.inner.Stream(ctx, input, opts...)
		if err != nil {
			return err
		}
		out = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ model.BaseChatModel = (*Resilient)(nil)
