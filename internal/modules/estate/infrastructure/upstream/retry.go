package upstream

import (
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxAttempts 外部调用最多尝试两次（首次 + 一次重试）
const MaxAttempts = 2

// Caller 对外部服务调用做限流 + 至多一次重试，失败统一包装为 UpstreamUnavailable
type Caller struct {
	name    string
	limiter *rate.Limiter
	backoff time.Duration
}

// NewCaller perSecond <= 0 时不限流
func NewCaller(name string, perSecond float64, backoff time.Duration) *Caller {
	c := &Caller{name: name, backoff: backoff}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return c
}

func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return xerr.Upstream(c.name+" unavailable", err)
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		zlog.Warn("upstream call failed",
			zap.String("upstream", c.name),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < MaxAttempts && c.backoff > 0 {
			select {
			case <-ctx.Done():
				return xerr.Upstream(c.name+" unavailable", ctx.Err())
			case <-time.After(c.backoff):
			}
		}
	}
	return xerr.Upstream(c.name+" unavailable", lastErr)
}

// Once 只限流不重试，用于流式调用：流开始后无法安全重放
func (c *Caller) Once(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return xerr.Upstream(c.name+" unavailable", err)
		}
	}
	if err := fn(ctx); err != nil {
		zlog.Warn("upstream call failed", zap.String("upstream", c.name), zap.Error(err))
		return xerr.Upstream(c.name+" unavailable", err)
	}
	return nil
}
