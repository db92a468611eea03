package requestid

import (
	"context"
	"strings"
	"time"

	"EstateGuru/pkg/util"
	"EstateGuru/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const Header = "X-Request-ID"

const ctxKey = "request_id"

// New 透传或生成请求 ID，并记录访问日志
func New() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(Header))
		if id == "" || len(id) > 64 {
			id = util.GenerateID("req")
		}
		c.Set(ctxKey, id)
		c.Header(Header, id)

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("ms", time.Since(start).Milliseconds()),
		}
		if c.Writer.Status() >= 500 {
			zlog.Warn("http request", fields...)
		} else {
			zlog.Info("http request", fields...)
		}
	}
}

// Get 当前请求的 ID
func Get(c *gin.Context) string {
	return c.GetString(ctxKey)
}

// Timeout 给请求 context 加截止时间，下游的模型和向量库调用都受它约束
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
