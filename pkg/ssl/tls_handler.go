package ssl

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureHeaders 安全响应头；redirect=true 时同时把 HTTP 跳转到 HTTPS
func SecureHeaders(host string, port int, redirect bool, isDev bool) gin.HandlerFunc {
	opts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      isDev,
	}
	if redirect {
		opts.SSLRedirect = true
		opts.SSLHost = host + ":" + strconv.Itoa(port)
	}
	secureMiddleware := secure.New(opts)
	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		// Process 已经写入了响应（重定向），这里只中止后续 handler
		if err != nil {
			c.Abort()
			return
		}
		// 重定向时 Process 返回 nil 但状态码已写
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
