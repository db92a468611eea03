package back

import (
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Result 统一返回入口
func Result(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	// 判断是否为自定义错误；cause 只记日志
	var e *xerr.CodeError
	if errors.As(err, &e) {
		if e.Unwrap() != nil {
			zlog.Warn("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(statusOf(e.Code), Response{Code: e.Code, Kind: string(e.Kind), Message: e.Message, Data: data})
		return
	}

	// 默认为系统错误
	zlog.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
	Error(c, xerr.ErrServerError.Code, xerr.ErrServerError.Message)
}

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    xerr.OK,
		Message: "Success",
		Data:    data,
	})
}

// Error 错误返回
func Error(c *gin.Context, code int, message string) {
	c.JSON(statusOf(code), Response{
		Code:    code,
		Message: message,
	})
}

func statusOf(code int) int {
	if code >= 400 && code < 600 {
		return code
	}
	return http.StatusOK
}
