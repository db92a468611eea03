package xerr

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定是否重试、如何对用户呈现
type Kind string

const (
	KindUnknown             Kind = ""
	KindInput               Kind = "input_error"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindToolExecution       Kind = "tool_execution_error"
	KindRoutingAmbiguous    Kind = "routing_ambiguous"
	KindLoopExceeded        Kind = "loop_exceeded"
	KindNotFound            Kind = "not_found"
)

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
	cause   error
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("Code: %d, Kind: %s, Message: %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

func (e *CodeError) Unwrap() error { return e.cause }

// Is 同 Kind 即视为相同错误，便于 errors.Is(err, xerr.ErrUpstream)
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	if t.Kind != KindUnknown {
		return e.Kind == t.Kind
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// NewKind 创建带分类的 CodeError
func NewKind(kind Kind, msg string) *CodeError {
	return &CodeError{Code: codeOf(kind), Kind: kind, Message: msg}
}

// Wrap 包装底层错误，cause 只进日志，不返回给用户
func Wrap(kind Kind, msg string, cause error) *CodeError {
	return &CodeError{Code: codeOf(kind), Kind: kind, Message: msg, cause: cause}
}

func Input(msg string) *CodeError { return NewKind(KindInput, msg) }

func Upstream(msg string, cause error) *CodeError {
	return Wrap(KindUpstreamUnavailable, msg, cause)
}

// KindOf 取错误链上第一个 CodeError 的分类
func KindOf(err error) Kind {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind 判断错误链上是否存在指定分类
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var ce *CodeError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Kind == kind {
			return true
		}
		err = ce.cause
	}
	return false
}

func codeOf(kind Kind) int {
	switch kind {
	case KindInput:
		return BadRequest
	case KindNotFound:
		return NotFound
	case KindUpstreamUnavailable:
		return ServiceUnavailable
	case KindLoopExceeded, KindToolExecution, KindRoutingAmbiguous:
		return InternalServerError
	default:
		return InternalServerError
	}
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

// 常用预定义错误
var (
	ErrSuccess     = New(OK, "Success")
	ErrServerError = New(InternalServerError, "Something went wrong on our side, please try again later")
	ErrParam       = New(BadRequest, "Invalid parameters")

	ErrInput        = NewKind(KindInput, "invalid input")
	ErrUpstream     = NewKind(KindUpstreamUnavailable, "upstream service unavailable")
	ErrToolExec     = NewKind(KindToolExecution, "tool execution failed")
	ErrRouting      = NewKind(KindRoutingAmbiguous, "routing ambiguous")
	ErrLoopExceeded = NewKind(KindLoopExceeded, "agent iteration limit exceeded")
)
