package mcpserver

import (
	"context"
	"net/http"

	"EstateGuru/internal/modules/estate/infrastructure/tools"
	"EstateGuru/pkg/zlog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Executor 以已解析参数执行工具（tools.Registry 实现）
type Executor interface {
	ExecuteArgs(ctx context.Context, kind tools.Kind, raw map[string]any) tools.Result
}

type ServerConfig struct {
	Name    string
	Version string
}

// NewServer 把工具注册表以 MCP 协议暴露，agent 和外部客户端看到同一组工具
func NewServer(conf ServerConfig, exec Executor) *server.MCPServer {
	s := server.NewMCPServer(
		conf.Name,
		conf.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTools(ServerTools(exec)...)
	zlog.Info("mcp tools registered", zap.Int("count", len(tools.AllKinds)))
	return s
}

// NewHTTPHandler 无状态 streamable HTTP 传输
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

func ServerTools(exec Executor) []server.ServerTool {
	out := make([]server.ServerTool, 0, len(tools.AllKinds))
	for _, k := range tools.AllKinds {
		spec, _ := tools.SpecOf(k)
		out = append(out, server.ServerTool{
			Tool:    toolOf(spec),
			Handler: handlerOf(exec, k),
		})
	}
	return out
}

func toolOf(spec tools.Spec) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(spec.Desc)}
	for _, p := range spec.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Desc)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case tools.TypeNumber, tools.TypeInteger:
			if p.Min != nil {
				props = append(props, mcp.Min(*p.Min))
			}
			if p.Max != nil {
				props = append(props, mcp.Max(*p.Max))
			}
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			if len(p.Enum) > 0 {
				props = append(props, mcp.Enum(p.Enum...))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(spec.Name, opts...)
}

func handlerOf(exec Executor, kind tools.Kind) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			if request.Params.Arguments != nil {
				return mcp.NewToolResultError("invalid arguments format"), nil
			}
			args = map[string]interface{}{}
		}
		res := exec.ExecuteArgs(ctx, kind, args)
		if res.IsError {
			return mcp.NewToolResultError(res.Content), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}
