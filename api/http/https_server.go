package http

import (
	"context"
	"strings"
	"time"

	"EstateGuru/internal/config"
	"EstateGuru/internal/initial"
	"EstateGuru/internal/middleware/requestid"
	"EstateGuru/internal/modules/estate/infrastructure/mcpserver"
	estateHandler "EstateGuru/internal/modules/estate/interface/http"
	"EstateGuru/pkg/back"
	"EstateGuru/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 注册全部 HTTP 路由
func NewRouter(conf *config.Config, app *initial.App) *gin.Engine {
	mc := conf.MainConfig
	if strings.EqualFold(mc.Mode, gin.ReleaseMode) {
		gin.SetMode(gin.ReleaseMode)
	}
	GE := gin.New()
	GE.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = mc.AllowOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", requestid.Header}
	corsConfig.ExposeHeaders = []string{requestid.Header}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.SecureHeaders(mc.Host, mc.Port, mc.TLSRedirect, gin.Mode() != gin.ReleaseMode))
	GE.Use(requestid.New())

	GE.GET("/health", healthHandler(app))
	GE.GET("/metrics", gin.WrapH(promhttp.Handler()))

	queryH := estateHandler.NewQueryHandler(app.QuerySvc)
	ingestH := estateHandler.NewIngestHandler(app.IngestSvc, app.AsyncIngestSvc, mc.UploadDir, int64(conf.IngestConfig.MaxContentBytes))

	v1 := GE.Group("/api/v1")
	v1.Use(requestid.Timeout(time.Duration(mc.RequestTimeoutSeconds) * time.Second))
	v1.POST("/query/knowledge", queryH.Knowledge)
	v1.POST("/query/agent", queryH.Agent)
	v1.POST("/query/auto", queryH.Auto)
	v1.POST("/search", queryH.Search)
	v1.GET("/properties", queryH.Properties)
	v1.POST("/ingest", ingestH.Ingest)
	v1.GET("/sources", ingestH.Sources)
	v1.GET("/stats", ingestH.Stats)
	v1.POST("/reindex", ingestH.Reindex)

	if app.MCP != nil {
		path := conf.MCPConfig.Path
		if path == "" {
			path = "/mcp"
		}
		GE.Any(path, gin.WrapH(mcpserver.NewHTTPHandler(app.MCP)))
	}
	return GE
}

type healthRespond struct {
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
	AsyncQueue bool   `json:"async_queue"`
	MCP        bool   `json:"mcp"`
}

func healthHandler(app *initial.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		res := healthRespond{Status: "ok", AsyncQueue: app.AsyncIngestSvc != nil, MCP: app.MCP != nil}
		n, err := app.VectorStore.Count(ctx)
		if err != nil {
			res.Status = "degraded"
		}
		res.Chunks = n
		back.Success(c, res)
	}
}
