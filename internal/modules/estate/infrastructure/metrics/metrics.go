package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics 检索、路由、agent 与入库的 Prometheus 指标
//
// 指标统一以 estate_ 为前缀：
//   - estate_retrieval_fallback_total 位置过滤为空后回退到未过滤结果的次数
//   - estate_retrieval_duration_seconds 一次召回的耗时
//   - estate_route_decisions_total{kind,fallback} 路由结果
//   - estate_agent_runs_total{agent,state} agent 终态
//   - estate_agent_iterations 每次 agent 运行消耗的工具轮数
//   - estate_tool_calls_total{tool,outcome} 工具调用
//   - estate_ingest_chunks_total 入库的 chunk 数
type Metrics struct {
	RetrievalFallbackTotal prometheus.Counter
	RetrievalDuration      prometheus.Histogram

	RouteDecisionsTotal *prometheus.CounterVec

	AgentRunsTotal  *prometheus.CounterVec
	AgentIterations prometheus.Histogram
	ToolCallsTotal  *prometheus.CounterVec

	IngestChunksTotal prometheus.Counter
	IngestFailedTotal prometheus.Counter
}

// NewMetrics 全局只注册一次，重复调用返回同一实例
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RetrievalFallbackTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "estate_retrieval_fallback_total",
				Help: "Retrievals where the location filter emptied the candidates and the unfiltered list was used",
			}),
			RetrievalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "estate_retrieval_duration_seconds",
				Help:    "Duration of a retrieval in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			}),
			RouteDecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "estate_route_decisions_total",
				Help: "Routing decisions by kind",
			}, []string{"kind", "fallback"}),
			AgentRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "estate_agent_runs_total",
				Help: "Agent runs by agent type and terminal state",
			}, []string{"agent", "state"}),
			AgentIterations: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "estate_agent_iterations",
				Help:    "Tool rounds used per agent run",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			}),
			ToolCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "estate_tool_calls_total",
				Help: "Tool executions by tool name and outcome",
			}, []string{"tool", "outcome"}),
			IngestChunksTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "estate_ingest_chunks_total",
				Help: "Chunks written by the ingestion pipeline",
			}),
			IngestFailedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "estate_ingest_failed_total",
				Help: "Failed document ingestions",
			}),
		}
	})
	return globalMetrics
}
