package agent

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/infrastructure/metrics"
	"EstateGuru/internal/modules/estate/infrastructure/tools"
	"EstateGuru/pkg/xerr"
	"EstateGuru/pkg/zlog"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// ToolExecutor 工具注册表能力
type ToolExecutor interface {
	ToolInfos() []*schema.ToolInfo
	Execute(ctx context.Context, call tools.Call) tools.Result
}

// Options 来自 [agent] 配置
type Options struct {
	MaxIterations   int // 工具轮数上限 K
	HistoryLimit    int // 转发给模型的历史条数 N
	MaxToolFailures int // 同一工具连续失败多少次进入 Failed
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 3
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 10
	}
	if o.MaxToolFailures <= 0 {
		o.MaxToolFailures = 2
	}
	return o
}

// Request 一轮对话输入；History 只读
type Request struct {
	AgentType conversation.AgentType
	Message   string
	History   []conversation.Message
	// Analysis 预处理结果，非空时随本轮消息一起交给模型
	Analysis *analysis.QueryAnalysis
}

// Outcome 一轮对话结果
type Outcome struct {
	Answer      string
	History     []conversation.Message // 输入历史 + 本轮新消息，新分配的切片
	State       State
	Iterations  int
	ModelCalls  int
	ToolResults []tools.Result
	ErrorKind   xerr.Kind
	Degraded    bool
}

// Runtime 有界的 agent 工具循环
type Runtime struct {
	chatModel model.BaseChatModel
	tools     ToolExecutor
	opts      Options
	metrics   *metrics.Metrics
}

func NewRuntime(chatModel model.BaseChatModel, executor ToolExecutor, opts Options, m *metrics.Metrics) (*Runtime, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	if executor == nil {
		return nil, errors.New("tool executor is nil")
	}
	return &Runtime{chatModel: chatModel, tools: executor, opts: opts.withDefaults(), metrics: m}, nil
}

// run 单次运行的可变状态，不跨请求共享
type run struct {
	rt        *Runtime
	req       Request
	state     State
	msgs      []*schema.Message
	pending   *schema.Message
	turn      []conversation.Message // 本轮产生的消息（不含最终回答）
	results   []tools.Result
	failures  map[string]int
	iteration int
	calls     int
	answer    string
	errKind   xerr.Kind
	cause     error
}

// Run 返回的 error 只有 InputError；上游故障、循环超限、取消都以 Failed 状态的 Outcome 返回
func (r *Runtime) Run(ctx context.Context, req Request) (*Outcome, error) {
	if !req.AgentType.Valid() {
		return nil, xerr.Input(fmt.Sprintf("unknown agent type %q", req.AgentType))
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, xerr.Input("message must not be empty")
	}
	for _, m := range req.History {
		if !m.Role.Valid() {
			return nil, xerr.Input(fmt.Sprintf("invalid history role %q", m.Role))
		}
	}

	start := time.Now()
	st := &run{rt: r, req: req, state: StateStart, failures: map[string]int{}}
	for !st.state.Terminal() {
		switch st.state {
		case StateStart:
			st.start()
		case StateAwaitingModel:
			st.awaitModel(ctx)
		case StateToolRequested:
			st.toolRequested()
		case StateToolExecuting:
			st.executeTools(ctx)
		}
	}
	out := st.outcome()

	if r.metrics != nil {
		r.metrics.AgentRunsTotal.WithLabelValues(string(req.AgentType), out.State.String()).Inc()
		r.metrics.AgentIterations.Observe(float64(out.Iterations))
	}
	fields := []zap.Field{
		zap.String("agent", string(req.AgentType)),
		zap.String("state", out.State.String()),
		zap.Int("iterations", out.Iterations),
		zap.Int("model_calls", out.ModelCalls),
		zap.Int("tool_results", len(out.ToolResults)),
		zap.Int64("ms", time.Since(start).Milliseconds()),
	}
	if out.State == StateFailed {
		fields = append(fields, zap.String("error_kind", string(out.ErrorKind)), zap.Error(st.cause))
		zlog.Warn("agent run failed", fields...)
	} else {
		zlog.Info("agent run done", fields...)
	}
	return out, nil
}

func (st *run) transition(to State) {
	if !canTransition(st.state, to) {
		// 迁移表之外的跳转属于编程错误，直接进入 Failed
		st.fail(xerr.KindToolExecution, fmt.Errorf("illegal transition %s -> %s", st.state, to))
		return
	}
	st.state = to
}

func (st *run) fail(kind xerr.Kind, cause error) {
	st.errKind = kind
	st.cause = cause
	st.state = StateFailed
}

// start 组装系统提示词 + 最近 N 条历史 + 本轮用户消息
func (st *run) start() {
	hist := conversation.Tail(st.req.History, st.rt.opts.HistoryLimit)
	st.msgs = make([]*schema.Message, 0, len(hist)+2)
	st.msgs = append(st.msgs, schema.SystemMessage(SystemPrompt(st.req.AgentType)))
	for _, m := range hist {
		switch m.Role {
		case conversation.RoleUser:
			st.msgs = append(st.msgs, schema.UserMessage(m.Content))
		case conversation.RoleAssistant:
			st.msgs = append(st.msgs, schema.AssistantMessage(m.Content, nil))
		}
		// 历史中的 tool 消息缺少对应的 tool_call，不再转发
	}
	st.msgs = append(st.msgs, schema.UserMessage(withAnalysisNote(st.req.Message, st.req.Analysis)))
	st.turn = append(st.turn, conversation.Message{Role: conversation.RoleUser, Content: st.req.Message})
	st.transition(StateAwaitingModel)
}

func (st *run) awaitModel(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		st.cancelled(err)
		return
	}
	resp, err := st.rt.chatModel.Generate(ctx, st.msgs, model.WithTools(st.rt.tools.ToolInfos()))
	st.calls++
	if err != nil {
		if ctx.Err() != nil {
			st.cancelled(ctx.Err())
			return
		}
		st.fail(xerr.KindUpstreamUnavailable, err)
		return
	}
	if resp == nil {
		st.fail(xerr.KindUpstreamUnavailable, errors.New("nil model response"))
		return
	}
	if len(resp.ToolCalls) > 0 {
		if st.iteration >= st.rt.opts.MaxIterations {
			st.loopExceeded()
			return
		}
		st.pending = resp
		st.transition(StateToolRequested)
		return
	}
	st.answer = strings.TrimSpace(resp.Content)
	if st.answer == "" {
		st.answer = EmptyAnswer
	}
	st.transition(StateDone)
}

func (st *run) toolRequested() {
	st.iteration++
	st.msgs = append(st.msgs, st.pending)
	st.transition(StateToolExecuting)
}

// executeTools 按模型给出的顺序逐个执行
func (st *run) executeTools(ctx context.Context) {
	for _, tc := range st.pending.ToolCalls {
		if err := ctx.Err(); err != nil {
			st.cancelled(err)
			return
		}
		res := st.rt.tools.Execute(ctx, tools.Call{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		if err := ctx.Err(); err != nil {
			st.cancelled(err)
			return
		}
		if res.Name == "" {
			res.Name = tc.Function.Name
		}
		st.observeTool(res)
		st.results = append(st.results, res)
		st.msgs = append(st.msgs, &schema.Message{Role: schema.Tool, Content: res.Content, ToolCallID: tc.ID})
		st.turn = append(st.turn, conversation.Message{
			Role:       conversation.RoleTool,
			Content:    res.Content,
			ToolCallID: tc.ID,
			ToolName:   res.Name,
		})
		if res.IsError {
			st.failures[res.Name]++
			if st.failures[res.Name] >= st.rt.opts.MaxToolFailures {
				st.fail(xerr.KindToolExecution, fmt.Errorf("tool %s failed %d times in a row: %s", res.Name, st.failures[res.Name], res.Content))
				return
			}
		} else {
			st.failures[res.Name] = 0
		}
	}
	st.pending = nil
	st.transition(StateAwaitingModel)
}

func (st *run) observeTool(res tools.Result) {
	if st.rt.metrics == nil {
		return
	}
	outcome := "ok"
	if res.IsError {
		outcome = "error"
	}
	st.rt.metrics.ToolCallsTotal.WithLabelValues(res.Name, outcome).Inc()
}

// cancelled 取消或超时：丢弃本轮已拿到的工具结果
func (st *run) cancelled(err error) {
	st.results = nil
	st.turn = st.turn[:1]
	st.fail(xerr.KindUpstreamUnavailable, err)
}

// loopExceeded 超过 K 轮仍在请求工具，基于已收集的工具输出给出降级回答
func (st *run) loopExceeded() {
	st.fail(xerr.KindLoopExceeded, fmt.Errorf("model still requested tools after %d iterations", st.iteration))
}

func (st *run) outcome() *Outcome {
	out := &Outcome{
		State:       st.state,
		Iterations:  st.iteration,
		ModelCalls:  st.calls,
		ToolResults: st.results,
		ErrorKind:   st.errKind,
		Degraded:    st.state == StateFailed,
	}
	switch {
	case st.state == StateDone:
		out.Answer = st.answer
	case st.errKind == xerr.KindLoopExceeded:
		out.Answer = gatheredAnswer(st.results)
	default:
		out.Answer = ApologyAnswer
	}
	hist := make([]conversation.Message, 0, len(st.req.History)+len(st.turn)+1)
	hist = append(hist, st.req.History...)
	hist = append(hist, st.turn...)
	hist = append(hist, conversation.Message{Role: conversation.RoleAssistant, Content: out.Answer})
	out.History = hist
	return out
}

func gatheredAnswer(results []tools.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.IsError || strings.TrimSpace(r.Content) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(r.Content))
	}
	if len(parts) == 0 {
		return ApologyAnswer
	}
	return loopExceededIntro + "\n\n" + strings.Join(parts, "\n\n")
}
