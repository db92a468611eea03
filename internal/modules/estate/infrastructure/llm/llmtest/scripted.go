// Package llmtest 提供测试用的脚本化 chat model
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Step 一次 Generate 的脚本：返回 Msg 或 Err
type Step struct {
	Msg *schema.Message
	Err error
}

// ScriptedModel 按顺序返回预置结果，并记录每次调用的输入
type ScriptedModel struct {
	mu    sync.Mutex
	steps []Step
	// Fallback 脚本耗尽后的返回；为 nil 时返回错误
	Fallback *Step
	Calls    [][]*schema.Message
	Options  [][]model.Option
}

func NewScripted(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

func Text(content string) Step {
	return Step{Msg: schema.AssistantMessage(content, nil)}
}

func ToolCall(id, name, args string) Step {
	return Step{Msg: schema.AssistantMessage("", []schema.ToolCall{{
		ID:   id,
		Type: "function",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}})}
}

func Fail(err error) Step {
	return Step{Err: err}
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]*schema.Message, len(input))
	copy(cp, input)
	m.Calls = append(m.Calls, cp)
	m.Options = append(m.Options, opts)
	var st Step
	switch {
	case len(m.steps) > 0:
		st = m.steps[0]
		m.steps = m.steps[1:]
	case m.Fallback != nil:
		st = *m.Fallback
	default:
		return nil, errors.New("scripted model: no more steps")
	}
	if st.Err != nil {
		return nil, st.Err
	}
	return st.Msg, nil
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// CallCount Generate 被调用的次数
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ model.BaseChatModel = (*ScriptedModel)(nil)
