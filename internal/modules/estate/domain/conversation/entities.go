package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// AgentType 可用的对话 agent
type AgentType string

const (
	AgentBuy     AgentType = "buy"
	AgentRent    AgentType = "rent"
	AgentDetails AgentType = "details"
)

func (t AgentType) Valid() bool {
	switch t {
	case AgentBuy, AgentRent, AgentDetails:
		return true
	}
	return false
}

// Message 对话中的一条消息
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleTool
}

// Session 会话，按 SessionID 存取
type Session struct {
	SessionID string    `json:"session_id"`
	AgentType AgentType `json:"agent_type"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tail 返回最后 n 条消息的拷贝
func Tail(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		out := make([]Message, len(msgs))
		copy(out, msgs)
		return out
	}
	out := make([]Message, n)
	copy(out, msgs[len(msgs)-n:])
	return out
}
