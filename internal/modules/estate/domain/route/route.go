package route

import (
	"EstateGuru/internal/modules/estate/domain/conversation"
	"strings"
)

// Kind 路由类型
type Kind string

const (
	KindKnowledge Kind = "knowledge"
	KindBuy       Kind = "buy"
	KindRent      Kind = "rent"
	KindDetails   Kind = "details"
	KindGreeting  Kind = "greeting"
)

// Decision 路由结果；Fallback 表示分类失败后回落到 knowledge
type Decision struct {
	Kind     Kind   `json:"kind"`
	Fallback bool   `json:"fallback,omitempty"`
	Raw      string `json:"-"`
}

// ParseKind 解析模型输出的标签，无法识别返回 false
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, " \t\r\n.\"'`*:")
	if i := strings.IndexAny(s, " \t\r\n.,:;"); i >= 0 {
		s = s[:i]
	}
	switch Kind(s) {
	case KindKnowledge, KindBuy, KindRent, KindDetails:
		return Kind(s), true
	}
	return "", false
}

// AgentType 路由对应的 agent，knowledge/greeting 没有 agent
func (k Kind) AgentType() (conversation.AgentType, bool) {
	switch k {
	case KindBuy:
		return conversation.AgentBuy, true
	case KindRent:
		return conversation.AgentRent, true
	case KindDetails:
		return conversation.AgentDetails, true
	}
	return "", false
}
