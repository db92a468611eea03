package agent

// State agent 运行时状态
//
//	Start → AwaitingModel → (ToolRequested → ToolExecuting → AwaitingModel)* → Done | Failed
type State int

const (
	StateStart State = iota
	StateAwaitingModel
	StateToolRequested
	StateToolExecuting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolRequested:
		return "tool_requested"
	case StateToolExecuting:
		return "tool_executing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal Done 与 Failed 为终态
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// allowed 合法迁移表，Failed 可以从任意非终态进入
var allowed = map[State][]State{
	StateStart:         {StateAwaitingModel},
	StateAwaitingModel: {StateToolRequested, StateDone},
	StateToolRequested: {StateToolExecuting},
	StateToolExecuting: {StateAwaitingModel},
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
