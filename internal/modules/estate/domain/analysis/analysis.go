package analysis

// Action 用户意图动作
type Action string

const (
	ActionBuy     Action = "buy"
	ActionRent    Action = "rent"
	ActionSell    Action = "sell"
	ActionUnknown Action = "unknown"
)

// DetailLevel 回答详略程度
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailDetailed DetailLevel = "detailed"
)

// 咨询类需求
const (
	GuidanceFinancing   = "financing"
	GuidanceEligibility = "eligibility"
	GuidancePolicy      = "policy"
	GuidanceComparison  = "comparison"
)

// PriceRange 价格区间，单位为卢比；未给出的一端保持 nil
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// QueryAnalysis 单次请求的查询解析结果，只在请求内存活
type QueryAnalysis struct {
	Locations     []string    `json:"locations"`
	PropertyTypes []string    `json:"property_types"`
	BedroomCount  *int        `json:"bedroom_count,omitempty"`
	PriceRange    *PriceRange `json:"price_range,omitempty"`
	Action        Action      `json:"action"`
	DetailLevel   DetailLevel `json:"detail_level"`
	GuidanceNeeds []string    `json:"guidance_needs,omitempty"`
	IsGreeting    bool        `json:"is_greeting,omitempty"`
}

func (a QueryAnalysis) HasLocations() bool { return len(a.Locations) > 0 }

// HasDomainSignal 是否抽取到任何房产相关信号
func (a QueryAnalysis) HasDomainSignal() bool {
	return len(a.Locations) > 0 || len(a.PropertyTypes) > 0 || a.BedroomCount != nil ||
		a.PriceRange != nil || a.Action != ActionUnknown || len(a.GuidanceNeeds) > 0
}
