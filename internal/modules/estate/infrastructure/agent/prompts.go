package agent

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/conversation"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"strconv"
	"strings"
)

const basePersona = `You are a helpful Real Estate Assistant for properties in Pune City, working for a company in the real estate industry.
If anyone asks a question that is not about real estate, reply with "Let's stay on track."
Only state facts that come from tool results. If you are unsure, say so instead of guessing. Keep answers concise.`

const buyPrompt = basePersona + `

Your responsibilities:
1. Help users find properties to buy based on locality, budget, bedrooms and property type.
2. Use the search_properties tool with transaction_type "sale" to find available properties.
3. Use the retrieve_documents tool for locality information, amenities, market trends and brochure details.
4. Explain pricing, payment plans, possession timelines and legal aspects in simple language.

Ask a clarifying question when the requirements are unclear.`

const rentPrompt = basePersona + `

Your responsibilities:
1. Help users find rental properties based on locality, budget, bedrooms and furnishing.
2. Use the search_properties tool with transaction_type "rent" to find available rentals.
3. Use the retrieve_documents tool for locality insights, amenities and rental market trends.
4. Explain rental agreements, deposits, maintenance charges and furnishing options (furnished, semi-furnished, unfurnished).

Start by understanding the user's rental budget, preferred localities and move-in timeline.`

const detailsPrompt = basePersona + `

Your responsibilities:
1. Answer questions about specific properties, projects and developments.
2. Use the retrieve_documents tool for all information about specifications, amenities, configurations, connectivity and pricing.
3. Use the search_properties tool only to look up a listing's structured attributes.
4. Cite the brochure or report a detail comes from when you can.`

// SystemPrompt 每种 agent 的系统提示词
func SystemPrompt(t conversation.AgentType) string {
	switch t {
	case conversation.AgentBuy:
		return buyPrompt
	case conversation.AgentRent:
		return rentPrompt
	default:
		return detailsPrompt
	}
}

const (
	// ApologyAnswer Failed 状态给用户的回复
	ApologyAnswer = "I'm sorry, I couldn't complete your request right now. Please try again in a moment."
	// EmptyAnswer 模型给出空回复时使用
	EmptyAnswer       = "I currently do not have enough information to answer that."
	loopExceededIntro = "I couldn't finish looking this up within the allowed number of steps. Here is what I found so far:"
)

// withAnalysisNote 把预处理抽到的实体附在本轮用户消息后面，只发给模型，不进历史
func withAnalysisNote(message string, a *analysis.QueryAnalysis) string {
	if a == nil || !a.HasDomainSignal() {
		return message
	}
	var parts []string
	if len(a.Locations) > 0 {
		parts = append(parts, "locality: "+strings.Join(a.Locations, ", "))
	}
	if len(a.PropertyTypes) > 0 {
		parts = append(parts, "property type: "+strings.Join(a.PropertyTypes, ", "))
	}
	if a.BedroomCount != nil {
		parts = append(parts, "bedrooms: "+strconv.Itoa(*a.BedroomCount))
	}
	if pr := a.PriceRange; pr != nil && (pr.Min != nil || pr.Max != nil) {
		budget := "budget:"
		if pr.Min != nil {
			budget += " min INR " + preprocess.FormatINR(*pr.Min)
		}
		if pr.Max != nil {
			budget += " max INR " + preprocess.FormatINR(*pr.Max)
		}
		parts = append(parts, budget)
	}
	if a.Action != "" && a.Action != analysis.ActionUnknown {
		parts = append(parts, "intent: "+string(a.Action))
	}
	if len(a.GuidanceNeeds) > 0 {
		parts = append(parts, "needs: "+strings.Join(a.GuidanceNeeds, ", "))
	}
	if len(parts) == 0 {
		return message
	}
	return message + "\n\n[Details detected in this question; use them as tool arguments where they apply. " +
		strings.Join(parts, "; ") + "]"
}
