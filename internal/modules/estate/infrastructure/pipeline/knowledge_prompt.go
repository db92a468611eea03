package pipeline

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/infrastructure/preprocess"
	"fmt"
	"strings"
)

const (
	// StayOnTrackAnswer 非房产问题的固定回复
	StayOnTrackAnswer = "Let's stay on track."
	// NoInformationAnswer 没有召回任何上下文时的回复
	NoInformationAnswer = "I currently do not have enough information to answer that."
	// UnavailableApology 上游不可用时面向用户的道歉
	UnavailableApology = "Sorry, our property knowledge service is temporarily unavailable. Please try again in a moment."
)

const knowledgeSystemPrompt = `You are a helpful Real Estate Assistant for properties in Pune City.
You work for a company in the real estate industry and only have information about the properties described in the supplied context.

CORE RULES:
1. Answer ONLY from the supplied context. Never invent properties, prices or amenities.
2. If the context does not contain the answer, reply: "I currently do not have enough information to answer that."
3. If the question is not about real estate, reply exactly: "Let's stay on track."
4. Keep responses concise, factual and professional.`

var guidanceHints = map[string]string{
	analysis.GuidanceFinancing:   "Include: loan eligibility, down payment (typically 15-25%), EMI estimates, financing options",
	analysis.GuidanceEligibility: "Include: income requirements, documentation needed, credit score considerations",
	analysis.GuidancePolicy:      "Include: RERA compliance, registration process, legal documentation, possession timeline",
	analysis.GuidanceComparison:  "Compare properties on: price per sq.ft, amenities, location, possession timeline, financing ease",
}

var vagueReferences = []string{"this property", "that property", "this project", "that project"}

// buildKnowledgeSystemPrompt 根据解析结果追加位置、意图、咨询需求约束
func buildKnowledgeSystemPrompt(a analysis.QueryAnalysis) string {
	var sb strings.Builder
	sb.WriteString(knowledgeSystemPrompt)
	if len(a.PropertyTypes) > 0 {
		fmt.Fprintf(&sb, "\n\nUser is looking for: %s", strings.Join(a.PropertyTypes, ", "))
	}
	if a.BedroomCount != nil {
		fmt.Fprintf(&sb, "\nRequested configuration: %d BHK", *a.BedroomCount)
	}
	if a.PriceRange != nil {
		fmt.Fprintf(&sb, "\nBudget: %s", describeBudget(a.PriceRange))
	}
	if len(a.Locations) > 0 {
		locs := strings.Join(a.Locations, ", ")
		fmt.Fprintf(&sb, "\nPreferred locations: %s", locs)
		fmt.Fprintf(&sb, "\n\n*** IMPORTANT: ONLY show properties from these locations: %s ***", locs)
		sb.WriteString("\n*** DO NOT mention or include properties from any other locality ***")
	}
	if a.Action != analysis.ActionUnknown && a.Action != "" {
		fmt.Fprintf(&sb, "\nUser intent: %s (use this to provide relevant %s guidance)", a.Action, a.Action)
	}
	if len(a.GuidanceNeeds) > 0 {
		fmt.Fprintf(&sb, "\nUser also needs guidance on: %s", strings.Join(a.GuidanceNeeds, ", "))
		for _, g := range a.GuidanceNeeds {
			if hint, ok := guidanceHints[g]; ok {
				sb.WriteString("\n  - " + hint)
			}
		}
	}
	return sb.String()
}

// buildKnowledgeUserPrompt 问题 + 上下文 + 详略指令
func buildKnowledgeUserPrompt(query string, a analysis.QueryAnalysis, sources []rag.RetrievalResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nContext from real estate documents:\n", query)
	sb.WriteString(renderContext(sources))
	sb.WriteString("\n\n")
	sb.WriteString(detailInstruction(query, a))
	return sb.String()
}

func detailInstruction(query string, a analysis.QueryAnalysis) string {
	q := strings.ToLower(query)
	for _, v := range vagueReferences {
		if strings.Contains(q, v) {
			return "The user refers to a property without naming it. Ask which property they mean " +
				"(for example Evergreen Heights or Summit Residency). Do NOT guess or return random property details."
		}
	}
	if a.DetailLevel == analysis.DetailBrief {
		return "LIST VIEW: show each matching property as a numbered list item with its title and a one-line description only. " +
			"Do not include amenities, layouts, pricing or specifications."
	}
	instr := "DETAILED VIEW: give complete information about the relevant properties: amenities, configurations, pricing " +
		"and locality information. Use bullet points and **bold** property names; do not use markdown headers."
	if a.PriceRange != nil {
		instr += " Relate every suggestion to the user's budget and explain what the budget can get them."
	}
	return instr
}

func describeBudget(pr *analysis.PriceRange) string {
	switch {
	case pr.Min != nil && pr.Max != nil:
		return "between " + formatRupees(*pr.Min) + " and " + formatRupees(*pr.Max)
	case pr.Max != nil:
		return "up to " + formatRupees(*pr.Max)
	case pr.Min != nil:
		return "from " + formatRupees(*pr.Min)
	}
	return "unspecified"
}

func formatRupees(v float64) string {
	return "INR " + preprocess.FormatINR(v)
}

func renderContext(sources []rag.RetrievalResult) string {
	lines := make([]string, 0, len(sources))
	for _, s := range sources {
		lines = append(lines, "- "+strings.TrimSpace(s.Text))
	}
	return strings.Join(lines, "\n")
}

// contextOnlyAnswer LLM 不可用时直接返回召回内容
func contextOnlyAnswer(query string, sources []rag.RetrievalResult) string {
	return fmt.Sprintf("%s\n\nHere is what I found about \"%s\" in our documents:\n%s",
		UnavailableApology, query, renderContext(sources))
}
