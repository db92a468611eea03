package preprocess

// term 规范名 + 别名
type term struct {
	Name    string
	Aliases []string
}

// 默认地名表（Pune 周边 + 演示数据中的区域）
var defaultLocalities = []term{
	{Name: "viman nagar", Aliases: []string{"viman nagar", "viman"}},
	{Name: "kalyani nagar", Aliases: []string{"kalyani nagar", "kalyani"}},
	{Name: "wakad", Aliases: []string{"wakad"}},
	{Name: "hinjewadi", Aliases: []string{"hinjewadi", "hinjawadi"}},
	{Name: "kharadi", Aliases: []string{"kharadi"}},
	{Name: "baner", Aliases: []string{"baner"}},
	{Name: "kothrud", Aliases: []string{"kothrud"}},
	{Name: "pune", Aliases: []string{"pune", "pmc"}},
	{Name: "downtown", Aliases: []string{"downtown"}},
	{Name: "beachside", Aliases: []string{"beachside"}},
	{Name: "suburb", Aliases: []string{"suburb"}},
	{Name: "midtown", Aliases: []string{"midtown"}},
}

var defaultPropertyTypes = []term{
	{Name: "apartment", Aliases: []string{"apartment", "apt", "flat", "bhk"}},
	{Name: "villa", Aliases: []string{"villa"}},
	{Name: "house", Aliases: []string{"house", "bungalow"}},
	{Name: "residential", Aliases: []string{"residential", "home", "residence"}},
}

// 顺序即优先级：rent > buy > sell
var defaultActions = []term{
	{Name: "rent", Aliases: []string{"rent", "rental", "lease", "to rent", "renting"}},
	{Name: "buy", Aliases: []string{"buy", "buying", "purchase", "for sale", "sale", "invest in"}},
	{Name: "sell", Aliases: []string{"sell", "selling"}},
}

var defaultGuidance = []term{
	{Name: "financing", Aliases: []string{"loan", "mortgage", "emi", "down payment", "financing", "home loan", "housing finance"}},
	{Name: "eligibility", Aliases: []string{"eligible", "eligibility", "qualify", "requirements", "can i afford"}},
	{Name: "policy", Aliases: []string{"policy", "regulation", "rera", "documentation", "process", "procedure", "approval"}},
	{Name: "comparison", Aliases: []string{"compare", "vs", "versus", "difference", "which is better", "recommend"}},
}

// 出现即判定为 detailed
var budgetKeywords = []string{
	"budget", "lakh", "lac", "crore", "price", "pricing", "cost", "afford", "affordable", "can i buy", "emi",
}

// 列表类措辞
var listingKeywords = []string{
	"list", "list all", "show me", "show all", "find", "quick", "summary", "overview", "brief",
}

// 需要展开说明的措辞
var qualitativeKeywords = []string{
	"details", "detail", "about", "tell me more", "tell me about", "information", "info", "explain",
	"amenities", "features", "specifications", "specs", "layout", "why", "how", "compare", "complete",
}

var greetingPhrases = []string{
	"hi", "hello", "hey", "greetings", "hiya", "howdy", "good morning", "good afternoon",
	"good evening", "how are you", "what's up", "whats up", "yo", "namaste", "sup", "wassup",
}
