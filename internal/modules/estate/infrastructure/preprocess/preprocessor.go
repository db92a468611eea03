package preprocess

import (
	"EstateGuru/internal/modules/estate/domain/analysis"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	lakh  = 100_000.0
	crore = 10_000_000.0
)

var (
	bedroomRe = regexp.MustCompile(`(\d+)(?:\.\d+)?\s*-?\s*(?:bhk|bedrooms?|beds?)\b`)
	priceUnit = `(lakhs?|lacs?|crores?|cr)\b`
	amount    = `(\d+(?:\.\d+)?)`
	rangeSep  = `\s*(?:-|\bto\b|\band\b)\s*`
	// 分组固定为 下限, 下限单位, 上限, 上限单位；左端必须自带单位或有区间引导词，
	// 否则 "family of 4 and 50 lakh" 会把 4 当成下限
	rangeRes = []*regexp.Regexp{
		regexp.MustCompile(amount + `\s*(lakhs?|lacs?|crores?|cr)\b` + rangeSep + amount + `\s*` + priceUnit),
		regexp.MustCompile(`(?:\bbetween|\bfrom|₹|\brs\.?|\binr)\s*` + amount + `()` + rangeSep + amount + `\s*` + priceUnit),
		regexp.MustCompile(amount + `()\s*-\s*` + amount + `\s*` + priceUnit),
	}
	amountRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*` + priceUnit)
	spaceRe  = regexp.MustCompile(`\s+`)
	punctRe  = regexp.MustCompile(`[^a-z0-9' ]+`)
)

var (
	upperBoundWords = []string{"under", "below", "less than", "upto", "up to", "within", "max", "maximum", "not more than", "budget"}
	lowerBoundWords = []string{"above", "over", "more than", "at least", "minimum", "min", "from", "starting"}
)

// Preprocessor 从原始查询中抽取地点、房型、卧室数、价格、动作和详略程度。
// 无 I/O，可并发使用。
type Preprocessor struct {
	localities    []term
	propertyTypes []term
	actions       []term
	guidance      []term
}

type Option func(*Preprocessor)

// WithExtraLocalities 追加地名（规范名 -> 别名），别名为空时使用规范名
func WithExtraLocalities(extra map[string][]string) Option {
	return func(p *Preprocessor) {
		names := make([]string, 0, len(extra))
		for name := range extra {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			n := strings.ToLower(strings.TrimSpace(name))
			if n == "" || p.hasLocality(n) {
				continue
			}
			aliases := []string{n}
			for _, a := range extra[name] {
				a = strings.ToLower(strings.TrimSpace(a))
				if a != "" && a != n {
					aliases = append(aliases, a)
				}
			}
			p.localities = append(p.localities, term{Name: n, Aliases: aliases})
		}
	}
}

func New(opts ...Option) *Preprocessor {
	p := &Preprocessor{
		localities:    append([]term(nil), defaultLocalities...),
		propertyTypes: defaultPropertyTypes,
		actions:       defaultActions,
		guidance:      defaultGuidance,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Preprocessor) hasLocality(name string) bool {
	for _, t := range p.localities {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Localities 所有已知地名（规范名）
func (p *Preprocessor) Localities() []string {
	out := make([]string, 0, len(p.localities))
	for _, t := range p.localities {
		out = append(out, t.Name)
	}
	return out
}

// Analyze 解析查询
func (p *Preprocessor) Analyze(query string) analysis.QueryAnalysis {
	q := normalize(query)
	a := analysis.QueryAnalysis{
		Locations:     p.ExtractLocations(q),
		PropertyTypes: matchTerms(q, p.propertyTypes),
		BedroomCount:  ExtractBedrooms(q),
		PriceRange:    ExtractPriceRange(q),
		Action:        p.ExtractAction(q),
		GuidanceNeeds: matchTerms(q, p.guidance),
	}
	a.DetailLevel = detectDetailLevel(q, a)
	a.IsGreeting = !a.HasDomainSignal() && isGreeting(q)
	return a
}

// ExtractLocations 大小写无关的子串匹配，按在查询中首次出现的位置排序并去重
func (p *Preprocessor) ExtractLocations(query string) []string {
	q := strings.ToLower(query)
	type hit struct {
		name string
		pos  int
	}
	hits := make([]hit, 0, 2)
	for _, t := range p.localities {
		pos := -1
		for _, alias := range t.Aliases {
			if i := strings.Index(q, alias); i >= 0 && (pos < 0 || i < pos) {
				pos = i
			}
		}
		if pos >= 0 {
			hits = append(hits, hit{name: t.Name, pos: pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// ExtractAction 未命中关键词时返回 unknown
func (p *Preprocessor) ExtractAction(query string) analysis.Action {
	q := strings.ToLower(query)
	for _, t := range p.actions {
		for _, alias := range t.Aliases {
			if containsWord(q, alias) {
				return analysis.Action(t.Name)
			}
		}
	}
	return analysis.ActionUnknown
}

// ExtractBedrooms 只保留第一个匹配
func ExtractBedrooms(query string) *int {
	m := bedroomRe.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// ExtractPriceRange 归一化为卢比；只有一端时另一端保持 nil。
// 单独出现的金额（如 "budget is 50 lakh"）视为上限。
func ExtractPriceRange(query string) *analysis.PriceRange {
	q := strings.ToLower(query)
	for _, re := range rangeRes {
		m := re.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		unitHi := m[4]
		unitLo := m[2]
		if unitLo == "" {
			unitLo = unitHi
		}
		lo, err1 := toINR(m[1], unitLo)
		hi, err2 := toINR(m[3], unitHi)
		if err1 == nil && err2 == nil {
			if lo > hi {
				lo, hi = hi, lo
			}
			return &analysis.PriceRange{Min: &lo, Max: &hi}
		}
	}

	idx := amountRe.FindAllStringSubmatchIndex(q, -1)
	if len(idx) == 0 {
		return nil
	}
	var (
		pr      analysis.PriceRange
		bare    []float64
		matched bool
	)
	for _, loc := range idx {
		v, err := toINR(q[loc[2]:loc[3]], q[loc[4]:loc[5]])
		if err != nil {
			continue
		}
		matched = true
		prefix := q[max(0, loc[0]-24):loc[0]]
		switch {
		case hasAnySuffixWord(prefix, lowerBoundWords) && pr.Min == nil:
			vv := v
			pr.Min = &vv
		case hasAnySuffixWord(prefix, upperBoundWords) && pr.Max == nil:
			vv := v
			pr.Max = &vv
		default:
			bare = append(bare, v)
		}
	}
	if !matched {
		return nil
	}
	switch {
	case len(bare) >= 2 && pr.Min == nil && pr.Max == nil:
		sort.Float64s(bare)
		lo, hi := bare[0], bare[len(bare)-1]
		pr.Min, pr.Max = &lo, &hi
	case len(bare) >= 1 && pr.Max == nil:
		hi := bare[len(bare)-1]
		pr.Max = &hi
	case len(bare) >= 1 && pr.Min == nil:
		lo := bare[0]
		pr.Min = &lo
	}
	return &pr
}

// Enhance 构造只用于向量化的增强查询：原文 + 抽取出的实体
func (p *Preprocessor) Enhance(query string, a analysis.QueryAnalysis) string {
	parts := make([]string, 0, 6)
	if a.BedroomCount != nil {
		parts = append(parts, fmt.Sprintf("%d BHK properties", *a.BedroomCount))
	}
	parts = append(parts, a.PropertyTypes...)
	if a.Action != "" && a.Action != analysis.ActionUnknown {
		parts = append(parts, "for "+string(a.Action))
	}
	if len(a.Locations) > 0 {
		parts = append(parts, "in "+strings.Join(a.Locations, ", "))
	}
	if pr := a.PriceRange; pr != nil {
		switch {
		case pr.Min != nil && pr.Max != nil:
			parts = append(parts, fmt.Sprintf("priced between %s and %s", FormatINR(*pr.Min), FormatINR(*pr.Max)))
		case pr.Max != nil:
			parts = append(parts, "budget up to "+FormatINR(*pr.Max))
		case pr.Min != nil:
			parts = append(parts, "priced from "+FormatINR(*pr.Min))
		}
	}
	q := strings.TrimSpace(query)
	if len(parts) == 0 {
		return q
	}
	return q + " " + strings.Join(parts, " ")
}

// FormatINR 以 lakh / crore 表示金额
func FormatINR(v float64) string {
	if v >= crore {
		return trimFloat(v/crore) + " crore"
	}
	return trimFloat(v/lakh) + " lakh"
}

// detectDetailLevel 有序规则，先命中先生效：
// 预算类 → detailed；列表措辞且无展开诉求 → brief；只有地点/房型 → brief；其余 detailed
func detectDetailLevel(q string, a analysis.QueryAnalysis) analysis.DetailLevel {
	if a.PriceRange != nil || containsAnyWord(q, budgetKeywords) {
		return analysis.DetailDetailed
	}
	qualitative := containsAnyWord(q, qualitativeKeywords)
	if containsAnyWord(q, listingKeywords) && !qualitative {
		return analysis.DetailBrief
	}
	if (len(a.Locations) > 0 || len(a.PropertyTypes) > 0) && !qualitative {
		return analysis.DetailBrief
	}
	return analysis.DetailDetailed
}

func isGreeting(q string) bool {
	clean := strings.TrimSpace(spaceRe.ReplaceAllString(punctRe.ReplaceAllString(strings.ToLower(q), " "), " "))
	if clean == "" || len(strings.Fields(clean)) > 6 {
		return false
	}
	return containsAnyWord(clean, greetingPhrases)
}

func matchTerms(q string, terms []term) []string {
	out := make([]string, 0, 2)
	for _, t := range terms {
		for _, alias := range t.Aliases {
			if containsWord(q, alias) {
				out = append(out, t.Name)
				break
			}
		}
	}
	return out
}

func containsAnyWord(q string, words []string) bool {
	for _, w := range words {
		if containsWord(q, w) {
			return true
		}
	}
	return false
}

// containsWord 关键词两侧不能紧挨字母（允许复数 s/es、允许前面是数字，如 2bhk）
func containsWord(q, word string) bool {
	if word == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(q[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if start == 0 || !isLetter(q[start-1]) {
			rest := q[end:]
			switch {
			case rest == "" || !isLetter(rest[0]):
				return true
			case strings.HasPrefix(rest, "es") && (len(rest) == 2 || !isLetter(rest[2])):
				return true
			case rest[0] == 's' && (len(rest) == 1 || !isLetter(rest[1])):
				return true
			}
		}
		from = start + 1
	}
}

func hasAnySuffixWord(prefix string, words []string) bool {
	p := strings.TrimSpace(prefix)
	for _, cur := range []string{"₹", "rs.", "rs", "inr", ":"} {
		if strings.HasSuffix(p, cur) {
			p = strings.TrimSpace(strings.TrimSuffix(p, cur))
			break
		}
	}
	for _, w := range words {
		if strings.HasSuffix(p, w) || strings.HasSuffix(p, w+" of") || strings.HasSuffix(p, w+" is") {
			return true
		}
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func toINR(num, unit string) (float64, error) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(unit, "cr") {
		return v * crore, nil
	}
	return v * lakh, nil
}

func normalize(q string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(q), " "))
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
