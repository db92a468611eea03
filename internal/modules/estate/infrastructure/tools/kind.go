package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Kind 工具种类（封闭枚举），名字和参数 schema 在编译期确定
type Kind int

const (
	KindSearchProperties Kind = iota + 1
	KindRetrieveDocuments
)

// AllKinds 全部工具，顺序固定
var AllKinds = []Kind{KindSearchProperties, KindRetrieveDocuments}

func (k Kind) String() string {
	if s, ok := specs[k]; ok {
		return s.Name
	}
	return fmt.Sprintf("tool(%d)", int(k))
}

// ParseKind 按工具名查找，大小写不敏感
func ParseKind(name string) (Kind, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, k := range AllKinds {
		if specs[k].Name == n {
			return k, true
		}
	}
	return 0, false
}

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
)

// ParamSpec 单个参数声明
type ParamSpec struct {
	Name     string
	Type     ParamType
	Desc     string
	Required bool
	Enum     []string
	Min      *float64
	Max      *float64
}

// Spec 工具声明
type Spec struct {
	Kind   Kind
	Name   string
	Desc   string
	Params []ParamSpec
}

func bound(v float64) *float64 { return &v }

var specs = map[Kind]Spec{
	KindSearchProperties: {
		Kind: KindSearchProperties,
		Name: "search_properties",
		Desc: "Search the structured property catalog. Pure filter: every argument is optional and narrows the result.",
		Params: []ParamSpec{
			{Name: "locality", Type: TypeString, Desc: "Locality name, e.g. Wakad, Baner, Hinjewadi"},
			{Name: "property_type", Type: TypeString, Desc: "Property type", Enum: []string{"apartment", "villa", "house", "residential"}},
			{Name: "transaction_type", Type: TypeString, Desc: "sale for buying, rent for renting", Enum: []string{"sale", "rent"}},
			{Name: "min_price", Type: TypeNumber, Desc: "Minimum price in INR (monthly rent for rentals)", Min: bound(0)},
			{Name: "max_price", Type: TypeNumber, Desc: "Maximum price in INR (monthly rent for rentals)", Min: bound(0)},
			{Name: "bedrooms", Type: TypeInteger, Desc: "Number of bedrooms (BHK)", Min: bound(1), Max: bound(10)},
			{Name: "furnishing", Type: TypeString, Desc: "Furnishing status", Enum: []string{"furnished", "semi-furnished", "unfurnished"}},
		},
	},
	KindRetrieveDocuments: {
		Kind: KindRetrieveDocuments,
		Name: "retrieve_documents",
		Desc: "Retrieve grounding passages from ingested property brochures and guides by semantic similarity.",
		Params: []ParamSpec{
			{Name: "query", Type: TypeString, Desc: "What to look up", Required: true},
			{Name: "locality", Type: TypeString, Desc: "Restrict passages to this locality when possible"},
			{Name: "top_k", Type: TypeInteger, Desc: "Number of passages to return (default 5)", Min: bound(1), Max: bound(20)},
		},
	},
}

// SpecOf 返回工具声明
func SpecOf(k Kind) (Spec, bool) {
	s, ok := specs[k]
	return s, ok
}

// ToolInfo 转成 eino 的工具描述，供 chat model 绑定
func (s Spec) ToolInfo() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(s.Params))
	for _, p := range s.Params {
		params[p.Name] = &schema.ParameterInfo{
			Type:     dataType(p.Type),
			Desc:     p.Desc,
			Required: p.Required,
			Enum:     p.Enum,
		}
	}
	return &schema.ToolInfo{
		Name:        s.Name,
		Desc:        s.Desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func (s Spec) paramNames() []string {
	names := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func dataType(t ParamType) schema.DataType {
	switch t {
	case TypeNumber:
		return schema.Number
	case TypeInteger:
		return schema.Integer
	default:
		return schema.String
	}
}
