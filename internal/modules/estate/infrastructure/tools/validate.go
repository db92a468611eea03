package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args 校验并归一化后的参数：string / float64 / int
type Args map[string]any

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Args) Float(name string) *float64 {
	if v, ok := a[name].(float64); ok {
		return &v
	}
	return nil
}

func (a Args) Int(name string) *int {
	if v, ok := a[name].(int); ok {
		return &v
	}
	return nil
}

// ParseArguments 把模型给出的 JSON 参数串解析为 map；空串视为无参数
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Validate 严格校验：未知参数、类型不符、越界、枚举外取值都会报错
func (s Spec) Validate(raw map[string]any) (Args, error) {
	byName := make(map[string]ParamSpec, len(s.Params))
	for _, p := range s.Params {
		byName[p.Name] = p
	}
	out := make(Args, len(raw))
	for name, v := range raw {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown argument %q (allowed: %s)", name, strings.Join(s.paramNames(), ", "))
		}
		if v == nil {
			continue
		}
		val, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		if val == nil {
			continue
		}
		out[name] = val
	}
	for _, p := range s.Params {
		if _, ok := out[p.Name]; p.Required && !ok {
			return nil, fmt.Errorf("missing required argument %q", p.Name)
		}
	}
	return out, nil
}

func coerce(p ParamSpec, v any) (any, error) {
	switch p.Type {
	case TypeString:
		sv, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string", p.Name)
		}
		sv = strings.TrimSpace(sv)
		if sv == "" {
			if p.Required {
				return nil, fmt.Errorf("argument %q must not be empty", p.Name)
			}
			return nil, nil
		}
		if len(p.Enum) > 0 {
			lv := strings.ToLower(sv)
			for _, e := range p.Enum {
				if e == lv {
					return e, nil
				}
			}
			return nil, fmt.Errorf("argument %q must be one of [%s], got %q", p.Name, strings.Join(p.Enum, ", "), sv)
		}
		return sv, nil
	case TypeNumber, TypeInteger:
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("argument %q must be a %s", p.Name, p.Type)
		}
		if p.Min != nil && f < *p.Min {
			return nil, fmt.Errorf("argument %q must be >= %v", p.Name, *p.Min)
		}
		if p.Max != nil && f > *p.Max {
			return nil, fmt.Errorf("argument %q must be <= %v", p.Name, *p.Max)
		}
		if p.Type == TypeInteger {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("argument %q must be an integer", p.Name)
			}
			return int(f), nil
		}
		return f, nil
	}
	return nil, fmt.Errorf("argument %q has unsupported type", p.Name)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		// 模型偶尔把数字包成字符串
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("not a number")
}
