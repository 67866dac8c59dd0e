package script

import (
	"strings"

	"github.com/d5/tengo/v2"
)

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectAsFloat(obj tengo.Object) float64 {
	switch v := obj.(type) {
	case *tengo.Float:
		return v.Value
	case *tengo.Int:
		return float64(v.Value)
	default:
		return 0
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}

func anyToObject(v any) tengo.Object {
	switch val := v.(type) {
	case nil:
		return tengo.UndefinedValue
	case bool:
		if val {
			return tengo.TrueValue
		}
		return tengo.FalseValue
	case int:
		return &tengo.Int{Value: int64(val)}
	case int64:
		return &tengo.Int{Value: val}
	case uint64:
		return &tengo.Int{Value: int64(val)}
	case float64:
		return &tengo.Float{Value: val}
	case string:
		return &tengo.String{Value: val}
	case []any:
		out := make([]tengo.Object, 0, len(val))
		for _, item := range val {
			out = append(out, anyToObject(item))
		}
		return &tengo.Array{Value: out}
	case map[string]any:
		out := make(map[string]tengo.Object, len(val))
		for k, item := range val {
			out[k] = anyToObject(item)
		}
		return &tengo.Map{Value: out}
	case tengo.Object:
		return val
	default:
		return tengo.UndefinedValue
	}
}

func floatArray(vals ...float64) *tengo.Array {
	out := make([]tengo.Object, 0, len(vals))
	for _, v := range vals {
		out = append(out, &tengo.Float{Value: v})
	}
	return &tengo.Array{Value: out}
}

func boolObject(b bool) tengo.Object {
	if b {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}
