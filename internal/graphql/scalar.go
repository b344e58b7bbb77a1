package graphql

import (
	"encoding/json"
	"strconv"

	gql "github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// JSON transporta cualquier valor JSON: filtros, payloads y los envelopes
// {data}, {items, meta} y {total}.
var JSON = gql.NewScalar(gql.ScalarConfig{
	Name:         "JSON",
	Description:  "Arbitrary JSON value",
	Serialize:    serializeJSON,
	ParseValue:   func(v any) any { return v },
	ParseLiteral: parseLiteral,
})

// serializeJSON lleva structs (serializers, entidades) a mapas genéricos.
func serializeJSON(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, int, int64, map[string]any, []any:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func parseLiteral(v ast.Value) any {
	switch lit := v.(type) {
	case *ast.StringValue:
		return lit.Value
	case *ast.BooleanValue:
		return lit.Value
	case *ast.IntValue:
		n, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return nil
		}
		return float64(n)
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil
		}
		return f
	case *ast.EnumValue:
		return lit.Value
	case *ast.ListValue:
		out := make([]any, 0, len(lit.Values))
		for _, x := range lit.Values {
			out = append(out, parseLiteral(x))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]any, len(lit.Fields))
		for _, f := range lit.Fields {
			out[f.Name.Value] = parseLiteral(f.Value)
		}
		return out
	}
	return nil
}
