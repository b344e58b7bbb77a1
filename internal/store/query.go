package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

var operators = map[string]struct{}{
	"$eq": {}, "$ne": {}, "$in": {}, "$nin": {},
	"$gt": {}, "$gte": {}, "$lt": {}, "$lte": {}, "$exists": {},
}

// ValidateQuery rechaza operadores desconocidos y operandos mal formados.
func ValidateQuery(q resource.Query) error {
	for key, cond := range q {
		if key == "" || strings.HasPrefix(key, "$") {
			return fmt.Errorf("%w: invalid query key %q", resource.ErrInvalidInput, key)
		}
		ops, ok := cond.(map[string]any)
		if !ok || !isOperatorMap(ops) {
			continue
		}
		for op, operand := range ops {
			if _, known := operators[op]; !known {
				return fmt.Errorf("%w: unknown operator %q", resource.ErrInvalidInput, op)
			}
			switch op {
			case "$in", "$nin":
				if _, ok := operand.([]any); !ok {
					return fmt.Errorf("%w: %s expects an array", resource.ErrInvalidInput, op)
				}
			case "$exists":
				if _, ok := operand.(bool); !ok {
					return fmt.Errorf("%w: $exists expects a boolean", resource.ErrInvalidInput)
				}
			}
		}
	}
	return nil
}

// isOperatorMap: un objeto es de operadores si todas sus claves empiezan con $.
// {"city": "x"} como valor se compara por igualdad.
func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// Operators retorna los operadores de cond, o nil si cond es un valor literal.
func Operators(cond any) map[string]any {
	if m, ok := cond.(map[string]any); ok && isOperatorMap(m) {
		return m
	}
	return nil
}

// Match evalúa la query sobre un documento (la query ya fue validada).
func Match(doc resource.Document, q resource.Query) bool {
	for key, cond := range q {
		val, present := doc[key]
		ops := Operators(cond)
		if ops == nil {
			if !present || !Equal(val, cond) {
				return false
			}
			continue
		}
		for op, operand := range ops {
			if !matchOp(op, val, present, operand) {
				return false
			}
		}
	}
	return true
}

func matchOp(op string, val any, present bool, operand any) bool {
	switch op {
	case "$eq":
		return present && Equal(val, operand)
	case "$ne":
		return !present || !Equal(val, operand)
	case "$in":
		if !present {
			return false
		}
		for _, o := range operand.([]any) {
			if Equal(val, o) {
				return true
			}
		}
		return false
	case "$nin":
		if !present {
			return true
		}
		for _, o := range operand.([]any) {
			if Equal(val, o) {
				return false
			}
		}
		return true
	case "$exists":
		return present == operand.(bool)
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false
		}
		c, ok := Compare(val, operand)
		if !ok {
			return false
		}
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

// Equal compara dos valores JSON decodificados. Los números se comparan como
// float64 para tolerar int vs float.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

// Compare ordena números con números y strings con strings. ok=false si los
// tipos no son comparables.
func Compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// SortDocuments ordena in-place según campos "campo" / "-campo". Los
// documentos sin el campo van al final. El orden es estable.
func SortDocuments(docs []resource.Document, fields []string) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			desc := strings.HasPrefix(f, "-")
			key := strings.TrimPrefix(strings.TrimPrefix(f, "-"), "+")
			vi, iok := docs[i][key]
			vj, jok := docs[j][key]
			if !iok || !jok {
				if iok != jok {
					return iok
				}
				continue
			}
			c, ok := Compare(vi, vj)
			if !ok || c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// ValidateSort rechaza campos vacíos.
func ValidateSort(fields []string) error {
	for _, f := range fields {
		k := strings.TrimPrefix(strings.TrimPrefix(f, "-"), "+")
		if k == "" {
			return fmt.Errorf("%w: empty sort field", resource.ErrInvalidInput)
		}
	}
	return nil
}

// DeepCopy copia un documento incluyendo objetos y arrays anidados.
func DeepCopy(doc resource.Document) resource.Document {
	if doc == nil {
		return nil
	}
	out := make(resource.Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = copyValue(x)
		}
		return m
	case resource.Document:
		return map[string]any(DeepCopy(t))
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = copyValue(x)
		}
		return s
	}
	return v
}
