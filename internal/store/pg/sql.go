package pg

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
)

// builder acumula condiciones y parámetros posicionales.
type builder struct {
	conds []string
	args  []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func jsonArg(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", resource.ErrInvalidInput, err)
	}
	return string(raw), nil
}

// where traduce tenant + scope + query a SQL.
func where(tenant string, q resource.Query, scope resource.Scope) (string, []any, error) {
	if err := store.ValidateQuery(q); err != nil {
		return "", nil, err
	}
	b := &builder{}
	b.conds = append(b.conds, "tenant = "+b.arg(tenant))
	switch scope {
	case resource.Live:
		b.conds = append(b.conds, "deleted_at IS NULL")
	case resource.Deleted:
		b.conds = append(b.conds, "deleted_at IS NOT NULL")
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cond := q[key]
		ops := store.Operators(cond)
		if ops == nil {
			ops = map[string]any{"$eq": cond}
		}
		opNames := make([]string, 0, len(ops))
		for op := range ops {
			opNames = append(opNames, op)
		}
		sort.Strings(opNames)
		for _, op := range opNames {
			if err := b.op(key, op, ops[op]); err != nil {
				return "", nil, err
			}
		}
	}
	return strings.Join(b.conds, " AND "), b.args, nil
}

func (b *builder) op(key, op string, operand any) error {
	path := "(doc -> " + b.arg(key) + "::text)"
	switch op {
	case "$eq", "$ne":
		v, err := jsonArg(operand)
		if err != nil {
			return err
		}
		if op == "$eq" {
			b.conds = append(b.conds, path+" = "+b.arg(v)+"::jsonb")
		} else {
			b.conds = append(b.conds, path+" IS DISTINCT FROM "+b.arg(v)+"::jsonb")
		}
	case "$in", "$nin":
		list := operand.([]any)
		vals := make([]string, 0, len(list))
		for _, x := range list {
			v, err := jsonArg(x)
			if err != nil {
				return err
			}
			vals = append(vals, v)
		}
		expr := path + " = ANY(" + b.arg(vals) + "::jsonb[])"
		if op == "$in" {
			b.conds = append(b.conds, "COALESCE("+expr+", false)")
		} else {
			b.conds = append(b.conds, "NOT COALESCE("+expr+", false)")
		}
	case "$exists":
		expr := "doc ? " + b.arg(key) + "::text"
		if operand.(bool) {
			b.conds = append(b.conds, expr)
		} else {
			b.conds = append(b.conds, "NOT "+expr)
		}
	case "$gt", "$gte", "$lt", "$lte":
		v, err := jsonArg(operand)
		if err != nil {
			return err
		}
		sqlOp := map[string]string{"$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<="}[op]
		p := b.arg(v)
		// sólo se comparan valores del mismo tipo jsonb (número con número, string con string)
		b.conds = append(b.conds, fmt.Sprintf("(jsonb_typeof(%s) = jsonb_typeof(%s::jsonb) AND %s %s %s::jsonb)", path, p, path, sqlOp, p))
	default:
		return fmt.Errorf("%w: unknown operator %q", resource.ErrInvalidInput, op)
	}
	return nil
}

// orderBy arma ORDER BY; seq desempata para que el orden sea estable.
func orderBy(b *builder, fields []string) (string, error) {
	if err := store.ValidateSort(fields); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir = "DESC"
		}
		key := strings.TrimPrefix(strings.TrimPrefix(f, "-"), "+")
		parts = append(parts, "(doc -> "+b.arg(key)+"::text) "+dir+" NULLS LAST")
	}
	parts = append(parts, "seq ASC")
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func selectSQL(tbl, cols string, tenant string, f resource.Filter) (string, []any, error) {
	cond, args, err := where(tenant, f.Query, resource.Live)
	if err != nil {
		return "", nil, err
	}
	b := &builder{args: args}
	order, err := orderBy(b, f.Sort)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT " + cols + " FROM " + tbl + " WHERE " + cond + order
	if f.Pagination.Skip > 0 {
		sql += " OFFSET " + b.arg(f.Pagination.Skip)
	}
	if f.Pagination.Limit > 0 {
		sql += " LIMIT " + b.arg(f.Pagination.Limit)
	}
	return sql, b.args, nil
}
