// Package graphql expone los módulos como campos GraphQL. Cada operación de
// crud con Field no vacío se vuelve un campo de Query (lecturas) o Mutation
// (escrituras) que devuelve el mismo envelope que REST.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	gql "github.com/graphql-go/graphql"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	"github.com/wenex-org/platform-sub000/internal/http/middlewares"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

const transportGraphQL = "graphql"

// Build arma el schema con las operaciones de todos los módulos.
func Build(modules []crud.Module, version string) (gql.Schema, error) {
	query := gql.Fields{
		"version": &gql.Field{
			Type:    gql.NewNonNull(gql.String),
			Resolve: func(gql.ResolveParams) (any, error) { return version, nil },
		},
	}
	mutation := gql.Fields{}

	owners := map[string]string{}
	for _, m := range modules {
		for _, op := range m.Operations() {
			if op.Field == "" || op.Stream {
				continue
			}
			if prev, dup := owners[op.Field]; dup {
				return gql.Schema{}, fmt.Errorf("graphql: field %s declared by %s and %s", op.Field, prev, m.Name())
			}
			owners[op.Field] = m.Name()

			field := &gql.Field{
				Type:        JSON,
				Description: op.Pair.String(),
				Args:        arguments(op),
				Resolve:     resolver(op),
			}
			if op.Mutation {
				mutation[op.Field] = field
			} else {
				query[op.Field] = field
			}
		}
	}

	cfg := gql.SchemaConfig{Query: gql.NewObject(gql.ObjectConfig{Name: "Query", Fields: query})}
	if len(mutation) > 0 {
		cfg.Mutation = gql.NewObject(gql.ObjectConfig{Name: "Mutation", Fields: mutation})
	}
	return gql.NewSchema(cfg)
}

// Fields lista los campos (Query y Mutation) en orden; lo usa el comando routes.
func Fields(modules []crud.Module) []string {
	var out []string
	for _, m := range modules {
		for _, op := range m.Operations() {
			if op.Field == "" || op.Stream {
				continue
			}
			kind := "query"
			if op.Mutation {
				kind = "mutation"
			}
			out = append(out, kind+" "+op.Field)
		}
	}
	sort.Strings(out)
	return out
}

func arguments(op *crud.Operation) gql.FieldConfigArgument {
	args := gql.FieldConfigArgument{}
	if op.Args.Has(crud.ArgID) {
		args["id"] = &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)}
		args["ref"] = &gql.ArgumentConfig{Type: gql.String}
	}
	if op.Args.Has(crud.ArgFilter) {
		args["filter"] = &gql.ArgumentConfig{Type: JSON}
	}
	if op.Args.Has(crud.ArgData) {
		args["data"] = &gql.ArgumentConfig{Type: gql.NewNonNull(JSON)}
	}
	if op.Args.Has(crud.ArgItems) {
		args["items"] = &gql.ArgumentConfig{Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(JSON)))}
	}
	for _, p := range op.Params {
		args[p] = &gql.ArgumentConfig{Type: gql.String}
	}
	return args
}

func resolver(op *crud.Operation) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (any, error) {
		ctx := p.Context
		in, err := input(op, p.Args)
		if err != nil {
			return nil, wrap(err)
		}
		ctx, err = op.Authorize(ctx)
		if err != nil {
			return nil, wrap(err)
		}
		if op.Write {
			ctx = middlewares.NewAuditContext(ctx)
		}
		out, err := op.Invoke(ctx, transportGraphQL, in)
		if op.Write {
			audit(ctx, op, in, err)
		}
		if err != nil {
			return nil, wrap(err)
		}
		return out, nil
	}
}

func audit(ctx context.Context, op *crud.Operation, in crud.Input, err error) {
	meta, _ := resource.MetadataFrom(ctx)
	result := "success"
	if err != nil {
		result = "failure"
	}
	id := in.ID
	if id == "" {
		id = middlewares.AuditedIDs(ctx)
	}
	logger.From(ctx).Info("audit",
		logger.Layer("audit"),
		logger.Transport(transportGraphQL),
		logger.Action(string(op.Pair.Action)),
		logger.Resource(op.Pair.Resource.String()),
		logger.TenantID(meta.Tenant),
		logger.Subject(meta.Subject),
		logger.EntityID(id),
		logger.String("result", result),
	)
}

// input traduce los argumentos GraphQL al mismo crud.Input que arma REST.
func input(op *crud.Operation, args map[string]any) (crud.Input, error) {
	var in crud.Input
	if v, ok := args["id"].(string); ok {
		in.ID = v
	}
	if v, ok := args["ref"].(string); ok {
		in.Ref = v
	}
	if raw, ok := args["filter"]; ok && raw != nil {
		enc, err := json.Marshal(raw)
		if err != nil {
			return in, httperrors.ErrInvalidFilter.WithDetail(err.Error())
		}
		f, err := helpers.ParseFilter(url.Values{"filter": {string(enc)}})
		if err != nil {
			return in, err
		}
		in.Filter = f
	}
	if raw, ok := args["data"]; ok && raw != nil {
		enc, err := json.Marshal(raw)
		if err != nil {
			return in, httperrors.ErrInvalidJSON.WithDetail(err.Error())
		}
		in.Data = enc
	}
	if list, ok := args["items"].([]any); ok {
		in.Items = make([]json.RawMessage, 0, len(list))
		for _, item := range list {
			enc, err := json.Marshal(item)
			if err != nil {
				return in, httperrors.ErrInvalidJSON.WithDetail(err.Error())
			}
			in.Items = append(in.Items, enc)
		}
	}
	if len(op.Params) > 0 {
		in.Params = url.Values{}
		for _, name := range op.Params {
			if v, ok := args[name].(string); ok {
				in.Params.Set(name, v)
			}
		}
	}
	return in, nil
}
