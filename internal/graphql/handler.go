package graphql

import (
	"encoding/json"
	"net/http"

	gql "github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
)

type request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// Handler ejecuta consultas GraphQL por POST (JSON) o GET (?query=).
// Requiere metadata en el contexto (RequireAuth) igual que los módulos REST.
func Handler(schema gql.Schema, maxBody int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		switch r.Method {
		case http.MethodPost:
			if err := helpers.DecodeJSON(w, r, maxBody, &req); err != nil {
				httperrors.WriteError(w, err)
				return
			}
		case http.MethodGet:
			q := r.URL.Query()
			req.Query = q.Get("query")
			req.OperationName = q.Get("operationName")
			if v := q.Get("variables"); v != "" {
				if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
					httperrors.WriteError(w, httperrors.ErrInvalidJSON.WithDetail("variables: "+err.Error()))
					return
				}
			}
		default:
			httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
			return
		}
		if req.Query == "" {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("query is required"))
			return
		}
		if r.Method == http.MethodGet && isMutation(req.Query, req.OperationName) {
			w.Header().Set("Allow", http.MethodPost)
			httperrors.WriteError(w, httperrors.ErrMethodNotAllowed.WithDetail("mutations require POST"))
			return
		}

		res := gql.Do(gql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        r.Context(),
		})
		if res.HasErrors() {
			logger.From(r.Context()).Debug("graphql errors",
				logger.Layer("graphql"), logger.Int("errors", len(res.Errors)))
		}
		helpers.WriteJSON(w, http.StatusOK, res)
	})
}

// isMutation indica si la operación a ejecutar es una mutation. Sin
// operationName basta con que el documento tenga alguna. Un documento que no
// parsea retorna false y el error lo reporta gql.Do.
func isMutation(query, operationName string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op.Operation != ast.OperationTypeMutation {
			continue
		}
		if operationName == "" || (op.Name != nil && op.Name.Value == operationName) {
			return true
		}
	}
	return false
}
