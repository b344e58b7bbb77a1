package crud

import (
	"context"
	"encoding/json"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
	"github.com/wenex-org/platform-sub000/internal/http/helpers"
	"github.com/wenex-org/platform-sub000/internal/validation"
)

// Decode decodifica el payload de una acción rechazando campos desconocidos
// y lo valida por tags.
func Decode[T any](raw json.RawMessage) (*T, error) {
	v := new(T)
	if err := helpers.DecodeStrict(raw, v); err != nil {
		return nil, err
	}
	if err := validation.Struct(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Identity arma la query de una acción sobre {id}: id, ref y, con permisos
// ":own", el owner.
func Identity(ctx context.Context, in Input) (resource.Query, error) {
	if in.ID == "" {
		return nil, httperrors.ErrMissingID
	}
	return OwnedQuery(ctx, resource.MergeIdentity(nil, in.ID, in.Ref)), nil
}
