package modules

import (
	"context"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/essential"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
)

// Sagas sólo se crean con start y cambian de estado con add, commit y
// abort; el create y los updates genéricos quedan deshabilitados.
func Sagas(p *essential.Provider) crud.Definition[essential.Saga] {
	sagas := p.Sagas
	byID := func(fn func(ctx context.Context, meta resource.Metadata, q resource.Query) (*essential.Saga, error)) crud.Handler {
		return func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
			q, err := crud.Identity(ctx, in)
			if err != nil {
				return nil, err
			}
			s, err := fn(ctx, meta, q)
			if err != nil {
				return nil, err
			}
			return resource.NewData(s), nil
		}
	}
	return crud.Definition[essential.Saga]{
		Name:     "sagas",
		Domain:   essential.Context,
		Path:     "/essential/sagas",
		Entity:   "Saga",
		Provider: sagas,
		Disabled: []string{crud.OpCreate, crud.OpCreateBulk, crud.OpUpdateOne, crud.OpUpdateBulk},
		Actions: []crud.Action{
			{
				Name:    "start",
				Method:  http.MethodPost,
				Pattern: "/start",
				Field:   "startSaga",
				Verb:    "start",
				Write:   true,
				Status:  http.StatusCreated,
				Args:    crud.ArgData,
				Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
					body := &essential.StartInput{}
					if len(in.Data) > 0 {
						var err error
						if body, err = crud.Decode[essential.StartInput](in.Data); err != nil {
							return nil, err
						}
					}
					s, err := sagas.Start(ctx, meta, *body)
					if err != nil {
						return nil, err
					}
					return resource.NewData(s), nil
				},
			},
			{
				Name:    "add",
				Method:  http.MethodPost,
				Pattern: "/{id}/add",
				Field:   "addSagaById",
				Verb:    "add",
				Write:   true,
				Args:    crud.ArgID | crud.ArgData,
				Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
					body, err := crud.Decode[essential.StageInput](in.Data)
					if err != nil {
						return nil, err
					}
					return byID(func(ctx context.Context, meta resource.Metadata, q resource.Query) (*essential.Saga, error) {
						return sagas.Add(ctx, meta, q, *body)
					})(ctx, meta, in)
				},
			},
			{
				Name:    "commit",
				Method:  http.MethodPost,
				Pattern: "/{id}/commit",
				Field:   "commitSagaById",
				Verb:    "commit",
				Write:   true,
				Args:    crud.ArgID,
				Handle:  byID(sagas.Commit),
			},
			{
				Name:    "abort",
				Method:  http.MethodPost,
				Pattern: "/{id}/abort",
				Field:   "abortSagaById",
				Verb:    "abort",
				Write:   true,
				Args:    crud.ArgID,
				Handle:  byID(sagas.Abort),
			},
		},
	}
}
