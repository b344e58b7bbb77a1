package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/auth"
	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	"github.com/wenex-org/platform-sub000/internal/rate"
)

func Grants(p *auth.Provider) crud.Definition[auth.Grant] {
	return crud.Definition[auth.Grant]{
		Name:     "grants",
		Domain:   auth.Context,
		Path:     "/auth/grants",
		Entity:   "Grant",
		Provider: p.Grants,
		CacheKey: "auth:grants",
		CacheTTL: time.Minute,
	}
}

// verifyInput es el body de verify.
type verifyInput struct {
	ClientID string `json:"client_id" validate:"required,max=128"`
	Secret   string `json:"secret" validate:"required,max=72"`
}

func Apps(p *auth.Provider) crud.Definition[auth.App] {
	return crud.Definition[auth.App]{
		Name:     "apps",
		Domain:   auth.Context,
		Path:     "/auth/apps",
		Entity:   "App",
		Provider: p.Apps,
		// las credenciales se prueban contra este módulo
		Rate:  &rate.Policy{Max: 60, Window: time.Minute},
		Shape: func(a *auth.App) any { return a.Public() },
		Actions: []crud.Action{{
			Name:    "verify",
			Method:  http.MethodPost,
			Pattern: "/verify",
			Field:   "verifyApp",
			Verb:    "verify",
			Level:   policy.LevelRead,
			Args:    crud.ArgData,
			Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
				body, err := crud.Decode[verifyInput](in.Data)
				if err != nil {
					return nil, err
				}
				app, err := p.Apps.Verify(ctx, meta, body.ClientID, body.Secret)
				if err != nil {
					return nil, err
				}
				return resource.NewData(app), nil
			},
		}},
	}
}
