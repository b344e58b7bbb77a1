package modules

import (
	"context"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/domain/touch"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
)

// sendAction arma la acción send de emails y pushes; la entidad vuelve con
// status sent o failed.
func sendAction[E any](field string, send func(context.Context, resource.Metadata, resource.Query) (*E, error)) crud.Action {
	return crud.Action{
		Name:    "send",
		Method:  http.MethodPost,
		Pattern: "/{id}/send",
		Field:   field,
		Verb:    "send",
		Write:   true,
		Args:    crud.ArgID,
		Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
			q, err := crud.Identity(ctx, in)
			if err != nil {
				return nil, err
			}
			e, err := send(ctx, meta, q)
			if err != nil {
				return nil, err
			}
			return resource.NewData(e), nil
		},
	}
}

func Emails(p *touch.Provider) crud.Definition[touch.Email] {
	return crud.Definition[touch.Email]{
		Name:     "emails",
		Domain:   touch.Context,
		Path:     "/touch/emails",
		Entity:   "Email",
		Provider: p.Emails,
		Actions:  []crud.Action{sendAction("sendEmailById", p.Emails.Send)},
	}
}

func Pushes(p *touch.Provider) crud.Definition[touch.Push] {
	return crud.Definition[touch.Push]{
		Name:     "pushes",
		Domain:   touch.Context,
		Path:     "/touch/pushes",
		Entity:   "Push",
		Plural:   "Pushes",
		Provider: p.Pushes,
		Actions:  []crud.Action{sendAction("sendPushById", p.Pushes.Send)},
	}
}
