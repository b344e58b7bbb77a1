package modules

import (
	"context"
	"net/http"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/domain/special"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
)

func Files(p *special.Provider) crud.Definition[special.File] {
	return crud.Definition[special.File]{
		Name:     "files",
		Domain:   special.Context,
		Path:     "/special/files",
		Entity:   "File",
		Provider: p.Files,
		CacheKey: "special:files",
	}
}

func Stats(p *special.Provider) crud.Definition[special.Stat] {
	return crud.Definition[special.Stat]{
		Name:     "stats",
		Domain:   special.Context,
		Path:     "/special/stats",
		Entity:   "Stat",
		Provider: p.Stats,
		Actions: []crud.Action{{
			Name:    "collect",
			Method:  http.MethodPost,
			Pattern: "/collect",
			Field:   "collectStat",
			Verb:    "collect",
			Write:   true,
			Args:    crud.ArgData,
			Handle: func(ctx context.Context, meta resource.Metadata, in crud.Input) (any, error) {
				body, err := crud.Decode[special.CollectInput](in.Data)
				if err != nil {
					return nil, err
				}
				st, err := p.Stats.Collect(ctx, meta, *body)
				if err != nil {
					return nil, err
				}
				return resource.NewData(st), nil
			},
		}},
	}
}
