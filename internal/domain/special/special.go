// Package special: archivos (metadatos) y estadísticas agregadas por clave.
package special

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/store"
	"github.com/wenex-org/platform-sub000/internal/validation"
)

const (
	Context = "special"

	FilesCollection = "special_files"
	StatsCollection = "special_stats"
)

// File describe un archivo guardado fuera del gateway.
type File struct {
	resource.Core

	Name     string   `json:"name" validate:"required,max=255"`
	MimeType string   `json:"mime_type" validate:"required,max=128"`
	Size     int64    `json:"size" validate:"gte=0"`
	URL      string   `json:"url" validate:"required,url"`
	Checksum string   `json:"checksum,omitempty" validate:"omitempty,sha256"`
	Tags     []string `json:"tags,omitempty" validate:"omitempty,dive,required,max=32"`
}

// Stat es un contador acumulado por clave.
type Stat struct {
	resource.Core

	Key         string    `json:"key" validate:"required,max=128"`
	Value       float64   `json:"value"`
	Count       int64     `json:"count"`
	Tags        []string  `json:"tags,omitempty" validate:"omitempty,dive,required,max=32"`
	CollectedAt time.Time `json:"collected_at"`
}

// CollectInput es el body de collect.
type CollectInput struct {
	Key   string   `json:"key" validate:"required,max=128"`
	Value float64  `json:"value"`
	Tags  []string `json:"tags,omitempty" validate:"omitempty,dive,required,max=32"`
}

// Stats agrega collect a la colección genérica.
type Stats struct {
	*resource.Collection[Stat]

	now func() time.Time
	// serializa el upsert dentro del proceso
	mu sync.Mutex
}

// Provider del contexto special.
type Provider struct {
	Files *resource.Collection[File]
	Stats *Stats
}

// NewProvider crea el provider sobre b.
func NewProvider(b store.Backend, opts ...resource.CollectionOption) *Provider {
	return &Provider{
		Files: resource.NewCollection[File](FilesCollection, b.Collection(FilesCollection), opts...),
		Stats: &Stats{
			Collection: resource.NewCollection[Stat](StatsCollection, b.Collection(StatsCollection), opts...),
			now:        time.Now,
		},
	}
}

// Collect suma in.Value al contador de in.Key, creándolo si no existe.
func (s *Stats) Collect(ctx context.Context, meta resource.Metadata, in CollectInput) (*Stat, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	stat, err := s.Modify(ctx, meta, resource.Query{"key": in.Key}, func(st *Stat) error {
		st.Value += in.Value
		st.Count++
		st.Tags = mergeTags(st.Tags, in.Tags)
		st.CollectedAt = now
		return nil
	})
	if err == nil {
		return stat, nil
	}
	if !errors.Is(err, resource.ErrNotFound) {
		return nil, fmt.Errorf("stats collect %s: %w", in.Key, err)
	}
	return s.Create(ctx, meta, &Stat{
		Key:         in.Key,
		Value:       in.Value,
		Count:       1,
		Tags:        mergeTags(nil, in.Tags),
		CollectedAt: now,
	})
}

func mergeTags(have, add []string) []string {
	if len(add) == 0 {
		return have
	}
	set := make(map[string]struct{}, len(have)+len(add))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range add {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
