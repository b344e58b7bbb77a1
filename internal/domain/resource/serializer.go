package resource

// DataSerializer envuelve una entidad: {"data": {...}}.
type DataSerializer[E any] struct {
	Data *E `json:"data"`
}

// PageMeta acompaña a un ItemsSerializer.
type PageMeta struct {
	Skip  int64 `json:"skip"`
	Limit int64 `json:"limit"`
	Count int   `json:"count"`
}

// ItemsSerializer envuelve una lista: {"items": [...], "meta": {...}}.
type ItemsSerializer[E any] struct {
	Items []*E     `json:"items"`
	Meta  PageMeta `json:"meta"`
}

// TotalSerializer envuelve un conteo: {"total": n}.
type TotalSerializer struct {
	Total int64 `json:"total"`
}

func NewData[E any](e *E) DataSerializer[E] { return DataSerializer[E]{Data: e} }

func NewItems[E any](items []*E, p Pagination) ItemsSerializer[E] {
	if items == nil {
		items = []*E{}
	}
	return ItemsSerializer[E]{
		Items: items,
		Meta:  PageMeta{Skip: p.Skip, Limit: p.Limit, Count: len(items)},
	}
}

func NewTotal(n int64) TotalSerializer { return TotalSerializer{Total: n} }

// IDs retorna el id de la entidad envuelta (auditoría).
func (d DataSerializer[E]) IDs() []string {
	if d.Data == nil {
		return nil
	}
	if c := CoreOf(d.Data); c != nil {
		return []string{c.ID}
	}
	return nil
}

func (s ItemsSerializer[E]) IDs() []string {
	out := make([]string, 0, len(s.Items))
	for _, e := range s.Items {
		if e == nil {
			continue
		}
		if c := CoreOf(e); c != nil {
			out = append(out, c.ID)
		}
	}
	return out
}
