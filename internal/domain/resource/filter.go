package resource

// Query es un filtro de igualdad por clave de documento. Un valor puede ser
// un escalar (igualdad) o un objeto con operadores:
//
//	{"status": "open", "total": {"$gte": 100}, "tags": {"$in": ["a", "b"]}}
//
// Operadores soportados: $eq, $ne, $in, $nin, $gt, $gte, $lt, $lte, $exists.
type Query map[string]any

// Clone copia la query (superficial).
func (q Query) Clone() Query {
	out := make(Query, len(q)+2)
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Pagination limita una búsqueda. Limit 0 significa "default del transporte".
type Pagination struct {
	Skip  int64 `json:"skip,omitempty"`
	Limit int64 `json:"limit,omitempty"`
}

// Filter filtra muchas entidades: query, proyección, orden y paginado.
// Sort acepta "campo" (asc) y "-campo" (desc).
type Filter struct {
	Query      Query      `json:"query,omitempty"`
	Projection []string   `json:"projection,omitempty"`
	Sort       []string   `json:"sort,omitempty"`
	Pagination Pagination `json:"pagination,omitempty"`
}

// FilterOne selecciona exactamente una entidad (id + ref opcional en Query).
type FilterOne struct {
	Query      Query    `json:"query,omitempty"`
	Projection []string `json:"projection,omitempty"`
}

// QueryFilter es el filtro de agregados: count y updateBulk.
type QueryFilter struct {
	Query Query `json:"query,omitempty"`
}

// MergeIdentity retorna una query nueva con el id y, si ref no está vacío,
// el ref. La query de entrada no se modifica.
//
//	MergeIdentity(Query{"status": "open"}, "X", "")   // {"status":"open","id":"X"}
//	MergeIdentity(Query{"status": "open"}, "X", "R")  // {"status":"open","id":"X","ref":"R"}
func MergeIdentity(q Query, id, ref string) Query {
	out := q.Clone()
	out[KeyID] = id
	if ref != "" {
		out[KeyRef] = ref
	}
	return out
}

// Refine agrega una restricción de igualdad sin mutar la query original.
func (q Query) Refine(key string, value any) Query {
	out := q.Clone()
	out[key] = value
	return out
}
