// Package crud convierte una definición de módulo (dato) en las once
// operaciones canónicas más sus acciones propias, montadas en REST (chi) y
// expuestas a GraphQL con el mismo control de scope y policy.
package crud

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/rate"
)

// Nombres de las operaciones canónicas.
const (
	OpCount      = "count"
	OpCreate     = "create"
	OpCreateBulk = "createBulk"
	OpFind       = "find"
	OpCursor     = "cursor"
	OpFindOne    = "findOne"
	OpDeleteOne  = "deleteOne"
	OpRestoreOne = "restoreOne"
	OpDestroyOne = "destroyOne"
	OpUpdateOne  = "updateOne"
	OpUpdateBulk = "updateBulk"
)

// Canonical lista las operaciones en el orden en que se montan.
var Canonical = []string{
	OpCount, OpCreate, OpCreateBulk, OpFind, OpCursor, OpFindOne,
	OpDeleteOne, OpRestoreOne, OpDestroyOne, OpUpdateBulk, OpUpdateOne,
}

// ActionOf es la acción de policy de cada operación canónica. Se deriva del
// nombre; un módulo no puede declarar otra.
func ActionOf(op string) policy.Action {
	switch op {
	case OpCount, OpFind, OpCursor, OpFindOne:
		return policy.Read
	case OpCreate, OpCreateBulk:
		return policy.Create
	case OpDeleteOne:
		return policy.Delete
	case OpRestoreOne:
		return policy.Restore
	case OpDestroyOne:
		return policy.Destroy
	case OpUpdateOne, OpUpdateBulk:
		return policy.Update
	}
	return ""
}

// Args indica qué argumentos lee una operación.
type Args uint8

const (
	ArgID        Args = 1 << iota // {id} en la ruta, ?ref opcional
	ArgFilter                     // filtro en query string / argumento filter
	ArgData                       // body JSON / argumento data
	ArgItems                      // {items:[...]} / argumento items
	ArgBodyQuery                  // {query, data} en el body (updateBulk)
)

func (a Args) Has(b Args) bool { return a&b != 0 }

// Input son los argumentos ya extraídos del transporte.
type Input struct {
	ID     string
	Ref    string
	Filter resource.Filter
	Data   json.RawMessage
	Items  []json.RawMessage
	Params url.Values
}

// Param retorna un parámetro escalar de una acción.
func (in Input) Param(name string) string {
	if in.Params == nil {
		return ""
	}
	return in.Params.Get(name)
}

// Handler ejecuta una acción propia de un módulo. Retorna el valor que se
// escribe como respuesta (normalmente un serializer).
type Handler func(ctx context.Context, meta resource.Metadata, in Input) (any, error)

// Action es una operación propia de un módulo (payment, start, send...).
type Action struct {
	Name    string
	Method  string
	Pattern string // relativo al path del módulo: "/{id}/payment"
	Field   string // campo GraphQL; vacío = sólo REST
	Verb    policy.Action
	Level   policy.Level // 0 = policy.LevelOf(Verb)
	Write   bool         // invalida cache y audita
	Status  int          // 0 = 200
	Args    Args
	Params  []string // parámetros escalares (?lat=&lng=)
	Handle  Handler
}

// Definition describe un módulo concreto. No tiene comportamiento propio:
// New la transforma en rutas y campos.
type Definition[E any] struct {
	Name     string // colección: "grants"
	Domain   string // contexto: "auth"
	Path     string // "/auth/grants"
	Entity   string // GraphQL: "Grant"
	Plural   string // GraphQL: "Grants" (vacío = Entity+"s")
	Provider resource.Provider[E]

	CacheKey string        // vacío = sin cache
	CacheTTL time.Duration // 0 = Options.CacheTTL
	Rate     *rate.Policy  // nil = límite por defecto

	// Validate reemplaza la validación por tags del payload de creación.
	Validate func(*E) error
	// Shape transforma la entidad antes de responder (p.ej. ocultar secretos).
	Shape func(*E) any
	// Disabled oculta operaciones canónicas (p.ej. updateBulk en sagas).
	Disabled []string

	Actions []Action
}

// Resource retorna el recurso de policy del módulo.
func (d Definition[E]) Resource() policy.Resource {
	return policy.NewResource(d.Domain, d.Name)
}

func (d Definition[E]) plural() string {
	if d.Plural != "" {
		return d.Plural
	}
	return d.Entity + "s"
}
