// Package policy evalúa autorización fina (acción × recurso) y scopes
// gruesos por contexto de dominio.
//
// Perms (claim "perms"): "<acción>:<recurso>[:own]"
//
//	create:auth.grants     crear grants de cualquier owner
//	read:career.*          leer todas las colecciones de career
//	*:financial.invoices   cualquier acción sobre invoices
//	update:touch.emails:own  sólo emails propios (owner == sub)
//
// Scopes (claim "scope"/"scp"): "<contexto>:read|write|manage" o "root".
package policy

import (
	"context"
	"strings"
)

// Action es el verbo de una policy.
type Action string

const (
	Read    Action = "read"
	Create  Action = "create"
	Update  Action = "update"
	Delete  Action = "delete"
	Restore Action = "restore"
	Destroy Action = "destroy"
)

// Resource identifica una colección: "<contexto>.<colección>".
type Resource string

// NewResource arma "<contexto>.<colección>".
func NewResource(context, collection string) Resource {
	return Resource(context + "." + collection)
}

func (r Resource) String() string { return string(r) }

// Context retorna la parte de contexto ("auth" de "auth.grants").
func (r Resource) Context() string {
	s := string(r)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Pair es una regla acción × recurso.
type Pair struct {
	Action   Action   `json:"action"`
	Resource Resource `json:"resource"`
}

func (p Pair) String() string { return string(p.Action) + ":" + string(p.Resource) }

// Perm es un permiso otorgado, parseado del token.
type Perm struct {
	Action   string
	Resource string
	Own      bool
}

// ParsePerm interpreta "<acción>:<recurso>[:own]".
func ParsePerm(s string) (Perm, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Perm{}, false
		}
		return Perm{Action: parts[0], Resource: parts[1]}, true
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] != "own" {
			return Perm{}, false
		}
		return Perm{Action: parts[0], Resource: parts[1], Own: true}, true
	}
	return Perm{}, false
}

// Matches reporta si el permiso cubre la regla.
func (p Perm) Matches(pair Pair) bool {
	if p.Action != "*" && p.Action != string(pair.Action) {
		return false
	}
	switch {
	case p.Resource == "*":
		return true
	case strings.HasSuffix(p.Resource, ".*"):
		return strings.TrimSuffix(p.Resource, ".*") == pair.Resource.Context()
	}
	return p.Resource == string(pair.Resource)
}

// Permission es el resultado de evaluar los perms de un sujeto para una
// regla. Granted sin Full restringe al sujeto a sus propias entidades.
type Permission struct {
	Subject string `json:"subject"`
	Pair    Pair   `json:"pair"`
	Granted bool   `json:"granted"`
	Full    bool   `json:"full"`
}

// Evaluate calcula el Permission de subject para pair.
func Evaluate(perms []string, subject string, pair Pair) Permission {
	out := Permission{Subject: subject, Pair: pair}
	for _, raw := range perms {
		p, ok := ParsePerm(raw)
		if !ok || !p.Matches(pair) {
			continue
		}
		out.Granted = true
		if !p.Own {
			out.Full = true
			return out
		}
	}
	// un :own sin sujeto no puede aplicarse a nada
	if out.Granted && subject == "" {
		out.Granted = false
	}
	return out
}

// Allows reporta si el permiso alcanza a una entidad del owner dado.
func (p Permission) Allows(owner string) bool {
	if p.Full {
		return true
	}
	return p.Granted && owner != "" && owner == p.Subject
}

// Restricted: permitido pero sólo sobre entidades propias.
func (p Permission) Restricted() bool { return p.Granted && !p.Full }

type permissionKey struct{}

// WithPermission guarda el Permission calculado para la operación en curso.
func WithPermission(ctx context.Context, p Permission) context.Context {
	return context.WithValue(ctx, permissionKey{}, p)
}

// PermissionFrom lo recupera.
func PermissionFrom(ctx context.Context) (Permission, bool) {
	p, ok := ctx.Value(permissionKey{}).(Permission)
	return p, ok
}
