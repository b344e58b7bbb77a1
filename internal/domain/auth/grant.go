package auth

import (
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

// Grant otorga a Subject la acción Action sobre Object ("<ctx>.<colección>").
type Grant struct {
	resource.Core

	Subject   string     `json:"subject" validate:"required,max=128"`
	Action    string     `json:"action" validate:"required,action"`
	Object    string     `json:"object" validate:"required,resource"`
	Own       bool       `json:"own,omitempty"`
	Fields    []string   `json:"fields,omitempty" validate:"omitempty,dive,required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Perm retorna el grant en formato de claim "perms".
func (g *Grant) Perm() string {
	p := g.Action + ":" + g.Object
	if g.Own {
		p += ":own"
	}
	return p
}

// Active reporta si el grant sigue vigente en now.
func (g *Grant) Active(now time.Time) bool {
	if g.Deleted() {
		return false
	}
	return g.ExpiresAt == nil || now.Before(*g.ExpiresAt)
}
