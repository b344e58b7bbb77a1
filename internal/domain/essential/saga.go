// Package essential: sagas. Una saga agrupa escrituras de varias
// colecciones en una sesión transaccional del backend que vive entre
// requests hasta commit, abort o vencimiento del TTL.
//
// Las sesiones se guardan en memoria del proceso: los requests de una saga
// tienen que llegar a la misma instancia que la abrió.
package essential

import (
	"time"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

const (
	Context = "essential"

	SagasCollection = "essential_sagas"
)

// Estados de una saga.
const (
	StateStarted   = "started"
	StateCommitted = "committed"
	StateAborted   = "aborted"
	StateExpired   = "expired"
)

// Stage registra una escritura hecha dentro de la saga.
type Stage struct {
	Collection string    `json:"collection" validate:"required,max=64"`
	Action     string    `json:"action" validate:"required,action"`
	EntityID   string    `json:"entity_id,omitempty" validate:"omitempty,max=128"`
	AddedAt    time.Time `json:"added_at"`
	AddedBy    string    `json:"added_by,omitempty"`
}

// Saga es el documento de control. Se escribe siempre fuera de la sesión
// para que sobreviva a un rollback.
type Saga struct {
	resource.Core

	State     string     `json:"state"`
	TTL       int64      `json:"ttl"` // segundos
	ExpiresAt time.Time  `json:"expires_at"`
	Session   string     `json:"session,omitempty"`
	Stages    []Stage    `json:"stages,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// StartInput es el body de start. TTL en segundos; 0 = default.
type StartInput struct {
	TTL int64 `json:"ttl,omitempty" validate:"gte=0"`
}

// StageInput es el body de add.
type StageInput struct {
	Collection string `json:"collection" validate:"required,max=64"`
	Action     string `json:"action" validate:"required,action"`
	EntityID   string `json:"entity_id,omitempty" validate:"omitempty,max=128"`
}
