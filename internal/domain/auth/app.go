package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

// App es un cliente registrado. Secret sólo viaja en la entrada; se guarda
// el hash bcrypt en SecretHash y nunca se devuelve.
type App struct {
	resource.Core

	Name         string   `json:"name" validate:"required,max=128"`
	ClientID     string   `json:"client_id" validate:"required,max=128"`
	Secret       string   `json:"secret,omitempty" validate:"omitempty,min=16,max=72"`
	SecretHash   string   `json:"secret_hash,omitempty"`
	Scopes       []string `json:"scopes,omitempty" validate:"omitempty,dive,scope"`
	RedirectURIs []string `json:"redirect_uris,omitempty" validate:"omitempty,dive,url"`
	Status       string   `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// Public retorna una copia sin material secreto.
func (a *App) Public() *App {
	out := *a
	out.Secret = ""
	out.SecretHash = ""
	return &out
}

// Apps es el sub-recurso de apps: la colección genérica más el hash del
// secreto en cada escritura.
type Apps struct {
	*resource.Collection[App]
	cost int
}

var _ resource.Provider[App] = (*Apps)(nil)

// NewApps envuelve la colección.
func NewApps(c *resource.Collection[App]) *Apps {
	return &Apps{Collection: c, cost: bcrypt.DefaultCost}
}

// WithCost cambia el costo de bcrypt (tests).
func (a *Apps) WithCost(cost int) *Apps {
	a.cost = cost
	return a
}

func (a *Apps) seal(item *App) error {
	// el hash nunca lo manda el cliente
	item.SecretHash = ""
	if item.Secret == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(item.Secret), a.cost)
	if err != nil {
		return fmt.Errorf("%w: secret: %v", resource.ErrInvalidInput, err)
	}
	item.Secret = ""
	item.SecretHash = string(hash)
	return nil
}

func (a *Apps) Create(ctx context.Context, meta resource.Metadata, item *App) (*App, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: empty payload", resource.ErrInvalidInput)
	}
	if item.Status == "" {
		item.Status = "active"
	}
	if err := a.seal(item); err != nil {
		return nil, err
	}
	return a.Collection.Create(ctx, meta, item)
}

func (a *Apps) CreateBulk(ctx context.Context, meta resource.Metadata, items []*App) ([]*App, error) {
	for _, item := range items {
		if item == nil {
			return nil, fmt.Errorf("%w: empty item", resource.ErrInvalidInput)
		}
		if item.Status == "" {
			item.Status = "active"
		}
		if err := a.seal(item); err != nil {
			return nil, err
		}
	}
	return a.Collection.CreateBulk(ctx, meta, items)
}

// sealPatch reemplaza "secret" por "secret_hash" en un update.
func (a *Apps) sealPatch(patch resource.Patch) (resource.Patch, error) {
	if _, ok := patch["secret_hash"]; ok {
		return nil, fmt.Errorf("%w: field %q is read-only", resource.ErrInvalidInput, "secret_hash")
	}
	raw, ok := patch["secret"]
	if !ok {
		return patch, nil
	}
	out := patch.Clone()
	delete(out, "secret")
	secret, _ := raw.(string)
	if secret == "" {
		out["secret_hash"] = nil
		return out, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), a.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: secret: %v", resource.ErrInvalidInput, err)
	}
	out["secret_hash"] = string(hash)
	return out, nil
}

func (a *Apps) UpdateOne(ctx context.Context, meta resource.Metadata, f resource.FilterOne, patch resource.Patch) (*App, error) {
	sealed, err := a.sealPatch(patch)
	if err != nil {
		return nil, err
	}
	return a.Collection.UpdateOne(ctx, meta, f, sealed)
}

func (a *Apps) UpdateBulk(ctx context.Context, meta resource.Metadata, f resource.QueryFilter, patch resource.Patch) (int64, error) {
	if _, ok := patch["secret"]; ok {
		return 0, fmt.Errorf("%w: secrets are updated one app at a time", resource.ErrInvalidInput)
	}
	sealed, err := a.sealPatch(patch)
	if err != nil {
		return 0, err
	}
	return a.Collection.UpdateBulk(ctx, meta, f, sealed)
}

// Verify compara secret con el hash guardado de la app clientID.
func (a *Apps) Verify(ctx context.Context, meta resource.Metadata, clientID, secret string) (*App, error) {
	app, err := a.Collection.FindOne(ctx, meta, resource.FilterOne{Query: resource.Query{"client_id": clientID}})
	if err != nil {
		return nil, err
	}
	if app.Status == "inactive" || app.SecretHash == "" {
		return nil, fmt.Errorf("%w: app %s cannot authenticate", resource.ErrWrongState, clientID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(app.SecretHash), []byte(secret)); err != nil {
		return nil, fmt.Errorf("%w: invalid client credentials", resource.ErrUnprocessable)
	}
	return app.Public(), nil
}
