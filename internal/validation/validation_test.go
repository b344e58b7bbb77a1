package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

type grantLike struct {
	resource.Core
	Subject string   `json:"subject" validate:"required"`
	Action  string   `json:"action" validate:"required,action"`
	Object  string   `json:"object" validate:"required,resource"`
	Scopes  []string `json:"scopes,omitempty" validate:"omitempty,dive,scope"`
	Perms   []string `json:"perms,omitempty" validate:"omitempty,dive,perm"`
	Note    string   `json:"note,omitempty" validate:"omitempty,max=5"`
}

func TestStruct(t *testing.T) {
	ok := grantLike{Subject: "u1", Action: "read", Object: "auth.grants"}
	require.NoError(t, Struct(&ok))

	bad := grantLike{Action: "READ", Object: "grants", Scopes: []string{"auth:admin"}}
	err := Struct(&bad)
	require.ErrorIs(t, err, resource.ErrInvalidInput)
	require.Contains(t, err.Error(), "subject: required")
	require.Contains(t, err.Error(), "action: action")
	require.Contains(t, err.Error(), "object: resource")
	require.Contains(t, err.Error(), "scopes[0]: scope")
}

func TestPartial_OnlyPresentFields(t *testing.T) {
	// subject vacío no importa si el update no lo toca
	patch := grantLike{Note: "hi"}
	require.NoError(t, Partial(&patch, []string{"note"}))

	patch = grantLike{Note: "too long"}
	err := Partial(&patch, []string{"note"})
	require.ErrorIs(t, err, resource.ErrInvalidInput)
	require.Contains(t, err.Error(), "note: max=5")
}

func TestPartial_EmbeddedAndUnknown(t *testing.T) {
	patch := grantLike{Core: resource.Core{Ref: "r1"}}
	require.NoError(t, Partial(&patch, []string{"ref"}))

	err := Partial(&patch, []string{"nope"})
	require.ErrorIs(t, err, resource.ErrInvalidInput)
}

func TestWildcardResources(t *testing.T) {
	for _, obj := range []string{"*", "auth.*", "auth.grants"} {
		g := grantLike{Subject: "u", Action: "*", Object: obj}
		require.NoError(t, Struct(&g), obj)
	}
}
