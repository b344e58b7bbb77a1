package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePerm(t *testing.T) {
	p, ok := ParsePerm("create:auth.grants")
	require.True(t, ok)
	require.Equal(t, Perm{Action: "create", Resource: "auth.grants"}, p)

	p, ok = ParsePerm("update:touch.emails:own")
	require.True(t, ok)
	require.True(t, p.Own)

	for _, bad := range []string{"", "create", "create:", ":x", "a:b:mine", "a:b:own:x"} {
		_, ok := ParsePerm(bad)
		require.False(t, ok, bad)
	}
}

func TestPermMatches(t *testing.T) {
	pair := Pair{Action: Create, Resource: "auth.grants"}
	cases := map[string]bool{
		"create:auth.grants":  true,
		"*:auth.grants":       true,
		"create:*":            true,
		"*:*":                 true,
		"create:auth.*":       true,
		"create:career.*":     false,
		"read:auth.grants":    false,
		"create:auth.apps":    false,
		"create:auth.grantsX": false,
	}
	for raw, want := range cases {
		p, ok := ParsePerm(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, p.Matches(pair), raw)
	}
}

func TestEvaluate(t *testing.T) {
	pair := Pair{Action: Update, Resource: "touch.emails"}

	full := Evaluate([]string{"read:*", "update:touch.emails"}, "u1", pair)
	require.True(t, full.Granted)
	require.True(t, full.Full)
	require.True(t, full.Allows("someone-else"))

	own := Evaluate([]string{"update:touch.emails:own"}, "u1", pair)
	require.True(t, own.Restricted())
	require.True(t, own.Allows("u1"))
	require.False(t, own.Allows("u2"))
	require.False(t, own.Allows(""))

	// un permiso completo gana sobre uno :own
	mixed := Evaluate([]string{"update:touch.emails:own", "*:touch.*"}, "u1", pair)
	require.True(t, mixed.Full)

	none := Evaluate([]string{"read:touch.emails"}, "u1", pair)
	require.False(t, none.Granted)
	require.False(t, none.Allows("u1"))

	anon := Evaluate([]string{"update:touch.emails:own"}, "", pair)
	require.False(t, anon.Granted)
}

func TestDestroyIsNotImpliedByDeleteOrRestore(t *testing.T) {
	destroy := Pair{Action: Destroy, Resource: "auth.grants"}
	p := Evaluate([]string{"delete:auth.grants", "restore:auth.grants", "update:auth.grants"}, "u1", destroy)
	require.False(t, p.Granted)

	p = Evaluate([]string{"destroy:auth.grants"}, "u1", destroy)
	require.True(t, p.Full)
}

func TestScopes(t *testing.T) {
	require.Equal(t, []string{"auth:read", "auth:write", "auth:manage", "root"}, AcceptedScopes("auth", LevelRead))
	require.Equal(t, []string{"auth:manage", "root"}, AcceptedScopes("auth", LevelManage))

	require.True(t, HasScope([]string{"auth:write"}, "auth", LevelRead))
	require.False(t, HasScope([]string{"auth:write"}, "auth", LevelManage))
	require.False(t, HasScope([]string{"career:manage"}, "auth", LevelRead))
	require.True(t, HasScope([]string{"root"}, "auth", LevelManage))

	require.Equal(t, LevelManage, LevelOf(Destroy))
	require.Equal(t, LevelWrite, LevelOf(Restore))
	require.Equal(t, LevelRead, LevelOf(Read))

	require.True(t, ValidScope("auth:read"))
	require.False(t, ValidScope("auth:admin"))
}

func TestResourceContext(t *testing.T) {
	require.Equal(t, "auth", NewResource("auth", "grants").Context())
	require.Equal(t, "auth.grants", Pair{Action: Read, Resource: "auth.grants"}.Resource.String())
}
