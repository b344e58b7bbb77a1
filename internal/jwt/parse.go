package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Claims es la vista tipada de un access token ya validado.
type Claims struct {
	Subject  string
	Tenant   string
	ClientID string
	Scopes   []string
	Perms    []string
	Expires  time.Time
	Raw      map[string]any
}

// Verifier valida tokens HS256 emitidos por Issuer.
type Verifier struct {
	Iss    string // "" => no se chequea
	Secret []byte
	Leeway time.Duration
}

// Parse valida firma (HS256), chequea iss y exp/nbf con una pequeña
// tolerancia, y devuelve las claims.
func (v *Verifier) Parse(token string) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		return v.Secret, nil
	}
	leeway := v.Leeway
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(leeway),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, errors.New("expired")
		}
		return nil, errors.New("invalid_jwt")
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}
	if v.Iss != "" {
		if iss, _ := mc["iss"].(string); iss != v.Iss {
			return nil, ErrInvalidIssuer
		}
	}

	c := &Claims{Raw: make(map[string]any, len(mc))}
	for k, val := range mc {
		c.Raw[k] = val
	}
	c.Subject, _ = mc["sub"].(string)
	if c.Subject == "" {
		return nil, errors.New("sub_missing")
	}
	c.Tenant, _ = mc["tid"].(string)
	c.ClientID, _ = mc["cid"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.Expires = exp.Time
	}

	if s, ok := mc["scope"].(string); ok {
		c.Scopes = strings.Fields(s)
	} else if arr, ok := mc["scp"]; ok {
		c.Scopes, err = stringList(arr)
		if err != nil {
			return nil, fmt.Errorf("scp: %w", err)
		}
	}
	if arr, ok := mc["perms"]; ok {
		c.Perms, err = stringList(arr)
		if err != nil {
			return nil, fmt.Errorf("perms: %w", err)
		}
	}
	return c, nil
}

func stringList(v any) ([]string, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, errors.New("claims_type")
	}
	out := make([]string, 0, len(arr))
	for _, x := range arr {
		s, ok := x.(string)
		if !ok {
			return nil, errors.New("claims_type")
		}
		out = append(out, s)
	}
	return out, nil
}
