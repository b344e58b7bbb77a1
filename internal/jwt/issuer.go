// Package jwt emite y valida los bearer tokens del gateway (HS256 con secreto
// compartido). Las claims propias son:
//
//	tid    tenant
//	scope  scopes separados por espacio (también se acepta "scp" como array)
//	perms  permisos "<acción>:<recurso>[:own]"
package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidIssuer = errors.New("invalid_issuer")

// Issuer firma tokens con el secreto activo.
type Issuer struct {
	Iss       string        // "iss"
	Secret    []byte        // clave HS256
	KID       string        // opcional, viaja en el header
	AccessTTL time.Duration // TTL por defecto (ej: 15m)

	now func() time.Time
}

func NewIssuer(iss string, secret []byte) *Issuer {
	return &Issuer{
		Iss:       iss,
		Secret:    secret,
		AccessTTL: 15 * time.Minute,
		now:       time.Now,
	}
}

// AccessRequest describe qué lleva un access token.
type AccessRequest struct {
	Subject  string
	Tenant   string
	ClientID string
	Scopes   []string
	Perms    []string
	TTL      time.Duration // 0 => AccessTTL
}

// IssueAccess emite un Access Token con claims estándar + tid/scope/perms.
func (i *Issuer) IssueAccess(req AccessRequest) (string, time.Time, error) {
	if len(i.Secret) == 0 {
		return "", time.Time{}, errors.New("jwt: empty secret")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = i.AccessTTL
	}
	now := i.clock().UTC()
	exp := now.Add(ttl)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": req.Subject,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"jti": uuid.NewString(),
	}
	if req.Tenant != "" {
		claims["tid"] = req.Tenant
	}
	if req.ClientID != "" {
		claims["cid"] = req.ClientID
	}
	if len(req.Scopes) > 0 {
		claims["scope"] = strings.Join(req.Scopes, " ")
	}
	if len(req.Perms) > 0 {
		claims["perms"] = req.Perms
	}
	signed, err := i.SignRaw(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// SignRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve el JWT firmado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	if i.KID != "" {
		tk.Header["kid"] = i.KID
	}
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Secret)
}

func (i *Issuer) clock() time.Time {
	if i.now == nil {
		return time.Now()
	}
	return i.now()
}
