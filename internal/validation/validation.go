// Package validation valida payloads con go-playground/validator usando los
// nombres JSON de los campos, más reglas propias del gateway:
//
//	scope     "<contexto>:read|write|manage" o "root"
//	perm      "<acción>:<recurso>[:own]"
//	resource  "<contexto>.<colección>" o comodines
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wenex-org/platform-sub000/internal/domain/policy"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
)

var (
	initOnce sync.Once
	validate *validator.Validate
)

var (
	resourceRe = regexp.MustCompile(`^(\*|[a-z][a-z0-9_-]*\.(\*|[a-z][a-z0-9_-]*))$`)
	actionRe   = regexp.MustCompile(`^(\*|[a-z][a-z0-9_-]*)$`)
)

// Validator retorna la instancia compartida.
func Validator() *validator.Validate {
	initOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
			return policy.ValidScope(fl.Field().String())
		})
		_ = v.RegisterValidation("perm", func(fl validator.FieldLevel) bool {
			_, ok := policy.ParsePerm(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("resource", func(fl validator.FieldLevel) bool {
			return resourceRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
			return actionRe.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// Struct valida todas las reglas de s.
func Struct(s any) error {
	return translate(Validator().Struct(s))
}

// Partial valida sólo los campos presentes en un update, identificados por
// su nombre JSON. Claves que no existen en el tipo se rechazan.
func Partial(s any, jsonKeys []string) error {
	paths := fieldPaths(reflect.TypeOf(s))
	fields := make([]string, 0, len(jsonKeys))
	for _, k := range jsonKeys {
		p, ok := paths[k]
		if !ok {
			return fmt.Errorf("%w: unknown field %q", resource.ErrInvalidInput, k)
		}
		fields = append(fields, p)
	}
	if len(fields) == 0 {
		return nil
	}
	return translate(Validator().StructPartial(s, fields...))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); !ok {
		return fmt.Errorf("%w: %v", resource.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", resource.ErrInvalidInput, strings.Join(msgs, "; "))
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*out = v
	}
	return ok
}

var pathCache sync.Map // reflect.Type -> map[string]string

// fieldPaths mapea nombre JSON -> ruta de campos Go ("Core.Ref") que es lo
// que StructPartial espera. Los structs embebidos se aplanan igual que en
// encoding/json.
func fieldPaths(t reflect.Type) map[string]string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := pathCache.Load(t); ok {
		return cached.(map[string]string)
	}
	out := map[string]string{}
	collectPaths(t, "", out)
	pathCache.Store(t, out)
	return out
}

func collectPaths(t reflect.Type, prefix string, out map[string]string) {
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			continue
		}
		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			collectPaths(ft, prefix+f.Name+".", out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if _, dup := out[name]; !dup {
			out[name] = prefix + f.Name
		}
	}
}
