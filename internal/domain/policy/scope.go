package policy

import "regexp"

// Level es el nivel de scope que exige una operación.
type Level int

const (
	LevelRead Level = iota + 1
	LevelWrite
	LevelManage
)

func (l Level) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelManage:
		return "manage"
	}
	return "unknown"
}

// RootScope habilita todos los contextos.
const RootScope = "root"

// LevelOf retorna el nivel mínimo de scope para una acción canónica.
// destroy es la única que exige manage; las acciones propias de un módulo
// declaran su nivel explícitamente.
func LevelOf(a Action) Level {
	switch a {
	case Read:
		return LevelRead
	case Destroy:
		return LevelManage
	}
	return LevelWrite
}

// Scope arma "<contexto>:<nivel>".
func Scope(context string, l Level) string { return context + ":" + l.String() }

// AcceptedScopes lista los scopes que satisfacen context+nivel: el mismo
// nivel, los superiores y root.
func AcceptedScopes(context string, l Level) []string {
	out := make([]string, 0, 4)
	for lv := l; lv <= LevelManage; lv++ {
		out = append(out, Scope(context, lv))
	}
	return append(out, RootScope)
}

// HasScope reporta si granted incluye alguno de los scopes aceptados.
func HasScope(granted []string, context string, l Level) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range AcceptedScopes(context, l) {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

var scopeRe = regexp.MustCompile(`^(root|[a-z][a-z0-9_-]*:(read|write|manage))$`)

// ValidScope valida el formato de un scope.
func ValidScope(s string) bool { return scopeRe.MatchString(s) }
