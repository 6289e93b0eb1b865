// Package env expands ${VAR} references in configuration values.
package env

import (
	"os"
	"strings"
)

// Lookup resolves a variable name, reporting whether it is set.
type Lookup func(name string) (string, bool)

// Expand replaces every ${NAME} in s using lookup. References to unset
// variables and malformed references are left untouched. A bare $NAME is
// not a reference, so values such as passwords may contain '$'.
func Expand(s string, lookup Lookup) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := lookupName(name, lookup); ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
}

// ExpandOS expands s against the process environment.
func ExpandOS(s string) string { return Expand(s, os.LookupEnv) }

// ExpandAll expands each element of in, returning a new slice.
func ExpandAll(in []string, lookup Lookup) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Expand(s, lookup)
	}
	return out
}

func lookupName(name string, lookup Lookup) (string, bool) {
	if !validName(name) || lookup == nil {
		return "", false
	}
	return lookup(name)
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
