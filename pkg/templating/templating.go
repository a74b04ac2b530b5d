// Package templating expands named placeholders such as "{code}" or "{date}"
// in operator-supplied templates. Only names present in the supplied Vars are
// accepted; "{{" and "}}" produce literal braces.
package templating

import (
	"fmt"
	"sort"
	"strings"
)

// Vars maps placeholder names to their values.
type Vars map[string]string

// Render substitutes every placeholder in tpl. An unknown name or an
// unterminated placeholder is an error.
func Render(tpl string, vars Vars) (string, error) {
	var b strings.Builder
	b.Grow(len(tpl))

	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		switch {
		case c == '{' && i+1 < len(tpl) && tpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tpl) && tpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d in %q", i, tpl)
			}
			name := strings.TrimSpace(tpl[i+1 : i+1+end])
			value, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("unknown placeholder {%s}; known: %s", name, strings.Join(vars.names(), ", "))
			}
			b.WriteString(value)
			i += end + 1
		case c == '}':
			return "", fmt.Errorf("unmatched '}' at offset %d in %q", i, tpl)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// MustRender is Render for templates known to be valid, such as built-in defaults.
func MustRender(tpl string, vars Vars) string {
	out, err := Render(tpl, vars)
	if err != nil {
		panic(err)
	}
	return out
}

func (v Vars) names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
