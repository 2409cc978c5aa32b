package native

import (
	"fmt"
	"regexp"
	"strings"

	cerr "github.com/cockroachdb/errors"

	"github.com/eniac111/suitable/pkg/engine"
)

// variableRef matches a bare "{{ name }}" reference.
var variableRef = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

func templated(s string) bool {
	return strings.Contains(s, "{{")
}

// render substitutes "{{ name }}" references with host variables. Filters,
// lookups and other expressions are not evaluated and make render fail.
func render(s string, vars engine.Vars) (string, error) {
	if strings.Contains(variableRef.ReplaceAllString(s, ""), "{{") {
		return "", cerr.WithHint(
			cerr.Newf("unsupported template expression in %q", s),
			"the native engine only substitutes plain {{ variable }} references")
	}

	var missing []string
	out := variableRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := variableRef.FindStringSubmatch(ref)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return "", cerr.Newf("undefined variable %q", missing[0])
	}
	return out, nil
}

// hostVars overlays the target variables on the extra variables.
func hostVars(t engine.Target, extra map[string]any) engine.Vars {
	vars := make(engine.Vars, len(extra)+len(t.Vars))
	for k, v := range extra {
		vars[k] = v
	}
	for k, v := range t.Vars {
		vars[k] = v
	}
	return vars
}
