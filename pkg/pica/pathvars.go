package pica

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/picahq/pica-go/pkg/errors"
)

// pathVarPattern matches {{name}} placeholders in an action path template.
var pathVarPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// extractPathVariables returns the placeholder names in path, in order of
// appearance. Duplicate placeholders are reported once.
func extractPathVariables(path string) []string {
	matches := pathVarPattern.FindAllStringSubmatch(path, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// missingPathVariables returns the placeholder names in names that have no
// usable value in variables. A nil value or empty string counts as missing.
func missingPathVariables(names []string, variables map[string]any) []string {
	var missing []string
	for _, name := range names {
		v, ok := variables[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// resolvePathTemplate replaces every {{name}} placeholder in path with the
// stringified value from variables. All placeholder names are checked before
// any substitution happens, so a single error reports every missing name
// rather than just the first.
func resolvePathTemplate(path string, variables map[string]any) (string, error) {
	names := extractPathVariables(path)
	if len(names) == 0 {
		return path, nil
	}
	if missing := missingPathVariables(names, variables); len(missing) > 0 {
		return "", &pkgerrors.ValidationError{
			Field:      strings.Join(missing, ", "),
			Message:    "missing required path variables: " + strings.Join(missing, ", "),
			Suggestion: "Provide values for these variables in path_variables or data",
		}
	}
	return pathVarPattern.ReplaceAllStringFunc(path, func(m string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(m, "{{"), "}}")
		return fmt.Sprintf("%v", variables[name])
	}), nil
}
