// Package prompt renders system-prompt templates against the child and mascot
// known at request time. Rendering is pure string substitution; no I/O.
package prompt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTemplate is returned when a template is empty.
var ErrInvalidTemplate = errors.New("invalid template: must be a non-empty string")

// NoneValue is rendered in place of an empty list.
const NoneValue = "không có"

// Context holds the facts substituted into a template for one turn.
type Context struct {
	ChildName         string
	ChildAge          int
	ChildPersonality  []string
	ChildInterests    []string
	MascotName        string
	MascotType        string
	MascotPersonality string
	MascotTraits      []string
}

// Variables lists the placeholder names a template may reference.
var Variables = []string{
	"child_name",
	"age",
	"personality",
	"interests",
	"mascot_name",
	"mascot_type",
	"mascot_personality",
	"mascot_traits",
}

var (
	placeholderRegex = regexp.MustCompile(`(?i)\{\{(child_name|age|personality|interests|mascot_name|mascot_type|mascot_personality|mascot_traits)\}\}`)
	variableRegex    = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	injectionStrip   = strings.NewReplacer("{{", "", "}}", "", "<", "", ">", "")
)

// Hydrate replaces every recognized placeholder in template (case-insensitive)
// with the sanitized value from c. Unrecognized tokens are left verbatim.
func Hydrate(template string, c Context) (string, error) {
	if template == "" {
		return "", ErrInvalidTemplate
	}

	values := c.values()
	return placeholderRegex.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.ToLower(token[2 : len(token)-2])
		return values[name]
	}), nil
}

func (c Context) values() map[string]string {
	return map[string]string{
		"child_name":         sanitizeValue(c.ChildName),
		"age":                strconv.Itoa(c.ChildAge),
		"personality":        formatList(c.ChildPersonality),
		"interests":          formatList(c.ChildInterests),
		"mascot_name":        sanitizeValue(c.MascotName),
		"mascot_type":        sanitizeValue(c.MascotType),
		"mascot_personality": sanitizeValue(c.MascotPersonality),
		"mascot_traits":      formatList(c.MascotTraits),
	}
}

// ValidationResult reports unknown variables found in a template.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate reports every {{...}} token whose name is not in Variables.
func Validate(template string) ValidationResult {
	if template == "" {
		return ValidationResult{Valid: false, Errors: []string{"Template must be a non-empty string"}}
	}

	errs := []string{}
	for _, v := range ExtractVariables(template) {
		if !isKnownVariable(v) {
			errs = append(errs, "Unknown variable: {{"+v+"}}")
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ExtractVariables returns the trimmed inner name of every {{...}} token, in order.
func ExtractVariables(template string) []string {
	matches := variableRegex.FindAllStringSubmatch(template, -1)
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		vars = append(vars, strings.TrimSpace(m[1]))
	}
	return vars
}

func isKnownVariable(name string) bool {
	name = strings.ToLower(name)
	for _, v := range Variables {
		if v == name {
			return true
		}
	}
	return false
}

// sanitizeValue strips template delimiters and angle brackets so a
// user-entered field cannot re-introduce template syntax or markup.
func sanitizeValue(v string) string {
	for {
		stripped := injectionStrip.Replace(v)
		if stripped == v {
			return strings.TrimSpace(v)
		}
		v = stripped
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return NoneValue
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = sanitizeValue(item)
	}
	return strings.Join(out, ", ")
}
