package util

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"
)

var instructionFuncs = template.FuncMap{
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}
		return v
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  joinAny,
}

// RenderTemplate expands {{ }} actions in an agent instruction against vars.
// Missing keys render as their zero value; text without actions is returned
// as is.
func RenderTemplate(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instruction").
		Option("missingkey=zero").
		Funcs(instructionFuncs).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse instruction: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}

	return sb.String(), nil
}

func joinAny(sep string, items any) string {
	v := reflect.ValueOf(items)
	if k := v.Kind(); k != reflect.Slice && k != reflect.Array {
		return fmt.Sprint(items)
	}

	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(v.Index(i).Interface())
	}
	return strings.Join(parts, sep)
}
