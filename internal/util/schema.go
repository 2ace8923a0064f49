package util

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// ValidationError reports a capability argument that does not satisfy the
// declared schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives an object schema from the exported fields of a struct.
//
// The json tag names a property, the description tag documents it and a
// comma separated enum tag restricts its values. Non-pointer fields without
// omitempty are required. Anything other than a struct yields an empty object
// schema.
func CreateSchema(v any) map[string]any {
	props := map[string]any{}
	schema := map[string]any{"type": "object", "properties": props}

	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}

		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		props[name] = propertyOf(f)

		if f.Type.Kind() != reflect.Pointer && !slices.Contains(strings.Split(opts, ","), "omitempty") {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func propertyOf(f reflect.StructField) map[string]any {
	prop := map[string]any{"type": kindOf(f.Type)}
	if d := f.Tag.Get("description"); d != "" {
		prop["description"] = d
	}
	if e := f.Tag.Get("enum"); e != "" {
		prop["enum"] = strings.Split(e, ",")
	}
	return prop
}

func kindOf(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return kindOf(t.Elem())
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// ValidateArguments checks capability arguments against schema. Capabilities
// receive every argument as text, so typed properties must parse as their
// declared type. Required arguments must be present and not blank; arguments
// the schema does not declare pass through.
func ValidateArguments(args map[string]string, schema map[string]any) error {
	for _, name := range RequiredFields(schema) {
		if strings.TrimSpace(args[name]) == "" {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	props, _ := schema["properties"].(map[string]any)

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if err := checkProperty(name, args[name], prop); err != nil {
			return err
		}
	}

	return nil
}

func checkProperty(name, value string, prop map[string]any) error {
	kind, _ := prop["type"].(string)
	if !parsesAs(value, kind) {
		return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("%q is not a valid %s", value, kind)}
	}

	if enum := toStrings(prop["enum"]); len(enum) > 0 && !slices.Contains(enum, value) {
		return &ValidationError{Field: name, Value: value, Message: "must be one of " + strings.Join(enum, ", ")}
	}

	return nil
}

func parsesAs(value, kind string) bool {
	var err error
	switch kind {
	case "integer":
		_, err = strconv.ParseInt(value, 10, 64)
	case "number":
		_, err = strconv.ParseFloat(value, 64)
	case "boolean":
		_, err = strconv.ParseBool(value)
	}
	return err == nil
}

// RequiredFields returns the names listed under "required", which may be a
// []string built by CreateSchema or a []any decoded from JSON.
func RequiredFields(schema map[string]any) []string {
	return toStrings(schema["required"])
}

func toStrings(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
