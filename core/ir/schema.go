package ir

import (
	"strings"
)

const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"

	FormatBinary = "binary"
)

const componentSchemaPrefix = "#/components/schemas/"

type Schema struct {
	Ref         string `json:"$ref,omitempty"`
	Type        string `json:"type,omitempty"`
	Format      string `json:"format,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Nullable    bool   `json:"nullable,omitempty"`

	Properties []Property `json:"properties,omitempty"`
	Required   []string   `json:"required,omitempty"`
	// AdditionalProperties is nil when absent; AdditionalPropertiesAllowed
	// carries the boolean form.
	AdditionalProperties        *Schema `json:"additionalProperties,omitempty"`
	AdditionalPropertiesAllowed *bool   `json:"additionalPropertiesAllowed,omitempty"`

	Items *Schema `json:"items,omitempty"`

	AllOf []*Schema `json:"allOf,omitempty"`
	AnyOf []*Schema `json:"anyOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`

	Enum    []any `json:"enum,omitempty"`
	Default any   `json:"default,omitempty"`
	Example any   `json:"example,omitempty"`

	ReadOnly   bool           `json:"readOnly,omitempty"`
	WriteOnly  bool           `json:"writeOnly,omitempty"`
	Deprecated bool           `json:"deprecated,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type Property struct {
	Name   string  `json:"name"`
	Schema *Schema `json:"schema"`
}

// SchemaObject wraps an interpreted schema with the identifier it was
// interpreted under.
type SchemaObject struct {
	ID     string  `json:"id"`
	Schema *Schema `json:"schema"`
}

func (s *Schema) Property(name string) (*Schema, bool) {
	if s == nil {
		return nil, false
	}
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}

func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// RefName returns the last segment of the reference, e.g. "User" for
// "#/components/schemas/User".
func (s *Schema) RefName() string {
	if s == nil || s.Ref == "" {
		return ""
	}
	if idx := strings.LastIndex(s.Ref, "/"); idx >= 0 {
		return s.Ref[idx+1:]
	}
	return s.Ref
}

// JSONSchema renders the schema as a JSON Schema document. References to
// component schemas point into "$defs".
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any)
	if s.Ref != "" {
		out["$ref"] = convertRef(s.Ref)
		return out
	}
	if s.Type != "" {
		if s.Nullable {
			out["type"] = []any{s.Type, TypeNull}
		} else {
			out["type"] = s.Type
		}
	}
	if s.Format != "" {
		out["format"] = s.Format
	}
	if s.Title != "" {
		out["title"] = s.Title
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for _, p := range s.Properties {
			props[p.Name] = p.Schema.JSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		req := make([]any, len(s.Required))
		for i, r := range s.Required {
			req[i] = r
		}
		out["required"] = req
	}
	if s.AdditionalProperties != nil {
		out["additionalProperties"] = s.AdditionalProperties.JSONSchema()
	} else if s.AdditionalPropertiesAllowed != nil {
		out["additionalProperties"] = *s.AdditionalPropertiesAllowed
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	for key, list := range map[string][]*Schema{"allOf": s.AllOf, "anyOf": s.AnyOf, "oneOf": s.OneOf} {
		if len(list) == 0 {
			continue
		}
		converted := make([]any, len(list))
		for i, item := range list {
			converted[i] = item.JSONSchema()
		}
		out[key] = converted
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Default != nil {
		out["default"] = s.Default
	}
	if s.ReadOnly {
		out["readOnly"] = true
	}
	if s.WriteOnly {
		out["writeOnly"] = true
	}
	if s.Deprecated {
		out["deprecated"] = true
	}
	return out
}

func convertRef(ref string) string {
	if strings.HasPrefix(ref, componentSchemaPrefix) {
		return strings.Replace(ref, componentSchemaPrefix, "#/$defs/", 1)
	}
	return ref
}
