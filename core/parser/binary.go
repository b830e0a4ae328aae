package parser

import (
	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

type BinaryFields struct {
	// Schema is a copy of the input without the binary properties.
	Schema *raw.Map
	Fields []ir.FileField
	// FilesRequired is set when a removed property was listed in "required".
	FilesRequired bool
}

// StripBinaryProperties removes every `type: string, format: binary` property
// from a multipart schema. Upload fields are carried as raw byte payloads by the
// generated client, not as schema properties. The input node is not modified.
func StripBinaryProperties(schema *raw.Map) BinaryFields {
	stripped := raw.Clone(schema)
	result := BinaryFields{Schema: stripped}

	properties, ok := raw.Object(stripped, "properties")
	if !ok {
		return result
	}
	required, hasRequired := raw.List(stripped, "required")

	for _, name := range raw.Keys(properties) {
		prop, ok := raw.Object(properties, name)
		if !ok || !isBinaryString(prop) {
			continue
		}
		properties.Delete(name)

		field := ir.FileField{Name: name}
		field.Description, _ = raw.String(prop, "description")
		if idx := indexOf(required, name); idx >= 0 {
			required = append(required[:idx], required[idx+1:]...)
			field.Required = true
			result.FilesRequired = true
		}
		result.Fields = append(result.Fields, field)
	}

	if hasRequired {
		stripped.Set("required", required)
	}
	return result
}

func isBinaryString(prop *raw.Map) bool {
	typ, _ := raw.String(prop, "type")
	format, _ := raw.String(prop, "format")
	return typ == ir.TypeString && format == ir.FormatBinary
}

func indexOf(list []any, name string) int {
	for i, item := range list {
		if s, ok := item.(string); ok && s == name {
			return i
		}
	}
	return -1
}
