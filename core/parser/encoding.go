package parser

import (
	"fmt"

	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

// parseEncodings reads the encoding map of a media type object. path is the
// location of the media type object, used in errors.
func parseEncodings(path string, media *raw.Map) (map[string]ir.Encoding, error) {
	value, ok := raw.Lookup(media, "encoding")
	if !ok || value == nil {
		return nil, nil
	}
	encodings, ok := value.(*raw.Map)
	if !ok {
		return nil, &ParseError{Path: path + "/encoding", Message: "encoding must be a mapping"}
	}

	result := make(map[string]ir.Encoding, encodings.Len())
	for name, entry := range encodings.FromOldest() {
		if entry == nil {
			continue
		}
		node, ok := entry.(*raw.Map)
		if !ok {
			return nil, &ParseError{Path: path + "/encoding/" + name, Message: "encoding object must be a mapping"}
		}
		encoding, err := parseEncoding(node)
		if err != nil {
			return nil, &ParseError{Path: path + "/encoding/" + name, Message: err.Error()}
		}
		result[name] = encoding
	}

	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

func parseEncoding(node *raw.Map) (ir.Encoding, error) {
	var encoding ir.Encoding
	for key, value := range node.FromOldest() {
		switch key {
		case "contentType":
			s, err := asString(value)
			if err != nil {
				return encoding, fmt.Errorf("contentType: %w", err)
			}
			encoding.ContentType = s
		case "style":
			s, err := asString(value)
			if err != nil {
				return encoding, fmt.Errorf("style: %w", err)
			}
			encoding.Style = s
		case "explode":
			b, ok := value.(bool)
			if !ok {
				return encoding, fmt.Errorf("explode: expected a boolean, got %T", value)
			}
			encoding.Explode = &b
		case "allowReserved":
			encoding.AllowReserved = raw.Bool(node, key)
		}
	}
	return encoding, nil
}

// applyFileContentTypes copies the declared content type of each file field
// from the body's encodings.
func applyFileContentTypes(files []ir.FileField, encodings map[string]ir.Encoding) {
	for i := range files {
		if encoding, ok := encodings[files[i].Name]; ok {
			files[i].ContentType = encoding.ContentType
		}
	}
}
