package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

// SchemaParser converts Schema Objects into ir.Schema. Nested "$ref" nodes are
// kept as references and never followed, so recursive component graphs
// terminate.
type SchemaParser struct{}

func NewSchemaParser() *SchemaParser {
	return &SchemaParser{}
}

func (p *SchemaParser) Interpret(id string, node *raw.Map) (ir.SchemaObject, error) {
	schema, err := p.convert(id, node)
	if err != nil {
		return ir.SchemaObject{}, err
	}
	return ir.SchemaObject{ID: id, Schema: schema}, nil
}

func (p *SchemaParser) convert(path string, node *raw.Map) (*ir.Schema, error) {
	if node == nil {
		return &ir.Schema{}, nil
	}
	if ref, ok := raw.Ref(node); ok {
		return &ir.Schema{Ref: ref}, nil
	}

	s := &ir.Schema{}
	for key, value := range node.FromOldest() {
		var err error
		switch key {
		case "type":
			err = p.convertType(s, value)
		case "nullable":
			s.Nullable = s.Nullable || value == true
		case "format":
			s.Format, err = asString(value)
		case "title":
			s.Title, err = asString(value)
		case "description":
			s.Description, err = asString(value)
		case "properties":
			s.Properties, err = p.convertProperties(path+"/properties", value)
		case "required":
			s.Required, err = asStringList(value)
		case "items":
			s.Items, err = p.convertChild(path+"/items", value)
		case "additionalProperties":
			if allowed, ok := value.(bool); ok {
				s.AdditionalPropertiesAllowed = &allowed
				continue
			}
			s.AdditionalProperties, err = p.convertChild(path+"/additionalProperties", value)
		case "allOf":
			s.AllOf, err = p.convertList(path+"/allOf", value)
		case "anyOf":
			s.AnyOf, err = p.convertList(path+"/anyOf", value)
		case "oneOf":
			s.OneOf, err = p.convertList(path+"/oneOf", value)
		case "enum":
			list, ok := value.([]any)
			if !ok {
				err = fmt.Errorf("expected a list, got %T", value)
				break
			}
			s.Enum = raw.Plain(list).([]any)
		case "default":
			s.Default = raw.Plain(value)
		case "example":
			s.Example = raw.Plain(value)
		case "readOnly":
			s.ReadOnly = value == true
		case "writeOnly":
			s.WriteOnly = value == true
		case "deprecated":
			s.Deprecated = value == true
		default:
			if strings.HasPrefix(key, "x-") {
				if s.Extensions == nil {
					s.Extensions = make(map[string]any)
				}
				s.Extensions[key] = raw.Plain(value)
			}
		}
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				return nil, perr
			}
			return nil, &ParseError{Path: path + "/" + key, Message: err.Error()}
		}
	}
	return s, nil
}

// convertType accepts the 3.0 string form and the 3.1 list form; "null" in the
// list marks the schema nullable.
func (p *SchemaParser) convertType(s *ir.Schema, value any) error {
	switch t := value.(type) {
	case string:
		s.Type = t
		return nil
	case []any:
		for _, item := range t {
			name, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected type names, got %T", item)
			}
			if name == ir.TypeNull {
				s.Nullable = true
				continue
			}
			if s.Type == "" {
				s.Type = name
			}
		}
		if s.Type == "" && s.Nullable {
			s.Type = ir.TypeNull
			s.Nullable = false
		}
		return nil
	default:
		return fmt.Errorf("expected a string or list, got %T", value)
	}
}

func (p *SchemaParser) convertProperties(path string, value any) ([]ir.Property, error) {
	props, ok := value.(*raw.Map)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", value)
	}
	result := make([]ir.Property, 0, props.Len())
	for name, prop := range props.FromOldest() {
		child, err := p.convertChild(path+"/"+name, prop)
		if err != nil {
			return nil, err
		}
		result = append(result, ir.Property{Name: name, Schema: child})
	}
	return result, nil
}

func (p *SchemaParser) convertChild(path string, value any) (*ir.Schema, error) {
	node, ok := value.(*raw.Map)
	if !ok {
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("expected a schema mapping, got %T", value)}
	}
	return p.convert(path, node)
}

func (p *SchemaParser) convertList(path string, value any) ([]*ir.Schema, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	result := make([]*ir.Schema, 0, len(list))
	for i, item := range list {
		child, err := p.convertChild(fmt.Sprintf("%s/%d", path, i), item)
		if err != nil {
			return nil, err
		}
		result = append(result, child)
	}
	return result, nil
}

func asString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", value)
	}
	return s, nil
}

func asStringList(value any) ([]string, error) {
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	result := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings, got %T", item)
		}
		result = append(result, s)
	}
	return result, nil
}
