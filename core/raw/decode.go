package raw

import (
	"errors"
	"fmt"

	yaml "go.yaml.in/yaml/v4"
)

const mergeKey = "<<"

// Decode parses a YAML or JSON document into an ordered tree. The document root
// must be a mapping.
func Decode(data []byte) (*Map, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	value, err := FromYAML(&doc)
	if err != nil {
		return nil, err
	}
	root, ok := value.(*Map)
	if !ok || root == nil {
		return nil, errors.New("document root must be a mapping")
	}
	return root, nil
}

// FromYAML converts a yaml.Node into raw values. Aliases are expanded and merge
// keys are applied without overriding keys declared locally.
func FromYAML(node *yaml.Node) (any, error) {
	return fromYAML(node, 0)
}

const maxAliasDepth = 256

func fromYAML(node *yaml.Node, depth int) (any, error) {
	if node == nil {
		return nil, nil
	}
	if depth > maxAliasDepth {
		return nil, errors.New("document nesting too deep")
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return fromYAML(node.Content[0], depth+1)
	case yaml.MappingNode:
		m := NewMap()
		var merged []*Map
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valueNode := node.Content[i], node.Content[i+1]
			value, err := fromYAML(valueNode, depth+1)
			if err != nil {
				return nil, err
			}
			if keyNode.Value == mergeKey && keyNode.Tag == "!!merge" {
				merged = append(merged, mergeSources(value)...)
				continue
			}
			m.Set(keyNode.Value, value)
		}
		for _, src := range merged {
			for k, v := range src.FromOldest() {
				if _, exists := m.Get(k); !exists {
					m.Set(k, CloneValue(v))
				}
			}
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := fromYAML(item, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil
	case yaml.AliasNode:
		return fromYAML(node.Alias, depth+1)
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			// keep the raw scalar rather than dropping it
			return node.Value, nil
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %v at line %d", node.Kind, node.Line)
	}
}

func mergeSources(value any) []*Map {
	switch v := value.(type) {
	case *Map:
		return []*Map{v}
	case []any:
		var out []*Map
		for _, item := range v {
			if m, ok := item.(*Map); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
