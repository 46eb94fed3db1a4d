package sensors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileEntry is the on-disk shape of a definition. It accepts both the
// short "class" spelling and "device_class".
type fileEntry struct {
	Key                    string  `yaml:"key"`
	Name                   *string `yaml:"name"`
	Class                  *string `yaml:"class"`
	DeviceClass            *string `yaml:"device_class"`
	Unit                   *string `yaml:"unit"`
	ValueTemplate          *string `yaml:"value_template"`
	JSONAttributesTopic    *string `yaml:"json_attributes_topic"`
	JSONAttributesTemplate *string `yaml:"json_attributes_template"`
}

func (e fileEntry) definition() Definition {
	class := e.DeviceClass
	if class == nil {
		class = e.Class
	}
	return Definition{
		Key:                    e.Key,
		Name:                   e.Name,
		DeviceClass:            class,
		Unit:                   e.Unit,
		ValueTemplate:          e.ValueTemplate,
		JSONAttributesTopic:    e.JSONAttributesTopic,
		JSONAttributesTemplate: e.JSONAttributesTemplate,
	}
}

// LoadFile reads sensor definitions from a YAML or JSON file.
//
// Two layouts are accepted:
//
//	# sequence
//	- key: rain_rate
//	  unit: mm/h
//
//	# mapping keyed by sensor key
//	{"rain_rate": {"unit": "mm/h"}}
//
// Definitions are returned in document order, so duplicates resolve
// last-wins when merged.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions decodes definitions from YAML or JSON bytes.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		return parseSequence(root)
	case yaml.MappingNode:
		return parseMapping(root)
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%w: expected a list or a mapping at line %d", ErrInvalidDefinition, root.Line)
}

func parseSequence(root *yaml.Node) ([]Definition, error) {
	defs := make([]Definition, 0, len(root.Content))
	for i, item := range root.Content {
		var e fileEntry
		if err := item.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidDefinition, i, err)
		}
		if e.Key == "" {
			return nil, fmt.Errorf("%w: entry %d at line %d has no key", ErrInvalidDefinition, i, item.Line)
		}
		defs = append(defs, e.definition())
	}
	return defs, nil
}

func parseMapping(root *yaml.Node) ([]Definition, error) {
	defs := make([]Definition, 0, len(root.Content)/2) //nolint:mnd // key/value pairs
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]

		var e fileEntry
		if err := valNode.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, keyNode.Value, err)
		}
		if keyNode.Value == "" {
			return nil, fmt.Errorf("%w: empty key at line %d", ErrInvalidDefinition, keyNode.Line)
		}
		e.Key = keyNode.Value
		defs = append(defs, e.definition())
	}
	return defs, nil
}
