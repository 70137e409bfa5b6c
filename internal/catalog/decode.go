package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type format string

const (
	formatJSON format = "json"
	formatYAML format = "yaml"
	formatTOML format = "toml"
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
	}
}

func decodeDocuments(f format, data []byte) ([]AbilityDocument, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	switch f {
	case formatJSON:
		return decodeJSON(data)
	case formatYAML:
		return decodeYAML(data)
	case formatTOML:
		var file tomlFile
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, err
		}
		return file.Abilities, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// decodeJSON accepts either an array of documents or an object keyed by id.
func decodeJSON(data []byte) ([]AbilityDocument, error) {
	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '[':
		var docs []AbilityDocument
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	case '{':
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return nil, err
		}
		docs := make([]AbilityDocument, 0, len(object))
		for _, id := range sortedKeys(object) {
			var doc AbilityDocument
			if err := json.Unmarshal(object[id], &doc); err != nil {
				return nil, fmt.Errorf("entry %q: %w", id, err)
			}
			if err := keyed(&doc, id); err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("unexpected json token %q", string(trimmed[:1]))
	}
}

// decodeYAML mirrors decodeJSON: a sequence of documents or a mapping keyed
// by id.
func decodeYAML(data []byte) ([]AbilityDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var docs []AbilityDocument
		if err := node.Decode(&docs); err != nil {
			return nil, err
		}
		return docs, nil
	case yaml.MappingNode:
		var object map[string]yaml.Node
		if err := node.Decode(&object); err != nil {
			return nil, err
		}
		docs := make([]AbilityDocument, 0, len(object))
		for _, id := range sortedKeys(object) {
			value := object[id]
			var doc AbilityDocument
			if err := value.Decode(&doc); err != nil {
				return nil, fmt.Errorf("entry %q: %w", id, err)
			}
			if err := keyed(&doc, id); err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("line %d: expected a list or mapping of abilities", node.Line)
	}
}

func keyed(doc *AbilityDocument, key string) error {
	if doc.ID == "" {
		doc.ID = key
		return nil
	}
	if doc.ID != key {
		return fmt.Errorf("entry id %q does not match key %q", doc.ID, key)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
