// Package status loads the port-status file: an ordered YAML mapping from
// dot-separated import path to the record describing that file's port.
package status

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/portboard/pkg/model"
)

// Table is the loaded status source. Iteration order matches the file so
// progress output and generated pages are deterministic across runs.
type Table struct {
	keys    []string
	entries map[string]model.StatusEntry
}

// Load reads and decodes the status file at path.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes status YAML. Document order is preserved, which requires
// walking the mapping node rather than decoding straight into a map.
func Parse(raw []byte) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse status file: %w", err)
	}
	if len(doc.Content) == 0 {
		return &Table{entries: map[string]model.StatusEntry{}}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse status file: top level is not a mapping (line %d)", root.Line)
	}

	t := &Table{entries: make(map[string]model.StatusEntry, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		key := keyNode.Value
		if _, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("parse status file: duplicate entry %q (line %d)", key, keyNode.Line)
		}
		var entry model.StatusEntry
		if err := valNode.Decode(&entry); err != nil {
			return nil, fmt.Errorf("parse status entry %q: %w", key, err)
		}
		t.keys = append(t.keys, key)
		t.entries[key] = entry
	}
	return t, nil
}

// Keys returns the import paths in file order.
func (t *Table) Keys() []string {
	return t.keys
}

// Get returns the entry for an import path.
func (t *Table) Get(key string) (model.StatusEntry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Len returns the number of tracked files.
func (t *Table) Len() int {
	return len(t.keys)
}

// MaxKeyLen returns the length of the longest import path, used to pad
// progress postfixes.
func (t *Table) MaxKeyLen() int {
	max := 0
	for _, k := range t.keys {
		if len(k) > max {
			max = len(k)
		}
	}
	return max
}
