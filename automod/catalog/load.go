package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a rule catalog.
type File struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// LoadFile reads a catalog from JSON or YAML, chosen by file extension (".yaml"/".yml" for YAML, anything else JSON).
func LoadFile(p string) (*Catalog, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(p))
	return Parse(raw, ext == ".yaml" || ext == ".yml")
}

func Parse(raw []byte, isYAML bool) (*Catalog, error) {
	var file File
	if isYAML {
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parsing rule catalog YAML: %w", err)
		}
	} else {
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parsing rule catalog JSON: %w", err)
		}
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("%w: catalog file contains no rules", ErrInvalidRule)
	}
	return New(file.Rules)
}

// Marshal serializes the catalog definitions in the same layout LoadFile accepts.
func Marshal(c *Catalog, asYAML bool) ([]byte, error) {
	file := File{Rules: c.Definitions()}
	if asYAML {
		return yaml.Marshal(file)
	}
	return json.MarshalIndent(file, "", "  ")
}
