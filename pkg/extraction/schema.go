package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Schema is the fallback extraction definition. On disk it is either
// {"dataSchema": {...}, "config": {...}} or a bare JSON schema. Files ending in
// .yaml or .yml hold the same document in YAML.
type Schema struct {
	DataSchema map[string]any
	Config     map[string]any
}

func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("fallback schema file not found: %s", path)
		}
		return nil, fmt.Errorf("read fallback schema %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("fallback schema is invalid YAML: %s", path)
		}
	}
	return ParseSchema(data, path)
}

// ParseSchema decodes a schema document. name is used in error messages.
func ParseSchema(data []byte, name string) (*Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("fallback schema is invalid JSON: %s", name)
	}

	schema := &Schema{DataSchema: doc, Config: map[string]any{}}
	if raw, ok := doc["dataSchema"]; ok {
		ds, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("fallback schema %s: dataSchema must be an object", name)
		}
		schema.DataSchema = ds
	}
	if raw, ok := doc["config"]; ok && raw != nil {
		cfg, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("fallback schema %s: config must be an object", name)
		}
		schema.Config = cfg
	}
	return schema, nil
}
