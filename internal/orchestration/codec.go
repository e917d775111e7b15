package orchestration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes and validates an orchestration definition from JSON.
// Unknown fields are rejected so authoring mistakes surface at submission
// time rather than silently dropping configuration.
func ParseJSON(data []byte) (*Orchestration, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var o Orchestration
	if err := dec.Decode(&o); err != nil {
		return nil, &DefinitionError{
			Code:    DefinitionErrorDecodeFailed,
			Message: "failed to decode orchestration JSON",
			Cause:   err,
		}
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// ToJSON encodes the definition for export. The output re-imports to a
// structurally equal definition (round-trip property).
func (o *Orchestration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// ParseYAML decodes and validates an orchestration definition from YAML.
func ParseYAML(data []byte) (*Orchestration, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var o Orchestration
	if err := dec.Decode(&o); err != nil {
		return nil, &DefinitionError{
			Code:    DefinitionErrorDecodeFailed,
			Message: "failed to decode orchestration YAML",
			Cause:   err,
		}
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// ToYAML encodes the definition as YAML.
func (o *Orchestration) ToYAML() ([]byte, error) {
	return yaml.Marshal(o)
}

// LoadFile reads a definition from disk, choosing the codec by file
// extension (.json, .yaml, .yml).
func LoadFile(path string) (*Orchestration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, &DefinitionError{
			Code:    DefinitionErrorDecodeFailed,
			Message: fmt.Sprintf("unsupported definition format %q (want .json, .yaml, or .yml)", filepath.Ext(path)),
		}
	}
}
