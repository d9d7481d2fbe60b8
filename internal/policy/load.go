package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Text2SQL Policy `yaml:"text2sql"`
}

// LoadFile overlays the YAML policy file at path onto base. Scalars and lists in the file replace
// the base values; map entries are merged per key.
func LoadFile(path string, base Policy) (Policy, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(body, base)
}

func Parse(body []byte, base Policy) (Policy, error) {
	doc := document{Text2SQL: base.clone()}
	decoder := yaml.NewDecoder(bytes.NewReader(body))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := doc.Text2SQL.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return doc.Text2SQL, nil
}

func (p Policy) clone() Policy {
	out := p
	out.AllowedEntities = append([]string(nil), p.AllowedEntities...)
	out.BlockedKeywords = append([]string(nil), p.BlockedKeywords...)
	out.SensitiveFields = make(map[string][]string, len(p.SensitiveFields))
	for entity, fields := range p.SensitiveFields {
		out.SensitiveFields[entity] = append([]string(nil), fields...)
	}
	out.CrudPermissions = make(map[string]string, len(p.CrudPermissions))
	for operation, capability := range p.CrudPermissions {
		out.CrudPermissions[operation] = capability
	}
	return out
}
