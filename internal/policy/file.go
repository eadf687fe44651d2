package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadFile reads a role→permission table from a YAML file of the form:
//
//	roles:
//	  admin: [members.view, members.edit]
//	  member: [donations.view]
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy document into a Table.
func Parse(data []byte) (*Table, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policy: decode table: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("policy: table defines no roles")
	}
	return NewTable(doc.Roles), nil
}
