package requirements

import (
	"bytes"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// schemaSource constrains catalog files before they are decoded. The
// definitions are closed, so misspelled fields are rejected.
const schemaSource = `
#Flag: {
	name:         =~"^[a-z][a-z0-9_]*$"
	description?: string
}

#Requirement: {
	name:          =~"^[A-Za-z0-9_.-]+$"
	script?:       string
	markers?:      [...string]
	columns?:      [...string]
	flags?:        [...#Flag]
	max_duration?: =~"^[0-9.]+(ns|us|µs|ms|s|m|h)$"
	timeout?:      =~"^[0-9.]+(ns|us|µs|ms|s|m|h)$"
	env?:          {[string]: string | number | bool}
}

#Catalog: {
	probes: [...#Requirement]
}
`

// File is the on-disk catalog format.
type File struct {
	Probes []Requirement `yaml:"probes"`
}

// LoadFile reads a YAML catalog.
func LoadFile(path string) ([]Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read requirements file: %w", err)
	}
	reqs, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// Load parses and validates a YAML catalog.
func Load(data []byte) ([]Requirement, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Probes))
	reqs := make([]Requirement, 0, len(file.Probes))
	for i, r := range file.Probes {
		r = r.withDefaults()
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("probes[%d]: %w", i, err)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("probes[%d]: duplicate probe %q", i, r.Name)
		}
		seen[r.Name] = true
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// Apply loads a catalog file over c, replacing built-ins of the same name.
func (c *Catalog) Apply(path string) error {
	reqs, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if err := c.Override(r); err != nil {
			return err
		}
	}
	return nil
}

func validateSchema(doc any) error {
	if doc == nil {
		return fmt.Errorf("requirements file is empty")
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile requirements schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid requirements: %w", err)
	}
	return nil
}
