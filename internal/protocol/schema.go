package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://totemcraft.ai/schemas/"

// Schema names.
const (
	SchemaHello  = "hello.schema.json"
	SchemaCmd    = "cmd.schema.json"
	SchemaServer = "server.schema.json"
)

// Validator checks raw frames against the embedded schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// DefaultValidator compiles the embedded schemas once.
func DefaultValidator() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	names := []string{SchemaHello, SchemaCmd, SchemaServer}
	for _, name := range names {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// Validate decodes raw and validates it against the named schema.
func (v *Validator) Validate(name string, raw []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

func (v *Validator) ValidateHello(raw []byte) error { return v.Validate(SchemaHello, raw) }
func (v *Validator) ValidateCmd(raw []byte) error   { return v.Validate(SchemaCmd, raw) }
