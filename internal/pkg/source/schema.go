// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License;
// you may not use this file except in compliance with the Elastic License.

package source

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks fetched payloads against per-source JSON Schema
// documents. Compiled schemas are cached keyed by their raw bytes; sources
// sharing a schema share the compiled form.
type Validator struct {
	mut   sync.RWMutex
	cache map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate returns nil when the payload conforms to the schema, or when no
// schema is configured for the source.
func (v *Validator) Validate(schemaDoc json.RawMessage, payload map[string]any) error {
	if len(schemaDoc) == 0 || string(schemaDoc) == "{}" || string(schemaDoc) == "null" {
		return nil
	}

	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return fmt.Errorf("compile payload schema: %w", err)
	}

	return compiled.Validate(payload)
}

func (v *Validator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mut.RLock()
	s, ok := v.cache[key]
	v.mut.RUnlock()
	if ok {
		return s, nil
	}

	v.mut.Lock()
	defer v.mut.Unlock()

	if s, ok := v.cache[key]; ok {
		return s, nil
	}

	var doc any
	if err := json.Unmarshal(schemaDoc, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, err
	}

	v.cache[key] = compiled
	return compiled, nil
}
