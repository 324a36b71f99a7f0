// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v6"
)

// responseSchema validates response bodies against a JSON schema reflected
// from the Go type they are decoded into.
type responseSchema struct {
	name     string
	compiled func() (*schemavalidator.Schema, error)
}

func newResponseSchema[T any](name string) *responseSchema {
	return &responseSchema{
		name: name,
		compiled: sync.OnceValues(func() (*schemavalidator.Schema, error) {
			var zero T
			return compileSchema(name, zero)
		}),
	}
}

// reflectSchema builds the JSON schema of v. Fields without `omitempty` are required,
// unknown properties are tolerated.
func reflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

func compileSchema(name string, v any) (*schemavalidator.Schema, error) {
	raw, err := json.Marshal(reflectSchema(v))
	if err != nil {
		return nil, err
	}
	doc, err := schemavalidator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := "mem://lwlltrial/" + name + ".json"
	compiler := schemavalidator.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// decode validates body and unmarshals it into out. A nil out only validates.
func (s *responseSchema) decode(body []byte, out any) error {
	schema, err := s.compiled()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCompileSchema, s.name, err)
	}
	instance, err := schemavalidator.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.name, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.name, err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.name, err)
		}
	}
	return nil
}
