// Copyright (C) 2024 stencil contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Description: the JSON shape of one index record, and the schema
// used to validate it before it's written, grounded on
// internal/codegen/tpl_stencil_schema.go's compile-then-validate use
// of santhosh-tekuri/jsonschema.

package mirror

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crates-vendor/cvmirror/internal/resolve"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

type recordDep struct {
	Name            string   `json:"name"`
	Package         string   `json:"package,omitempty"`
	Req             string   `json:"req"`
	Kind            string   `json:"kind"`
	Optional        bool     `json:"optional"`
	DefaultFeatures bool     `json:"default_features"`
	Features        []string `json:"features"`
	Target          string   `json:"target,omitempty"`
}

type record struct {
	Name     string              `json:"name"`
	Vers     string              `json:"vers"`
	Deps     []recordDep         `json:"deps"`
	Features map[string][]string `json:"features"`
	Yanked   bool                `json:"yanked"`
}

// recordSchema is a minimal JSON Schema for one index record. It
// guards against the two mistakes a hand-built writer is prone to:
// a missing required field, or a dependency kind outside the three
// the core understands.
const recordSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "vers", "deps", "features", "yanked"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"vers": {"type": "string", "minLength": 1},
		"yanked": {"type": "boolean"},
		"features": {"type": "object"},
		"deps": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "req", "kind", "optional", "default_features"],
				"properties": {
					"name": {"type": "string"},
					"req": {"type": "string"},
					"kind": {"type": "string", "enum": ["normal", "build", "dev"]},
					"optional": {"type": "boolean"},
					"default_features": {"type": "boolean"}
				}
			}
		}
	}
}`

// compileRecordSchema compiles recordSchema once for reuse across
// every record validated during a mirror write.
func compileRecordSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("index-record.json", strings.NewReader(recordSchema)); err != nil {
		return nil, fmt.Errorf("failed to load index record schema: %w", err)
	}
	schema, err := compiler.Compile("index-record.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile index record schema: %w", err)
	}
	return schema, nil
}

// toRecord converts a resolved release into its on-disk record shape.
func toRecord(e *resolve.ClosureEntry) record {
	r := e.Release
	deps := make([]recordDep, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		deps = append(deps, recordDep{
			Name:            d.RefName,
			Package:         string(d.PackageName),
			Req:             d.Requirement,
			Kind:            string(d.Kind),
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Features:        d.Features,
			Target:          d.TargetGuard,
		})
	}
	return record{
		Name:     string(r.Name),
		Vers:     r.Version,
		Deps:     deps,
		Features: r.Features,
		Yanked:   r.Withdrawn,
	}
}

// validate marshals rec to JSON and validates it against schema.
func validate(schema *jsonschema.Schema, rec record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal index record for %s@%s: %w", rec.Name, rec.Vers, err)
	}

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to decode index record for %s@%s: %w", rec.Name, rec.Vers, err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("index record for %s@%s failed schema validation: %w", rec.Name, rec.Vers, err)
	}
	return nil
}

// marshalLine renders rec as one newline-delimited JSON line.
func marshalLine(rec record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode index record for %s@%s: %w", rec.Name, rec.Vers, err)
	}
	return buf.Bytes(), nil
}
