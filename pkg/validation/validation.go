// Package validation builds and runs the composed JSON-Schema validation
// described in spec §4.5: a base hardware schema combined with a oneOf
// branch per registered hardware type, each branch's properties assembled
// from that type's default fields plus the fields of every worker enabled
// for it.
package validation

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/types"
)

// Schema is a compiled composed schema for hardware enrollment.
type Schema struct {
	doc    map[string]any
	schema *gojsonschema.Schema
}

// BuildEnrollSchema composes the base hardware schema with a oneOf branch
// per hardware type in hardwareTypes, each branch's properties built from
// that type's default fields plus the fields of every one of its enabled
// workers that workerLookup resolves (an unresolved, i.e. disabled, worker
// contributes nothing to the branch).
func BuildEnrollSchema(hardwareTypes []driver.HardwareType, workerLookup func(name string) (driver.Worker, bool)) (*Schema, error) {
	var branches []any
	for _, ht := range hardwareTypes {
		fields := append([]types.WorkerField{}, ht.DefaultFields()...)
		for _, workerName := range ht.EnabledWorkers() {
			w, ok := workerLookup(workerName)
			if !ok {
				continue
			}
			fields = append(fields, w.Fields()...)
		}

		branches = append(branches, map[string]any{
			"type": "object",
			"properties": map[string]any{
				"hardware_type": map[string]any{"const": ht.Name()},
				"properties":    driver.JSONSchema(fields),
			},
		})
	}

	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":          map[string]any{"type": "string"},
			"hardware_type": map[string]any{"type": "string"},
			"properties":    map[string]any{"type": "object"},
		},
		"required": []string{"name", "hardware_type", "properties"},
		"oneOf":    branches,
	}

	compiled, err := compile(doc)
	if err != nil {
		return nil, err
	}
	return &Schema{doc: doc, schema: compiled}, nil
}

func compile(doc map[string]any) (*gojsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Validate checks payload (already decoded into a generic map) against the
// composed schema, returning a single *errs.Error describing every
// violation when validation fails.
func (s *Schema) Validate(payload map[string]any) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return errs.InvalidParameterValue("schema validation error: %v", err)
	}
	if result.Valid() {
		return nil
	}
	msg := ""
	for i, e := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += e.String()
	}
	return errs.InvalidParameterValue("%s", msg)
}

// ApplyDefaults fills in a field's Default value into properties when the
// user omitted it, and then forces every key in overrides onto properties
// (these cannot be set by the user), mirroring CreateHardware's rule in
// spec §4.6. The supplied fields are the full composed set (hardware
// type's default fields plus enabled workers' fields).
func ApplyDefaults(properties map[string]any, fields []types.WorkerField, overrides map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	for _, f := range fields {
		if f.Default == nil {
			continue
		}
		if _, present := properties[f.Name]; !present {
			properties[f.Name] = f.Default
		}
	}
	for k, v := range overrides {
		properties[k] = v
	}
	return properties
}

// MaskSensitive replaces the value of every sensitive field with a fixed
// mask and removes every private field entirely, for API responses (spec
// §4.3: "masked with \"*\"×12 when serialized"; private fields are "hidden
// from non-admins"). admin callers should pass includePrivate=true.
func MaskSensitive(properties map[string]any, fields []types.WorkerField, includePrivate bool) map[string]any {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		out[k] = v
	}
	for _, f := range fields {
		if f.Private && !includePrivate {
			delete(out, f.Name)
			continue
		}
		if f.Sensitive {
			if _, present := out[f.Name]; present {
				out[f.Name] = "************"
			}
		}
	}
	return out
}
