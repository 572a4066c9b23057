package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/hardwared/pkg/types"
)

func TestJSONSchemaComposesRequiredAndDefaults(t *testing.T) {
	fields := []types.WorkerField{
		{Name: "ipmi_address", Required: true, Schema: map[string]any{"type": "string"}},
		{Name: "ipmi_port", Required: false},
	}

	schema := JSONSchema(fields)

	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "ipmi_address")
	assert.Contains(t, props, "ipmi_port")
	assert.Equal(t, map[string]any{"type": "string"}, props["ipmi_port"], "a field with no schema defaults to a bare string type")
	assert.Equal(t, []string{"ipmi_address"}, schema["required"])
}

func TestJSONSchemaOmitsRequiredWhenEmpty(t *testing.T) {
	fields := []types.WorkerField{{Name: "note"}}
	schema := JSONSchema(fields)
	_, hasRequired := schema["required"]
	assert.False(t, hasRequired)
}
