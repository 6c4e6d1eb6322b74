package templates

import (
	"encoding/json"
	"testing"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate() *entities.TemplateEntity {
	return &entities.TemplateEntity{
		Name: "ec2-instance",
		Variables: []entities.TemplateVariable{
			{Name: "name", Type: entities.VariableTypeString, Required: true},
			{Name: "size", Type: entities.VariableTypeNumber, Required: true},
			{Name: "encrypted", Type: entities.VariableTypeBool, Required: false, Default: json.RawMessage(`true`)},
			{Name: "subnets", Type: entities.VariableTypeList, Required: false},
			{Name: "tags", Type: entities.VariableTypeMap, Required: false},
		},
	}
}

func TestResolveVariablesCoercesDeclaredTypes(t *testing.T) {
	resolved, err := ResolveVariables(testTemplate(), map[string]string{
		"name":      "t1",
		"size":      "100",
		"encrypted": "false",
		"subnets":   `["a","b"]`,
		"tags":      `{"team":"infra"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "t1", resolved["name"])
	assert.Equal(t, float64(100), resolved["size"])
	assert.Equal(t, false, resolved["encrypted"])
	assert.Equal(t, []interface{}{"a", "b"}, resolved["subnets"])
	assert.Equal(t, map[string]interface{}{"team": "infra"}, resolved["tags"])
}

func TestResolveVariablesRejectsWrongType(t *testing.T) {
	_, err := ResolveVariables(testTemplate(), map[string]string{
		"name": "t1",
		"size": "bad",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, err.Error(), "size must be a number")
}

func TestResolveVariablesRejectsMissingRequired(t *testing.T) {
	_, err := ResolveVariables(testTemplate(), map[string]string{
		"name": "t1",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, err.Error(), `missing required variable "size"`)
}

func TestResolveVariablesRejectsUnknownName(t *testing.T) {
	_, err := ResolveVariables(testTemplate(), map[string]string{
		"name":    "t1",
		"size":    "1",
		"unknown": "x",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, err.Error(), `unknown variable "unknown"`)
	// The declared set is listed to make the typo findable.
	assert.Contains(t, err.Error(), "declared:")
}

func TestResolveVariablesAppliesDefaults(t *testing.T) {
	resolved, err := ResolveVariables(testTemplate(), map[string]string{
		"name": "t1",
		"size": "8",
	})
	require.NoError(t, err)

	assert.Equal(t, true, resolved["encrypted"])
	_, ok := resolved["subnets"]
	assert.False(t, ok, "optional variable without default should be absent")
}
