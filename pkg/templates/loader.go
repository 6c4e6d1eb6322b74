package templates

import (
	"encoding/json"
	"fmt"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

var templateFileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "data", LabelNames: []string{"type", "name"}},
		{Type: "module", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
		{Type: "provider", LabelNames: []string{"name"}},
		{Type: "terraform"},
		{Type: "locals"},
	},
}

var variableBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type"},
		{Name: "description"},
		{Name: "default"},
	},
}

// ParseVariables extracts the declared variable set from terraform-style
// HCL source. Only variable blocks are inspected; the rest of the
// configuration is left to the external tool.
func ParseVariables(filename string, source string) ([]entities.TemplateVariable, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL([]byte(source), filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse template %s: %w", filename, diags)
	}

	content, _, diags := file.Body.PartialContent(templateFileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode template %s: %w", filename, diags)
	}

	var variables []entities.TemplateVariable
	for _, block := range content.Blocks {
		if block.Type != "variable" {
			continue
		}
		variable, err := decodeVariableBlock(block)
		if err != nil {
			return nil, err
		}
		variables = append(variables, *variable)
	}
	return variables, nil
}

func decodeVariableBlock(block *hcl.Block) (*entities.TemplateVariable, error) {
	name := block.Labels[0]
	content, _, diags := block.Body.PartialContent(variableBlockSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid variable block %q: %w", name, diags)
	}

	variable := &entities.TemplateVariable{
		Name:     name,
		Type:     entities.VariableTypeString,
		Required: true,
	}

	if attr, ok := content.Attributes["type"]; ok {
		ctyType, diags := typeexpr.TypeConstraint(attr.Expr)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid type for variable %q: %w", name, diags)
		}
		variable.Type = variableTypeOf(ctyType)
	}

	if attr, ok := content.Attributes["description"]; ok {
		value, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid description for variable %q: %w", name, diags)
		}
		variable.Description = value.AsString()
	}

	if attr, ok := content.Attributes["default"]; ok {
		value, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default for variable %q: %w", name, diags)
		}
		data, err := ctyjson.Marshal(value, value.Type())
		if err != nil {
			return nil, fmt.Errorf("failed to encode default for variable %q: %w", name, err)
		}
		variable.Default = json.RawMessage(data)
		variable.Required = false
	}

	return variable, nil
}

func variableTypeOf(ctyType cty.Type) entities.VariableType {
	switch {
	case ctyType == cty.Number:
		return entities.VariableTypeNumber
	case ctyType == cty.Bool:
		return entities.VariableTypeBool
	case ctyType.IsListType() || ctyType.IsSetType() || ctyType.IsTupleType():
		return entities.VariableTypeList
	case ctyType.IsMapType() || ctyType.IsObjectType():
		return entities.VariableTypeMap
	default:
		return entities.VariableTypeString
	}
}
