package templates

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ResolveVariables validates the string-typed inputs against the template's
// declared variable set and coerces each value to its declared type. The
// input set is closed: unknown names are rejected, missing required
// variables are rejected, and nothing is written anywhere before the whole
// set validates.
func ResolveVariables(
	template *entities.TemplateEntity,
	inputs map[string]string,
) (map[string]interface{}, error) {
	for name := range inputs {
		if template.Variable(name) == nil {
			return nil, apperrors.Validation("unknown variable %q (declared: %s)",
				name, strings.Join(DeclaredNames(template), ", "))
		}
	}

	resolved := make(map[string]interface{}, len(template.Variables))
	for _, declared := range template.Variables {
		raw, provided := inputs[declared.Name]
		if !provided {
			if declared.Required {
				return nil, apperrors.Validation("missing required variable %q", declared.Name)
			}
			if len(declared.Default) > 0 {
				var value interface{}
				if err := json.Unmarshal(declared.Default, &value); err != nil {
					return nil, apperrors.Validation("invalid default for variable %q", declared.Name)
				}
				resolved[declared.Name] = value
			}
			continue
		}

		value, err := coerce(declared, raw)
		if err != nil {
			return nil, err
		}
		resolved[declared.Name] = value
	}
	return resolved, nil
}

func coerce(declared entities.TemplateVariable, raw string) (interface{}, error) {
	switch declared.Type {
	case entities.VariableTypeString:
		return raw, nil

	case entities.VariableTypeNumber:
		converted, err := convert.Convert(cty.StringVal(raw), cty.Number)
		if err != nil {
			return nil, apperrors.Validation("%s must be a number", declared.Name)
		}
		value, _ := converted.AsBigFloat().Float64()
		return value, nil

	case entities.VariableTypeBool:
		converted, err := convert.Convert(cty.StringVal(raw), cty.Bool)
		if err != nil {
			return nil, apperrors.Validation("%s must be a boolean", declared.Name)
		}
		return converted.True(), nil

	case entities.VariableTypeList:
		var value []interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, apperrors.Validation("%s must be a list", declared.Name)
		}
		return value, nil

	case entities.VariableTypeMap:
		var value map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, apperrors.Validation("%s must be a map", declared.Name)
		}
		return value, nil
	}
	return nil, apperrors.Validation("%s has unsupported declared type %q", declared.Name, declared.Type)
}

// DeclaredNames returns the declared variable names in stable order, for
// diagnostics.
func DeclaredNames(template *entities.TemplateEntity) []string {
	names := make([]string, 0, len(template.Variables))
	for _, declared := range template.Variables {
		names = append(names, declared.Name)
	}
	sort.Strings(names)
	return names
}
