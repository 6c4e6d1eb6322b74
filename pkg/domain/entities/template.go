package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// VariableType is the declared type of a template input variable.
type VariableType string

const (
	VariableTypeString VariableType = "string"
	VariableTypeNumber VariableType = "number"
	VariableTypeBool   VariableType = "bool"
	VariableTypeList   VariableType = "list"
	VariableTypeMap    VariableType = "map"
)

// TemplateVariable is one declared input of a template. Inputs arrive
// string-typed from the UI and are coerced to the declared type before any
// external call.
type TemplateVariable struct {
	Name        string          `json:"name"`
	Type        VariableType    `json:"type"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// TemplateEntity is a named, versioned provisioning configuration with a
// closed set of declared variables.
type TemplateEntity struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Version     string             `json:"version"`
	Description string             `json:"description,omitempty"`
	Source      string             `json:"source"`
	Variables   []TemplateVariable `json:"variables"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Variable returns the declaration for name, or nil when the template does
// not declare it.
func (t *TemplateEntity) Variable(name string) *TemplateVariable {
	for i := range t.Variables {
		if t.Variables[i].Name == name {
			return &t.Variables[i]
		}
	}
	return nil
}
