package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobEntity is one attempt to plan/apply a provisioning template against a
// target environment. The workspace path is unique to the job and never
// reused.
type JobEntity struct {
	ID              uuid.UUID      `json:"id"`
	TemplateID      uuid.UUID      `json:"templateId"`
	TemplateName    string         `json:"templateName"`
	Environment     string         `json:"environment"`
	Variables       datatypes.JSON `json:"variables"`
	WorkspacePath   string         `json:"workspacePath"`
	LogPath         string         `json:"logPath"`
	Status          JobStatus      `json:"status"`
	StatusReason    string         `json:"statusReason,omitempty"`
	ExitCode        *int           `json:"exitCode,omitempty"`
	ErrorOutput     string         `json:"errorOutput,omitempty"`
	CancelRequested bool           `json:"cancelRequested"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	FinishedAt      *time.Time     `json:"finishedAt,omitempty"`
}
