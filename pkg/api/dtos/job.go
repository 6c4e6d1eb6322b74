package dtos

import (
	"errors"
	"regexp"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
)

var environmentRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

type CreateJobRequest struct {
	TemplateID  string            `json:"templateId"  binding:"required"`
	Environment string            `json:"environment" binding:"required"`
	Variables   map[string]string `json:"variables"`
}

func (request *CreateJobRequest) Validate() error {
	if !environmentRegex.MatchString(request.Environment) {
		return errors.New("invalid environment, must be lowercase letters, digits and hyphens")
	}
	return nil
}

type StartApplyRequest struct {
	Force bool `json:"force"`
}

type JobResponse struct {
	Job *entities.JobEntity `json:"job"`
}

type JobListResponse struct {
	Jobs []*entities.JobEntity `json:"jobs"`
}

type JobStatusResponse struct {
	JobID  string             `json:"jobId"`
	Status entities.JobStatus `json:"status"`
}
