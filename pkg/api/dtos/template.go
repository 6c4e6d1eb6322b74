package dtos

import (
	"errors"
	"regexp"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
)

var templateNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

type RegisterTemplateRequest struct {
	Name        string `json:"name"        binding:"required"`
	Version     string `json:"version"     binding:"required"`
	Description string `json:"description"`
	Source      string `json:"source"      binding:"required"`
}

func (request *RegisterTemplateRequest) Validate() error {
	if !templateNameRegex.MatchString(request.Name) {
		return errors.New("invalid template name, must start with a letter and contain only letters, digits, hyphens and underscores")
	}
	return nil
}

type TemplateResponse struct {
	Template *entities.TemplateEntity `json:"template"`
}

type TemplateListResponse struct {
	Templates []*entities.TemplateEntity `json:"templates"`
}
