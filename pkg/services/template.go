package services

import (
	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/templates"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateService manages the registry of provisioning templates.
type TemplateService struct {
	repo    TemplateRepository
	auditor Auditor
}

func NewTemplateService(repo TemplateRepository, auditor Auditor) *TemplateService {
	return &TemplateService{repo: repo, auditor: auditor}
}

// Register parses the declared variable blocks out of the HCL source and
// stores the template.
func (s *TemplateService) Register(
	name string,
	version string,
	description string,
	source string,
	userID string,
) (*entities.TemplateEntity, error) {
	if name == "" {
		return nil, apperrors.Validation("template name is required")
	}
	if version == "" {
		return nil, apperrors.Validation("template version is required")
	}
	if source == "" {
		return nil, apperrors.Validation("template source is required")
	}

	existing, err := s.repo.GetTemplateByNameAndVersion(name, version)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("template %s version %s is already registered", name, version)
	}

	variables, err := templates.ParseVariables(name+".tf", source)
	if err != nil {
		validationErr := apperrors.Wrap(apperrors.KindValidation, err, "template source does not parse")
		s.recordAudit(userID, "", false, validationErr)
		return nil, validationErr
	}

	template := &entities.TemplateEntity{
		ID:          uuid.New(),
		Name:        name,
		Version:     version,
		Description: description,
		Source:      source,
		Variables:   variables,
	}
	if err := s.repo.CreateTemplate(template); err != nil {
		return nil, err
	}

	logger.Info("template registered",
		zap.String("name", name),
		zap.String("version", version),
		zap.Int("variables", len(variables)))
	s.recordAudit(userID, template.ID.String(), true, nil)

	return template, nil
}

func (s *TemplateService) GetTemplate(id string) (*entities.TemplateEntity, error) {
	template, err := s.repo.GetTemplateByID(id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperrors.NotFound("template %s not found", id)
	}
	return template, nil
}

func (s *TemplateService) GetAllTemplates() ([]*entities.TemplateEntity, error) {
	return s.repo.GetAllTemplates()
}

func (s *TemplateService) recordAudit(userID string, templateID string, success bool, actionErr error) {
	entry := &entities.AuditLogEntry{
		Action:       "template:register",
		ResourceType: "template",
		ResourceID:   templateID,
		Success:      success,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if actionErr != nil {
		message := actionErr.Error()
		entry.ErrorMessage = &message
	}
	s.auditor.Record(entry)
}
