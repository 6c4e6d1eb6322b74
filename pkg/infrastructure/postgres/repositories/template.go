package repositories

import (
	"encoding/json"
	"errors"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TemplatePostgresRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplatePostgresRepository {
	return &TemplatePostgresRepository{db: db}
}

func (r *TemplatePostgresRepository) CreateTemplate(template *entities.TemplateEntity) error {
	variables, err := json.Marshal(template.Variables)
	if err != nil {
		return err
	}
	row := schemas.Template{
		ID:          template.ID,
		Name:        template.Name,
		Version:     template.Version,
		Description: template.Description,
		Source:      template.Source,
		Variables:   datatypes.JSON(variables),
	}
	return r.db.Create(&row).Error
}

func (r *TemplatePostgresRepository) GetTemplateByID(id string) (*entities.TemplateEntity, error) {
	var row schemas.Template
	err := r.db.Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return templateToEntity(&row)
}

func (r *TemplatePostgresRepository) GetTemplateByNameAndVersion(name, version string) (*entities.TemplateEntity, error) {
	var row schemas.Template
	err := r.db.Where("name = ? AND version = ?", name, version).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return templateToEntity(&row)
}

func (r *TemplatePostgresRepository) GetAllTemplates() ([]*entities.TemplateEntity, error) {
	var rows []schemas.Template
	err := r.db.Order("name ASC, version DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]*entities.TemplateEntity, 0, len(rows))
	for i := range rows {
		template, err := templateToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, template)
	}
	return result, nil
}

func templateToEntity(row *schemas.Template) (*entities.TemplateEntity, error) {
	var variables []entities.TemplateVariable
	if len(row.Variables) > 0 {
		if err := json.Unmarshal(row.Variables, &variables); err != nil {
			return nil, err
		}
	}
	return &entities.TemplateEntity{
		ID:          row.ID,
		Name:        row.Name,
		Version:     row.Version,
		Description: row.Description,
		Source:      row.Source,
		Variables:   variables,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
