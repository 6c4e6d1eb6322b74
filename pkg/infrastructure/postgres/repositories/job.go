package repositories

import (
	"errors"
	"time"

	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/postgres/schemas"

	"gorm.io/gorm"
)

type JobPostgresRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobPostgresRepository {
	return &JobPostgresRepository{db: db}
}

func (r *JobPostgresRepository) CreateJob(job *entities.JobEntity) error {
	return r.db.Create(jobToSchema(job)).Error
}

func (r *JobPostgresRepository) GetJobByID(id string) (*entities.JobEntity, error) {
	var job schemas.Job
	err := r.db.Joins("Template").Where("jobs.id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return jobToEntity(&job), nil
}

func (r *JobPostgresRepository) GetAllJobs() ([]*entities.JobEntity, error) {
	var jobs []schemas.Job
	err := r.db.Joins("Template").Order("jobs.created_at DESC").Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	result := make([]*entities.JobEntity, 0, len(jobs))
	for i := range jobs {
		result = append(result, jobToEntity(&jobs[i]))
	}
	return result, nil
}

func (r *JobPostgresRepository) GetJobStatus(id string) (entities.JobStatus, error) {
	var job schemas.Job
	err := r.db.Select("status").Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return job.Status, nil
}

// UpdateStatusIf performs a compare-and-swap on the job status. It reports
// false when the job was not in the expected state, which serializes
// transitions without holding any in-process lock.
func (r *JobPostgresRepository) UpdateStatusIf(
	id string,
	from entities.JobStatus,
	to entities.JobStatus,
	reason string,
) (bool, error) {
	result := r.db.Model(&schemas.Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "status_reason": reason})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FinishJob records a terminal state together with the subprocess outcome.
// Like UpdateStatusIf it is a compare-and-swap: a job that already reached a
// terminal state is left untouched and false is reported, so two racing
// finishers can never both write.
func (r *JobPostgresRepository) FinishJob(
	id string,
	status entities.JobStatus,
	reason string,
	exitCode *int,
	errorOutput string,
) (bool, error) {
	now := time.Now().UTC()
	result := r.db.Model(&schemas.Job{}).
		Where("id = ? AND status NOT IN ?", id, entities.TerminalStatuses()).
		Updates(map[string]interface{}{
			"status":        status,
			"status_reason": reason,
			"exit_code":     exitCode,
			"error_output":  errorOutput,
			"finished_at":   &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *JobPostgresRepository) SetCancelRequested(id string) error {
	return r.db.Model(&schemas.Job{}).
		Where("id = ?", id).
		Update("cancel_requested", true).Error
}

// GetFinishedBefore returns terminal jobs whose retention window has
// elapsed, for workspace cleanup.
func (r *JobPostgresRepository) GetFinishedBefore(cutoff time.Time) ([]*entities.JobEntity, error) {
	var jobs []schemas.Job
	err := r.db.Where("status IN ? AND finished_at < ? AND workspace_path IS NOT NULL",
		entities.TerminalStatuses(), cutoff).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	result := make([]*entities.JobEntity, 0, len(jobs))
	for i := range jobs {
		result = append(result, jobToEntity(&jobs[i]))
	}
	return result, nil
}

// ClearWorkspacePath marks the workspace as reclaimed after cleanup. The
// column clears to NULL, not '', so the unique index never sees two
// reclaimed rows as equal.
func (r *JobPostgresRepository) ClearWorkspacePath(id string) error {
	return r.db.Model(&schemas.Job{}).
		Where("id = ?", id).
		Update("workspace_path", nil).Error
}

func jobToSchema(job *entities.JobEntity) *schemas.Job {
	var workspacePath *string
	if job.WorkspacePath != "" {
		workspacePath = &job.WorkspacePath
	}
	return &schemas.Job{
		ID:              job.ID,
		TemplateID:      job.TemplateID,
		Environment:     job.Environment,
		Variables:       job.Variables,
		WorkspacePath:   workspacePath,
		LogPath:         job.LogPath,
		Status:          job.Status,
		StatusReason:    job.StatusReason,
		ExitCode:        job.ExitCode,
		ErrorOutput:     job.ErrorOutput,
		CancelRequested: job.CancelRequested,
		CreatedBy:       job.CreatedBy,
		FinishedAt:      job.FinishedAt,
	}
}

func jobToEntity(job *schemas.Job) *entities.JobEntity {
	var workspacePath string
	if job.WorkspacePath != nil {
		workspacePath = *job.WorkspacePath
	}
	return &entities.JobEntity{
		ID:              job.ID,
		TemplateID:      job.TemplateID,
		TemplateName:    job.Template.Name,
		Environment:     job.Environment,
		Variables:       job.Variables,
		WorkspacePath:   workspacePath,
		LogPath:         job.LogPath,
		Status:          job.Status,
		StatusReason:    job.StatusReason,
		ExitCode:        job.ExitCode,
		ErrorOutput:     job.ErrorOutput,
		CancelRequested: job.CancelRequested,
		CreatedBy:       job.CreatedBy,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		FinishedAt:      job.FinishedAt,
	}
}
