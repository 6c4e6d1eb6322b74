package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/internal/utils"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/infrastructure/terraform"
	"github.com/tfdash/tfdash-backend/pkg/templates"
	"github.com/tfdash/tfdash-backend/pkg/workspace"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"go.uber.org/zap"
)

type JobRepository interface {
	CreateJob(job *entities.JobEntity) error
	GetJobByID(id string) (*entities.JobEntity, error)
	GetAllJobs() ([]*entities.JobEntity, error)
	GetJobStatus(id string) (entities.JobStatus, error)
	UpdateStatusIf(id string, from, to entities.JobStatus, reason string) (bool, error)
	FinishJob(id string, status entities.JobStatus, reason string, exitCode *int, errorOutput string) (bool, error)
	SetCancelRequested(id string) error
	GetFinishedBefore(cutoff time.Time) ([]*entities.JobEntity, error)
	ClearWorkspacePath(id string) error
}

type TemplateRepository interface {
	CreateTemplate(template *entities.TemplateEntity) error
	GetTemplateByID(id string) (*entities.TemplateEntity, error)
	GetTemplateByNameAndVersion(name, version string) (*entities.TemplateEntity, error)
	GetAllTemplates() ([]*entities.TemplateEntity, error)
}

type TaskManager interface {
	Start()
	AddTask(task entities.Task)
	Stop()
}

// Auditor appends to the trail without ever failing the caller.
type Auditor interface {
	Record(entry *entities.AuditLogEntry)
}

// Notifier delivers a UI event without ever failing the caller.
type Notifier interface {
	Publish(notification *entities.NotificationEntity)
}

// Execution is the handle for one launched subprocess.
type Execution interface {
	Done() <-chan struct{}
	ExitCode() int
	ErrorOutput() string
	// Forced is valid once Done is closed and reports whether cancellation
	// escalated past the graceful signal.
	Forced() bool
	Cancel(grace time.Duration) bool
}

// Runner launches the external provisioning tool inside a job workspace.
type Runner interface {
	Init(workDir string, logPath string) (Execution, error)
	Plan(workDir string, logPath string) (Execution, error)
	Apply(workDir string, logPath string) (Execution, error)
	Destroy(workDir string, logPath string) (Execution, error)
}

// InstanceStateChecker reports the operational state of the environment's
// target instance, when one is known.
type InstanceStateChecker interface {
	State(environment string) entities.InstanceState
}

// terraformRunner adapts the concrete terraform runner to the Runner
// interface declared here.
type terraformRunner struct {
	runner *terraform.Runner
}

func TerraformRunner(runner *terraform.Runner) Runner {
	return terraformRunner{runner: runner}
}

func (r terraformRunner) Init(workDir string, logPath string) (Execution, error) {
	return r.runner.Init(workDir, logPath)
}

func (r terraformRunner) Plan(workDir string, logPath string) (Execution, error) {
	return r.runner.Plan(workDir, logPath)
}

func (r terraformRunner) Apply(workDir string, logPath string) (Execution, error) {
	return r.runner.Apply(workDir, logPath)
}

func (r terraformRunner) Destroy(workDir string, logPath string) (Execution, error) {
	return r.runner.Destroy(workDir, logPath)
}

// UnknownInstanceState is the default checker for environments without a
// reachable state source.
type UnknownInstanceState struct{}

func (UnknownInstanceState) State(string) entities.InstanceState {
	return entities.InstanceStateUnknown
}

// JobConfig carries the knobs of the job tracker, initialized once at
// startup instead of read from process-wide state.
type JobConfig struct {
	StorageRoot string
	JobTimeout  time.Duration
	CancelGrace time.Duration
	Retention   time.Duration
}

// activeExecution tracks the live subprocess of a job for cancellation.
type activeExecution struct {
	exec      Execution
	cancelled bool
	reason    entities.CancelReason
}

// JobService serializes the lifecycle of provisioning attempts. Transitions
// are compare-and-swapped on the stored status, so no two transitions for
// the same job can both succeed.
type JobService struct {
	config        JobConfig
	jobRepo       JobRepository
	templateRepo  TemplateRepository
	auditor       Auditor
	notifier      Notifier
	taskManager   TaskManager
	runner        Runner
	workspaces    *workspace.Manager
	instanceState InstanceStateChecker

	mu     sync.Mutex
	active map[string]*activeExecution
}

func NewJobService(
	config JobConfig,
	jobRepo JobRepository,
	templateRepo TemplateRepository,
	auditor Auditor,
	notifier Notifier,
	taskManager TaskManager,
	runner Runner,
	workspaces *workspace.Manager,
	instanceState InstanceStateChecker,
) *JobService {
	if instanceState == nil {
		instanceState = UnknownInstanceState{}
	}
	s := &JobService{
		config:        config,
		jobRepo:       jobRepo,
		templateRepo:  templateRepo,
		auditor:       auditor,
		notifier:      notifier,
		taskManager:   taskManager,
		runner:        runner,
		workspaces:    workspaces,
		instanceState: instanceState,
		active:        make(map[string]*activeExecution),
	}
	s.taskManager.Start()
	return s
}

// CreateJob validates the inputs against the template's declared variable
// set, allocates a fresh workspace, writes the resolved configuration, and
// persists the job in Created. Validation failures happen before any side
// effect: no workspace directory is left behind.
func (s *JobService) CreateJob(
	templateID string,
	variables map[string]string,
	environment string,
	userID string,
) (*entities.JobEntity, error) {
	template, err := s.templateRepo.GetTemplateByID(templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperrors.NotFound("template %s not found", templateID)
	}
	if environment == "" {
		return nil, apperrors.Validation("environment is required")
	}

	resolved, err := templates.ResolveVariables(template, variables)
	if err != nil {
		s.audit(userID, "job:create", "job", "", false, err)
		return nil, err
	}

	jobID := uuid.New()
	workspacePath := utils.GetWorkspacePath(s.workspaces.Root(), template.Name, environment, jobID)
	logPath := utils.GetJobLogPath(s.config.StorageRoot, jobID)

	if err := s.workspaces.Prepare(workspacePath); err != nil {
		return nil, apperrors.Infrastructure(err, "failed to allocate workspace")
	}
	if err := s.workspaces.WriteConfiguration(workspacePath, template.Source, resolved); err != nil {
		_ = s.workspaces.Cleanup(workspacePath)
		return nil, apperrors.Infrastructure(err, "failed to write configuration")
	}

	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		_ = s.workspaces.Cleanup(workspacePath)
		return nil, err
	}

	job := &entities.JobEntity{
		ID:            jobID,
		TemplateID:    template.ID,
		TemplateName:  template.Name,
		Environment:   environment,
		Variables:     datatypes.JSON(resolvedJSON),
		WorkspacePath: workspacePath,
		LogPath:       logPath,
		Status:        entities.JobStatusCreated,
		CreatedBy:     userID,
	}
	if err := s.jobRepo.CreateJob(job); err != nil {
		_ = s.workspaces.Cleanup(workspacePath)
		return nil, err
	}

	logger.Info("job created",
		zap.String("jobId", jobID.String()),
		zap.String("template", template.Name),
		zap.String("environment", environment))

	s.audit(userID, "job:create", "job", jobID.String(), true, nil)
	s.notify(jobID, entities.NotificationTypeInfo, "Deployment created",
		fmt.Sprintf("Job for template %s targeting %s is ready to plan", template.Name, environment), false)

	return job, nil
}

// StartPlan moves the job from Created to Planning and launches the plan
// subprocess on a worker.
func (s *JobService) StartPlan(jobID string, userID string) error {
	job, err := s.getJob(jobID)
	if err != nil {
		return err
	}

	if err := s.transition(jobID, entities.JobStatusCreated, entities.JobStatusPlanning, ""); err != nil {
		s.audit(userID, "job:plan", "job", jobID, false, err)
		return err
	}

	s.audit(userID, "job:plan", "job", jobID, true, nil)
	s.notify(job.ID, entities.NotificationTypeInfo, "Plan started",
		fmt.Sprintf("Planning %s in %s", job.TemplateName, job.Environment), false)

	s.taskManager.AddTask(func() {
		s.runPlan(job)
	})
	return nil
}

// StartApply moves the job from Planned to Applying and launches the apply
// subprocess. A known-incompatible target instance state is a soft
// precondition: it blocks unless force is set, in which case the warning is
// published and the apply proceeds.
func (s *JobService) StartApply(jobID string, userID string, force bool) error {
	job, err := s.getJob(jobID)
	if err != nil {
		return err
	}

	if state := s.instanceState.State(job.Environment); state == entities.InstanceStateStopped {
		if !force {
			return apperrors.Precondition(
				"target instance in %s is not running; pass force to apply anyway", job.Environment)
		}
		s.notify(job.ID, entities.NotificationTypeWarning, "Applying to stopped instance",
			fmt.Sprintf("Target instance in %s is not running; apply was forced", job.Environment), true)
	}

	if err := s.transition(jobID, entities.JobStatusPlanned, entities.JobStatusApplying, ""); err != nil {
		s.audit(userID, "job:apply", "job", jobID, false, err)
		return err
	}

	s.audit(userID, "job:apply", "job", jobID, true, nil)
	s.notify(job.ID, entities.NotificationTypeInfo, "Apply started",
		fmt.Sprintf("Applying %s in %s", job.TemplateName, job.Environment), false)

	s.taskManager.AddTask(func() {
		s.runApply(job)
	})
	return nil
}

// StartDestroy tears the applied infrastructure back down. Only a
// Succeeded job whose workspace is still on disk can be destroyed; the
// destroy run goes through the same supervision as plan and apply.
func (s *JobService) StartDestroy(jobID string, userID string) error {
	job, err := s.getJob(jobID)
	if err != nil {
		return err
	}
	if job.WorkspacePath == "" {
		return apperrors.Precondition("workspace for job %s was already reclaimed", jobID)
	}

	if err := s.transition(jobID, entities.JobStatusSucceeded, entities.JobStatusDestroying, ""); err != nil {
		s.audit(userID, "job:destroy", "job", jobID, false, err)
		return err
	}

	s.audit(userID, "job:destroy", "job", jobID, true, nil)
	s.notify(job.ID, entities.NotificationTypeInfo, "Destroy started",
		fmt.Sprintf("Destroying %s in %s", job.TemplateName, job.Environment), false)

	s.taskManager.AddTask(func() {
		s.runDestroy(job)
	})
	return nil
}

// CancelJob requests termination. For a job with a live subprocess this is
// a best-effort signal with a grace period; without one the job goes to
// Cancelled directly. Cancelling a terminal job is a conflict, not a state
// change.
func (s *JobService) CancelJob(jobID string, userID string) error {
	job, err := s.getJob(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		err := apperrors.Conflict("job %s is already in terminal state %s", jobID, job.Status)
		s.audit(userID, "job:cancel", "job", jobID, false, err)
		return err
	}

	if err := s.jobRepo.SetCancelRequested(jobID); err != nil {
		return err
	}
	s.audit(userID, "job:cancel", "job", jobID, true, nil)

	s.mu.Lock()
	entry := s.active[jobID]
	if entry != nil {
		entry.cancelled = true
		entry.reason = entities.CancelReasonUserRequest
	}
	s.mu.Unlock()

	if entry != nil {
		// The running worker observes the cancellation once the process
		// is reaped and records the terminal state.
		go func() {
			entry.exec.Cancel(s.config.CancelGrace)
		}()
		return nil
	}

	// No live subprocess: finish the job directly. FinishJob refuses to
	// touch a job that reached a terminal state in the meantime, and a
	// worker that was mid-launch loses the same race on its side.
	ok, err := s.jobRepo.FinishJob(jobID, entities.JobStatusCancelled,
		string(entities.CancelReasonUserRequest), nil, "")
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Conflict("job %s changed state while cancelling", jobID)
	}
	s.notify(job.ID, entities.NotificationTypeWarning, "Deployment cancelled",
		fmt.Sprintf("Job %s was cancelled before execution", jobID), false)
	return nil
}

func (s *JobService) GetJob(jobID string) (*entities.JobEntity, error) {
	return s.getJob(jobID)
}

func (s *JobService) GetAllJobs() ([]*entities.JobEntity, error) {
	return s.jobRepo.GetAllJobs()
}

func (s *JobService) GetJobStatus(jobID string) (entities.JobStatus, error) {
	status, err := s.jobRepo.GetJobStatus(jobID)
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", apperrors.NotFound("job %s not found", jobID)
	}
	return status, nil
}

// LogChunk is one read of the captured output, restartable from NextOffset.
type LogChunk struct {
	Content    string `json:"content"`
	NextOffset int64  `json:"nextOffset"`
	Complete   bool   `json:"complete"`
}

// StreamOutput reads the captured subprocess output from the byte offset.
// Complete turns true once the job is terminal and the log has been fully
// consumed.
func (s *JobService) StreamOutput(jobID string, offset int64) (*LogChunk, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return nil, err
	}

	chunk := &LogChunk{NextOffset: offset}

	file, err := os.Open(job.LogPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing captured yet; the subprocess has not started.
			chunk.Complete = job.Status.IsTerminal()
			return chunk, nil
		}
		return nil, err
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, apperrors.Validation("invalid log offset %d", offset)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	chunk.Content = string(data)
	chunk.NextOffset = offset + int64(len(data))
	chunk.Complete = job.Status.IsTerminal()
	return chunk, nil
}

// CleanupExpiredWorkspaces removes workspace directories of terminal jobs
// whose retention window has elapsed. The job record itself is kept.
func (s *JobService) CleanupExpiredWorkspaces() {
	cutoff := time.Now().UTC().Add(-s.config.Retention)
	jobs, err := s.jobRepo.GetFinishedBefore(cutoff)
	if err != nil {
		logger.Error("failed to list expired workspaces", zap.Error(err))
		return
	}
	for _, job := range jobs {
		if err := s.workspaces.Cleanup(job.WorkspacePath); err != nil {
			logger.Warn("failed to remove workspace",
				zap.String("jobId", job.ID.String()), zap.Error(err))
			continue
		}
		if err := s.jobRepo.ClearWorkspacePath(job.ID.String()); err != nil {
			logger.Warn("failed to clear workspace path",
				zap.String("jobId", job.ID.String()), zap.Error(err))
		}
	}
}

func (s *JobService) getJob(jobID string) (*entities.JobEntity, error) {
	job, err := s.jobRepo.GetJobByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperrors.NotFound("job %s not found", jobID)
	}
	return job, nil
}

func (s *JobService) transition(jobID string, from, to entities.JobStatus, reason string) error {
	ok, err := s.jobRepo.UpdateStatusIf(jobID, from, to, reason)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Conflict("job not in %s state", from)
	}
	return nil
}

func (s *JobService) runPlan(job *entities.JobEntity) {
	jobID := job.ID.String()
	if s.cancelledBeforeLaunch(jobID) {
		return
	}

	initExec, err := s.runner.Init(job.WorkspacePath, job.LogPath)
	if err != nil {
		s.failLaunch(job, entities.JobStatusPlanFailed, err)
		return
	}
	outcome := s.supervise(jobID, initExec)
	if done := s.finishIfNotClean(job, entities.JobStatusPlanFailed, outcome); done {
		return
	}

	planExec, err := s.runner.Plan(job.WorkspacePath, job.LogPath)
	if err != nil {
		s.failLaunch(job, entities.JobStatusPlanFailed, err)
		return
	}
	outcome = s.supervise(jobID, planExec)
	if done := s.finishIfNotClean(job, entities.JobStatusPlanFailed, outcome); done {
		return
	}

	if err := s.transition(jobID, entities.JobStatusPlanning, entities.JobStatusPlanned, ""); err != nil {
		logger.Error("failed to record plan completion",
			zap.String("jobId", jobID), zap.Error(err))
		return
	}
	s.audit("", "job:plan-finished", "job", jobID, true, nil)
	s.notify(job.ID, entities.NotificationTypeSuccess, "Plan finished",
		fmt.Sprintf("Plan for %s in %s is ready to apply", job.TemplateName, job.Environment), false)
}

func (s *JobService) runApply(job *entities.JobEntity) {
	jobID := job.ID.String()
	if s.cancelledBeforeLaunch(jobID) {
		return
	}

	applyExec, err := s.runner.Apply(job.WorkspacePath, job.LogPath)
	if err != nil {
		s.failLaunch(job, entities.JobStatusApplyFailed, err)
		return
	}
	outcome := s.supervise(jobID, applyExec)
	if done := s.finishIfNotClean(job, entities.JobStatusApplyFailed, outcome); done {
		return
	}

	exitCode := 0
	ok, err := s.jobRepo.FinishJob(jobID, entities.JobStatusSucceeded, "", &exitCode, "")
	if err != nil {
		logger.Error("failed to record apply completion",
			zap.String("jobId", jobID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	s.audit("", "job:apply-finished", "job", jobID, true, nil)
	s.notify(job.ID, entities.NotificationTypeSuccess, "Deployment succeeded",
		fmt.Sprintf("%s applied to %s", job.TemplateName, job.Environment), true)
}

func (s *JobService) runDestroy(job *entities.JobEntity) {
	jobID := job.ID.String()
	if s.cancelledBeforeLaunch(jobID) {
		return
	}

	destroyExec, err := s.runner.Destroy(job.WorkspacePath, job.LogPath)
	if err != nil {
		s.failLaunch(job, entities.JobStatusDestroyFailed, err)
		return
	}
	outcome := s.supervise(jobID, destroyExec)
	if done := s.finishIfNotClean(job, entities.JobStatusDestroyFailed, outcome); done {
		return
	}

	exitCode := 0
	ok, err := s.jobRepo.FinishJob(jobID, entities.JobStatusDestroyed, "", &exitCode, "")
	if err != nil {
		logger.Error("failed to record destroy completion",
			zap.String("jobId", jobID), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	s.audit("", "job:destroy-finished", "job", jobID, true, nil)
	s.notify(job.ID, entities.NotificationTypeSuccess, "Infrastructure destroyed",
		fmt.Sprintf("%s torn down in %s", job.TemplateName, job.Environment), true)
}

// cancelledBeforeLaunch catches a cancellation that landed between the
// state transition and the worker picking the task up. The job is already
// terminal then and no subprocess must start for it.
func (s *JobService) cancelledBeforeLaunch(jobID string) bool {
	status, err := s.jobRepo.GetJobStatus(jobID)
	if err != nil {
		logger.Error("failed to read job status before launch",
			zap.String("jobId", jobID), zap.Error(err))
		return true
	}
	return status == "" || status.IsTerminal()
}

// executionOutcome is what supervise observed after the subprocess exited.
type executionOutcome struct {
	exitCode    int
	errorOutput string
	cancelled   bool
	reason      entities.CancelReason
	forced      bool
}

// supervise registers the execution for cancellation, enforces the
// wall-clock ceiling, and waits for the process to be reaped.
func (s *JobService) supervise(jobID string, exec Execution) executionOutcome {
	entry := &activeExecution{exec: exec}

	s.mu.Lock()
	s.active[jobID] = entry
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, jobID)
		s.mu.Unlock()
	}()

	var timeoutCh <-chan time.Time
	if s.config.JobTimeout > 0 {
		timer := time.NewTimer(s.config.JobTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-exec.Done():
	case <-timeoutCh:
		s.mu.Lock()
		entry.cancelled = true
		entry.reason = entities.CancelReasonTimeout
		s.mu.Unlock()
		exec.Cancel(s.config.CancelGrace)
		<-exec.Done()
	}

	// Forced comes from the execution itself: it is committed before the
	// kill signal goes out, so it is settled by the time Done closes.
	s.mu.Lock()
	outcome := executionOutcome{
		exitCode:    exec.ExitCode(),
		errorOutput: exec.ErrorOutput(),
		cancelled:   entry.cancelled,
		reason:      entry.reason,
		forced:      exec.Forced(),
	}
	s.mu.Unlock()
	return outcome
}

// finishIfNotClean records the terminal state for a cancelled or failed
// execution. It reports true when the job has reached a terminal state.
func (s *JobService) finishIfNotClean(
	job *entities.JobEntity,
	failureStatus entities.JobStatus,
	outcome executionOutcome,
) bool {
	jobID := job.ID.String()

	if outcome.cancelled {
		status := entities.JobStatusCancelled
		if outcome.forced {
			status = entities.JobStatusCancelledForced
		}
		ok, err := s.jobRepo.FinishJob(jobID, status, string(outcome.reason),
			&outcome.exitCode, outcome.errorOutput)
		if err != nil {
			logger.Error("failed to record cancellation",
				zap.String("jobId", jobID), zap.Error(err))
		}
		if !ok {
			// Someone else already recorded a terminal state.
			return true
		}
		s.audit("", "job:cancelled", "job", jobID, true, nil)
		title := "Deployment cancelled"
		if outcome.reason == entities.CancelReasonTimeout {
			title = "Deployment timed out"
		}
		s.notify(job.ID, entities.NotificationTypeWarning, title,
			fmt.Sprintf("Job %s stopped (%s)", jobID, outcome.reason), true)
		return true
	}

	if outcome.exitCode != 0 {
		execErr := apperrors.ExecutionFailure("external tool exited with code %d", outcome.exitCode)
		ok, err := s.jobRepo.FinishJob(jobID, failureStatus, "",
			&outcome.exitCode, outcome.errorOutput)
		if err != nil {
			logger.Error("failed to record execution failure",
				zap.String("jobId", jobID), zap.Error(err))
		}
		if !ok {
			return true
		}
		s.audit("", "job:failed", "job", jobID, false, execErr)
		s.notify(job.ID, entities.NotificationTypeError, "Deployment failed",
			outcome.errorOutput, true)
		return true
	}

	return false
}

// failLaunch records a subprocess that could not be started at all. This is
// fatal, surfaced immediately, and never retried.
func (s *JobService) failLaunch(job *entities.JobEntity, failureStatus entities.JobStatus, err error) {
	jobID := job.ID.String()
	logger.Error("failed to launch subprocess",
		zap.String("jobId", jobID), zap.Error(err))
	ok, finishErr := s.jobRepo.FinishJob(jobID, failureStatus, "launch-failure", nil, err.Error())
	if finishErr != nil {
		logger.Error("failed to record launch failure",
			zap.String("jobId", jobID), zap.Error(finishErr))
	}
	if !ok {
		return
	}
	s.audit("", "job:failed", "job", jobID, false, err)
	s.notify(job.ID, entities.NotificationTypeError, "Deployment failed to start", err.Error(), true)
}

func (s *JobService) audit(userID, action, resourceType, resourceID string, success bool, actionErr error) {
	entry := &entities.AuditLogEntry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
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

func (s *JobService) notify(
	jobID uuid.UUID,
	notificationType entities.NotificationType,
	title string,
	message string,
	persistent bool,
) {
	s.notifier.Publish(&entities.NotificationEntity{
		Type:       notificationType,
		Title:      title,
		Message:    message,
		Persistent: persistent,
		JobID:      &jobID,
	})
}
