package services

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"
	"github.com/tfdash/tfdash-backend/pkg/domain/entities"
	"github.com/tfdash/tfdash-backend/pkg/workspace"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeJobRepo implements JobRepository in memory with the same
// compare-and-swap semantics as the postgres repository.
type fakeJobRepo struct {
	mu       sync.Mutex
	jobs     map[string]*entities.JobEntity
	statuses map[string][]entities.JobStatus
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:     make(map[string]*entities.JobEntity),
		statuses: make(map[string][]entities.JobStatus),
	}
}

func (r *fakeJobRepo) CreateJob(job *entities.JobEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.jobs[job.ID.String()] = &copied
	r.statuses[job.ID.String()] = []entities.JobStatus{job.Status}
	return nil
}

func (r *fakeJobRepo) GetJobByID(id string) (*entities.JobEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) GetAllJobs() ([]*entities.JobEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entities.JobEntity, 0, len(r.jobs))
	for _, job := range r.jobs {
		copied := *job
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeJobRepo) GetJobStatus(id string) (entities.JobStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return "", nil
	}
	return job.Status, nil
}

func (r *fakeJobRepo) UpdateStatusIf(id string, from, to entities.JobStatus, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	job.StatusReason = reason
	r.statuses[id] = append(r.statuses[id], to)
	return true, nil
}

func (r *fakeJobRepo) FinishJob(id string, status entities.JobStatus, reason string, exitCode *int, errorOutput string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	job.Status = status
	job.StatusReason = reason
	job.ExitCode = exitCode
	job.ErrorOutput = errorOutput
	now := time.Now().UTC()
	job.FinishedAt = &now
	r.statuses[id] = append(r.statuses[id], status)
	return true, nil
}

func (r *fakeJobRepo) SetCancelRequested(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.CancelRequested = true
	}
	return nil
}

func (r *fakeJobRepo) GetFinishedBefore(cutoff time.Time) ([]*entities.JobEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entities.JobEntity
	for _, job := range r.jobs {
		if job.Status.IsTerminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) && job.WorkspacePath != "" {
			copied := *job
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeJobRepo) ClearWorkspacePath(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.WorkspacePath = ""
	}
	return nil
}

func (r *fakeJobRepo) observedStatuses(id string) []entities.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.JobStatus(nil), r.statuses[id]...)
}

type fakeTemplateRepo struct {
	templates map[string]*entities.TemplateEntity
}

func (r *fakeTemplateRepo) CreateTemplate(template *entities.TemplateEntity) error {
	r.templates[template.ID.String()] = template
	return nil
}

func (r *fakeTemplateRepo) GetTemplateByID(id string) (*entities.TemplateEntity, error) {
	return r.templates[id], nil
}

func (r *fakeTemplateRepo) GetTemplateByNameAndVersion(name, version string) (*entities.TemplateEntity, error) {
	for _, template := range r.templates {
		if template.Name == name && template.Version == version {
			return template, nil
		}
	}
	return nil, nil
}

func (r *fakeTemplateRepo) GetAllTemplates() ([]*entities.TemplateEntity, error) {
	result := make([]*entities.TemplateEntity, 0, len(r.templates))
	for _, template := range r.templates {
		result = append(result, template)
	}
	return result, nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []*entities.AuditLogEntry
}

func (a *recordingAuditor) Record(entry *entities.AuditLogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []*entities.NotificationEntity
}

func (n *recordingNotifier) Publish(notification *entities.NotificationEntity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, 0, len(n.notifications))
	for _, notification := range n.notifications {
		titles = append(titles, notification.Title)
	}
	return titles
}

// syncTaskManager runs tasks inline so tests observe completed work after
// every call.
type syncTaskManager struct{}

func (syncTaskManager) Start()                    {}
func (syncTaskManager) AddTask(task entities.Task) { task() }
func (syncTaskManager) Stop()                     {}

// fakeExecution is a pre-scripted subprocess outcome.
type fakeExecution struct {
	mu          sync.Mutex
	exitCode    int
	errorOutput string
	forced      bool
	done        chan struct{}
	blockUntil  chan struct{} // nil means finish immediately
}

func newFakeExecution(exitCode int, errorOutput string) *fakeExecution {
	e := &fakeExecution{
		exitCode:    exitCode,
		errorOutput: errorOutput,
		done:        make(chan struct{}),
	}
	close(e.done)
	return e
}

func newBlockedExecution() *fakeExecution {
	return &fakeExecution{
		done:       make(chan struct{}),
		blockUntil: make(chan struct{}),
	}
}

func (e *fakeExecution) Done() <-chan struct{} { return e.done }

func (e *fakeExecution) ExitCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode
}

func (e *fakeExecution) ErrorOutput() string { return e.errorOutput }

func (e *fakeExecution) Forced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forced
}

func (e *fakeExecution) Cancel(time.Duration) bool {
	if e.blockUntil != nil {
		e.mu.Lock()
		e.exitCode = -1
		e.forced = true
		e.mu.Unlock()
		close(e.done)
		return true
	}
	return false
}

type fakeRunner struct {
	mu       sync.Mutex
	plan     []*fakeExecution
	apply    []*fakeExecution
	destroys []*fakeExecution
	inits    []*fakeExecution
	err      error

	// launchEntered/launchGate, when set, let a test hold the worker inside
	// a launch call: the worker announces itself on launchEntered, then
	// blocks until launchGate closes.
	launchEntered chan struct{}
	launchGate    chan struct{}
}

func (r *fakeRunner) next(queue *[]*fakeExecution) (Execution, error) {
	r.mu.Lock()
	entered, gate := r.launchEntered, r.launchGate
	r.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if len(*queue) == 0 {
		return newFakeExecution(0, ""), nil
	}
	exec := (*queue)[0]
	*queue = (*queue)[1:]
	return exec, nil
}

func (r *fakeRunner) Init(string, string) (Execution, error)    { return r.next(&r.inits) }
func (r *fakeRunner) Plan(string, string) (Execution, error)    { return r.next(&r.plan) }
func (r *fakeRunner) Apply(string, string) (Execution, error)   { return r.next(&r.apply) }
func (r *fakeRunner) Destroy(string, string) (Execution, error) { return r.next(&r.destroys) }

type stoppedInstance struct{}

func (stoppedInstance) State(string) entities.InstanceState { return entities.InstanceStateStopped }

type jobFixture struct {
	service    *JobService
	jobRepo    *fakeJobRepo
	runner     *fakeRunner
	auditor    *recordingAuditor
	notifier   *recordingNotifier
	templateID string
	root       string
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	root := t.TempDir()
	workspaces, err := workspace.New(root)
	require.NoError(t, err)

	template := &entities.TemplateEntity{
		ID:     uuid.New(),
		Name:   "ec2-instance",
		Source: `variable "name" { type = string }`,
		Variables: []entities.TemplateVariable{
			{Name: "name", Type: entities.VariableTypeString, Required: true},
			{Name: "size", Type: entities.VariableTypeNumber, Required: false, Default: json.RawMessage(`8`)},
		},
	}

	fixture := &jobFixture{
		jobRepo:    newFakeJobRepo(),
		runner:     &fakeRunner{},
		auditor:    &recordingAuditor{},
		notifier:   &recordingNotifier{},
		templateID: template.ID.String(),
		root:       root,
	}

	templateRepo := &fakeTemplateRepo{templates: map[string]*entities.TemplateEntity{
		template.ID.String(): template,
	}}

	config := JobConfig{
		StorageRoot: root,
		JobTimeout:  time.Minute,
		CancelGrace: 10 * time.Millisecond,
		Retention:   time.Hour,
	}

	fixture.service = NewJobService(
		config,
		fixture.jobRepo,
		templateRepo,
		fixture.auditor,
		fixture.notifier,
		syncTaskManager{},
		fixture.runner,
		workspaces,
		nil,
	)
	return fixture
}

func TestCreateJobHappyPath(t *testing.T) {
	fixture := newJobFixture(t)

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	assert.Equal(t, entities.JobStatusCreated, job.Status)
	assert.DirExists(t, job.WorkspacePath)
	assert.FileExists(t, job.WorkspacePath+"/main.tf")
	assert.FileExists(t, job.WorkspacePath+"/terraform.tfvars.json")

	// Defaults land in the resolved variable set.
	var resolved map[string]interface{}
	require.NoError(t, json.Unmarshal(job.Variables, &resolved))
	assert.Equal(t, float64(8), resolved["size"])
}

func TestCreateJobWrongTypeLeavesNoWorkspace(t *testing.T) {
	fixture := newJobFixture(t)

	_, err := fixture.service.CreateJob(fixture.templateID, map[string]string{
		"name": "t1",
		"size": "bad",
	}, "staging", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Contains(t, err.Error(), "size must be a number")

	entries, err := os.ReadDir(fixture.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "validation failure must not allocate a workspace")
}

func TestCreateJobMissingRequiredVariable(t *testing.T) {
	fixture := newJobFixture(t)

	_, err := fixture.service.CreateJob(fixture.templateID, map[string]string{}, "staging", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestStartPlanTwiceConflicts(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))

	err = fixture.service.StartPlan(job.ID.String(), "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "job not in Created state")
}

func TestPlanFlowReachesPlanned(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))

	status, err := fixture.service.GetJobStatus(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusPlanned, status)

	assert.Equal(t, []entities.JobStatus{
		entities.JobStatusCreated,
		entities.JobStatusPlanning,
		entities.JobStatusPlanned,
	}, fixture.jobRepo.observedStatuses(job.ID.String()))
}

func TestApplyFailureCapturesStderrVerbatim(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.runner.apply = []*fakeExecution{newFakeExecution(1, "Error: InvalidVpcID")}

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusApplyFailed, updated.Status)
	require.NotNil(t, updated.ExitCode)
	assert.Equal(t, 1, *updated.ExitCode)
	assert.Equal(t, "Error: InvalidVpcID", updated.ErrorOutput)
}

func TestPlanFailureCapturesOutput(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.runner.plan = []*fakeExecution{newFakeExecution(1, "Error: lock held by another run")}

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusPlanFailed, updated.Status)
	assert.Equal(t, "Error: lock held by another run", updated.ErrorOutput)
}

func TestSpawnFailureIsInfrastructureFailure(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.runner.err = apperrors.Infrastructure(errors.New("exec: no such file"), "failed to start terraform")

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusPlanFailed, updated.Status)
	assert.Equal(t, "launch-failure", updated.StatusReason)
	assert.Nil(t, updated.ExitCode)
	assert.Contains(t, updated.ErrorOutput, "no such file")
}

func TestApplyRequiresPlannedState(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	err = fixture.service.StartApply(job.ID.String(), "alice", false)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "job not in Planned state")
}

func TestApplySucceeds(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusSucceeded, updated.Status)
	require.NotNil(t, updated.ExitCode)
	assert.Equal(t, 0, *updated.ExitCode)
}

func TestStoppedInstanceBlocksApplyWithoutForce(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.service.instanceState = stoppedInstance{}

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))

	err = fixture.service.StartApply(job.ID.String(), "alice", false)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPrecondition))

	// Force overrides the precondition but publishes the warning.
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", true))
	assert.Contains(t, fixture.notifier.titles(), "Applying to stopped instance")
}

func TestCancelTerminalJobConflicts(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))

	before, err := fixture.service.GetJobStatus(job.ID.String())
	require.NoError(t, err)
	require.Equal(t, entities.JobStatusSucceeded, before)

	err = fixture.service.CancelJob(job.ID.String(), "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	after, err := fixture.service.GetJobStatus(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusSucceeded, after, "cancel of a terminal job must not change state")
}

func TestCancelDuringLaunchKeepsSingleTerminalState(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.runner.launchEntered = make(chan struct{})
	fixture.runner.launchGate = make(chan struct{})
	fixture.runner.inits = []*fakeExecution{newFakeExecution(1, "Error: boom")}

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	planDone := make(chan struct{})
	go func() {
		defer close(planDone)
		_ = fixture.service.StartPlan(job.ID.String(), "alice")
	}()

	// Worker is now inside the launch call: past the pre-launch status
	// check, not yet registered for cancellation.
	<-fixture.runner.launchEntered
	require.NoError(t, fixture.service.CancelJob(job.ID.String(), "alice"))

	close(fixture.runner.launchGate)
	<-planDone

	statuses := fixture.jobRepo.observedStatuses(job.ID.String())
	var terminal []entities.JobStatus
	for _, status := range statuses {
		if status.IsTerminal() {
			terminal = append(terminal, status)
		}
	}
	assert.Equal(t, []entities.JobStatus{entities.JobStatusCancelled}, terminal,
		"the cancelled job must not be overwritten by the worker's outcome")

	final, err := fixture.service.GetJobStatus(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusCancelled, final)
}

func TestCancelCreatedJobFinishesDirectly(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	require.NoError(t, fixture.service.CancelJob(job.ID.String(), "alice"))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusCancelled, updated.Status)
	assert.True(t, updated.CancelRequested)
}

func TestTimeoutCancelsRun(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.service.config.JobTimeout = 20 * time.Millisecond
	fixture.runner.inits = []*fakeExecution{newBlockedExecution()}

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusCancelledForced, updated.Status)
	assert.Equal(t, string(entities.CancelReasonTimeout), updated.StatusReason)
}

func TestAuditStorageFailureDoesNotBlockApply(t *testing.T) {
	// The auditor is a real AuditService whose repository always fails;
	// the apply must still run to completion.
	fixture := newJobFixture(t)
	fixture.service.auditor = NewAuditService(&failingAuditRepo{})

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))

	status, err := fixture.service.GetJobStatus(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusSucceeded, status)
}

func TestStreamOutputResumesFromOffset(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(job.LogPath), 0o755))
	require.NoError(t, os.WriteFile(job.LogPath, []byte("line1\nline2\n"), 0o644))

	first, err := fixture.service.StreamOutput(job.ID.String(), 0)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", first.Content)
	assert.False(t, first.Complete)

	second, err := fixture.service.StreamOutput(job.ID.String(), first.NextOffset)
	require.NoError(t, err)
	assert.Empty(t, second.Content)
	assert.Equal(t, first.NextOffset, second.NextOffset)
}

func TestDestroyFlowReachesDestroyed(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))
	require.NoError(t, fixture.service.StartDestroy(job.ID.String(), "alice"))

	status, err := fixture.service.GetJobStatus(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusDestroyed, status)
}

func TestDestroyRequiresSucceededState(t *testing.T) {
	fixture := newJobFixture(t)
	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)

	err = fixture.service.StartDestroy(job.ID.String(), "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "job not in Succeeded state")
}

func TestDestroyFailureCapturesOutput(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.runner.destroys = []*fakeExecution{newFakeExecution(1, "Error: DependencyViolation")}

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))
	require.NoError(t, fixture.service.StartDestroy(job.ID.String(), "alice"))

	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.JobStatusDestroyFailed, updated.Status)
	assert.Equal(t, "Error: DependencyViolation", updated.ErrorOutput)
}

func TestDestroyRefusedAfterWorkspaceReclaimed(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.service.config.Retention = 0

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.StartPlan(job.ID.String(), "alice"))
	require.NoError(t, fixture.service.StartApply(job.ID.String(), "alice", false))

	time.Sleep(5 * time.Millisecond)
	fixture.service.CleanupExpiredWorkspaces()

	err = fixture.service.StartDestroy(job.ID.String(), "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPrecondition))
}

func TestGetJobStatusUnknownJobIsNotFound(t *testing.T) {
	fixture := newJobFixture(t)

	_, err := fixture.service.GetJobStatus("4b8a2f10-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestCleanupExpiredWorkspaces(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.service.config.Retention = 0

	job, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.CancelJob(job.ID.String(), "alice"))

	// FinishedAt is in the past relative to a zero retention window.
	time.Sleep(5 * time.Millisecond)
	fixture.service.CleanupExpiredWorkspaces()

	assert.NoDirExists(t, job.WorkspacePath)
	updated, err := fixture.service.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Empty(t, updated.WorkspacePath)
}

func TestCleanupReclaimsEveryExpiredWorkspace(t *testing.T) {
	fixture := newJobFixture(t)
	fixture.service.config.Retention = 0

	first, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t1"}, "staging", "alice")
	require.NoError(t, err)
	second, err := fixture.service.CreateJob(fixture.templateID, map[string]string{"name": "t2"}, "staging", "alice")
	require.NoError(t, err)
	require.NoError(t, fixture.service.CancelJob(first.ID.String(), "alice"))
	require.NoError(t, fixture.service.CancelJob(second.ID.String(), "alice"))

	// Both jobs clear independently; reclaiming one must never block the
	// next from being cleared too.
	time.Sleep(5 * time.Millisecond)
	fixture.service.CleanupExpiredWorkspaces()

	for _, job := range []*entities.JobEntity{first, second} {
		assert.NoDirExists(t, job.WorkspacePath)
		updated, err := fixture.service.GetJob(job.ID.String())
		require.NoError(t, err)
		assert.Empty(t, updated.WorkspacePath)
	}
}
