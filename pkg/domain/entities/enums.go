package entities

// JobStatus is the lifecycle state of a provisioning job.
type JobStatus string

const (
	JobStatusCreated         JobStatus = "Created"
	JobStatusPlanning        JobStatus = "Planning"
	JobStatusPlanned         JobStatus = "Planned"
	JobStatusApplying        JobStatus = "Applying"
	JobStatusSucceeded       JobStatus = "Succeeded"
	JobStatusDestroying      JobStatus = "Destroying"
	JobStatusDestroyed       JobStatus = "Destroyed"
	JobStatusPlanFailed      JobStatus = "PlanFailed"
	JobStatusApplyFailed     JobStatus = "ApplyFailed"
	JobStatusDestroyFailed   JobStatus = "DestroyFailed"
	JobStatusCancelled       JobStatus = "Cancelled"
	JobStatusCancelledForced JobStatus = "CancelledForced"
)

// terminalStatuses is kept as a slice so repositories can use it directly in
// NOT IN guards.
var terminalStatuses = []JobStatus{
	JobStatusSucceeded,
	JobStatusDestroyed,
	JobStatusPlanFailed,
	JobStatusApplyFailed,
	JobStatusDestroyFailed,
	JobStatusCancelled,
	JobStatusCancelledForced,
}

// TerminalStatuses lists every state from which no further transition is
// possible. Succeeded is terminal for the plan/apply pipeline; a destroy run
// moves the job out of it again.
func TerminalStatuses() []JobStatus {
	return terminalStatuses
}

// IsTerminal reports whether no further pipeline transition happens on its
// own. A Succeeded job can still be destroyed explicitly.
func (s JobStatus) IsTerminal() bool {
	for _, terminal := range terminalStatuses {
		if s == terminal {
			return true
		}
	}
	return false
}

// CancelReason records why a job left the happy path.
type CancelReason string

const (
	CancelReasonUserRequest CancelReason = "user-request"
	CancelReasonTimeout     CancelReason = "timeout"
)

// NotificationType maps to the severity shown by the UI.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// InstanceState is the operational state of the target instance, when the
// environment reports one. Unknown means no check was possible.
type InstanceState string

const (
	InstanceStateRunning InstanceState = "running"
	InstanceStateStopped InstanceState = "stopped"
	InstanceStateUnknown InstanceState = "unknown"
)
