package utils

import (
	"path/filepath"

	"github.com/google/uuid"
)

// GetWorkspacePath returns the isolated working directory for one job.
// The job ID is part of the path so a directory is never reused across jobs.
func GetWorkspacePath(root string, template string, environment string, jobID uuid.UUID) string {
	return filepath.Join(root, "workspaces", template, environment, jobID.String())
}

// GetJobLogPath returns the file that captures the interleaved
// stdout/stderr of every subprocess launched for the job.
func GetJobLogPath(root string, jobID uuid.UUID) string {
	return filepath.Join(root, "logs", jobID.String(), "output.log")
}
