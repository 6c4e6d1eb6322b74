package terraform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeBinary writes an executable shell script standing in for terraform.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terraform")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func testPaths(t *testing.T) (workDir string, logPath string) {
	t.Helper()
	workDir = t.TempDir()
	logPath = filepath.Join(t.TempDir(), "logs", "output.log")
	return workDir, logPath
}

func TestSuccessfulRunCapturesOutput(t *testing.T) {
	binary := fakeBinary(t, `echo "Initializing the backend..."
echo "Terraform has been successfully initialized!"
exit 0`)
	workDir, logPath := testPaths(t)

	exec, err := NewRunner(binary).Init(workDir, logPath)
	require.NoError(t, err)
	<-exec.Done()

	assert.Equal(t, 0, exec.ExitCode())
	assert.Empty(t, exec.ErrorOutput())

	captured, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(captured), "Initializing the backend...")
	assert.Contains(t, string(captured), "successfully initialized")
}

func TestFailureCapturesExitCodeAndStderr(t *testing.T) {
	binary := fakeBinary(t, `echo "Planning..."
echo "Error: InvalidVpcID.NotFound: vpc-123 does not exist" >&2
exit 1`)
	workDir, logPath := testPaths(t)

	exec, err := NewRunner(binary).Plan(workDir, logPath)
	require.NoError(t, err)
	<-exec.Done()

	assert.Equal(t, 1, exec.ExitCode())
	assert.Equal(t, "Error: InvalidVpcID.NotFound: vpc-123 does not exist", exec.ErrorOutput())

	// stderr also lands in the log file, interleaved with stdout.
	captured, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(captured), "InvalidVpcID.NotFound")
}

func TestDiagnosticsParsedFromMachineOutput(t *testing.T) {
	binary := fakeBinary(t, `echo '{"@level":"info","@message":"Plan: 1 to add","type":"change_summary"}'
echo '{"@level":"error","@message":"Error: Reference to undeclared variable","type":"diagnostic","diagnostic":{"severity":"error","summary":"Reference to undeclared variable"}}'
echo '{"@level":"warn","@message":"Warning: deprecated","type":"diagnostic","diagnostic":{"severity":"warning","summary":"deprecated"}}'
exit 1`)
	workDir, logPath := testPaths(t)

	exec, err := NewRunner(binary).Plan(workDir, logPath)
	require.NoError(t, err)
	<-exec.Done()

	assert.Equal(t, 1, exec.ExitCode())
	assert.Equal(t, "Error: Reference to undeclared variable", exec.ErrorOutput(),
		"only error-severity diagnostics are collected")
}

func TestSpawnFailureIsInfrastructureError(t *testing.T) {
	workDir, logPath := testPaths(t)

	_, err := NewRunner("/nonexistent/terraform").Init(workDir, logPath)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInfrastructure))
}

func TestCancelDeliversInterrupt(t *testing.T) {
	binary := fakeBinary(t, `trap 'exit 0' INT
echo started
sleep 30`)
	workDir, logPath := testPaths(t)

	exec, err := NewRunner(binary).Apply(workDir, logPath)
	require.NoError(t, err)

	// Give the script a moment to install its trap.
	time.Sleep(100 * time.Millisecond)

	forced := exec.Cancel(5 * time.Second)
	assert.False(t, forced, "a process honoring SIGINT must not be killed")
	assert.False(t, exec.Forced())

	select {
	case <-exec.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after interrupt")
	}
}

func TestCancelEscalatesToKill(t *testing.T) {
	binary := fakeBinary(t, `trap '' INT
echo started
sleep 30`)
	workDir, logPath := testPaths(t)

	exec, err := NewRunner(binary).Apply(workDir, logPath)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	forced := exec.Cancel(200 * time.Millisecond)
	assert.True(t, forced, "a process ignoring SIGINT must be killed after the grace period")
	assert.True(t, exec.Forced())
	assert.NotEqual(t, 0, exec.ExitCode())
}

func TestCancelAfterExitIsNoop(t *testing.T) {
	binary := fakeBinary(t, `exit 0`)
	workDir, logPath := testPaths(t)

	exec, err := NewRunner(binary).Init(workDir, logPath)
	require.NoError(t, err)
	<-exec.Done()

	assert.False(t, exec.Cancel(time.Second))
}

func TestLogFileAppendsAcrossStages(t *testing.T) {
	workDir, logPath := testPaths(t)

	initExec, err := NewRunner(fakeBinary(t, `echo "stage one"`)).Init(workDir, logPath)
	require.NoError(t, err)
	<-initExec.Done()

	planExec, err := NewRunner(fakeBinary(t, `echo "stage two"`)).Plan(workDir, logPath)
	require.NoError(t, err)
	<-planExec.Done()

	captured, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(captured), "stage one")
	assert.Contains(t, string(captured), "stage two")
}
