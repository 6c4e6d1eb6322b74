package terraform

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tfdash/tfdash-backend/internal/apperrors"
	"github.com/tfdash/tfdash-backend/internal/logger"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Runner launches the external terraform binary. It owns nothing beyond
// argument construction; each launched process is tracked by its Execution.
type Runner struct {
	binary string
}

func NewRunner(binary string) *Runner {
	if binary == "" {
		binary = "terraform"
	}
	return &Runner{binary: binary}
}

// Execution is the handle for one running subprocess: status polling, the
// captured output, and best-effort cancellation.
type Execution struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu          sync.Mutex
	exitCode    int
	waitErr     error
	stderrLines []string
	diagnostics []string
	forced      bool
}

func (r *Runner) Init(workDir string, logPath string) (*Execution, error) {
	return r.start(workDir, logPath, "init", "-input=false", "-no-color")
}

func (r *Runner) Plan(workDir string, logPath string) (*Execution, error) {
	return r.start(workDir, logPath, "plan", "-input=false", "-json", "-out=tfplan")
}

func (r *Runner) Apply(workDir string, logPath string) (*Execution, error) {
	return r.start(workDir, logPath, "apply", "-input=false", "-json", "-auto-approve", "tfplan")
}

func (r *Runner) Destroy(workDir string, logPath string) (*Execution, error) {
	return r.start(workDir, logPath, "destroy", "-input=false", "-json", "-auto-approve")
}

func (r *Runner) start(workDir string, logPath string, args ...string) (*Execution, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, apperrors.Infrastructure(err, "failed to create log directory")
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperrors.Infrastructure(err, "failed to open log file")
	}

	cmd := exec.Command(r.binary, args...)
	cmd.Dir = workDir
	// Own process group so a kill signal reaches terraform's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logFile.Close()
		return nil, apperrors.Infrastructure(err, "failed to open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		logFile.Close()
		return nil, apperrors.Infrastructure(err, "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, apperrors.Infrastructure(err, "failed to start %s %s", r.binary, strings.Join(args, " "))
	}

	e := &Execution{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	var writeMu sync.Mutex
	writeLine := func(line string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		fmt.Fprintln(logFile, line)
	}

	var readers sync.WaitGroup
	readers.Add(2)

	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			writeLine(line)
			e.collectDiagnostic(line)
		}
	}()

	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			writeLine(line)
			e.mu.Lock()
			e.stderrLines = append(e.stderrLines, line)
			e.mu.Unlock()
		}
	}()

	go func() {
		readers.Wait()
		waitErr := cmd.Wait()
		logFile.Close()

		e.mu.Lock()
		if waitErr != nil {
			e.waitErr = waitErr
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				e.exitCode = exitErr.ExitCode()
			} else {
				e.exitCode = -1
			}
		}
		e.mu.Unlock()
		close(e.done)
	}()

	return e, nil
}

// collectDiagnostic extracts error diagnostics from terraform's -json
// machine output stream.
func (e *Execution) collectDiagnostic(line string) {
	if !gjson.Valid(line) {
		return
	}
	if gjson.Get(line, "type").String() != "diagnostic" {
		return
	}
	if gjson.Get(line, "diagnostic.severity").String() != "error" {
		return
	}
	message := gjson.Get(line, "@message").String()
	if message == "" {
		message = gjson.Get(line, "diagnostic.summary").String()
	}
	e.mu.Lock()
	e.diagnostics = append(e.diagnostics, message)
	e.mu.Unlock()
}

// Done is closed once the process has been reaped.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// ExitCode is valid only after Done is closed. Zero means success.
func (e *Execution) ExitCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitCode
}

// ErrorOutput returns the captured stderr verbatim, followed by any error
// diagnostics parsed from the machine-readable stream.
func (e *Execution) ErrorOutput() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := make([]string, 0, len(e.stderrLines)+len(e.diagnostics))
	lines = append(lines, e.stderrLines...)
	lines = append(lines, e.diagnostics...)
	return strings.Join(lines, "\n")
}

// Forced reports whether cancellation had to escalate to SIGKILL.
func (e *Execution) Forced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forced
}

// Cancel asks the process to stop with SIGINT, which terraform honors by
// rolling back in-flight operations. If the process is still alive after
// the grace period it is killed, and Cancel reports the escalation.
func (e *Execution) Cancel(grace time.Duration) bool {
	select {
	case <-e.done:
		return false
	default:
	}

	if err := syscall.Kill(-e.cmd.Process.Pid, syscall.SIGINT); err != nil {
		logger.Warn("failed to signal subprocess", zap.Int("pid", e.cmd.Process.Pid), zap.Error(err))
	}

	select {
	case <-e.done:
		return false
	case <-time.After(grace):
	}

	logger.Warn("subprocess did not honor interrupt, killing", zap.Int("pid", e.cmd.Process.Pid))

	// Set before the kill lands: anyone woken by done closing must already
	// observe the escalation.
	e.mu.Lock()
	e.forced = true
	e.mu.Unlock()

	if err := syscall.Kill(-e.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		logger.Warn("failed to kill subprocess", zap.Int("pid", e.cmd.Process.Pid), zap.Error(err))
	}

	<-e.done
	return true
}
