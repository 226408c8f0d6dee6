package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// ResultPathEnv names the file the child writes its result envelope to.
	ResultPathEnv = "ANALYTICS_RESULT_PATH"
	// DataDirEnv names the directory holding staged datasets.
	DataDirEnv = "ANALYTICS_DATA_DIR"
	// WorkDirEnv names the execution work directory.
	WorkDirEnv = "ANALYTICS_WORK_DIR"

	resultFileName = "result.json"
	dataDirName    = "data"

	defaultWaitDelay = 2 * time.Second
)

// RunnerConfig controls how the child process is launched.
type RunnerConfig struct {
	Interpreter    string
	Timeout        time.Duration
	MaxOutputBytes int64
	AllowedEnv     []string
}

// RunOutput is what a successful run produced.
type RunOutput struct {
	Result    *Result
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Truncated bool
}

// Runner launches an entry script under the configured interpreter.
type Runner struct {
	cfg RunnerConfig
	log logrus.FieldLogger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig, log logrus.FieldLogger) *Runner {
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 1 << 20
	}
	return &Runner{cfg: cfg, log: log}
}

// Run executes `interpreter entry` inside workDir and reads the result envelope.
// Every failure is an *ExecError.
func (r *Runner) Run(ctx context.Context, workDir, entry string) (*RunOutput, error) {
	resultPath := filepath.Join(workDir, resultFileName)

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.cfg.Interpreter, entry)
	cmd.Dir = workDir
	cmd.Env = r.buildEnvironment(workDir, resultPath)
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = defaultWaitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: r.cfg.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: r.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	out := &RunOutput{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}

	logger := r.log.WithFields(logrus.Fields{
		"interpreter": r.cfg.Interpreter,
		"duration_ms": out.Duration.Milliseconds(),
	})

	switch {
	case ctx.Err() != nil:
		logger.Info("execution canceled by caller")
		return out, newExecError(CauseCanceled, "Code execution canceled", ctx.Err())
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		logger.WithField("timeout", r.cfg.Timeout.String()).Warn("execution timed out, process group killed")
		return out, newExecError(CauseTimeout, "Code execution timed out", execCtx.Err())
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.WithField("exit_code", exitErr.ExitCode()).Info("execution exited non-zero")
			return out, newExecError(CauseProcessFailure, "Code execution failed: "+out.Stderr, err)
		}
		logger.WithError(err).Error("failed to launch interpreter")
		return out, newExecError(CauseLaunchFailure, fmt.Sprintf("Execution error: %v", err), err)
	}

	res, err := readResult(resultPath)
	if err != nil {
		return out, err
	}
	out.Result = res
	return out, nil
}

// buildEnvironment passes only allowed host variables plus the sandbox paths.
func (r *Runner) buildEnvironment(workDir, resultPath string) []string {
	env := make([]string, 0, len(r.cfg.AllowedEnv)+4)
	for _, key := range r.cfg.AllowedEnv {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			env = append(env, key+"="+val)
		}
	}
	return append(env,
		ResultPathEnv+"="+resultPath,
		DataDirEnv+"="+filepath.Join(workDir, dataDirName),
		WorkDirEnv+"="+workDir,
		"PYTHONUNBUFFERED=1",
	)
}

// limitedWriter keeps the first max bytes and silently drops the rest.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
