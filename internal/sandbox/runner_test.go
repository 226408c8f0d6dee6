package sandbox

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// runShell writes body to run.sh in a temp dir and runs it with sh.
func runShell(t *testing.T, ctx context.Context, cfg RunnerConfig, body string) (*RunOutput, error) {
	t.Helper()
	requireShell(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.sh"), []byte(body), 0o600))

	if cfg.Interpreter == "" {
		cfg.Interpreter = "sh"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return NewRunner(cfg, quietLogger()).Run(ctx, dir, "run.sh")
}

func causeOf(t *testing.T, err error) Cause {
	t.Helper()
	var execErr *ExecError
	require.True(t, errors.As(err, &execErr), "expected *ExecError, got %v", err)
	return execErr.Cause
}

func TestRunnerSuccess(t *testing.T) {
	out, err := runShell(t, context.Background(), RunnerConfig{}, `
echo "hello"
printf '{"found": true, "name": "ans_df", "auto_selected": false, "records": [{"b": 1, "a": 2.5}]}' > "$ANALYTICS_RESULT_PATH"
`)
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, "ans_df", out.Result.Name)
	assert.False(t, out.Result.AutoSelected)
	require.Len(t, out.Result.Records, 1)
	assert.Equal(t, []string{"b", "a"}, out.Result.Records[0].Keys())
}

func TestRunnerAutoSelected(t *testing.T) {
	out, err := runShell(t, context.Background(), RunnerConfig{}, `
printf '{"found": true, "name": "merged", "auto_selected": true, "records": []}' > "$ANALYTICS_RESULT_PATH"
`)
	require.NoError(t, err)
	assert.True(t, out.Result.AutoSelected)
	assert.Equal(t, "merged", out.Result.Name)
	assert.Empty(t, out.Result.Records)
}

func TestRunnerProcessFailure(t *testing.T) {
	out, err := runShell(t, context.Background(), RunnerConfig{}, `
echo "Traceback: boom" >&2
exit 3
`)
	assert.Equal(t, CauseProcessFailure, causeOf(t, err))

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "Code execution failed: Traceback: boom\n", execErr.Message)
	assert.Equal(t, "Traceback: boom\n", out.Stderr)
}

func TestRunnerNoResult(t *testing.T) {
	_, err := runShell(t, context.Background(), RunnerConfig{}, `echo "nothing"`)
	assert.Equal(t, CauseNoResult, causeOf(t, err))

	_, err = runShell(t, context.Background(), RunnerConfig{}, `
printf '{"found": false, "name": null, "auto_selected": false, "records": []}' > "$ANALYTICS_RESULT_PATH"
`)
	assert.Equal(t, CauseNoResult, causeOf(t, err))
}

func TestRunnerParseFailure(t *testing.T) {
	_, err := runShell(t, context.Background(), RunnerConfig{}, `printf '{"found": true, "records": [' > "$ANALYTICS_RESULT_PATH"`)
	assert.Equal(t, CauseParseFailure, causeOf(t, err))

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.True(t, strings.HasPrefix(execErr.Message, "Failed to parse JSON result: "))
}

func TestRunnerTimeoutKillsProcessGroup(t *testing.T) {
	start := time.Now()
	_, err := runShell(t, context.Background(), RunnerConfig{Timeout: 300 * time.Millisecond}, `
sleep 30 &
sleep 30
`)
	assert.Equal(t, CauseTimeout, causeOf(t, err))
	assert.Less(t, time.Since(start), 10*time.Second)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "Code execution timed out", execErr.Message)
}

func TestRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := runShell(t, ctx, RunnerConfig{}, `sleep 30`)
	assert.Equal(t, CauseCanceled, causeOf(t, err))
}

func TestRunnerLaunchFailure(t *testing.T) {
	_, err := runShell(t, context.Background(), RunnerConfig{Interpreter: "/nonexistent/interpreter"}, `true`)
	assert.Equal(t, CauseLaunchFailure, causeOf(t, err))
}

func TestRunnerTruncatesOutput(t *testing.T) {
	out, err := runShell(t, context.Background(), RunnerConfig{MaxOutputBytes: 10}, `
echo "0123456789abcdef"
printf '{"found": true, "name": "x", "auto_selected": false, "records": []}' > "$ANALYTICS_RESULT_PATH"
`)
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Equal(t, "0123456789", out.Stdout)
}

func TestRunnerEnvironmentIsFiltered(t *testing.T) {
	t.Setenv("SANDBOX_ALLOWED_VAR", "yes")
	t.Setenv("SANDBOX_SECRET_VAR", "no")

	out, err := runShell(t, context.Background(), RunnerConfig{AllowedEnv: []string{"PATH", "SANDBOX_ALLOWED_VAR"}}, `
echo "allowed=$SANDBOX_ALLOWED_VAR secret=$SANDBOX_SECRET_VAR unbuffered=$PYTHONUNBUFFERED"
test -n "$ANALYTICS_DATA_DIR" && test -n "$ANALYTICS_WORK_DIR"
printf '{"found": true, "name": "x", "auto_selected": false, "records": []}' > "$ANALYTICS_RESULT_PATH"
`)
	require.NoError(t, err)
	assert.Equal(t, "allowed=yes secret= unbuffered=1\n", out.Stdout)
}

func TestLimitedWriter(t *testing.T) {
	var sb strings.Builder
	lw := &limitedWriter{w: &sb, max: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defg"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = lw.Write([]byte("h"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "abcde", sb.String())
	assert.True(t, lw.truncated)
}
