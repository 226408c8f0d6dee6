package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"analytics-ai/pkg/object_store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeInterpreter = `#!/bin/sh
cp "$1" "$SANDBOX_TEST_OUT/main.py"
if [ -f query.sql ]; then cp query.sql "$SANDBOX_TEST_OUT/query.sql"; fi
ls "$ANALYTICS_DATA_DIR" > "$SANDBOX_TEST_OUT/data.txt"
printf '{"found": true, "name": "ans_df", "auto_selected": false, "records": [{"n": 1}]}' > "$ANALYTICS_RESULT_PATH"
`

// slotLimiter is a non-blocking limiter with a fixed number of slots.
type slotLimiter struct {
	mu    sync.Mutex
	max   int
	inUse int
}

func (l *slotLimiter) Acquire(_ context.Context, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inUse >= l.max {
		return errors.New("no free slot")
	}
	l.inUse++
	return nil
}

func (l *slotLimiter) Release(_ context.Context, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inUse--
}

func (l *slotLimiter) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}

func newTestStore(t *testing.T) *object_store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := object_store.NewMemoryStore()
	store.CreateBucket("default")
	store.CreateBucket("sample")
	require.NoError(t, store.Put(ctx, "default", "orders.csv", "text/csv", []byte("id,n\n1,1\n2,5\n3,9\n")))
	require.NoError(t, store.Put(ctx, "sample", "races.json", "application/json", []byte(`[{"race":"a","laps":3}]`)))
	return store
}

func newFakeExecutor(t *testing.T, limiter Limiter, reg prometheus.Registerer) (*Executor, string) {
	t.Helper()
	requireShell(t)

	binDir := t.TempDir()
	interpreter := filepath.Join(binDir, "fakepy")
	require.NoError(t, os.WriteFile(interpreter, []byte(fakeInterpreter), 0o755))

	outDir := t.TempDir()
	t.Setenv("SANDBOX_TEST_OUT", outDir)

	log := quietLogger()
	runner := NewRunner(RunnerConfig{
		Interpreter: interpreter,
		Timeout:     5 * time.Second,
		AllowedEnv:  []string{"PATH", "SANDBOX_TEST_OUT"},
	}, log)
	stager := NewStager(newTestStore(t), 2, log)
	return NewExecutor(stager, runner, limiter, t.TempDir(), NewMetrics(reg), log), outDir
}

func TestExecutorStagesDatasetsAndBuildsScript(t *testing.T) {
	ex, outDir := newFakeExecutor(t, nil, nil)

	out, err := ex.Execute(context.Background(), Request{
		Language: "python",
		Code:     "ans_df = orders[orders['n'] > 1]",
		Datasets: []DatasetRef{
			{Name: "orders", Bucket: "default", Object: "orders.csv"},
			{Name: "races", Bucket: "sample", Object: "races.json"},
			{Name: "ghost", Bucket: "sample", Object: "ghost.csv"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Result.Records, 1)

	data, err := os.ReadFile(filepath.Join(outDir, "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"orders.csv", "races.json"}, strings.Fields(string(data)))

	script, err := os.ReadFile(filepath.Join(outDir, "main.py"))
	require.NoError(t, err)
	assert.Contains(t, string(script), `orders = _load_dataset(_os.path.join(_DATA_DIR, "orders.csv"))`)
	assert.Contains(t, string(script), `ghost = None`)
	assert.Contains(t, string(script), "ans_df = orders[orders['n'] > 1]")
	assert.NotContains(t, string(script), "sqlite3")

	_, err = os.Stat(filepath.Join(outDir, "query.sql"))
	assert.True(t, os.IsNotExist(err))
}

func TestExecutorSQLWritesQueryFile(t *testing.T) {
	ex, outDir := newFakeExecutor(t, nil, nil)

	_, err := ex.Execute(context.Background(), Request{
		Language: "sql",
		Code:     "SELECT n FROM orders WHERE n > 1",
		Datasets: []DatasetRef{{Name: "orders", Bucket: "default", Object: "orders.csv"}},
	})
	require.NoError(t, err)

	query, err := os.ReadFile(filepath.Join(outDir, "query.sql"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT n FROM orders WHERE n > 1", string(query))

	script, err := os.ReadFile(filepath.Join(outDir, "main.py"))
	require.NoError(t, err)
	assert.Contains(t, string(script), `for _name in ["orders"]:`)
	assert.NotContains(t, string(script), "SELECT n FROM orders")
}

func TestExecutorBusy(t *testing.T) {
	limiter := &slotLimiter{max: 1}
	require.NoError(t, limiter.Acquire(context.Background(), limiterKey))

	reg := prometheus.NewRegistry()
	ex, _ := newFakeExecutor(t, limiter, reg)

	_, err := ex.Execute(context.Background(), Request{Language: "python", Code: "ans_df = None"})
	assert.Equal(t, CauseBusy, causeOf(t, err))

	limiter.Release(context.Background(), limiterKey)
	_, err = ex.Execute(context.Background(), Request{Language: "python", Code: "ans_df = None"})
	require.NoError(t, err)
	assert.Equal(t, 0, limiter.InUse())

	m := ex.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("python", "busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("python", "success")))
}

func TestExecutorRemovesWorkDir(t *testing.T) {
	ex, _ := newFakeExecutor(t, nil, nil)

	_, err := ex.Execute(context.Background(), Request{Language: "python", Code: "x = 1"})
	require.NoError(t, err)

	entries, err := os.ReadDir(ex.workRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDatasetExt(t *testing.T) {
	assert.Equal(t, ".csv", datasetExt("a.CSV"))
	assert.Equal(t, ".json", datasetExt("dir/b.json"))
	assert.Equal(t, ".csv", datasetExt("noext"))
}

func TestPyString(t *testing.T) {
	assert.Equal(t, `"a\"b\\c\n"`, pyString("a\"b\\c\n"))
}

// requirePandas skips unless a python3 with pandas is installed.
func requirePandas(t *testing.T) {
	t.Helper()
	if err := exec.Command("python3", "-c", "import pandas").Run(); err != nil {
		t.Skip("python3 with pandas not available")
	}
}

func newPythonExecutor(t *testing.T) *Executor {
	t.Helper()
	requirePandas(t)
	log := quietLogger()
	runner := NewRunner(RunnerConfig{
		Interpreter: "python3",
		Timeout:     30 * time.Second,
		AllowedEnv:  []string{"PATH", "HOME", "LANG", "PYTHONPATH", "VIRTUAL_ENV"},
	}, log)
	return NewExecutor(NewStager(newTestStore(t), 2, log), runner, nil, t.TempDir(), nil, log)
}

func TestPythonExecutionEndToEnd(t *testing.T) {
	e := newPythonExecutor(t)
	datasets := []DatasetRef{
		{Name: "orders", Bucket: "default", Object: "orders.csv"},
		{Name: "races", Bucket: "sample", Object: "races.json"},
	}

	out, err := e.Execute(context.Background(), Request{
		Language: "python",
		Code:     "ans_df = orders[orders['n'] > 1][['n', 'id']]",
		Datasets: datasets,
	})
	require.NoError(t, err)
	assert.False(t, out.Result.AutoSelected)
	require.Len(t, out.Result.Records, 2)
	assert.Equal(t, []string{"n", "id"}, out.Result.Records[0].Keys())

	out, err = e.Execute(context.Background(), Request{
		Language: "python",
		Code:     "big = orders[orders['n'] > 6]",
		Datasets: datasets,
	})
	require.NoError(t, err)
	assert.True(t, out.Result.AutoSelected)
	assert.Equal(t, "big", out.Result.Name)
	assert.Len(t, out.Result.Records, 1)

	out, err = e.Execute(context.Background(), Request{
		Language: "sql",
		Code:     "SELECT id, n * 2 AS doubled FROM orders WHERE n > 1 ORDER BY id",
		Datasets: datasets,
	})
	require.NoError(t, err)
	require.Len(t, out.Result.Records, 2)
	v, _ := out.Result.Records[1].Get("doubled")
	assert.Equal(t, int64(18), v)

	_, err = e.Execute(context.Background(), Request{
		Language: "sql",
		Code:     "SELECT * FROM missing_table",
		Datasets: datasets,
	})
	assert.Equal(t, CauseProcessFailure, causeOf(t, err))

	_, err = e.Execute(context.Background(), Request{
		Language: "python",
		Code:     "raise ValueError('bad')",
		Datasets: datasets,
	})
	assert.Equal(t, CauseProcessFailure, causeOf(t, err))
}

func TestPythonExecutionSurvivesDatasetsNamedLikeModules(t *testing.T) {
	e := newPythonExecutor(t)

	out, err := e.Execute(context.Background(), Request{
		Language: "python",
		Code:     "ans_df = orders",
		Datasets: []DatasetRef{
			{Name: "os", Bucket: "sample", Object: "races.json"},
			{Name: "pd", Bucket: "sample", Object: "races.json"},
			{Name: "orders", Bucket: "default", Object: "orders.csv"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, out.Result.Records, 3)

	out, err = e.Execute(context.Background(), Request{
		Language: "sql",
		Code:     "SELECT COUNT(*) AS n FROM os",
		Datasets: []DatasetRef{
			{Name: "os", Bucket: "sample", Object: "races.json"},
			{Name: "json", Bucket: "default", Object: "orders.csv"},
		},
	})
	require.NoError(t, err)
	v, _ := out.Result.Records[0].Get("n")
	assert.Equal(t, int64(1), v)
}
