package service

import (
	"context"
	"errors"
	"testing"

	"analytics-ai/internal/codegen"
	"analytics-ai/internal/config"
	"analytics-ai/internal/dto"
	"analytics-ai/internal/sandbox"
	"analytics-ai/internal/table"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	out string
	err error
}

func (m *stubModel) Generate(context.Context, string) (string, error) {
	return m.out, m.err
}

type stubExecutor struct {
	req sandbox.Request
	out *sandbox.RunOutput
	err error
}

func (e *stubExecutor) Execute(_ context.Context, req sandbox.Request) (*sandbox.RunOutput, error) {
	e.req = req
	return e.out, e.err
}

var testManifest = []config.DatasetConfig{
	{Name: "olist_orders_dataset", Bucket: "ai-analysis-default-bucket", Object: "olist_orders_dataset.csv"},
	{Name: "races", Bucket: "sample-bucket", Object: "races.csv"},
}

func newCodeService(gen *codegen.Generator, exec Executor, reg prometheus.Registerer) *CodeService {
	return NewCodeService(gen, nil, exec, testManifest, testDefaultBucket, reg, quietLogger())
}

func TestGenerateWithoutModel(t *testing.T) {
	svc := newCodeService(codegen.NewGenerator(nil, quietLogger()), &stubExecutor{}, nil)

	resp := svc.Generate(context.Background(), &dto.GenerateCodeRequest{
		Question:      "how many?",
		Language:      codegen.LanguagePython,
		SelectedFiles: []codegen.SelectedFile{{Filename: "a.csv"}},
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "GEMINI_API_KEY not configured")
}

func TestGenerateWithoutFiles(t *testing.T) {
	svc := newCodeService(codegen.NewGenerator(&stubModel{out: "x"}, quietLogger()), &stubExecutor{}, nil)

	resp := svc.Generate(context.Background(), &dto.GenerateCodeRequest{
		Question: "how many?",
		Language: codegen.LanguageSQL,
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "No files selected for analysis", resp.Error)
}

func TestGenerateSuccessAndFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	model := &stubModel{out: "```sql\nSELECT COUNT(*) FROM orders\n```"}
	svc := newCodeService(codegen.NewGenerator(model, quietLogger()), &stubExecutor{}, reg)

	req := &dto.GenerateCodeRequest{
		Question:      "count orders",
		Language:      codegen.LanguageSQL,
		SelectedFiles: []codegen.SelectedFile{{Filename: "orders.csv"}},
	}

	resp := svc.Generate(context.Background(), req)
	assert.True(t, resp.Success)
	assert.False(t, resp.Fallback)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", resp.Code)

	model.err = errors.New("quota exceeded")
	resp = svc.Generate(context.Background(), req)
	assert.True(t, resp.Success)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "SELECT 'Error generating code: quota exceeded' AS error", resp.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.generations.WithLabelValues(codegen.LanguageSQL, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.generations.WithLabelValues(codegen.LanguageSQL, "fallback")))
}

func TestExecuteMergesManifestAndSelectedFiles(t *testing.T) {
	exec := &stubExecutor{out: &sandbox.RunOutput{Result: &sandbox.Result{Name: "ans_df"}}}
	svc := newCodeService(codegen.NewGenerator(nil, quietLogger()), exec, nil)

	resp := svc.Execute(context.Background(), &dto.ExecuteCodeRequest{
		Code:     "ans_df = races",
		Language: codegen.LanguagePython,
		SelectedFiles: []codegen.SelectedFile{
			{Filename: "races.csv", Source: codegen.SourcePublic, Bucket: "other"},
			{Filename: "my data.csv"},
		},
	})
	require.True(t, resp.Success)
	assert.Equal(t, table.EmptyHTML, resp.TableHTML)

	assert.Equal(t, []sandbox.DatasetRef{
		{Name: "olist_orders_dataset", Bucket: "ai-analysis-default-bucket", Object: "olist_orders_dataset.csv"},
		{Name: "races", Bucket: "sample-bucket", Object: "races.csv"},
		{Name: "my_data", Bucket: testDefaultBucket, Object: "my data.csv"},
	}, exec.req.Datasets)
}

func TestExecuteRendersTableAndWarnsOnAutoSelection(t *testing.T) {
	records, err := table.DecodeRecords([]byte(`[{"n": 1200}]`))
	require.NoError(t, err)

	exec := &stubExecutor{out: &sandbox.RunOutput{Result: &sandbox.Result{
		Name:         "summary",
		AutoSelected: true,
		Records:      records,
	}}}
	svc := newCodeService(codegen.NewGenerator(nil, quietLogger()), exec, nil)

	resp := svc.Execute(context.Background(), &dto.ExecuteCodeRequest{Code: "summary = x", Language: codegen.LanguagePython})
	require.True(t, resp.Success)
	assert.Contains(t, resp.TableHTML, "1,200")
	assert.Contains(t, resp.Warning, "'summary'")
}

func TestExecuteReportsCause(t *testing.T) {
	exec := &stubExecutor{err: &sandbox.ExecError{Cause: sandbox.CauseTimeout, Message: "Code execution timed out"}}
	svc := newCodeService(codegen.NewGenerator(nil, quietLogger()), exec, nil)

	resp := svc.Execute(context.Background(), &dto.ExecuteCodeRequest{Code: "x", Language: codegen.LanguageSQL})
	assert.False(t, resp.Success)
	assert.Equal(t, "timeout", resp.Cause)
	assert.Equal(t, "Code execution timed out", resp.Error)
	assert.Empty(t, resp.TableHTML)
}
