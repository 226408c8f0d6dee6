package service

import (
	"context"
	"errors"
	"fmt"

	"analytics-ai/internal/codegen"
	"analytics-ai/internal/config"
	"analytics-ai/internal/dto"
	"analytics-ai/internal/sandbox"
	"analytics-ai/internal/table"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const noFilesSelectedMessage = "No files selected for analysis"

// Executor runs generated code. *sandbox.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) (*sandbox.RunOutput, error)
}

// CodeService turns questions into code and code into rendered tables.
type CodeService struct {
	generator     *codegen.Generator
	resolver      *codegen.ColumnResolver
	executor      Executor
	manifest      []config.DatasetConfig
	defaultBucket string
	generations   *prometheus.CounterVec
	log           logrus.FieldLogger
}

// NewCodeService wires a CodeService. resolver may be nil to skip column
// detection. Generation counters are registered on reg when it is not nil.
func NewCodeService(generator *codegen.Generator, resolver *codegen.ColumnResolver, executor Executor, manifest []config.DatasetConfig, defaultBucket string, reg prometheus.Registerer, log logrus.FieldLogger) *CodeService {
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codegen_requests_total",
		Help: "Code generation requests by language and outcome.",
	}, []string{"language", "outcome"})
	if reg != nil {
		reg.MustRegister(generations)
	}

	return &CodeService{
		generator:     generator,
		resolver:      resolver,
		executor:      executor,
		manifest:      manifest,
		defaultBucket: defaultBucket,
		generations:   generations,
		log:           log,
	}
}

// Generate asks the model for code. Model failures come back as fallback code
// with Success set; only configuration and request problems clear it.
func (s *CodeService) Generate(ctx context.Context, req *dto.GenerateCodeRequest) *dto.GenerateCodeResponse {
	if err := s.generator.Available(); err != nil {
		s.generations.WithLabelValues(req.Language, "unavailable").Inc()
		return &dto.GenerateCodeResponse{Error: err.Error()}
	}
	if len(req.SelectedFiles) == 0 {
		s.generations.WithLabelValues(req.Language, "no_files").Inc()
		return &dto.GenerateCodeResponse{Error: noFilesSelectedMessage}
	}

	c := codegen.BuildContext(req.SelectedFiles, s.defaultBucket)
	if s.resolver != nil {
		s.resolver.Resolve(ctx, c)
	}

	gen := s.generator.Generate(ctx, req.Question, req.Language, c.Datasets())
	if gen.Fallback {
		s.generations.WithLabelValues(req.Language, "fallback").Inc()
		return &dto.GenerateCodeResponse{
			Code:     gen.Code,
			Success:  true,
			Error:    gen.Err.Error(),
			Fallback: true,
		}
	}
	if gen.Err != nil {
		s.generations.WithLabelValues(req.Language, "error").Inc()
		return &dto.GenerateCodeResponse{Error: gen.Err.Error()}
	}

	s.generations.WithLabelValues(req.Language, "success").Inc()
	return &dto.GenerateCodeResponse{Code: gen.Code, Success: true}
}

// Execute runs code against the manifest datasets plus the selected files and
// renders the result as an HTML table.
func (s *CodeService) Execute(ctx context.Context, req *dto.ExecuteCodeRequest) *dto.ExecuteCodeResponse {
	out, err := s.executor.Execute(ctx, sandbox.Request{
		Language: req.Language,
		Code:     req.Code,
		Datasets: s.datasetRefs(req.SelectedFiles),
	})
	if err != nil {
		var execErr *sandbox.ExecError
		if errors.As(err, &execErr) {
			s.log.WithError(err).WithField("cause", execErr.Cause).Info("execution failed")
			return &dto.ExecuteCodeResponse{Error: execErr.Message, Cause: string(execErr.Cause)}
		}
		s.log.WithError(err).Error("execution failed")
		return &dto.ExecuteCodeResponse{Error: fmt.Sprintf("Execution error: %v", err)}
	}

	resp := &dto.ExecuteCodeResponse{
		Success:   true,
		TableHTML: table.ToHTML(out.Result.Records),
	}
	if out.Result.AutoSelected {
		resp.Warning = fmt.Sprintf("No 'ans_df' variable was defined; showing DataFrame '%s' instead", out.Result.Name)
	}
	if out.Truncated {
		s.log.Warn("execution output truncated")
	}
	return resp
}

// datasetRefs lists the manifest datasets followed by selected files whose
// identifiers the manifest does not already use.
func (s *CodeService) datasetRefs(selected []codegen.SelectedFile) []sandbox.DatasetRef {
	c := codegen.NewContext()
	for _, ds := range s.manifest {
		c.Put(codegen.Dataset{Identifier: ds.Name, Filename: ds.Object, Bucket: ds.Bucket})
	}
	for _, d := range codegen.BuildContext(selected, s.defaultBucket).Datasets() {
		if !c.Has(d.Identifier) {
			c.Put(d)
		}
	}

	datasets := c.Datasets()
	refs := make([]sandbox.DatasetRef, 0, len(datasets))
	for _, d := range datasets {
		refs = append(refs, sandbox.DatasetRef{Name: d.Identifier, Bucket: d.Bucket, Object: d.Filename})
	}
	return refs
}
