package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// limiterKey is the slot name executions share.
const limiterKey = "sandbox:execute"

// Limiter admits executions. Acquire fails when no slot is free.
type Limiter interface {
	Acquire(ctx context.Context, key string) error
	Release(ctx context.Context, key string)
}

// Request is one execution.
type Request struct {
	Language string
	Code     string
	Datasets []DatasetRef
}

// Executor stages datasets, builds the program and runs it.
type Executor struct {
	stager   *Stager
	runner   *Runner
	limiter  Limiter
	workRoot string
	metrics  *Metrics
	log      logrus.FieldLogger
}

// NewExecutor wires an Executor. workRoot may be empty to use the OS temp dir.
func NewExecutor(stager *Stager, runner *Runner, limiter Limiter, workRoot string, metrics *Metrics, log logrus.FieldLogger) *Executor {
	return &Executor{
		stager:   stager,
		runner:   runner,
		limiter:  limiter,
		workRoot: workRoot,
		metrics:  metrics,
		log:      log,
	}
}

// Execute runs req in a fresh work directory that is removed afterwards.
// Every failure is an *ExecError.
func (e *Executor) Execute(ctx context.Context, req Request) (*RunOutput, error) {
	out, err := e.execute(ctx, req)

	outcome := "success"
	var execErr *ExecError
	if errors.As(err, &execErr) {
		outcome = string(execErr.Cause)
	}
	var seconds float64
	if out != nil {
		seconds = out.Duration.Seconds()
	}
	e.metrics.observe(req.Language, outcome, seconds)

	return out, err
}

func (e *Executor) execute(ctx context.Context, req Request) (*RunOutput, error) {
	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx, limiterKey); err != nil {
			if ctx.Err() != nil {
				return nil, newExecError(CauseCanceled, "Code execution canceled", ctx.Err())
			}
			e.log.WithError(err).Warn("execution rejected, no free slot")
			return nil, newExecError(CauseBusy, "Too many executions in progress, please retry shortly", err)
		}
		defer e.limiter.Release(ctx, limiterKey)
	}

	workDir, err := os.MkdirTemp(e.workRoot, "exec-")
	if err != nil {
		return nil, newExecError(CauseLaunchFailure, fmt.Sprintf("Execution error: %v", err), err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			e.log.WithError(err).WithField("work_dir", workDir).Warn("failed to remove work dir")
		}
	}()

	staged, err := e.stager.Stage(ctx, filepath.Join(workDir, dataDirName), req.Datasets)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newExecError(CauseCanceled, "Code execution canceled", ctx.Err())
		}
		return nil, newExecError(CauseLaunchFailure, fmt.Sprintf("Execution error: %v", err), err)
	}

	script := BuildScript(req.Language, staged, req.Code)
	if err := os.WriteFile(filepath.Join(workDir, EntryScript), []byte(script), 0o600); err != nil {
		return nil, newExecError(CauseLaunchFailure, fmt.Sprintf("Execution error: %v", err), err)
	}
	if req.Language == "sql" {
		if err := os.WriteFile(filepath.Join(workDir, QueryFile), []byte(req.Code), 0o600); err != nil {
			return nil, newExecError(CauseLaunchFailure, fmt.Sprintf("Execution error: %v", err), err)
		}
	}

	return e.runner.Run(ctx, workDir, EntryScript)
}
