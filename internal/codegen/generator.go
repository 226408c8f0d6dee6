package codegen

import (
	"context"
	"errors"

	"analytics-ai/pkg/model_caller"

	"github.com/sirupsen/logrus"
)

// Generation is the outcome of one generation request.
type Generation struct {
	Code     string
	Fallback bool
	Err      error
}

// Generator wraps a model and turns any model failure into fallback code.
type Generator struct {
	model model_caller.Generator
	log   logrus.FieldLogger
}

// NewGenerator creates a Generator. model may be nil when no provider is configured.
func NewGenerator(model model_caller.Generator, log logrus.FieldLogger) *Generator {
	return &Generator{model: model, log: log}
}

// ErrNoModel is returned by Available when no provider is configured.
var ErrNoModel = errors.New("GEMINI_API_KEY not configured, please set the environment variable")

// Available reports whether a model is configured.
func (g *Generator) Available() error {
	if g.model == nil {
		return ErrNoModel
	}
	return nil
}

// Generate asks the model for code answering question over datasets.
func (g *Generator) Generate(ctx context.Context, question, language string, datasets []Dataset) Generation {
	if err := g.Available(); err != nil {
		return Generation{Err: err}
	}

	prompt := BuildPrompt(question, language, datasets)

	text, err := g.model.Generate(ctx, prompt)
	if err != nil {
		g.log.WithError(err).WithField("language", language).Warn("model call failed, returning fallback code")
		return Generation{Code: FallbackCode(language, err.Error()), Fallback: true, Err: err}
	}

	return Generation{Code: CleanResponse(text, language)}
}
