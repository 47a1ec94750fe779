// Package validation runs the three-stage pipeline (syntax, tests, AI
// logic review) over a codebase and produces a structured report.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/ai"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/config"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Stage names as they appear in reports.
const (
	StageSyntax  = "syntax"
	StageTest    = "tests"
	StageAILogic = "ai_logic"
)

// Pipeline executes the validation stages in fixed order. Stages are
// strictly sequential; parallelism happens only inside a stage.
type Pipeline struct {
	registry *provider.Registry
	cfg      *config.Config
	backend  ai.Backend

	// requirements feed the AI logic prompt; may be empty.
	requirements []types.Requirement
}

// New creates a pipeline. backend may be nil, in which case the AI stage
// reports itself skipped.
func New(registry *provider.Registry, cfg *config.Config, backend ai.Backend) *Pipeline {
	return &Pipeline{registry: registry, cfg: cfg, backend: backend}
}

// WithRequirements attaches the requirement set the AI stage judges
// the implementation against.
func (p *Pipeline) WithRequirements(reqs []types.Requirement) *Pipeline {
	p.requirements = reqs
	return p
}

type stage struct {
	name    string
	enabled bool
	run     func(ctx context.Context, root string, meta *types.ProjectMetadata) types.StepResult
}

// Run executes every enabled stage against the codebase and returns the
// finalized report. Step results are appended in stage order; once a
// later stage starts, earlier results are never edited.
func (p *Pipeline) Run(ctx context.Context, codebasePath, metadataPath string, meta *types.ProjectMetadata) *types.ValidationReport {
	report := &types.ValidationReport{
		ID:           uuid.NewString(),
		CodebasePath: codebasePath,
		MetadataPath: metadataPath,
		Timestamp:    time.Now().UTC(),
	}

	stages := []stage{
		{StageSyntax, p.cfg.EnableSyntaxValidation, p.runSyntaxStage},
		{StageTest, p.cfg.EnableTestValidation, p.runTestStage},
		{StageAILogic, p.cfg.EnableAIValidation, p.runAIStage},
	}

	halted := false
	for _, s := range stages {
		switch {
		case !s.enabled:
			report.AddStepResult(skippedStep(s.name, "disabled by configuration"))
			continue
		case halted:
			report.AddStepResult(skippedStep(s.name, "upstream failure"))
			continue
		}

		slog.Info("running validation stage", "stage", s.name)
		start := time.Now()
		result := s.run(ctx, codebasePath, meta)
		result.StepName = s.name
		result.ExecutionTime = time.Since(start).Seconds()
		report.AddStepResult(result)
		slog.Info("stage finished",
			"stage", s.name,
			"status", result.Status,
			"problems", len(result.Problems))

		if p.cfg.StopOnFirstFailure &&
			(result.Status == types.StatusInvalid || result.Status == types.StatusError) {
			halted = true
		}
	}

	report.Finalize()
	return report
}

// skippedStep builds a skipped result carrying the reason in metadata, so
// the report always distinguishes "failed" from "could not be checked".
func skippedStep(name, reason string) types.StepResult {
	return types.StepResult{
		StepName: name,
		Status:   types.StatusSkipped,
		Problems: []types.ValidationProblem{},
		Metadata: map[string]any{"reason": reason},
	}
}

func errorStep(format string, args ...any) types.StepResult {
	return types.StepResult{
		Status: types.StatusError,
		Problems: []types.ValidationProblem{{
			Severity: types.SeverityError,
			Message:  fmt.Sprintf(format, args...),
		}},
	}
}
