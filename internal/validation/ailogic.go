package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/ai"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

const aiReviewSystemPrompt = "You are a rigorous code reviewer. " +
	"Judge whether the implementation satisfies each requirement and flag " +
	"logical errors, unhandled edge cases, and security concerns. " +
	"Respond ONLY with JSON of the shape " +
	`{"is_valid": bool, "problems": [{"severity": "error|warning|info", ` +
	`"message": str, "file_path": str, "line_number": int, "suggestion": str}]}.`

// aiVerdict is the JSON shape the review response must parse into.
type aiVerdict struct {
	IsValid  bool `json:"is_valid"`
	Problems []struct {
		Severity   string `json:"severity"`
		Message    string `json:"message"`
		FilePath   string `json:"file_path"`
		LineNumber int    `json:"line_number"`
		Suggestion string `json:"suggestion"`
	} `json:"problems"`
}

// runAIStage asks the backend to review the implementation against the
// requirement set. No backend means skipped, never failed. A response
// that does not parse as the expected shape is a stage error; it is
// never silently treated as valid.
func (p *Pipeline) runAIStage(ctx context.Context, root string, meta *types.ProjectMetadata) types.StepResult {
	if p.backend == nil {
		return skippedStep(StageAILogic, "no ai backend configured")
	}

	prompt := p.buildReviewPrompt(meta)
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.AITimeout)*time.Second)
	defer cancel()

	response, err := p.backend.Complete(reqCtx, ai.Request{
		SystemPrompt: aiReviewSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    p.cfg.AIMaxTokens,
		Temperature:  p.cfg.AITemperature,
	})
	if err != nil {
		return errorStep("ai review failed: %v", err)
	}

	var verdict aiVerdict
	if err := json.Unmarshal([]byte(ai.StripCodeFence(response)), &verdict); err != nil {
		return errorStep("ai response did not parse as review JSON: %v", err)
	}

	result := types.StepResult{
		Status:   types.StatusValid,
		Problems: []types.ValidationProblem{},
		Metadata: map[string]any{
			"model":        p.backend.Model(),
			"requirements": len(p.requirements),
		},
	}
	for _, problem := range verdict.Problems {
		severity := problem.Severity
		switch severity {
		case types.SeverityError, types.SeverityWarning, types.SeverityInfo:
		default:
			severity = types.SeverityWarning
		}
		result.AddProblem(types.ValidationProblem{
			Severity:   severity,
			Message:    problem.Message,
			FilePath:   problem.FilePath,
			LineNumber: problem.LineNumber,
			Suggestion: problem.Suggestion,
		})
	}
	if !verdict.IsValid {
		result.Status = types.StatusInvalid
		if result.ErrorCount() == 0 {
			result.AddProblem(types.ValidationProblem{
				Severity: types.SeverityError,
				Message:  "ai review judged the implementation invalid",
			})
		}
	}
	return result
}

// buildReviewPrompt combines per-file signatures from the metadata with
// the full requirement list.
func (p *Pipeline) buildReviewPrompt(meta *types.ProjectMetadata) string {
	var sb strings.Builder
	sb.WriteString("Code structure:\n")
	if meta != nil {
		for _, f := range meta.Files {
			fmt.Fprintf(&sb, "%s (%s):\n", f.Path, f.Language)
			for _, fn := range f.Functions {
				fmt.Fprintf(&sb, "  %s(%s)\n", fn.Name, strings.Join(fn.Args, ", "))
			}
			for _, cls := range f.Classes {
				fmt.Fprintf(&sb, "  class %s:\n", cls.Name)
				for _, m := range cls.Methods {
					fmt.Fprintf(&sb, "    %s(%s)\n", m.Name, strings.Join(m.Args, ", "))
				}
			}
		}
	}
	sb.WriteString("\nRequirements:\n")
	for _, req := range p.requirements {
		fmt.Fprintf(&sb, "- %s: %s\n", req.ID, req.Description)
	}
	return sb.String()
}
