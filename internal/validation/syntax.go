package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/metadata"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// runSyntaxStage checks every resolvable file with its provider's syntax
// checker. Files are processed in parallel with per-file result slots and
// merged in path order afterwards, so the problem list is deterministic.
// Files no provider claims, or whose provider has no checker, are not
// counted in files_checked and produce no problems.
func (p *Pipeline) runSyntaxStage(ctx context.Context, root string, _ *types.ProjectMetadata) types.StepResult {
	paths, err := metadata.CollectFiles(root, p.cfg.IncludePatterns, p.cfg.ExcludePatterns)
	if err != nil {
		return errorStep("enumerating files: %v", err)
	}

	type slot struct {
		checked  bool
		problems []types.ValidationProblem
	}
	slots := make([]slot, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			// A misbehaving checker must cost one file, not the stage.
			defer func() {
				if r := recover(); r != nil {
					slots[i].checked = true
					slots[i].problems = []types.ValidationProblem{{
						Severity: types.SeverityError,
						Message:  fmt.Sprintf("syntax check panicked: %v", r),
						FilePath: rel,
					}}
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			checker, ok := p.registry.Resolve(rel).(provider.SyntaxChecker)
			if !ok {
				return nil
			}
			content, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				slots[i].checked = true
				slots[i].problems = []types.ValidationProblem{{
					Severity: types.SeverityError,
					Message:  fmt.Sprintf("could not read file: %v", err),
					FilePath: rel,
				}}
				return nil
			}
			slots[i].checked = true
			slots[i].problems = checker.CheckSyntax(rel, content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errorStep("syntax stage interrupted: %v", err)
	}

	result := types.StepResult{
		Status:   types.StatusValid,
		Problems: []types.ValidationProblem{},
	}
	filesChecked := 0
	filesWithErrors := 0
	for _, s := range slots {
		if !s.checked {
			continue
		}
		filesChecked++
		hadError := false
		for _, problem := range s.problems {
			result.AddProblem(problem)
			if problem.Severity == types.SeverityError {
				hadError = true
			}
		}
		if hadError {
			filesWithErrors++
		}
	}
	if filesWithErrors > 0 {
		result.Status = types.StatusInvalid
	}
	result.Metadata = map[string]any{
		"files_checked":     filesChecked,
		"files_with_errors": filesWithErrors,
	}
	return result
}
