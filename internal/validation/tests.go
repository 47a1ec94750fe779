package validation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/metadata"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// runTestStage discovers test files, groups them by provider, and runs
// each provider's test runner bounded by the configured timeout. A
// timeout is inconclusive rather than proof of a defect, so it yields
// status error, not invalid. No discoverable tests or no runner in scope
// yields skipped.
func (p *Pipeline) runTestStage(ctx context.Context, root string, _ *types.ProjectMetadata) types.StepResult {
	testFiles, err := p.discoverTestFiles(root)
	if err != nil {
		return errorStep("discovering test files: %v", err)
	}
	if len(testFiles) == 0 {
		return skippedStep(StageTest, "no test files discovered")
	}

	// Group discovered files by the provider that claims them, keeping
	// only providers that actually run tests.
	byLanguage := make(map[string][]string)
	runners := make(map[string]provider.TestRunner)
	for _, rel := range testFiles {
		prov := p.registry.Resolve(rel)
		if prov == nil {
			continue
		}
		runner, ok := prov.(provider.TestRunner)
		if !ok {
			continue
		}
		lang := prov.Language()
		byLanguage[lang] = append(byLanguage[lang], rel)
		runners[lang] = runner
	}
	if len(byLanguage) == 0 {
		return skippedStep(StageTest, "no test runner available for discovered test files")
	}

	result := types.StepResult{
		Status:   types.StatusValid,
		Problems: []types.ValidationProblem{},
	}
	totalPassed, totalFailed := 0, 0
	stageErrored := false

	for _, lang := range sortedKeys(byLanguage) {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TestTimeout)*time.Second)
		runResult, err := runners[lang].RunTests(runCtx, root, byLanguage[lang])
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				stageErrored = true
				result.AddProblem(types.ValidationProblem{
					Severity: types.SeverityError,
					Message:  fmt.Sprintf("test execution timed out after %ds", p.cfg.TestTimeout),
				})
				continue
			}
			stageErrored = true
			result.AddProblem(types.ValidationProblem{
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("%s test run failed to complete: %v", lang, err),
			})
			continue
		}

		totalPassed += runResult.Passed
		totalFailed += runResult.Failed
		for _, problem := range runResult.Problems {
			result.AddProblem(problem)
		}
	}

	switch {
	case totalFailed > 0:
		result.Status = types.StatusInvalid
	case stageErrored:
		result.Status = types.StatusError
	default:
		result.Status = types.StatusValid
	}
	result.Metadata = map[string]any{
		"test_files":   len(testFiles),
		"tests_passed": totalPassed,
		"tests_failed": totalFailed,
	}
	return result
}

// discoverTestFiles returns files matching the test name patterns, plus
// every provider-resolvable file inside the configured test directories.
func (p *Pipeline) discoverTestFiles(root string) ([]string, error) {
	paths, err := metadata.CollectFiles(root, p.cfg.IncludePatterns, p.cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	var tests []string
	for _, rel := range paths {
		if p.isTestFile(rel) {
			tests = append(tests, rel)
		}
	}
	return tests, nil
}

func (p *Pipeline) isTestFile(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range p.cfg.TestPatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	for _, dir := range p.cfg.TestDirectories {
		if rel == dir {
			continue
		}
		prefix := dir + "/"
		if strings.HasPrefix(rel, prefix) || strings.Contains(rel, "/"+prefix) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
