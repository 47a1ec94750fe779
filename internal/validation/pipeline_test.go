package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/ai"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/config"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// stubProvider is a fully controllable provider with invocation counters,
// used to verify which stages actually execute.
type stubProvider struct {
	syntaxProblems []types.ValidationProblem
	testResult     *provider.TestRunResult
	testErr        error
	blockOnCtx     bool

	syntaxCalls int
	testCalls   int
}

func (s *stubProvider) Language() string     { return "stub" }
func (s *stubProvider) Extensions() []string { return []string{".py"} }

func (s *stubProvider) CheckSyntax(path string, content []byte) []types.ValidationProblem {
	s.syntaxCalls++
	return s.syntaxProblems
}

func (s *stubProvider) RunTests(ctx context.Context, root string, testFiles []string) (*provider.TestRunResult, error) {
	s.testCalls++
	if s.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.testResult, s.testErr
}

// stubReviewBackend returns one canned AI review response.
type stubReviewBackend struct {
	response string
	err      error
	calls    int
}

func (s *stubReviewBackend) Complete(ctx context.Context, req ai.Request) (string, error) {
	s.calls++
	return s.response, s.err
}

func (s *stubReviewBackend) Model() string { return "stub-review" }

func stubRegistry(t *testing.T, p provider.Provider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	if err := reg.Register(p); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.EnableAIValidation = false
	return cfg
}

func stepByName(t *testing.T, report *types.ValidationReport, name string) types.StepResult {
	t.Helper()
	for _, step := range report.StepResults {
		if step.StepName == name {
			return step
		}
	}
	t.Fatalf("report has no step %q (steps: %d)", name, len(report.StepResults))
	return types.StepResult{}
}

// Scenario: an unterminated bracket makes the syntax stage invalid with a
// located problem; the whole report still gets produced with all stages.
func TestPipelineUnterminatedBracket(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "broken.py", "def f(:\n    return [1, 2\n")

	reg := provider.NewRegistry()
	if err := reg.Register(provider.NewPythonProvider()); err != nil {
		t.Fatal(err)
	}
	report := New(reg, quietConfig(), nil).Run(context.Background(), root, "", nil)

	syntax := stepByName(t, report, StageSyntax)
	if syntax.Status != types.StatusInvalid {
		t.Fatalf("syntax status = %s, want invalid", syntax.Status)
	}
	found := false
	for _, problem := range syntax.Problems {
		if problem.Severity == types.SeverityError && problem.FilePath == "broken.py" && problem.LineNumber > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error problem with path and line, got %v", syntax.Problems)
	}
	if len(report.StepResults) != 3 {
		t.Errorf("all stages must be recorded, got %d", len(report.StepResults))
	}
	if report.IsValid {
		t.Error("is_valid must be false")
	}
	if report.OverallStatus != types.StatusInvalid {
		t.Errorf("overall = %s, want invalid", report.OverallStatus)
	}
}

// Scenario: valid syntax, passing tests, AI disabled.
func TestPipelinePassingRun(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib.py", "x = 1\n")
	writeSource(t, root, "test_lib.py", "y = 2\n")

	stub := &stubProvider{
		testResult: &provider.TestRunResult{Passed: 3, Failed: 0},
	}
	report := New(stubRegistry(t, stub), quietConfig(), nil).Run(context.Background(), root, "", nil)

	if report.OverallStatus != types.StatusValid || !report.IsValid {
		t.Fatalf("overall = %s, is_valid = %v", report.OverallStatus, report.IsValid)
	}
	aiStep := stepByName(t, report, StageAILogic)
	if aiStep.Status != types.StatusSkipped {
		t.Errorf("ai stage = %s, want skipped", aiStep.Status)
	}
	tests := stepByName(t, report, StageTest)
	if tests.Status != types.StatusValid {
		t.Errorf("test stage = %s, want valid", tests.Status)
	}
	if tests.Metadata["tests_passed"] != 3 {
		t.Errorf("tests_passed = %v", tests.Metadata["tests_passed"])
	}
}

// Scenario: stop_on_first_failure halts after the syntax failure and the
// later stages are never invoked, only recorded as skipped.
func TestPipelineStopOnFirstFailure(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "bad.py", "x = (\n")
	writeSource(t, root, "test_bad.py", "y = 1\n")

	stub := &stubProvider{
		syntaxProblems: []types.ValidationProblem{{
			Severity: types.SeverityError,
			Message:  "unbalanced parenthesis",
			FilePath: "bad.py",
		}},
		testResult: &provider.TestRunResult{Passed: 1},
	}
	backend := &stubReviewBackend{response: `{"is_valid": true, "problems": []}`}

	cfg := config.Default()
	cfg.StopOnFirstFailure = true
	report := New(stubRegistry(t, stub), cfg, backend).Run(context.Background(), root, "", nil)

	for _, name := range []string{StageTest, StageAILogic} {
		step := stepByName(t, report, name)
		if step.Status != types.StatusSkipped {
			t.Errorf("%s status = %s, want skipped", name, step.Status)
		}
		if step.Metadata["reason"] != "upstream failure" {
			t.Errorf("%s reason = %v, want upstream failure", name, step.Metadata["reason"])
		}
	}
	if stub.testCalls != 0 {
		t.Errorf("test runner was invoked %d times, want 0", stub.testCalls)
	}
	if backend.calls != 0 {
		t.Errorf("ai backend was invoked %d times, want 0", backend.calls)
	}
	if report.OverallStatus != types.StatusInvalid {
		t.Errorf("overall = %s, want invalid", report.OverallStatus)
	}
}

// Scenario: test runner exceeding the timeout makes the stage error, not
// invalid, and the problem names the configured timeout.
func TestPipelineTestTimeout(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "test_slow.py", "y = 1\n")

	stub := &stubProvider{blockOnCtx: true}
	cfg := quietConfig()
	cfg.TestTimeout = 1
	report := New(stubRegistry(t, stub), cfg, nil).Run(context.Background(), root, "", nil)

	tests := stepByName(t, report, StageTest)
	if tests.Status != types.StatusError {
		t.Fatalf("test stage = %s, want error", tests.Status)
	}
	wantMsg := "test execution timed out after 1s"
	if len(tests.Problems) != 1 || tests.Problems[0].Message != wantMsg {
		t.Errorf("problems = %v, want one %q", tests.Problems, wantMsg)
	}
	if report.OverallStatus != types.StatusError {
		t.Errorf("overall = %s, want error", report.OverallStatus)
	}
	if report.IsValid {
		t.Error("is_valid must be false on error")
	}
}

// A zero-file codebase is vacuously valid; no stage may error.
func TestPipelineEmptyCodebase(t *testing.T) {
	report := New(provider.Default(), quietConfig(), nil).Run(context.Background(), t.TempDir(), "", nil)

	if report.OverallStatus != types.StatusValid {
		t.Fatalf("overall = %s, want valid", report.OverallStatus)
	}
	for _, step := range report.StepResults {
		if step.Status == types.StatusError || step.Status == types.StatusInvalid {
			t.Errorf("stage %s = %s on empty tree", step.StepName, step.Status)
		}
	}
}

// Running the syntax stage twice on unchanged input yields the same
// problems in the same order.
func TestPipelineSyntaxIdempotent(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = [1, 2\n")
	writeSource(t, root, "b.py", "def g(:\n    pass\n")

	reg := provider.NewRegistry()
	if err := reg.Register(provider.NewPythonProvider()); err != nil {
		t.Fatal(err)
	}
	pipe := New(reg, quietConfig(), nil)

	first := stepByName(t, pipe.Run(context.Background(), root, "", nil), StageSyntax)
	for i := 0; i < 3; i++ {
		again := stepByName(t, pipe.Run(context.Background(), root, "", nil), StageSyntax)
		if len(again.Problems) != len(first.Problems) {
			t.Fatalf("problem count changed: %d vs %d", len(again.Problems), len(first.Problems))
		}
		for j := range again.Problems {
			if again.Problems[j] != first.Problems[j] {
				t.Fatalf("problem %d changed: %+v vs %+v", j, again.Problems[j], first.Problems[j])
			}
		}
	}
}

// Test files whose provider has no test runner leave the stage skipped,
// never errored: JavaScript parses and syntax-checks but cannot run tests.
func TestPipelineSkipsTestsWithoutRunner(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "store.js", "const x = 1;\n")
	writeSource(t, root, "foo.test.js", "const y = 2;\n")

	reg := provider.NewRegistry()
	if err := reg.Register(provider.NewJavaScriptProvider()); err != nil {
		t.Fatal(err)
	}
	report := New(reg, quietConfig(), nil).Run(context.Background(), root, "", nil)

	tests := stepByName(t, report, StageTest)
	if tests.Status != types.StatusSkipped {
		t.Fatalf("test stage = %s, want skipped", tests.Status)
	}
	if tests.Metadata["reason"] != "no test runner available for discovered test files" {
		t.Errorf("reason = %v", tests.Metadata["reason"])
	}
	if report.OverallStatus != types.StatusValid {
		t.Errorf("overall = %s, want valid (skip is neutral)", report.OverallStatus)
	}
}

func TestPipelineFailedTestsAreInvalid(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "test_x.py", "y = 1\n")

	stub := &stubProvider{
		testResult: &provider.TestRunResult{
			Passed: 2,
			Failed: 1,
			Problems: []types.ValidationProblem{{
				Severity: types.SeverityError,
				Message:  "test_x::test_fails failed: assert 1 == 2",
			}},
		},
	}
	report := New(stubRegistry(t, stub), quietConfig(), nil).Run(context.Background(), root, "", nil)

	tests := stepByName(t, report, StageTest)
	if tests.Status != types.StatusInvalid {
		t.Fatalf("test stage = %s, want invalid", tests.Status)
	}
	if report.OverallStatus != types.StatusInvalid {
		t.Errorf("overall = %s, want invalid", report.OverallStatus)
	}
}

func TestPipelineAIStageParsesVerdict(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib.py", "x = 1\n")

	stub := &stubProvider{}
	backend := &stubReviewBackend{response: "```json\n" + `{"is_valid": false, "problems": [{"severity": "error", "message": "requirement REQ-1 not satisfied", "file_path": "lib.py"}]}` + "\n```"}

	cfg := config.Default()
	cfg.EnableTestValidation = false
	pipe := New(stubRegistry(t, stub), cfg, backend).
		WithRequirements([]types.Requirement{{ID: "REQ-1", Description: "do the thing"}})
	report := pipe.Run(context.Background(), root, "", nil)

	aiStep := stepByName(t, report, StageAILogic)
	if aiStep.Status != types.StatusInvalid {
		t.Fatalf("ai stage = %s, want invalid", aiStep.Status)
	}
	if len(aiStep.Problems) != 1 || aiStep.Problems[0].FilePath != "lib.py" {
		t.Errorf("problems = %v", aiStep.Problems)
	}
}

func TestPipelineAIStageMalformedResponse(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "lib.py", "x = 1\n")

	backend := &stubReviewBackend{response: "Everything looks fine to me!"}
	cfg := config.Default()
	cfg.EnableTestValidation = false
	report := New(stubRegistry(t, &stubProvider{}), cfg, backend).Run(context.Background(), root, "", nil)

	aiStep := stepByName(t, report, StageAILogic)
	if aiStep.Status != types.StatusError {
		t.Fatalf("ai stage = %s, want error (never silently valid)", aiStep.Status)
	}
}

func TestPipelineDisabledStages(t *testing.T) {
	cfg := config.Default()
	cfg.EnableSyntaxValidation = false
	cfg.EnableTestValidation = false
	cfg.EnableAIValidation = false

	report := New(provider.Default(), cfg, nil).Run(context.Background(), t.TempDir(), "", nil)
	if len(report.StepResults) != 3 {
		t.Fatalf("disabled stages must still be recorded, got %d", len(report.StepResults))
	}
	for _, step := range report.StepResults {
		if step.Status != types.StatusSkipped {
			t.Errorf("%s = %s, want skipped", step.StepName, step.Status)
		}
		if step.Metadata["reason"] != "disabled by configuration" {
			t.Errorf("%s reason = %v", step.StepName, step.Metadata["reason"])
		}
	}
	if report.OverallStatus != types.StatusValid {
		t.Errorf("overall = %s, want valid (nothing failed)", report.OverallStatus)
	}
}

// Aggregation property: invalid wins over error, error over valid.
func TestFinalizePrecedence(t *testing.T) {
	tests := []struct {
		statuses []types.Status
		want     types.Status
	}{
		{[]types.Status{types.StatusValid, types.StatusValid}, types.StatusValid},
		{[]types.Status{types.StatusValid, types.StatusError}, types.StatusError},
		{[]types.Status{types.StatusError, types.StatusInvalid}, types.StatusInvalid},
		{[]types.Status{types.StatusSkipped, types.StatusSkipped}, types.StatusValid},
		{[]types.Status{types.StatusInvalid, types.StatusValid}, types.StatusInvalid},
	}
	for i, tt := range tests {
		report := &types.ValidationReport{}
		for j, st := range tt.statuses {
			report.AddStepResult(types.StepResult{StepName: fmt.Sprintf("s%d", j), Status: st})
		}
		report.Finalize()
		if report.OverallStatus != tt.want {
			t.Errorf("case %d: overall = %s, want %s", i, report.OverallStatus, tt.want)
		}
		if report.IsValid != (tt.want == types.StatusValid) {
			t.Errorf("case %d: is_valid = %v", i, report.IsValid)
		}
	}
}
