package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

func sampleReport() *types.ValidationReport {
	r := &types.ValidationReport{
		ID:           "run-1",
		CodebasePath: "/tmp/project",
		MetadataPath: "/tmp/metadata.json",
		Timestamp:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	r.AddStepResult(types.StepResult{
		StepName:      "syntax",
		Status:        types.StatusInvalid,
		ExecutionTime: 0.5,
		Problems: []types.ValidationProblem{
			{Severity: types.SeverityError, Message: "unbalanced bracket", FilePath: "a.py", LineNumber: 3},
			{Severity: types.SeverityWarning, Message: "mixed indentation", FilePath: "a.py"},
		},
		Metadata: map[string]any{"files_checked": 2},
	})
	r.AddStepResult(types.StepResult{
		StepName: "tests",
		Status:   types.StatusSkipped,
		Metadata: map[string]any{"reason": "no test files discovered"},
	})
	r.AddStepResult(types.StepResult{
		StepName: "ai_logic",
		Status:   types.StatusSkipped,
		Metadata: map[string]any{"reason": "no ai backend configured"},
	})
	r.Finalize()
	return r
}

func TestBuildMaterializesCounts(t *testing.T) {
	doc := Build(sampleReport())

	if doc.TotalErrorCount != 1 || doc.TotalWarningCount != 1 {
		t.Errorf("totals = %d/%d, want 1/1", doc.TotalErrorCount, doc.TotalWarningCount)
	}
	if doc.StepResults[0].ErrorCount != 1 || doc.StepResults[0].WarningCount != 1 {
		t.Errorf("step counts = %d/%d", doc.StepResults[0].ErrorCount, doc.StepResults[0].WarningCount)
	}
	if doc.OverallStatus != types.StatusInvalid || doc.IsValid {
		t.Errorf("status = %s, is_valid = %v", doc.OverallStatus, doc.IsValid)
	}
}

func TestBuildPreservesStageOrder(t *testing.T) {
	doc := Build(sampleReport())
	want := []string{"syntax", "tests", "ai_logic"}
	if len(doc.StepResults) != len(want) {
		t.Fatalf("got %d steps", len(doc.StepResults))
	}
	for i, name := range want {
		if doc.StepResults[i].StepName != name {
			t.Errorf("step %d = %s, want %s", i, doc.StepResults[i].StepName, name)
		}
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	doc := Build(sampleReport())
	data, err := Render(doc, "json")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("json output must end with a newline")
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if decoded.TotalErrorCount != doc.TotalErrorCount {
		t.Errorf("total_error_count lost in encoding")
	}
}

func TestRenderYAMLCarriesSameStructure(t *testing.T) {
	doc := Build(sampleReport())
	data, err := Render(doc, "yaml")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var decoded Document
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid yaml: %v", err)
	}
	if decoded.OverallStatus != doc.OverallStatus || len(decoded.StepResults) != len(doc.StepResults) {
		t.Error("yaml rendering diverged from the document")
	}
}

func TestRenderText(t *testing.T) {
	doc := Build(sampleReport())
	data, err := Render(doc, "text")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	text := string(data)
	for _, want := range []string{"invalid", "unbalanced bracket", "a.py:3", "no ai backend configured"} {
		if !strings.Contains(text, want) {
			t.Errorf("text rendering missing %q:\n%s", want, text)
		}
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	if _, err := Render(Build(sampleReport()), "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestSaveWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "validation_report.json")

	if err := Save(Build(sampleReport()), path, "json"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved report is not valid json: %v", err)
	}

	// No temp files may survive.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".report-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}
