package metadata

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newTestExtractor(t *testing.T, opts Options) *Extractor {
	t.Helper()
	reg := provider.NewRegistry()
	if err := reg.Register(provider.NewPythonProvider()); err != nil {
		t.Fatalf("register python: %v", err)
	}
	if err := reg.Register(provider.NewGoProvider()); err != nil {
		t.Fatalf("register go: %v", err)
	}
	return New(reg, opts)
}

func TestExtractBasicProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", `import os
import helpers

def main():
    return 0

if __name__ == "__main__":
    main()
`)
	writeFile(t, root, "helpers.py", `def add(a, b):
    return a + b
`)

	ex := newTestExtractor(t, Options{
		EntryPointNames: []string{"main"},
		EntryPointFiles: []string{"app"},
	})
	doc, warnings, err := ex.Extract(context.Background(), root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(doc.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(doc.Files))
	}
	if doc.Files[0].Path != "app.py" || doc.Files[1].Path != "helpers.py" {
		t.Errorf("files not in lexical order: %s, %s", doc.Files[0].Path, doc.Files[1].Path)
	}
	if len(doc.Languages) != 1 || doc.Languages[0] != "python" {
		t.Errorf("unexpected languages: %v", doc.Languages)
	}

	// helpers resolves to a project file; os is external.
	if len(doc.Dependencies.Internal) != 1 || doc.Dependencies.Internal[0] != "helpers" {
		t.Errorf("internal deps = %v, want [helpers]", doc.Dependencies.Internal)
	}
	if len(doc.Dependencies.External) != 1 || doc.Dependencies.External[0] != "os" {
		t.Errorf("external deps = %v, want [os]", doc.Dependencies.External)
	}

	// main() in app.py plus the __main__ guard.
	if len(doc.EntryPoints) != 2 {
		t.Fatalf("expected 2 entry points, got %v", doc.EntryPoints)
	}
	if doc.EntryPoints[0].Callable != "main" || doc.EntryPoints[1].Callable != "__main__" {
		t.Errorf("unexpected entry points: %v", doc.EntryPoints)
	}

	if doc.Metrics.TotalFiles != 2 || doc.Metrics.TotalFunctions != 2 {
		t.Errorf("unexpected metrics: %+v", doc.Metrics)
	}
}

func TestExtractExcludeWinsOverInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.py", "def f():\n    pass\n")
	writeFile(t, root, "skip_me.py", "def g():\n    pass\n")
	writeFile(t, root, "vendor/dep.py", "def h():\n    pass\n")

	ex := newTestExtractor(t, Options{
		IncludePatterns: []string{"*.py"},
		ExcludePatterns: []string{"skip_*", "vendor"},
	})
	doc, _, err := ex.Extract(context.Background(), root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Files) != 1 || doc.Files[0].Path != "keep.py" {
		t.Fatalf("expected only keep.py, got %v", filePaths(doc.Files))
	}
}

func TestExtractSkipsUnresolvedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "not code")
	writeFile(t, root, "lib.py", "def f():\n    pass\n")

	ex := newTestExtractor(t, Options{})
	doc, warnings, err := ex.Extract(context.Background(), root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(doc.Files) != 1 || doc.Files[0].Path != "lib.py" {
		t.Fatalf("expected only lib.py, got %v", filePaths(doc.Files))
	}
}

func TestExtractEmptyTree(t *testing.T) {
	root := t.TempDir()
	ex := newTestExtractor(t, Options{})
	doc, warnings, err := ex.Extract(context.Background(), root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(warnings) != 0 || len(doc.Files) != 0 {
		t.Fatalf("expected empty document, got %d files", len(doc.Files))
	}
	if doc.Files == nil || doc.Languages == nil || doc.EntryPoints == nil {
		t.Error("collections should be empty, not nil")
	}
	if doc.Metrics.TotalFiles != 0 {
		t.Errorf("metrics should be zero: %+v", doc.Metrics)
	}
}

func TestExtractNonexistentRoot(t *testing.T) {
	ex := newTestExtractor(t, Options{})
	if _, _, err := ex.Extract(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestExtractDeterministic(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.py", "a.py", "m.py"} {
		writeFile(t, root, name, "import os\n\ndef f():\n    pass\n")
	}

	ex := newTestExtractor(t, Options{Concurrency: 3})
	first, _, err := ex.Extract(context.Background(), root)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := ex.Extract(context.Background(), root)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if got, want := filePaths(again.Files), filePaths(first.Files); !equalStrings(got, want) {
			t.Fatalf("file order changed: %v vs %v", got, want)
		}
		if !sort.StringsAreSorted(filePaths(again.Files)) {
			t.Fatalf("files not sorted: %v", filePaths(again.Files))
		}
	}
}

func filePaths(files []types.FileMetadata) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
