package provider

import (
	"strings"
	"testing"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

const pySample = `import os
import sys, json
from collections import defaultdict

def top_level(a, b=3, *args):
    """Adds things together."""
    if a:
        return a
    return b

class Greeter(Base, object):
    """Says hello."""

    def __init__(self, name):
        self.name = name

    def greet(self):
        for _ in range(3):
            print(self.name)

if __name__ == "__main__":
    top_level(1, 2)
`

func TestPythonParseMetadata(t *testing.T) {
	p := NewPythonProvider()
	meta, err := p.ParseMetadata("app.py", []byte(pySample))
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}

	wantImports := []string{"os", "sys", "json", "collections"}
	if len(meta.Imports) != len(wantImports) {
		t.Fatalf("imports = %v, want %v", meta.Imports, wantImports)
	}
	for i, imp := range wantImports {
		if meta.Imports[i] != imp {
			t.Errorf("imports[%d] = %s, want %s", i, meta.Imports[i], imp)
		}
	}

	if len(meta.Functions) != 1 {
		t.Fatalf("functions = %+v, want 1", meta.Functions)
	}
	fn := meta.Functions[0]
	if fn.Name != "top_level" || fn.StartLine != 5 {
		t.Errorf("fn = %+v", fn)
	}
	if len(fn.Args) != 3 || fn.Args[0] != "a" || fn.Args[1] != "b" || fn.Args[2] != "args" {
		t.Errorf("args = %v", fn.Args)
	}
	if fn.Docstring != "Adds things together." {
		t.Errorf("docstring = %q", fn.Docstring)
	}
	if fn.Complexity < 2 {
		t.Errorf("complexity = %d, want >= 2 (has a branch)", fn.Complexity)
	}

	if len(meta.Classes) != 1 {
		t.Fatalf("classes = %+v, want 1", meta.Classes)
	}
	cls := meta.Classes[0]
	if cls.Name != "Greeter" {
		t.Errorf("class name = %s", cls.Name)
	}
	if len(cls.BaseClasses) != 2 || cls.BaseClasses[0] != "Base" {
		t.Errorf("bases = %v", cls.BaseClasses)
	}
	if len(cls.Methods) != 2 || cls.Methods[0].Name != "__init__" || cls.Methods[1].Name != "greet" {
		t.Errorf("methods = %+v", cls.Methods)
	}

	if !meta.HasMainGuard {
		t.Error("main guard not detected")
	}
}

func TestPythonCheckSyntaxClean(t *testing.T) {
	p := NewPythonProvider()
	problems := p.CheckSyntax("ok.py", []byte(pySample))
	for _, problem := range problems {
		if problem.Severity == types.SeverityError {
			t.Errorf("clean file produced error: %+v", problem)
		}
	}
}

func TestPythonCheckSyntaxUnterminatedBracket(t *testing.T) {
	p := NewPythonProvider()
	src := "values = [1, 2, 3\nprint(values)\n"
	problems := p.CheckSyntax("bad.py", []byte(src))

	found := false
	for _, problem := range problems {
		if problem.Severity == types.SeverityError &&
			problem.LineNumber == 1 &&
			strings.Contains(problem.Message, "'['") {
			found = true
		}
	}
	if !found {
		t.Errorf("unterminated bracket not reported at opening line: %+v", problems)
	}
}

func TestPythonCheckSyntaxMissingColon(t *testing.T) {
	p := NewPythonProvider()
	src := "def broken(x)\n    return x\n"
	problems := p.CheckSyntax("bad.py", []byte(src))

	found := false
	for _, problem := range problems {
		if strings.Contains(problem.Message, "missing trailing ':'") && problem.LineNumber == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("missing colon not reported: %+v", problems)
	}
}

func TestPythonCheckSyntaxIgnoresCommentsAndStrings(t *testing.T) {
	p := NewPythonProvider()
	src := "# unbalanced ( in comment\ns = \"also ( unbalanced [\"\nd = '''\nmultiline ( text [\n'''\n"
	problems := p.CheckSyntax("ok.py", []byte(src))
	for _, problem := range problems {
		if problem.Severity == types.SeverityError {
			t.Errorf("delimiters inside comments/strings reported: %+v", problem)
		}
	}
}

func TestPythonCheckSyntaxColumnAfterString(t *testing.T) {
	p := NewPythonProvider()
	src := "x = \"abc\" + (1\n"
	problems := p.CheckSyntax("bad.py", []byte(src))

	found := false
	for _, problem := range problems {
		if strings.Contains(problem.Message, "'('") {
			found = true
			if problem.LineNumber != 1 || problem.Column != 13 {
				t.Errorf("bracket after string literal at %d:%d, want 1:13",
					problem.LineNumber, problem.Column)
			}
		}
	}
	if !found {
		t.Errorf("unterminated bracket not reported: %+v", problems)
	}
}

func TestPythonCheckSyntaxIdempotent(t *testing.T) {
	p := NewPythonProvider()
	src := "x = (\ny = [1,\n"
	first := p.CheckSyntax("a.py", []byte(src))
	second := p.CheckSyntax("a.py", []byte(src))
	if len(first) != len(second) {
		t.Fatalf("problem counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("problem %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPythonBuildPrompt(t *testing.T) {
	p := NewPythonProvider()
	prompt := p.BuildPrompt(types.Requirement{ID: "REQ-9", Description: "parse dates"}, "app.py:\n  def main()\n")
	for _, want := range []string{"REQ-9", "parse dates", "```", "python", "# FILE:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
