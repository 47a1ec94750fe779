package provider

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Python patterns
var (
	pyClass     = regexp.MustCompile(`^(\s*)class\s+(\w+)(?:\(([^)]*)\))?\s*:`)
	pyFunc      = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(([^)]*)\)(?:\s*->\s*([^:]+))?\s*:`)
	pyImport    = regexp.MustCompile(`^import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
	pyFromImp   = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+`)
	pyMainGuard = regexp.MustCompile(`^if\s+__name__\s*==\s*["']__main__["']\s*:`)
	pyBranch    = regexp.MustCompile(`\b(if|elif|for|while|except|and|or)\b`)
	pyDefNoCol  = regexp.MustCompile(`^\s*(?:async\s+)?(?:def\s+\w+\s*\([^)]*\)(?:\s*->\s*[^:]+)?|class\s+\w+(?:\([^)]*\))?|if\s.+|elif\s.+|else|for\s.+|while\s.+|try|except.*|finally|with\s.+)\s*$`)

	// pytest output
	pytestFailed  = regexp.MustCompile(`(?m)^FAILED\s+(\S+?)(?:\s+-\s+(.*))?$`)
	pytestErrored = regexp.MustCompile(`(?m)^ERROR\s+(\S+?)(?:\s+-\s+(.*))?$`)
	pytestPassed  = regexp.MustCompile(`(\d+) passed`)
	pytestNFailed = regexp.MustCompile(`(\d+) failed`)
)

// PythonProvider parses, syntax-checks, and runs tests for Python sources.
type PythonProvider struct {
	// Python executable used for test runs.
	python string
}

// NewPythonProvider creates the Python provider.
func NewPythonProvider() *PythonProvider {
	return &PythonProvider{python: "python3"}
}

func (p *PythonProvider) Language() string { return "python" }

func (p *PythonProvider) Extensions() []string { return []string{".py"} }

// ParseMetadata extracts functions, classes, imports, and the __main__
// guard from a Python file using line-based heuristics.
func (p *PythonProvider) ParseMetadata(path string, content []byte) (*types.FileMetadata, error) {
	lines := strings.Split(string(content), "\n")
	meta := &types.FileMetadata{
		Path:     path,
		Language: "python",
	}

	var currentClass *types.ClassInfo
	classIndent := -1

	for idx, line := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentOf(line)

		// Dedent closes the current class scope.
		if currentClass != nil && indent <= classIndent {
			currentClass = nil
			classIndent = -1
		}

		if m := pyImport.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			for _, mod := range strings.Split(m[1], ",") {
				meta.Imports = append(meta.Imports, strings.TrimSpace(mod))
			}
			continue
		}
		if m := pyFromImp.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			meta.Imports = append(meta.Imports, m[1])
			continue
		}

		if pyMainGuard.MatchString(trimmed) && indent == 0 {
			meta.HasMainGuard = true
			continue
		}

		if m := pyClass.FindStringSubmatch(line); m != nil {
			end := blockEnd(lines, idx, indent)
			cls := types.ClassInfo{
				Name:      m[2],
				StartLine: lineNo,
				EndLine:   end,
				Docstring: docstringAfter(lines, idx),
			}
			if m[3] != "" {
				cls.BaseClasses = splitAndTrim(m[3], ",")
			}
			meta.Classes = append(meta.Classes, cls)
			currentClass = &meta.Classes[len(meta.Classes)-1]
			classIndent = indent
			continue
		}

		if m := pyFunc.FindStringSubmatch(line); m != nil {
			end := blockEnd(lines, idx, indent)
			fn := types.FunctionInfo{
				Name:       m[3],
				Args:       parseArgNames(m[4]),
				StartLine:  lineNo,
				EndLine:    end,
				ReturnType: strings.TrimSpace(m[5]),
				Docstring:  docstringAfter(lines, idx),
				Complexity: pythonComplexity(lines, idx, end),
			}
			if currentClass != nil && indent > classIndent {
				currentClass.Methods = append(currentClass.Methods, fn)
			} else {
				meta.Functions = append(meta.Functions, fn)
			}
			continue
		}
	}

	return meta, nil
}

// CheckSyntax runs heuristic syntax checks: delimiter balance, missing
// colons on block headers, and mixed tab/space indentation.
func (p *PythonProvider) CheckSyntax(path string, content []byte) []types.ValidationProblem {
	problems := checkBalance(path, string(content), balanceOptions{
		lineComment:  "#",
		quotes:       []byte{'"', '\''},
		tripleQuotes: true,
	})

	lines := strings.Split(string(content), "\n")
	for idx, line := range lines {
		lineNo := idx + 1
		if pyDefNoCol.MatchString(line) && !strings.HasSuffix(strings.TrimRight(line, " \t"), ":") &&
			!strings.HasSuffix(strings.TrimRight(line, " \t"), "\\") {
			problems = append(problems, types.ValidationProblem{
				Severity:   types.SeverityError,
				Message:    "block statement missing trailing ':'",
				FilePath:   path,
				LineNumber: lineNo,
			})
		}
		ws := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if strings.Contains(ws, " ") && strings.Contains(ws, "\t") {
			problems = append(problems, types.ValidationProblem{
				Severity:   types.SeverityWarning,
				Message:    "mixed tabs and spaces in indentation",
				FilePath:   path,
				LineNumber: lineNo,
			})
		}
	}
	return problems
}

// RunTests invokes pytest over the discovered test files and parses its
// summary into per-test problems. The caller bounds ctx with the test
// timeout; on expiry the subprocess is killed by CommandContext.
func (p *PythonProvider) RunTests(ctx context.Context, root string, testFiles []string) (*TestRunResult, error) {
	args := []string{"-m", "pytest", "-v", "--tb=short"}
	args = append(args, testFiles...)

	cmd := exec.CommandContext(ctx, p.python, args...)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	output := string(out)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &TestRunResult{Output: output}
	if m := pytestPassed.FindStringSubmatch(output); m != nil {
		result.Passed = atoi(m[1])
	}
	if m := pytestNFailed.FindStringSubmatch(output); m != nil {
		result.Failed = atoi(m[1])
	}
	for _, re := range []*regexp.Regexp{pytestFailed, pytestErrored} {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			msg := m[2]
			if msg == "" {
				msg = "test failed"
			}
			result.Problems = append(result.Problems, types.ValidationProblem{
				Severity: types.SeverityError,
				Message:  fmt.Sprintf("%s: %s", m[1], msg),
			})
		}
	}

	// pytest exits non-zero on failures; that is a result, not an error.
	// Anything else (interpreter missing, collection crash with no
	// parseable summary) is a real execution error.
	if err != nil && result.Failed == 0 && len(result.Problems) == 0 && result.Passed == 0 {
		return nil, fmt.Errorf("pytest execution failed: %w (output: %s)", err, firstLine(output))
	}
	return result, nil
}

// BuildPrompt produces the Python generation prompt.
func (p *PythonProvider) BuildPrompt(req types.Requirement, contextExcerpt string) string {
	var sb strings.Builder
	sb.WriteString("Implement the following requirement in Python:\n\n")
	sb.WriteString(fmt.Sprintf("Requirement %s: %s\n\n", req.ID, req.Description))
	if contextExcerpt != "" {
		sb.WriteString("Existing code structure:\n")
		sb.WriteString(contextExcerpt)
		sb.WriteString("\n")
	}
	sb.WriteString("Respond with a single fenced code block tagged `python` containing complete, working code.\n")
	sb.WriteString("Start the block with a comment line `# FILE: <relative path>` naming the target file.\n")
	return sb.String()
}

// blockEnd returns the 1-based last line of an indentation block opened at
// lines[start] with the given indent.
func blockEnd(lines []string, start, indent int) int {
	end := start + 1
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if indentOf(lines[i]) <= indent {
			break
		}
		end = i + 1
	}
	return end
}

// docstringAfter returns the docstring opening on the first statement line
// after a def/class header, when present.
func docstringAfter(lines []string, headerIdx int) string {
	for i := headerIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		for _, q := range []string{`"""`, "'''"} {
			if strings.HasPrefix(trimmed, q) {
				body := strings.TrimPrefix(trimmed, q)
				if end := strings.Index(body, q); end >= 0 {
					return strings.TrimSpace(body[:end])
				}
				return strings.TrimSpace(body)
			}
		}
		return ""
	}
	return ""
}

func pythonComplexity(lines []string, start, end int) int {
	complexity := 1
	for i := start + 1; i < end && i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		complexity += len(pyBranch.FindAllString(trimmed, -1))
	}
	return complexity
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
