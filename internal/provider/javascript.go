package provider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// TypeScript/JavaScript patterns
var (
	jsClass    = regexp.MustCompile(`^(\s*)(export\s+)?(abstract\s+)?class\s+(\w+)(?:\s+extends\s+([\w.]+))?(?:\s+implements\s+([\w,\s]+))?\s*\{`)
	jsFunction = regexp.MustCompile(`^(\s*)(export\s+)?(async\s+)?function\s+(\w+)\s*(?:<[^>]+>)?\s*\(([^)]*)\)(?:\s*:\s*([^{]+))?\s*\{`)
	jsArrow    = regexp.MustCompile(`^(\s*)(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s+)?\(([^)]*)\)(?:\s*:\s*[^=]+)?\s*=>`)
	jsMethod   = regexp.MustCompile(`^(\s*)(?:private\s+|public\s+|protected\s+)?(?:static\s+)?(?:async\s+)?(\w+)\s*\(([^)]*)\)(?:\s*:\s*([^{]+))?\s*\{`)
	jsImport   = regexp.MustCompile(`^import\s+(?:.+\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequire  = regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`)
	jsBranch   = regexp.MustCompile(`\b(if|else if|for|while|case|catch)\b|&&|\|\|`)
)

// jsMethodKeywords are control keywords the method regex would otherwise
// misread as method names.
var jsMethodKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"catch": true, "return": true, "function": true, "constructor": false,
}

// JavaScriptProvider parses JavaScript and TypeScript sources with the
// same patterns; it deliberately has no test runner, exercising the
// pipeline's absent-capability path.
type JavaScriptProvider struct{}

// NewJavaScriptProvider creates the JavaScript/TypeScript provider.
func NewJavaScriptProvider() *JavaScriptProvider { return &JavaScriptProvider{} }

func (p *JavaScriptProvider) Language() string { return "javascript" }

func (p *JavaScriptProvider) Extensions() []string {
	return []string{".js", ".jsx", ".mjs", ".ts", ".tsx"}
}

// ParseMetadata extracts classes, functions, and imports line by line.
func (p *JavaScriptProvider) ParseMetadata(path string, content []byte) (*types.FileMetadata, error) {
	lines := strings.Split(string(content), "\n")
	meta := &types.FileMetadata{
		Path:     path,
		Language: "javascript",
	}

	var currentClass *types.ClassInfo
	braceDepth := 0
	inClass := false

	for idx, line := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if m := jsImport.FindStringSubmatch(trimmed); m != nil {
			meta.Imports = append(meta.Imports, m[1])
			continue
		}
		for _, m := range jsRequire.FindAllStringSubmatch(line, -1) {
			meta.Imports = append(meta.Imports, m[1])
		}

		if m := jsClass.FindStringSubmatch(line); m != nil {
			end := braceBlockEnd(lines, idx)
			cls := types.ClassInfo{
				Name:      m[4],
				StartLine: lineNo,
				EndLine:   end,
			}
			if m[5] != "" {
				cls.BaseClasses = append(cls.BaseClasses, m[5])
			}
			if m[6] != "" {
				cls.BaseClasses = append(cls.BaseClasses, splitAndTrim(m[6], ",")...)
			}
			meta.Classes = append(meta.Classes, cls)
			currentClass = &meta.Classes[len(meta.Classes)-1]
			inClass = true
			braceDepth = 1
			continue
		}

		if inClass {
			// Method headers sit at depth 1; check before this line's own
			// braces are counted.
			if currentClass != nil && braceDepth == 1 {
				if m := jsMethod.FindStringSubmatch(line); m != nil {
					name := m[2]
					if keyword, listed := jsMethodKeywords[name]; !listed || !keyword {
						end := braceBlockEnd(lines, idx)
						currentClass.Methods = append(currentClass.Methods, types.FunctionInfo{
							Name:       name,
							Args:       parseArgNames(m[3]),
							StartLine:  lineNo,
							EndLine:    end,
							ReturnType: strings.TrimSpace(m[4]),
							Complexity: jsComplexity(lines, idx, end),
						})
						braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
						continue
					}
				}
			}
			braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
			if braceDepth <= 0 {
				inClass = false
				currentClass = nil
			}
		}

		if m := jsFunction.FindStringSubmatch(line); m != nil {
			end := braceBlockEnd(lines, idx)
			fn := types.FunctionInfo{
				Name:       m[4],
				Args:       parseArgNames(m[5]),
				StartLine:  lineNo,
				EndLine:    end,
				ReturnType: strings.TrimSpace(m[6]),
				Complexity: jsComplexity(lines, idx, end),
			}
			meta.Functions = append(meta.Functions, fn)
			continue
		}

		if m := jsArrow.FindStringSubmatch(line); m != nil {
			fn := types.FunctionInfo{
				Name:      m[2],
				Args:      parseArgNames(m[3]),
				StartLine: lineNo,
				EndLine:   lineNo,
			}
			meta.Functions = append(meta.Functions, fn)
			continue
		}

	}

	return meta, nil
}

// CheckSyntax runs the delimiter balance heuristic with JS comment and
// string conventions (template literals included).
func (p *JavaScriptProvider) CheckSyntax(path string, content []byte) []types.ValidationProblem {
	return checkBalance(path, string(content), balanceOptions{
		lineComment:       "//",
		blockCommentStart: "/*",
		blockCommentEnd:   "*/",
		quotes:            []byte{'"', '\''},
		backtickStrings:   true,
	})
}

// BuildPrompt produces the JavaScript generation prompt.
func (p *JavaScriptProvider) BuildPrompt(req types.Requirement, contextExcerpt string) string {
	var sb strings.Builder
	sb.WriteString("Implement the following requirement in JavaScript:\n\n")
	sb.WriteString(fmt.Sprintf("Requirement %s: %s\n\n", req.ID, req.Description))
	if contextExcerpt != "" {
		sb.WriteString("Existing code structure:\n")
		sb.WriteString(contextExcerpt)
		sb.WriteString("\n")
	}
	sb.WriteString("Respond with a single fenced code block tagged `javascript`.\n")
	sb.WriteString("Start the block with a comment line `// FILE: <relative path>` naming the target file.\n")
	return sb.String()
}

// braceBlockEnd returns the 1-based line where the brace block opened at
// lines[start] closes, tracked by brace counting.
func braceBlockEnd(lines []string, start int) int {
	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth <= 0 {
			return i + 1
		}
	}
	return len(lines)
}

func jsComplexity(lines []string, start, end int) int {
	complexity := 1
	for i := start + 1; i < end && i < len(lines); i++ {
		complexity += len(jsBranch.FindAllString(lines[i], -1))
	}
	return complexity
}
