package provider

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os/exec"
	"regexp"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

var (
	goTestPass = regexp.MustCompile(`(?m)^\s*--- PASS: (\S+)`)
	goTestFail = regexp.MustCompile(`(?m)^\s*--- FAIL: (\S+)`)
)

// GoProvider uses the standard library AST for metadata and syntax checks,
// so Go diagnostics carry exact positions instead of heuristic guesses.
type GoProvider struct{}

// NewGoProvider creates the Go provider.
func NewGoProvider() *GoProvider { return &GoProvider{} }

func (p *GoProvider) Language() string { return "go" }

func (p *GoProvider) Extensions() []string { return []string{".go"} }

// ParseMetadata parses the file and maps top-level functions to functions,
// methods grouped by receiver type to classes, and imports to imports.
func (p *GoProvider) ParseMetadata(path string, content []byte) (*types.FileMetadata, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	meta := &types.FileMetadata{
		Path:     path,
		Language: "go",
	}

	for _, imp := range file.Imports {
		meta.Imports = append(meta.Imports, strings.Trim(imp.Path.Value, `"`))
	}

	byReceiver := make(map[string][]types.FunctionInfo)
	var receiverOrder []string

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		info := types.FunctionInfo{
			Name:       fn.Name.Name,
			Args:       goParamNames(fn.Type.Params),
			StartLine:  fset.Position(fn.Pos()).Line,
			EndLine:    fset.Position(fn.End()).Line,
			ReturnType: goResultType(fn.Type.Results),
			Complexity: goComplexity(fn),
		}
		if fn.Doc != nil {
			info.Docstring = strings.TrimSpace(fn.Doc.Text())
		}
		if fn.Recv != nil && len(fn.Recv.List) > 0 {
			recv := receiverTypeName(fn.Recv.List[0].Type)
			if _, seen := byReceiver[recv]; !seen {
				receiverOrder = append(receiverOrder, recv)
			}
			byReceiver[recv] = append(byReceiver[recv], info)
			continue
		}
		meta.Functions = append(meta.Functions, info)
	}

	for _, recv := range receiverOrder {
		methods := byReceiver[recv]
		cls := types.ClassInfo{
			Name:      recv,
			Methods:   methods,
			StartLine: methods[0].StartLine,
			EndLine:   methods[len(methods)-1].EndLine,
		}
		meta.Classes = append(meta.Classes, cls)
	}

	return meta, nil
}

// CheckSyntax reports parser diagnostics with exact line/column positions.
func (p *GoProvider) CheckSyntax(path string, content []byte) []types.ValidationProblem {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, path, content, parser.AllErrors)
	if err == nil {
		return nil
	}

	var problems []types.ValidationProblem
	if list, ok := err.(scanner.ErrorList); ok {
		for _, e := range list {
			problems = append(problems, types.ValidationProblem{
				Severity:   types.SeverityError,
				Message:    e.Msg,
				FilePath:   path,
				LineNumber: e.Pos.Line,
				Column:     e.Pos.Column,
			})
		}
		return problems
	}
	return []types.ValidationProblem{{
		Severity: types.SeverityError,
		Message:  err.Error(),
		FilePath: path,
	}}
}

// RunTests executes go test with verbose output and counts per-test
// outcomes from the PASS/FAIL markers.
func (p *GoProvider) RunTests(ctx context.Context, root string, testFiles []string) (*TestRunResult, error) {
	cmd := exec.CommandContext(ctx, "go", "test", "-v", "./...")
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	output := string(out)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &TestRunResult{Output: output}
	result.Passed = len(goTestPass.FindAllString(output, -1))
	for _, m := range goTestFail.FindAllStringSubmatch(output, -1) {
		result.Failed++
		result.Problems = append(result.Problems, types.ValidationProblem{
			Severity: types.SeverityError,
			Message:  fmt.Sprintf("%s: test failed", m[1]),
		})
	}

	if err != nil && result.Failed == 0 && result.Passed == 0 {
		return nil, fmt.Errorf("go test execution failed: %w (output: %s)", err, firstLine(output))
	}
	return result, nil
}

// BuildPrompt produces the Go generation prompt.
func (p *GoProvider) BuildPrompt(req types.Requirement, contextExcerpt string) string {
	var sb strings.Builder
	sb.WriteString("Implement the following requirement in Go:\n\n")
	sb.WriteString(fmt.Sprintf("Requirement %s: %s\n\n", req.ID, req.Description))
	if contextExcerpt != "" {
		sb.WriteString("Existing code structure:\n")
		sb.WriteString(contextExcerpt)
		sb.WriteString("\n")
	}
	sb.WriteString("Respond with a single fenced code block tagged `go` containing complete, compilable code.\n")
	sb.WriteString("Start the block with a comment line `// FILE: <relative path>` naming the target file.\n")
	return sb.String()
}

func goParamNames(fields *ast.FieldList) []string {
	if fields == nil {
		return nil
	}
	var names []string
	for _, field := range fields.List {
		for _, name := range field.Names {
			names = append(names, name.Name)
		}
	}
	return names
}

func goResultType(results *ast.FieldList) string {
	if results == nil || len(results.List) == 0 {
		return ""
	}
	var parts []string
	for _, field := range results.List {
		parts = append(parts, exprString(field.Type))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return "unknown"
}

func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return "map[" + exprString(t.Key) + "]" + exprString(t.Value)
	case *ast.InterfaceType:
		return "interface{}"
	}
	return "any"
}

func goComplexity(fn *ast.FuncDecl) int {
	complexity := 1
	if fn.Body == nil {
		return complexity
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			complexity++
		case *ast.BinaryExpr:
			if node.Op == token.LAND || node.Op == token.LOR {
				complexity++
			}
		}
		return true
	})
	return complexity
}
