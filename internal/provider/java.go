package provider

import (
	"regexp"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Java patterns
var (
	javaClass  = regexp.MustCompile(`^(\s*)(?:public\s+|private\s+|protected\s+)?(?:abstract\s+|final\s+)?class\s+(\w+)(?:<[^>]+>)?(?:\s+extends\s+(\w+))?(?:\s+implements\s+([\w,\s]+))?\s*\{`)
	javaMethod = regexp.MustCompile(`^(\s*)(?:public\s+|private\s+|protected\s+)?(?:static\s+)?(?:final\s+)?(?:synchronized\s+)?(\w+(?:<[^>]+>)?(?:\[\])?)\s+(\w+)\s*\(([^)]*)\)(?:\s*throws\s+[\w,\s]+)?\s*\{`)
	javaImport = regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`)
)

// javaKeywords are tokens the method regex can mistake for a return type.
var javaKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"return": true, "new": true, "else": true, "catch": true,
}

// JavaProvider extracts metadata only: it has neither a syntax checker nor
// a test runner, which makes it the minimal capability surface a provider
// can ship with.
type JavaProvider struct{}

// NewJavaProvider creates the Java provider.
func NewJavaProvider() *JavaProvider { return &JavaProvider{} }

func (p *JavaProvider) Language() string { return "java" }

func (p *JavaProvider) Extensions() []string { return []string{".java"} }

// ParseMetadata extracts classes, methods, and imports line by line.
func (p *JavaProvider) ParseMetadata(path string, content []byte) (*types.FileMetadata, error) {
	lines := strings.Split(string(content), "\n")
	meta := &types.FileMetadata{
		Path:     path,
		Language: "java",
	}

	var currentClass *types.ClassInfo
	classIndent := -1

	for idx, line := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if m := javaImport.FindStringSubmatch(trimmed); m != nil {
			meta.Imports = append(meta.Imports, m[1])
			continue
		}

		if m := javaClass.FindStringSubmatch(line); m != nil {
			cls := types.ClassInfo{
				Name:      m[2],
				StartLine: lineNo,
				EndLine:   braceBlockEnd(lines, idx),
			}
			if m[3] != "" {
				cls.BaseClasses = append(cls.BaseClasses, m[3])
			}
			if m[4] != "" {
				cls.BaseClasses = append(cls.BaseClasses, splitAndTrim(m[4], ",")...)
			}
			meta.Classes = append(meta.Classes, cls)
			currentClass = &meta.Classes[len(meta.Classes)-1]
			classIndent = indentOf(line)
			continue
		}

		if currentClass != nil {
			if m := javaMethod.FindStringSubmatch(line); m != nil && indentOf(line) > classIndent {
				retType := m[2]
				if javaKeywords[retType] {
					continue
				}
				currentClass.Methods = append(currentClass.Methods, types.FunctionInfo{
					Name:       m[3],
					Args:       parseJavaArgNames(m[4]),
					StartLine:  lineNo,
					EndLine:    braceBlockEnd(lines, idx),
					ReturnType: retType,
				})
			}
		}
	}

	return meta, nil
}

// parseJavaArgNames extracts parameter names from "Type name, Type name".
func parseJavaArgNames(params string) []string {
	var names []string
	for _, part := range strings.Split(params, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		names = append(names, fields[len(fields)-1])
	}
	return names
}
