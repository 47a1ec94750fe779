// Package generator turns outstanding requirements into file-level code
// changes via the AI backend, and applies those changes to an output tree.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/ai"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// ErrNoCodeBlock means the model response contained no fenced code block
// for the provider's language.
var ErrNoCodeBlock = errors.New("no code block found in response")

var fencedBlock = regexp.MustCompile("(?s)```([a-zA-Z0-9+#-]*)\n(.*?)```")

// fileMarker matches the first-line comment naming the target file, in
// either hash or slash comment style.
var fileMarker = regexp.MustCompile(`^\s*(?:#|//)\s*FILE:\s*(\S+)\s*$`)

const systemPrompt = "You are a careful software engineer. " +
	"Produce working, tested code and nothing else."

// Generator drives one-requirement-at-a-time code generation.
type Generator struct {
	backend     ai.Backend
	maxTokens   int
	temperature float32
}

// New creates a generator over the given backend.
func New(backend ai.Backend, maxTokens int, temperature float32) *Generator {
	return &Generator{backend: backend, maxTokens: maxTokens, temperature: temperature}
}

// Generate produces the code changes for a single requirement. The
// provider shapes the prompt when it can; otherwise a generic prompt is
// used with the provider's language as the expected fence tag.
func (g *Generator) Generate(ctx context.Context, req types.Requirement, meta *types.ProjectMetadata, prov provider.Provider) ([]types.CodeChange, error) {
	if g.backend == nil {
		return nil, ai.ErrBackendUnavailable
	}

	excerpt := metadataExcerpt(meta, req)
	var prompt string
	if builder, ok := prov.(provider.PromptBuilder); ok {
		prompt = builder.BuildPrompt(req, excerpt)
	} else {
		prompt = genericPrompt(req, prov.Language(), excerpt)
	}

	slog.Debug("generating code", "requirement", req.ID, "language", prov.Language())
	response, err := g.backend.Complete(ctx, ai.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    g.maxTokens,
		Temperature:  g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("requirement %s: %w", req.ID, err)
	}

	existing := make(map[string]bool)
	if meta != nil {
		for _, f := range meta.Files {
			existing[f.Path] = true
		}
	}
	changes, err := parseChanges(response, prov.Language(), req.ID, existing)
	if err != nil {
		return nil, fmt.Errorf("requirement %s: %w", req.ID, err)
	}
	return changes, nil
}

// GenerateBatch runs Generate for every requirement in order. One
// requirement failing never aborts the rest; its failure is recorded as
// a problem on the result instead.
func (g *Generator) GenerateBatch(ctx context.Context, reqs []types.Requirement, meta *types.ProjectMetadata, prov provider.Provider) *types.GenerationResult {
	start := time.Now()
	result := &types.GenerationResult{RequirementsProcessed: len(reqs)}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			result.RequirementsFailed++
			result.AddProblem(types.SeverityError, "ai",
				fmt.Sprintf("generation cancelled: %v", err), req.ID)
			continue
		}
		changes, err := g.Generate(ctx, req, meta, prov)
		if err != nil {
			slog.Warn("generation failed", "requirement", req.ID, "error", err)
			result.RequirementsFailed++
			result.AddProblem(types.SeverityError, "ai", err.Error(), req.ID)
			continue
		}
		result.RequirementsImplemented++
		for i := range changes {
			changes[i].RequirementID = req.ID
		}
		result.Changes = append(result.Changes, changes...)
	}
	result.ExecutionTime = time.Since(start).Seconds()
	return result
}

// parseChanges extracts the fenced code block matching the language tag
// and reads the FILE marker to learn the target path. An untagged block
// is accepted when no tagged block exists. A marker naming a known file
// extends it instead of creating: definition-shaped blocks append, other
// blocks replace the file.
func parseChanges(response, language, reqID string, existing map[string]bool) ([]types.CodeChange, error) {
	matches := fencedBlock.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return nil, ErrNoCodeBlock
	}

	var body string
	for _, m := range matches {
		tag := strings.ToLower(strings.TrimSpace(m[1]))
		if tag == language {
			body = m[2]
			break
		}
	}
	if body == "" {
		for _, m := range matches {
			if strings.TrimSpace(m[1]) == "" {
				body = m[2]
				break
			}
		}
	}
	if body == "" {
		return nil, fmt.Errorf("%w: no block tagged %q", ErrNoCodeBlock, language)
	}

	path := ""
	lines := strings.SplitN(body, "\n", 2)
	if m := fileMarker.FindStringSubmatch(lines[0]); m != nil {
		path = m[1]
		if len(lines) > 1 {
			body = lines[1]
		} else {
			body = ""
		}
	}
	if path == "" {
		path = defaultFileName(reqID, language)
	}

	kind := types.ChangeCreate
	if existing[path] {
		if definitionShaped(body, language) {
			kind = types.ChangeAppend
		} else {
			kind = types.ChangeModify
		}
	}

	header := fmt.Sprintf("%s Generated for requirement %s\n", commentPrefix(language), reqID)
	content := header + strings.TrimRight(body, "\n") + "\n"
	return []types.CodeChange{{
		FilePath: path,
		Kind:     kind,
		Content:  content,
	}}, nil
}

// defShapes matches blocks whose first statement opens a top-level
// definition; such blocks can be appended to a file without replacing it.
var defShapes = map[string]*regexp.Regexp{
	"python":     regexp.MustCompile(`^(?:async\s+)?def\s|^class\s|^@\w`),
	"go":         regexp.MustCompile(`^func\s|^type\s`),
	"javascript": regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s|^(?:export\s+)?class\s|^(?:export\s+)?const\s`),
	"java":       regexp.MustCompile(`^(?:public\s+|private\s+|protected\s+)?(?:static\s+)?(?:class\s|\w+.*\()`),
}

func definitionShaped(body, language string) bool {
	re, ok := defShapes[language]
	if !ok {
		return false
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		return re.MatchString(line)
	}
	return false
}

func commentPrefix(language string) string {
	switch language {
	case "python":
		return "#"
	default:
		return "//"
	}
}

func genericPrompt(req types.Requirement, language, excerpt string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Implement the following requirement in %s:\n\n", language)
	fmt.Fprintf(&sb, "Requirement %s: %s\n\n", req.ID, req.Description)
	if excerpt != "" {
		sb.WriteString("Existing code structure:\n")
		sb.WriteString(excerpt)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Respond with a single fenced code block tagged `%s`.\n", language)
	sb.WriteString("Start the block with a comment line `# FILE: <relative path>` naming the target file.\n")
	return sb.String()
}

// metadataExcerpt summarizes the codebase structure for prompts: file
// paths with their function and class signatures, no bodies. Files that
// share a keyword with the requirement come first; when nothing matches,
// every file is included so the model still sees the project shape.
func metadataExcerpt(meta *types.ProjectMetadata, req types.Requirement) string {
	if meta == nil || len(meta.Files) == 0 {
		return ""
	}
	files := relevantFiles(meta.Files, req.Description)
	var sb strings.Builder
	for _, f := range files {
		fmt.Fprintf(&sb, "%s:\n", f.Path)
		for _, fn := range f.Functions {
			fmt.Fprintf(&sb, "  def %s(%s)\n", fn.Name, strings.Join(fn.Args, ", "))
		}
		for _, cls := range f.Classes {
			fmt.Fprintf(&sb, "  class %s\n", cls.Name)
			for _, m := range cls.Methods {
				fmt.Fprintf(&sb, "    def %s(%s)\n", m.Name, strings.Join(m.Args, ", "))
			}
		}
	}
	return sb.String()
}

// relevantFiles keeps files whose path or symbol names share a word
// (longer than three characters) with the requirement text.
func relevantFiles(files []types.FileMetadata, description string) []types.FileMetadata {
	keywords := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(description)) {
		word = strings.Trim(word, ".,;:()'\"")
		if len(word) > 3 {
			keywords[word] = true
		}
	}
	if len(keywords) == 0 {
		return files
	}

	var matched []types.FileMetadata
	for _, f := range files {
		if fileMatchesKeywords(f, keywords) {
			matched = append(matched, f)
		}
	}
	if len(matched) == 0 {
		return files
	}
	return matched
}

func fileMatchesKeywords(f types.FileMetadata, keywords map[string]bool) bool {
	haystack := strings.ToLower(f.Path)
	for _, fn := range f.Functions {
		haystack += " " + strings.ToLower(fn.Name)
	}
	for _, cls := range f.Classes {
		haystack += " " + strings.ToLower(cls.Name)
		for _, m := range cls.Methods {
			haystack += " " + strings.ToLower(m.Name)
		}
	}
	for keyword := range keywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

func defaultFileName(reqID, language string) string {
	stem := strings.ToLower(strings.ReplaceAll(reqID, "-", "_"))
	switch language {
	case "python":
		return stem + ".py"
	case "go":
		return stem + ".go"
	case "javascript":
		return stem + ".js"
	case "java":
		return stem + ".java"
	default:
		return stem + ".txt"
	}
}
