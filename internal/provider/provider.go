package provider

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// ErrDuplicateProvider is returned when a language name is registered twice.
// Last-registered-wins is deliberately not supported: silent shadowing of a
// provider is worse than failing loudly at startup.
var ErrDuplicateProvider = errors.New("provider already registered for language")

// Provider is the base contract every language provider satisfies.
// The parse/syntax/test capabilities are separate interfaces so that each
// one is independently optional; the registry discovers them by type
// assertion in one place instead of scattering checks through the pipeline.
type Provider interface {
	// Language returns the provider's language name (unique registry key).
	Language() string
	// Extensions returns the file extensions this provider claims,
	// lowercase with leading dot (".py", ".go").
	Extensions() []string
}

// MetadataParser extracts structural metadata from one source file.
// Path is the project-relative path recorded in the result.
type MetadataParser interface {
	ParseMetadata(path string, content []byte) (*types.FileMetadata, error)
}

// SyntaxChecker reports syntax problems in one source file. Internal parse
// failures are reported as error-severity problems, not returned as errors,
// so one broken file never aborts a stage.
type SyntaxChecker interface {
	CheckSyntax(path string, content []byte) []types.ValidationProblem
}

// TestRunResult is the partial, StepResult-shaped outcome of one provider's
// test run. The pipeline merges results across providers into a StepResult.
type TestRunResult struct {
	Passed   int
	Failed   int
	Problems []types.ValidationProblem
	Output   string
}

// TestRunner executes the provider's test suite over discovered test files.
// Implementations must honor ctx cancellation; the pipeline bounds each
// invocation with the configured test timeout.
type TestRunner interface {
	RunTests(ctx context.Context, root string, testFiles []string) (*TestRunResult, error)
}

// PromptBuilder produces the language-specific generation prompt for a
// requirement. Providers without it fall back to the generic prompt.
type PromptBuilder interface {
	BuildPrompt(req types.Requirement, contextExcerpt string) string
}

// Registry maps languages and file extensions to providers.
type Registry struct {
	providers map[string]Provider
	order     []string
	byExt     map[string]Provider // first-registered provider per extension
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		byExt:     make(map[string]Provider),
	}
}

// Register adds a provider keyed by language name and extension set.
// Returns ErrDuplicateProvider if the language is already registered.
// When two providers claim the same extension the first registered wins;
// this tie-break is deterministic and intentional.
func (r *Registry) Register(p Provider) error {
	lang := p.Language()
	if _, exists := r.providers[lang]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, lang)
	}
	r.providers[lang] = p
	r.order = append(r.order, lang)
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if _, claimed := r.byExt[ext]; !claimed {
			r.byExt[ext] = p
		}
	}
	return nil
}

// Resolve returns the provider for a file path, or nil when no registered
// provider claims its extension.
func (r *Registry) Resolve(path string) Provider {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	return r.byExt[ext]
}

// Get returns the provider registered for a language name, or nil.
func (r *Registry) Get(language string) Provider {
	return r.providers[language]
}

// Languages returns the sorted set of registered language names.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.providers))
	for lang := range r.providers {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Default returns a registry with all built-in providers registered.
func Default() *Registry {
	r := NewRegistry()
	// Registration order is the extension tie-break order.
	for _, p := range []Provider{
		NewPythonProvider(),
		NewGoProvider(),
		NewJavaScriptProvider(),
		NewJavaProvider(),
	} {
		if err := r.Register(p); err != nil {
			// Built-in names are distinct; a duplicate here is a bug.
			panic(err)
		}
	}
	return r
}
