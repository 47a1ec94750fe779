// Package metadata builds the project metadata document for a directory
// tree by dispatching each file to its language provider.
package metadata

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/internal/provider"
	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Options controls file selection and the entry point heuristic.
type Options struct {
	IncludePatterns []string
	ExcludePatterns []string
	Concurrency     int
	EntryPointNames []string
	EntryPointFiles []string
}

// Extractor produces ProjectMetadata documents.
type Extractor struct {
	registry *provider.Registry
	opts     Options
}

// New creates an extractor over the given provider registry.
func New(registry *provider.Registry, opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if len(opts.IncludePatterns) == 0 {
		opts.IncludePatterns = []string{"*"}
	}
	return &Extractor{registry: registry, opts: opts}
}

// Extract walks root, parses every file that resolves to a provider, and
// assembles the metadata document. Files no provider claims are skipped
// silently; a parse failure on one file becomes a warning and never aborts
// the rest. File order is lexicographic by relative path, so output for an
// unchanged tree is reproducible byte for byte.
func (e *Extractor) Extract(ctx context.Context, root string) (*types.ProjectMetadata, []types.ValidationProblem, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("codebase path: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("codebase path is not a directory: %s", root)
	}

	paths, err := CollectFiles(root, e.opts.IncludePatterns, e.opts.ExcludePatterns)
	if err != nil {
		return nil, nil, err
	}

	type parseOutcome struct {
		meta    *types.FileMetadata
		warning *types.ValidationProblem
	}
	outcomes := make([]parseOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := e.registry.Resolve(rel)
			parser, ok := p.(provider.MetadataParser)
			if !ok {
				return nil
			}
			content, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				outcomes[i].warning = &types.ValidationProblem{
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("could not read file: %v", err),
					FilePath: rel,
				}
				return nil
			}
			meta, err := parser.ParseMetadata(rel, content)
			if err != nil {
				outcomes[i].warning = &types.ValidationProblem{
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("metadata parse failed: %v", err),
					FilePath: rel,
				}
				return nil
			}
			outcomes[i].meta = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	doc := &types.ProjectMetadata{
		Files:       []types.FileMetadata{},
		Languages:   []string{},
		EntryPoints: []types.EntryPoint{},
		Dependencies: types.Dependencies{
			Internal: []string{},
			External: []string{},
		},
	}
	var warnings []types.ValidationProblem

	langSet := make(map[string]bool)
	for _, outcome := range outcomes {
		if outcome.warning != nil {
			warnings = append(warnings, *outcome.warning)
			continue
		}
		if outcome.meta == nil {
			continue
		}
		doc.Files = append(doc.Files, *outcome.meta)
		langSet[outcome.meta.Language] = true
	}

	for lang := range langSet {
		doc.Languages = append(doc.Languages, lang)
	}
	sort.Strings(doc.Languages)

	doc.Dependencies = e.classifyDependencies(doc.Files)
	doc.EntryPoints = e.detectEntryPoints(doc.Files)
	doc.Metrics = computeMetrics(doc.Files)

	slog.Debug("metadata extraction complete",
		"files", len(doc.Files),
		"languages", len(doc.Languages),
		"warnings", len(warnings))

	return doc, warnings, nil
}

// CollectFiles enumerates regular files under root matching the include
// patterns and not matching any exclude pattern, sorted by relative path.
// Exclude wins on conflict. An empty include list matches everything.
func CollectFiles(root string, include, exclude []string) ([]string, error) {
	if len(include) == 0 {
		include = []string{"*"}
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchesAny(rel, d.Name(), exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matchesAny(rel, d.Name(), exclude) {
			return nil
		}
		if !matchesAny(rel, d.Name(), include) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// matchesAny applies glob patterns against both the base name and the
// full relative path.
func matchesAny(rel, base string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// classifyDependencies splits imports into internal refs (targets inside
// the project) and external package names. Relative imports and imports
// matching a project file stem are internal; the rest are external.
func (e *Extractor) classifyDependencies(files []types.FileMetadata) types.Dependencies {
	stems := make(map[string]bool)
	for _, f := range files {
		base := filepath.Base(f.Path)
		stems[strings.TrimSuffix(base, filepath.Ext(base))] = true
	}

	internal := make(map[string]bool)
	external := make(map[string]bool)
	for _, f := range files {
		for _, imp := range f.Imports {
			if imp == "" {
				continue
			}
			head := imp
			if i := strings.IndexAny(imp, "./"); i == 0 {
				// Relative import.
				internal[imp] = true
				continue
			}
			if i := strings.IndexAny(head, "./"); i > 0 {
				head = head[:i]
			}
			if stems[head] {
				internal[imp] = true
			} else {
				external[imp] = true
			}
		}
	}

	deps := types.Dependencies{Internal: []string{}, External: []string{}}
	for imp := range internal {
		deps.Internal = append(deps.Internal, imp)
	}
	for imp := range external {
		deps.External = append(deps.External, imp)
	}
	sort.Strings(deps.Internal)
	sort.Strings(deps.External)
	return deps
}

// detectEntryPoints applies the configured name/file heuristic, plus the
// Python __main__ guard marker.
func (e *Extractor) detectEntryPoints(files []types.FileMetadata) []types.EntryPoint {
	names := make(map[string]bool)
	for _, n := range e.opts.EntryPointNames {
		names[n] = true
	}
	fileStems := make(map[string]bool)
	for _, f := range e.opts.EntryPointFiles {
		fileStems[f] = true
	}

	entries := []types.EntryPoint{}
	for _, f := range files {
		base := filepath.Base(f.Path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if fileStems[stem] {
			for _, fn := range f.Functions {
				if names[fn.Name] {
					entries = append(entries, types.EntryPoint{File: f.Path, Callable: fn.Name})
				}
			}
		}
		if f.HasMainGuard {
			entries = append(entries, types.EntryPoint{File: f.Path, Callable: "__main__"})
		}
	}
	return entries
}

func computeMetrics(files []types.FileMetadata) types.Metrics {
	m := types.Metrics{TotalFiles: len(files)}
	complexitySum := 0
	complexityCount := 0
	for _, f := range files {
		m.TotalFunctions += len(f.Functions)
		m.TotalClasses += len(f.Classes)
		for _, fn := range f.Functions {
			if fn.Complexity > 0 {
				complexitySum += fn.Complexity
				complexityCount++
			}
		}
		for _, cls := range f.Classes {
			m.TotalMethods += len(cls.Methods)
			for _, method := range cls.Methods {
				if method.Complexity > 0 {
					complexitySum += method.Complexity
					complexityCount++
				}
			}
		}
	}
	if complexityCount > 0 {
		// Two decimals keeps the JSON stable across float formatting.
		m.AverageComplexity = math.Round(float64(complexitySum)/float64(complexityCount)*100) / 100
	}
	return m
}
