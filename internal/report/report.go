// Package report renders validation reports to JSON, YAML, or plain text
// and persists them atomically.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Document is the serialized report shape. Derived counts are
// materialized as plain fields so every encoding carries the identical
// structure; JSON, YAML, and text are renderings of this one document.
type Document struct {
	ID                 string         `json:"id" yaml:"id"`
	CodebasePath       string         `json:"codebase_path" yaml:"codebase_path"`
	MetadataPath       string         `json:"metadata_path,omitempty" yaml:"metadata_path,omitempty"`
	OverallStatus      types.Status   `json:"overall_status" yaml:"overall_status"`
	IsValid            bool           `json:"is_valid" yaml:"is_valid"`
	TotalExecutionTime float64        `json:"total_execution_time" yaml:"total_execution_time"`
	Timestamp          string         `json:"timestamp" yaml:"timestamp"`
	TotalErrorCount    int            `json:"total_error_count" yaml:"total_error_count"`
	TotalWarningCount  int            `json:"total_warning_count" yaml:"total_warning_count"`
	StepResults        []StepDocument `json:"step_results" yaml:"step_results"`
}

// StepDocument is one stage's serialized result.
type StepDocument struct {
	StepName      string                    `json:"step_name" yaml:"step_name"`
	Status        types.Status              `json:"status" yaml:"status"`
	ExecutionTime float64                   `json:"execution_time" yaml:"execution_time"`
	ErrorCount    int                       `json:"error_count" yaml:"error_count"`
	WarningCount  int                       `json:"warning_count" yaml:"warning_count"`
	Problems      []types.ValidationProblem `json:"problems" yaml:"problems"`
	Metadata      map[string]any            `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Build materializes a report into its serialized document, preserving
// stage order exactly as recorded.
func Build(r *types.ValidationReport) *Document {
	doc := &Document{
		ID:                 r.ID,
		CodebasePath:       r.CodebasePath,
		MetadataPath:       r.MetadataPath,
		OverallStatus:      r.OverallStatus,
		IsValid:            r.IsValid,
		TotalExecutionTime: r.TotalExecutionTime,
		Timestamp:          r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		TotalErrorCount:    r.TotalErrorCount(),
		TotalWarningCount:  r.TotalWarningCount(),
		StepResults:        make([]StepDocument, 0, len(r.StepResults)),
	}
	for i := range r.StepResults {
		step := &r.StepResults[i]
		problems := step.Problems
		if problems == nil {
			problems = []types.ValidationProblem{}
		}
		doc.StepResults = append(doc.StepResults, StepDocument{
			StepName:      step.StepName,
			Status:        step.Status,
			ExecutionTime: step.ExecutionTime,
			ErrorCount:    step.ErrorCount(),
			WarningCount:  step.WarningCount(),
			Problems:      problems,
			Metadata:      step.Metadata,
		})
	}
	return doc
}

// Render encodes the document in the requested format.
func Render(doc *Document, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding report: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding report: %w", err)
		}
		return data, nil
	case "text":
		return []byte(renderText(doc)), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Save writes the rendered report atomically: temp file in the target
// directory, then rename, so a crash never leaves a half-written report.
func Save(doc *Document, path, format string) error {
	data, err := Render(doc, format)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("creating temp report: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func renderText(doc *Document) string {
	var sb strings.Builder
	sb.WriteString("Validation Report\n")
	sb.WriteString("=================\n")
	fmt.Fprintf(&sb, "Codebase:  %s\n", doc.CodebasePath)
	if doc.MetadataPath != "" {
		fmt.Fprintf(&sb, "Metadata:  %s\n", doc.MetadataPath)
	}
	fmt.Fprintf(&sb, "Status:    %s (valid: %v)\n", doc.OverallStatus, doc.IsValid)
	fmt.Fprintf(&sb, "Errors:    %d\n", doc.TotalErrorCount)
	fmt.Fprintf(&sb, "Warnings:  %d\n", doc.TotalWarningCount)
	fmt.Fprintf(&sb, "Duration:  %.2fs\n", doc.TotalExecutionTime)
	sb.WriteString("\n")

	for _, step := range doc.StepResults {
		fmt.Fprintf(&sb, "[%s] %s (%.2fs, %d errors, %d warnings)\n",
			step.Status, step.StepName, step.ExecutionTime, step.ErrorCount, step.WarningCount)
		if reason, ok := step.Metadata["reason"]; ok && step.Status == types.StatusSkipped {
			fmt.Fprintf(&sb, "  reason: %v\n", reason)
		}
		for _, problem := range step.Problems {
			loc := ""
			if problem.FilePath != "" {
				loc = " " + problem.FilePath
				if problem.LineNumber > 0 {
					loc = fmt.Sprintf("%s:%d", loc, problem.LineNumber)
				}
			}
			fmt.Fprintf(&sb, "  %s:%s %s\n", problem.Severity, loc, problem.Message)
			if problem.Suggestion != "" {
				fmt.Fprintf(&sb, "    suggestion: %s\n", problem.Suggestion)
			}
		}
	}
	return sb.String()
}
