package types

import "time"

// =============================================================================
// PROJECT METADATA TYPES
// =============================================================================

// ProjectMetadata is the root document describing an analyzed codebase.
// It is rebuilt from scratch on every extraction run and replaces the
// previous document wholesale; nothing mutates it in place.
type ProjectMetadata struct {
	Files        []FileMetadata `json:"files"`
	Languages    []string       `json:"languages"`
	Dependencies Dependencies   `json:"dependencies"`
	EntryPoints  []EntryPoint   `json:"entry_points"`
	Metrics      Metrics        `json:"metrics"`
}

// FileMetadata describes one source file. Path is relative to the project
// root and unique within the document.
type FileMetadata struct {
	Path      string         `json:"path"`
	Language  string         `json:"language"`
	Functions []FunctionInfo `json:"functions,omitempty"`
	Classes   []ClassInfo    `json:"classes,omitempty"`
	Imports   []string       `json:"imports,omitempty"`
	// HasMainGuard marks Python files with an `if __name__ == "__main__"`
	// block; the extractor treats it as an entry point.
	HasMainGuard bool `json:"has_main_guard,omitempty"`
}

// FunctionInfo describes a function or method signature.
// StartLine/EndLine are 1-based and inclusive, EndLine >= StartLine.
type FunctionInfo struct {
	Name       string   `json:"name"`
	Args       []string `json:"args,omitempty"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Docstring  string   `json:"docstring,omitempty"`
	ReturnType string   `json:"return_type,omitempty"`
	Complexity int      `json:"complexity,omitempty"`
}

// ClassInfo describes a class and its methods.
type ClassInfo struct {
	Name        string         `json:"name"`
	Methods     []FunctionInfo `json:"methods,omitempty"`
	BaseClasses []string       `json:"base_classes,omitempty"`
	StartLine   int            `json:"start_line"`
	EndLine     int            `json:"end_line"`
	Docstring   string         `json:"docstring,omitempty"`
}

// Dependencies summarizes import targets across the project.
// Internal refs point inside the project, External are package names.
// Both are kept sorted so metadata output is reproducible.
type Dependencies struct {
	Internal []string `json:"internal"`
	External []string `json:"external"`
}

// EntryPoint is a file+callable pair heuristically identified as a
// program start point.
type EntryPoint struct {
	File     string `json:"file"`
	Callable string `json:"callable"`
}

// Metrics holds aggregate counts over the analyzed files.
type Metrics struct {
	TotalFiles        int     `json:"total_files"`
	TotalFunctions    int     `json:"total_functions"`
	TotalClasses      int     `json:"total_classes"`
	TotalMethods      int     `json:"total_methods"`
	AverageComplexity float64 `json:"average_complexity"`
}

// =============================================================================
// REQUIREMENT TYPES
// =============================================================================

// Requirement is an identified unit of desired behavior.
type Requirement struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// =============================================================================
// VALIDATION TYPES
// =============================================================================

// Severity levels for validation problems.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Status is the outcome of a validation step or a whole run.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// ValidationProblem is a single reported issue. Immutable once created.
type ValidationProblem struct {
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	FilePath   string `json:"file_path,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
	Column     int    `json:"column,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// StepResult is one pipeline stage's outcome. ExecutionTime is in seconds.
// Metadata holds genuinely variable per-stage facts (files_checked counts
// and the like); everything with a fixed meaning is a named field.
type StepResult struct {
	StepName      string              `json:"step_name"`
	Status        Status              `json:"status"`
	ExecutionTime float64             `json:"execution_time"`
	Problems      []ValidationProblem `json:"problems"`
	Metadata      map[string]any      `json:"metadata,omitempty"`
}

// AddProblem appends a problem to the step result.
func (r *StepResult) AddProblem(p ValidationProblem) {
	r.Problems = append(r.Problems, p)
}

// AddError appends an error problem and downgrades a valid step to invalid.
func (r *StepResult) AddError(message string, opts ...func(*ValidationProblem)) {
	p := ValidationProblem{Severity: SeverityError, Message: message}
	for _, opt := range opts {
		opt(&p)
	}
	r.Problems = append(r.Problems, p)
	if r.Status == StatusValid {
		r.Status = StatusInvalid
	}
}

// AddWarning appends a warning problem without changing the step status.
func (r *StepResult) AddWarning(message string, opts ...func(*ValidationProblem)) {
	p := ValidationProblem{Severity: SeverityWarning, Message: message}
	for _, opt := range opts {
		opt(&p)
	}
	r.Problems = append(r.Problems, p)
}

// AtFile sets the file path on a problem.
func AtFile(path string) func(*ValidationProblem) {
	return func(p *ValidationProblem) { p.FilePath = path }
}

// AtLine sets the line number on a problem.
func AtLine(line int) func(*ValidationProblem) {
	return func(p *ValidationProblem) { p.LineNumber = line }
}

// ErrorCount returns the number of error-severity problems.
func (r *StepResult) ErrorCount() int {
	n := 0
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning-severity problems.
func (r *StepResult) WarningCount() int {
	n := 0
	for _, p := range r.Problems {
		if p.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// ValidationReport is the aggregate outcome of one pipeline run.
// Step results are appended in stage order and never reordered.
type ValidationReport struct {
	ID                 string       `json:"id"`
	CodebasePath       string       `json:"codebase_path"`
	MetadataPath       string       `json:"metadata_path"`
	OverallStatus      Status       `json:"overall_status"`
	IsValid            bool         `json:"is_valid"`
	TotalExecutionTime float64      `json:"total_execution_time"`
	Timestamp          time.Time    `json:"timestamp"`
	StepResults        []StepResult `json:"step_results"`
}

// AddStepResult appends a step result and accumulates execution time.
func (r *ValidationReport) AddStepResult(step StepResult) {
	r.StepResults = append(r.StepResults, step)
	r.TotalExecutionTime += step.ExecutionTime
}

// Finalize derives the overall status from the recorded steps: invalid if
// any step is invalid, error if any step errored, valid otherwise. Skipped
// steps never count as passed or failed.
func (r *ValidationReport) Finalize() {
	status := StatusValid
	for _, step := range r.StepResults {
		if step.Status == StatusInvalid {
			status = StatusInvalid
			break
		}
		if step.Status == StatusError {
			status = StatusError
		}
	}
	r.OverallStatus = status
	r.IsValid = status == StatusValid
}

// TotalErrorCount sums error problems across all steps.
func (r *ValidationReport) TotalErrorCount() int {
	n := 0
	for i := range r.StepResults {
		n += r.StepResults[i].ErrorCount()
	}
	return n
}

// TotalWarningCount sums warning problems across all steps.
func (r *ValidationReport) TotalWarningCount() int {
	n := 0
	for i := range r.StepResults {
		n += r.StepResults[i].WarningCount()
	}
	return n
}

// =============================================================================
// CODE GENERATION TYPES
// =============================================================================

// ChangeKind describes how a CodeChange is applied to the output tree.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeModify ChangeKind = "modify"
	ChangeAppend ChangeKind = "append"
)

// CodeChange is one file-level change produced for a requirement.
type CodeChange struct {
	FilePath      string     `json:"file_path"`
	Kind          ChangeKind `json:"change_kind"`
	Content       string     `json:"content"`
	RequirementID string     `json:"requirement_id,omitempty"`
}

// GenerationProblem records a recoverable failure during batch generation.
type GenerationProblem struct {
	Severity      string `json:"severity"`
	Category      string `json:"category"` // ai, extraction, integration
	Message       string `json:"message"`
	RequirementID string `json:"requirement_id,omitempty"`
}

// GenerationResult summarizes a generation batch. One requirement failing
// never aborts the batch; failures land in Problems.
type GenerationResult struct {
	RequirementsProcessed   int                 `json:"requirements_processed"`
	RequirementsImplemented int                 `json:"requirements_implemented"`
	RequirementsFailed      int                 `json:"requirements_failed"`
	Changes                 []CodeChange        `json:"changes"`
	Problems                []GenerationProblem `json:"problems,omitempty"`
	FilesCreated            []string            `json:"files_created,omitempty"`
	FilesModified           []string            `json:"files_modified,omitempty"`
	ExecutionTime           float64             `json:"execution_time"`
}

// AddProblem records a generation problem.
func (r *GenerationResult) AddProblem(severity, category, message, requirementID string) {
	r.Problems = append(r.Problems, GenerationProblem{
		Severity:      severity,
		Category:      category,
		Message:       message,
		RequirementID: requirementID,
	})
}
