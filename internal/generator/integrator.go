package generator

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// ErrMissingTargetFile means a modify change named a file that does not
// exist; modify never creates implicitly.
var ErrMissingTargetFile = errors.New("target file does not exist")

// ErrFileExists means a create change would overwrite an existing file.
var ErrFileExists = errors.New("target file already exists")

// Integrator applies code changes to an output tree. It never drops
// existing content: appends go after the current content, modifies
// replace whole files only when the file exists, creates refuse to
// clobber.
type Integrator struct {
	root string
}

// NewIntegrator creates an integrator rooted at the output directory.
func NewIntegrator(root string) *Integrator {
	return &Integrator{root: root}
}

// Apply writes each change in order, stopping at the first failure and
// reporting which change broke. Earlier changes stay applied; the caller
// decides whether to re-validate or roll back via version control.
func (in *Integrator) Apply(changes []types.CodeChange) error {
	for _, change := range changes {
		if err := in.applyOne(change); err != nil {
			return fmt.Errorf("applying %s to %s: %w", change.Kind, change.FilePath, err)
		}
	}
	return nil
}

func (in *Integrator) applyOne(change types.CodeChange) error {
	if filepath.IsAbs(change.FilePath) || strings.Contains(change.FilePath, "..") {
		return fmt.Errorf("refusing path outside output tree: %s", change.FilePath)
	}
	target := filepath.Join(in.root, change.FilePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	content := normalizeTrailingNewline(change.Content)

	switch change.Kind {
	case types.ChangeCreate:
		if _, err := os.Stat(target); err == nil {
			return ErrFileExists
		}
		slog.Debug("creating file", "path", change.FilePath)
		return os.WriteFile(target, []byte(content), 0o644)

	case types.ChangeModify:
		if _, err := os.Stat(target); err != nil {
			return ErrMissingTargetFile
		}
		slog.Debug("modifying file", "path", change.FilePath)
		return os.WriteFile(target, []byte(content), 0o644)

	case types.ChangeAppend:
		existing, err := os.ReadFile(target)
		if err != nil {
			if os.IsNotExist(err) {
				return os.WriteFile(target, []byte(content), 0o644)
			}
			return err
		}
		merged := normalizeTrailingNewline(string(existing)) + "\n" + content
		slog.Debug("appending to file", "path", change.FilePath)
		return os.WriteFile(target, []byte(merged), 0o644)

	default:
		return fmt.Errorf("unknown change kind: %s", change.Kind)
	}
}

// normalizeTrailingNewline guarantees exactly one trailing newline.
func normalizeTrailingNewline(s string) string {
	return strings.TrimRight(s, "\n") + "\n"
}
