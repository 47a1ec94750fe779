// Package requirements loads requirement lists from CSV or JSON and
// computes which entries are new or changed against a baseline.
package requirements

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// Set holds requirements keyed by ID while preserving the order they were
// added in. Diff output and generation batches follow that order.
type Set struct {
	order []string
	byID  map[string]types.Requirement
}

// NewSet returns an empty requirement set.
func NewSet() *Set {
	return &Set{byID: make(map[string]types.Requirement)}
}

// Add inserts or replaces a requirement. A repeated ID keeps its original
// position but takes the newer description.
func (s *Set) Add(req types.Requirement) {
	if _, exists := s.byID[req.ID]; !exists {
		s.order = append(s.order, req.ID)
	}
	s.byID[req.ID] = req
}

// Get looks up a requirement by ID.
func (s *Set) Get(id string) (types.Requirement, bool) {
	req, ok := s.byID[id]
	return req, ok
}

// Len returns the number of requirements in the set.
func (s *Set) Len() int { return len(s.order) }

// All returns the requirements in insertion order.
func (s *Set) All() []types.Requirement {
	reqs := make([]types.Requirement, 0, len(s.order))
	for _, id := range s.order {
		reqs = append(reqs, s.byID[id])
	}
	return reqs
}

// DiffResult lists candidate requirements that are new or whose
// description changed. Requirements present only in the baseline are not
// reported; removal is out of scope for generation.
type DiffResult struct {
	Added    []types.Requirement `json:"added"`
	Modified []types.Requirement `json:"modified"`
}

// Empty reports whether the diff found no work.
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0
}

// Diff compares candidate against baseline, preserving candidate order in
// both result lists.
func Diff(baseline, candidate *Set) *DiffResult {
	result := &DiffResult{
		Added:    []types.Requirement{},
		Modified: []types.Requirement{},
	}
	for _, req := range candidate.All() {
		old, ok := baseline.Get(req.ID)
		switch {
		case !ok:
			result.Added = append(result.Added, req)
		case old.Description != req.Description:
			result.Modified = append(result.Modified, req)
		}
	}
	return result
}

// Load reads a requirement file, choosing the parser by extension.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(data)
	case ".json":
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported requirements format: %s", path)
	}
}

// parseCSV expects an "id,description" header row. Descriptions are
// whitespace trimmed; rows with an empty ID are skipped.
func parseCSV(data []byte) (*Set, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing requirements csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("requirements csv is empty")
	}

	header := records[0]
	idCol, descCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			idCol = i
		case "description":
			descCol = i
		}
	}
	if idCol < 0 || descCol < 0 {
		return nil, fmt.Errorf("requirements csv must have id and description columns")
	}

	set := NewSet()
	for _, record := range records[1:] {
		if idCol >= len(record) || descCol >= len(record) {
			continue
		}
		id := strings.TrimSpace(record[idCol])
		if id == "" {
			continue
		}
		set.Add(types.Requirement{
			ID:          id,
			Description: strings.TrimSpace(record[descCol]),
		})
	}
	return set, nil
}

// parseJSON accepts a list of {id, description} objects.
func parseJSON(data []byte) (*Set, error) {
	var reqs []types.Requirement
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parsing requirements json: %w", err)
	}
	set := NewSet()
	for _, req := range reqs {
		req.ID = strings.TrimSpace(req.ID)
		if req.ID == "" {
			continue
		}
		req.Description = strings.TrimSpace(req.Description)
		set.Add(req)
	}
	return set, nil
}
