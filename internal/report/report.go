// Package report persists batch outcomes as JSON files.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smileynet/barista/internal/dispense"
	"github.com/smileynet/barista/internal/inventory"
	"github.com/smileynet/barista/internal/machine"
)

// ErrInvalidID is returned for report IDs that are not UUIDs.
var ErrInvalidID = errors.New("report: invalid id")

const ext = ".json"

// Report is one batch plus the stock levels observed after it finished.
type Report struct {
	ID       uuid.UUID         `json:"id"`
	Outlets  int               `json:"outlets"`
	Results  []dispense.Result `json:"results"`
	Stock    []inventory.Level `json:"stock"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
	Summary  map[string]int    `json:"summary"` // Result count per status.
}

// New builds a Report from a finished batch.
func New(b machine.Batch, stock []inventory.Level) Report {
	summary := make(map[string]int)
	for _, r := range b.Results {
		summary[string(r.Status)]++
	}
	return Report{
		ID:       b.ID,
		Outlets:  b.Outlets,
		Results:  b.Results,
		Stock:    stock,
		Started:  b.Started,
		Finished: b.Finished,
		Summary:  summary,
	}
}

// FileStore saves reports as <id>.json under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// Save writes r and returns the file path.
func (s *FileStore) Save(r Report) (string, error) {
	if r.ID == uuid.Nil {
		return "", fmt.Errorf("%w: nil uuid", ErrInvalidID)
	}
	p := s.path(r.ID)

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("report: creating directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshaling: %w", err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("report: writing %s: %w", p, err)
	}
	return p, nil
}

// Load reads the report with the given id.
// Returns (report, true, nil) if found, (zero, false, nil) if not found.
func (s *FileStore) Load(id string) (Report, bool, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return Report{}, false, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	p := s.path(u)

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Report{}, false, nil
		}
		return Report{}, false, fmt.Errorf("report: reading %s: %w", p, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, false, fmt.Errorf("report: parsing %s: %w", p, err)
	}
	return r, true, nil
}

// List returns the IDs of stored reports, oldest first by start time.
// A missing base directory yields an empty list.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: listing %s: %w", s.baseDir, err)
	}

	type stamped struct {
		id      string
		started time.Time
	}
	var found []stamped
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		r, ok, err := s.Load(id)
		if err != nil || !ok {
			continue
		}
		found = append(found, stamped{id: id, started: r.Started})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].started.Before(found[j].started) })

	ids := make([]string, len(found))
	for i, f := range found {
		ids[i] = f.id
	}
	return ids, nil
}

// Remove deletes the report with the given id. A missing report is not an error.
func (s *FileStore) Remove(id string) error {
	u, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	p := s.path(u)
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("report: removing %s: %w", p, err)
	}
	return nil
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.baseDir, id.String()+ext)
}
