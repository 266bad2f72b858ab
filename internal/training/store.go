package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunStore persists TrainingRun records as JSON files, one directory per run.
type RunStore struct {
	baseDir string
}

// NewRunStore creates a RunStore under <outputDir>/runs.
func NewRunStore(outputDir string) *RunStore {
	return &RunStore{baseDir: filepath.Join(outputDir, "runs")}
}

func (s *RunStore) runDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

func (s *RunStore) recordPath(id string) string {
	return filepath.Join(s.runDir(id), "run.json")
}

// Save persists a training run to disk.
func (s *RunStore) Save(run *TrainingRun) error {
	dir := s.runDir(run.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	// Write then rename so a crash never leaves a truncated record.
	tmp := s.recordPath(run.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	if err := os.Rename(tmp, s.recordPath(run.ID)); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	return nil
}
