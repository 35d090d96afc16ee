package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunSummary records what one pipeline run did. It is informational
// output, written after a successful run; failing to persist it never
// fails the run itself.
type RunSummary struct {
	ExecutionHour  string            `json:"execution_hour"`
	StartedAt      string            `json:"started_at"`
	Duration       string            `json:"duration"`
	StageDurations map[string]string `json:"stage_durations"`
	RowsInserted   int64             `json:"rows_inserted"`
	RowsSkipped    int64             `json:"rows_skipped"`
	TopPage        *TopPage          `json:"top_page,omitempty"`
}

// writeRunSummary persists the summary as JSON, writing to a temp file
// first and renaming so readers never observe a partial file.
func writeRunSummary(path string, summary *RunSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename run summary: %w", err)
	}
	return nil
}
