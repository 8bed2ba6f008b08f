package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

// MergeStats reports what the fold saw: artifacts merged into the output,
// unique subject keys, corrupt files skipped, and valid-but-empty artifacts
// excluded from the output.
type MergeStats struct {
	Merged     int
	UniqueKeys int
	Skipped    int
	Empty      int
}

// Merge folds every artifact in the store into one merged dataset. Corrupt or
// wrongly-shaped files are counted and skipped, never fatal. Valid empty
// artifacts are counted but contribute no key. Repeated keys concatenate,
// which only happens with overlapping legacy chunk artifacts.
func Merge(roleStore ports.RoleStore, mode config.OutputMode, logger *slog.Logger) (domain.MergedDataset, MergeStats, error) {
	entries, err := roleStore.Scan(mode)
	if err != nil {
		return nil, MergeStats{}, fmt.Errorf("scan artifacts: %w", err)
	}

	dataset := domain.MergedDataset{}
	var stats MergeStats
	for _, entry := range entries {
		switch {
		case entry.Corrupt:
			stats.Skipped++
			logger.Warn("skipping corrupt artifact", "id", entry.ID)
		case len(entry.Roles) == 0:
			stats.Empty++
		default:
			dataset[entry.ID] = append(dataset[entry.ID], entry.Roles...)
			stats.Merged++
		}
	}
	stats.UniqueKeys = len(dataset)

	logger.Info("merge complete",
		"merged", stats.Merged,
		"unique_keys", stats.UniqueKeys,
		"skipped", stats.Skipped,
		"empty", stats.Empty)

	return dataset, stats, nil
}

// WriteMerged fully replaces the merged output file. The dataset is always
// recomputed from scratch, so there is nothing to preserve.
func WriteMerged(path string, dataset domain.MergedDataset) error {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal merged dataset: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write merged dataset: %w", err)
	}
	return nil
}

// ReadMerged loads a merged dataset, the load stage's input.
func ReadMerged(path string) (domain.MergedDataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read merged dataset: %w", err)
	}

	var dataset domain.MergedDataset
	if err := json.Unmarshal(raw, &dataset); err != nil {
		return nil, fmt.Errorf("parse merged dataset: %w", err)
	}
	return dataset, nil
}
