package ports

import (
	"context"
	"errors"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
)

// ErrMissingArtifact reports that no artifact exists for an identifier.
var ErrMissingArtifact = errors.New("artifact missing")

// ErrCorruptArtifact reports that an artifact exists but does not parse as a
// role list. Readers treat it the same as missing: refetch or skip-with-count.
var ErrCorruptArtifact = errors.New("artifact corrupt")

// ActivitySource queries the directory for activities linked to one subject.
type ActivitySource interface {
	LinkedActivities(ctx context.Context, objectID string) ([]domain.Activity, error)
}

// DirectorySource pages through the directory's user listing for the crawl.
type DirectorySource interface {
	SearchPage(ctx context.Context, page int) ([]domain.Profile, error)
}

// ScanEntry is one artifact parse attempt surfaced by RoleStore.Scan. Corrupt
// entries carry no roles; the aggregator counts them instead of failing.
type ScanEntry struct {
	ID      string
	Roles   []domain.CommitteeRole
	Corrupt bool
}

// RoleStore persists per-subject role artifacts and enumerates them for merging.
type RoleStore interface {
	// ExistsAndValid reports whether a parseable artifact exists for id.
	ExistsAndValid(id string) bool
	// Write atomically replaces the artifact for id, empty lists included.
	Write(id string, roles []domain.CommitteeRole) error
	// Read returns the parsed roles, ErrMissingArtifact, or ErrCorruptArtifact.
	Read(id string) ([]domain.CommitteeRole, error)
	// WriteChunk replaces the legacy grouped artifact for one chunk invocation.
	WriteChunk(chunkIndex int, grouped domain.MergedDataset) error
	// Scan enumerates artifacts of the given layout in directory order,
	// silently skipping filenames that match neither layout's pattern.
	Scan(mode config.OutputMode) ([]ScanEntry, error)
}

// Journal records per-entry progress lines and the failure registry consumed by
// retry-mode runs. Diagnostic output; never parsed beyond the first CSV field.
type Journal interface {
	Record(id, name string, outcome domain.Outcome)
	// CompletedIDs rebuilds the set of already-journaled identifiers, the
	// resumption signal for chunked-mode runs.
	CompletedIDs() (map[string]struct{}, error)
	// WriteFailures rewrites the error registry with the run's failed entries.
	WriteFailures(profiles []domain.Profile) error
}

// RoleSink loads merged role records into relational storage.
type RoleSink interface {
	UpsertRoles(ctx context.Context, roles []domain.CommitteeRole) error
}
