// Package store persists per-subject role artifacts as JSON files. One file per
// identifier keeps concurrent workers write-disjoint without locking and makes
// an existing valid artifact the resumption marker.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

const (
	artifactExt = ".json"
	chunkPrefix = "grad_committees_chunk_"
)

// FileStore keeps artifacts in a single flat directory.
type FileStore struct {
	dir string
}

var _ ports.RoleStore = (*FileStore)(nil)

// NewFileStore ensures the directory exists and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// ParseIdentifier extracts a subject identifier from an artifact filename.
// Only purely numeric stems qualify; anything else is not an artifact.
func ParseIdentifier(filename string) (string, bool) {
	stem, ok := strings.CutSuffix(filename, artifactExt)
	if !ok || stem == "" {
		return "", false
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return stem, true
}

// ExistsAndValid reports whether a parseable artifact exists for id.
func (s *FileStore) ExistsAndValid(id string) bool {
	_, err := s.Read(id)
	return err == nil
}

// Read returns the parsed roles for id, ports.ErrMissingArtifact when no file
// exists, or ports.ErrCorruptArtifact when the file does not parse as a list.
func (s *FileStore) Read(id string) ([]domain.CommitteeRole, error) {
	raw, err := os.ReadFile(s.entityPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrMissingArtifact
		}
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}

	roles, ok := decodeRoles(raw)
	if !ok {
		return nil, ports.ErrCorruptArtifact
	}
	return roles, nil
}

// Write atomically replaces the artifact for id. The temp-file-then-rename
// dance means a crashed writer never leaves a half-written artifact behind to
// poison the resumption check.
func (s *FileStore) Write(id string, roles []domain.CommitteeRole) error {
	if roles == nil {
		roles = []domain.CommitteeRole{}
	}
	return s.writeJSON(s.entityPath(id), roles)
}

// WriteChunk replaces the legacy grouped artifact for one chunk invocation.
// The replacement carries only the invocation's own results: entries skipped
// through journal resumption contributed nothing, so a resumed run shrinks
// the artifact to what it refetched. Chunked-mode reruns over partial data
// should start from a cleared progress log when the full grouping matters.
func (s *FileStore) WriteChunk(chunkIndex int, grouped domain.MergedDataset) error {
	if grouped == nil {
		grouped = domain.MergedDataset{}
	}
	name := fmt.Sprintf("%s%d%s", chunkPrefix, chunkIndex, artifactExt)
	return s.writeJSON(filepath.Join(s.dir, name), grouped)
}

// Scan enumerates artifacts of the given layout. Filenames matching neither
// layout's pattern are skipped without comment; unparseable contents surface as
// corrupt entries so the aggregator can count rather than fail.
func (s *FileStore) Scan(mode config.OutputMode) ([]ports.ScanEntry, error) {
	names, err := s.listFiles()
	if err != nil {
		return nil, err
	}

	var entries []ports.ScanEntry
	for _, name := range names {
		switch mode {
		case config.ModeChunked:
			if !strings.HasPrefix(name, chunkPrefix) || !strings.HasSuffix(name, artifactExt) {
				continue
			}
			entries = append(entries, s.scanChunk(name)...)
		default:
			id, ok := ParseIdentifier(name)
			if !ok {
				continue
			}
			entries = append(entries, s.scanEntity(id, name))
		}
	}

	return entries, nil
}

func (s *FileStore) scanEntity(id, name string) ports.ScanEntry {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ports.ScanEntry{ID: id, Corrupt: true}
	}
	roles, ok := decodeRoles(raw)
	if !ok {
		return ports.ScanEntry{ID: id, Corrupt: true}
	}
	return ports.ScanEntry{ID: id, Roles: roles}
}

func (s *FileStore) scanChunk(name string) []ports.ScanEntry {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return []ports.ScanEntry{{Corrupt: true}}
	}

	var grouped domain.MergedDataset
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return []ports.ScanEntry{{Corrupt: true}}
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]ports.ScanEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, ports.ScanEntry{ID: id, Roles: grouped[id]})
	}
	return entries
}

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace artifact %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) listFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *FileStore) entityPath(id string) string {
	return filepath.Join(s.dir, id+artifactExt)
}

// decodeRoles accepts only a JSON array of role-shaped objects. JSON null
// unmarshals into a nil slice without error, so the shape check is explicit.
func decodeRoles(raw []byte) ([]domain.CommitteeRole, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var roles []domain.CommitteeRole
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, false
	}
	if roles == nil {
		roles = []domain.CommitteeRole{}
	}
	return roles, true
}
