// Package journal writes the per-chunk progress log and failure registry.
// Lines are plain CSV for eyeballing with tail and grep; only the identifier
// and outcome fields are ever read back programmatically.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

// FileJournal appends progress lines for one chunk invocation.
type FileJournal struct {
	mu           sync.Mutex
	progressPath string
	errorPath    string
}

var _ ports.Journal = (*FileJournal)(nil)

// New ensures the log directory exists and returns a journal scoped to the
// given chunk index.
func New(logDir string, chunkIndex int) (*FileJournal, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", logDir, err)
	}
	return &FileJournal{
		progressPath: filepath.Join(logDir, fmt.Sprintf("chunk_%d_grad_committee_fetch.log", chunkIndex)),
		errorPath:    filepath.Join(logDir, fmt.Sprintf("chunk_%d_grad_committee_errors.log", chunkIndex)),
	}, nil
}

// Record appends one identifier,name,outcome line. Append failures are dropped:
// the journal is diagnostic and must never take the pipeline down with it.
func (j *FileJournal) Record(id, name string, outcome domain.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.progressPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(f, "%s,%s,%s\n", id, sanitize(name), outcome)
	_ = f.Close()
}

// CompletedIDs rebuilds the set of identifiers already harvested by earlier
// runs of this chunk. Only fetched and empty lines count: a failed or
// exhausted entry must be refetched on the next run, so its journal line is
// diagnostic, never a completion. A missing log means a fresh run, not an
// error.
func (j *FileJournal) CompletedIDs() (map[string]struct{}, error) {
	f, err := os.Open(j.progressPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("open progress log: %w", err)
	}
	defer f.Close()

	completed := map[string]struct{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id, rest, _ := strings.Cut(strings.TrimSpace(scanner.Text()), ",")
		if id == "" {
			continue
		}
		// Names are sanitized on write, so the outcome is always field three.
		_, outcome, _ := strings.Cut(rest, ",")
		switch domain.Outcome(outcome) {
		case domain.OutcomeFetched, domain.OutcomeEmpty:
			completed[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read progress log: %w", err)
	}
	return completed, nil
}

// WriteFailures replaces the error registry with the run's remaining failures,
// one identifier,name line per profile, ready for a retry-mode invocation.
func (j *FileJournal) WriteFailures(profiles []domain.Profile) error {
	var b strings.Builder
	for _, p := range profiles {
		fmt.Fprintf(&b, "%s,%s\n", p.DiscoveryID, sanitize(p.Name()))
	}

	if err := os.WriteFile(j.errorPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write error registry: %w", err)
	}
	return nil
}

// sanitize keeps display names from breaking the one-record-per-line format.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\n", " ")
	return strings.ReplaceAll(name, ",", " ")
}
