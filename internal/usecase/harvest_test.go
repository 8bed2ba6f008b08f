package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/infrastructure/journal"
	"CommitteeHarvester/internal/ports"
)

// memStore is an in-memory ports.RoleStore for scheduler tests.
type memStore struct {
	mu        sync.Mutex
	artifacts map[string][]domain.CommitteeRole
	chunks    map[int]domain.MergedDataset
	writes    int
}

func newMemStore() *memStore {
	return &memStore{
		artifacts: map[string][]domain.CommitteeRole{},
		chunks:    map[int]domain.MergedDataset{},
	}
}

func (m *memStore) ExistsAndValid(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.artifacts[id]
	return ok
}

func (m *memStore) Write(id string, roles []domain.CommitteeRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roles == nil {
		roles = []domain.CommitteeRole{}
	}
	m.artifacts[id] = roles
	m.writes++
	return nil
}

func (m *memStore) Read(id string) ([]domain.CommitteeRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles, ok := m.artifacts[id]
	if !ok {
		return nil, ports.ErrMissingArtifact
	}
	return roles, nil
}

func (m *memStore) WriteChunk(chunkIndex int, grouped domain.MergedDataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunkIndex] = grouped
	return nil
}

func (m *memStore) Scan(config.OutputMode) ([]ports.ScanEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.artifacts))
	for id := range m.artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entries := make([]ports.ScanEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, ports.ScanEntry{ID: id, Roles: m.artifacts[id]})
	}
	return entries, nil
}

// memJournal records progress lines in memory.
type memJournal struct {
	mu        sync.Mutex
	lines     []string
	completed map[string]struct{}
	failures  []domain.Profile
}

func newMemJournal() *memJournal {
	return &memJournal{completed: map[string]struct{}{}}
}

func (m *memJournal) Record(id, name string, outcome domain.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, fmt.Sprintf("%s,%s,%s", id, name, outcome))
}

func (m *memJournal) CompletedIDs() (map[string]struct{}, error) {
	return m.completed, nil
}

func (m *memJournal) WriteFailures(profiles []domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = profiles
	return nil
}

// flakySource fails a set number of times per object id before succeeding.
type flakySource struct {
	mu        sync.Mutex
	responses map[string][]domain.Activity
	failures  map[string]int
	failWith  error
	requests  int
}

func (s *flakySource) LinkedActivities(_ context.Context, objectID string) ([]domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.failures[objectID] > 0 {
		s.failures[objectID]--
		return nil, s.failWith
	}
	return s.responses[objectID], nil
}

func noSleep(time.Duration) {}

func TestHarvestPersistsImmediatelyAndTallies(t *testing.T) {
	t.Parallel()

	source := &flakySource{responses: map[string][]domain.Activity{
		"1": {{DiscoveryID: "a1", Title: "Thesis Committee (Committee Member)", ObjectTypeDisplayName: domain.ActivityTypeCommittee}},
		"2": {},
	}}
	st := newMemStore()
	j := newMemJournal()

	h := buildHarvester(t, source, st, j, 4, config.ModePerEntity)
	summary, err := h.Run(context.Background(), []domain.Profile{
		{DiscoveryID: "1", FirstNameLastName: "One"},
		{DiscoveryID: "2", FirstNameLastName: "Two"},
		{FirstNameLastName: "No ID"},
	})
	require.NoError(t, err)

	require.Equal(t, 3, summary.Processed)
	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Empty)
	require.Equal(t, 1, summary.Skipped)
	require.Zero(t, summary.Failed)
	require.Zero(t, summary.Exhausted)
	// The empty entry went through the serial pass and stayed empty.
	require.Equal(t, 1, summary.Retried)

	roles, err := st.Read("1")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	empty, err := st.Read("2")
	require.NoError(t, err)
	require.Empty(t, empty)
	require.Empty(t, j.failures)
}

func TestHarvestResumptionSkipsFetch(t *testing.T) {
	t.Parallel()

	source := &flakySource{responses: map[string][]domain.Activity{}}
	st := newMemStore()
	require.NoError(t, st.Write("1", []domain.CommitteeRole{{UserDiscoveryID: "1", Status: domain.StatusMember}}))
	writesBefore := st.writes
	j := newMemJournal()

	h := buildHarvester(t, source, st, j, 2, config.ModePerEntity)
	summary, err := h.Run(context.Background(), []domain.Profile{{DiscoveryID: "1"}})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Skipped)
	// Zero network requests and an untouched artifact.
	require.Zero(t, source.requests)
	require.Equal(t, writesBefore, st.writes)
	roles, err := st.Read("1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusMember, roles[0].Status)
}

func TestHarvestSerialPassRecoversTransientFailures(t *testing.T) {
	t.Parallel()

	// Two attempts per fetch; three failures queued, so the parallel pass
	// exhausts its budget and the serial pass succeeds on its second attempt.
	source := &flakySource{
		responses: map[string][]domain.Activity{
			"1": {{DiscoveryID: "a1", Title: "Thesis Committee (Committee Member & Mentor)", ObjectTypeDisplayName: domain.ActivityTypeCommittee}},
		},
		failures: map[string]int{"1": 3},
		failWith: &domain.StatusError{Code: 503},
	}
	st := newMemStore()
	j := newMemJournal()

	h := buildHarvester(t, source, st, j, 2, config.ModePerEntity)
	summary, err := h.Run(context.Background(), []domain.Profile{{DiscoveryID: "1", FirstNameLastName: "One"}})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Retried)
	require.Zero(t, summary.Exhausted)
	require.True(t, st.ExistsAndValid("1"))
	require.Empty(t, j.failures)
}

func TestHarvestTerminalFailureLandsInRegistry(t *testing.T) {
	t.Parallel()

	source := &flakySource{
		failures: map[string]int{"1": 100},
		failWith: &domain.StatusError{Code: 403},
	}
	st := newMemStore()
	j := newMemJournal()

	h := buildHarvester(t, source, st, j, 2, config.ModePerEntity)
	summary, err := h.Run(context.Background(), []domain.Profile{{DiscoveryID: "1", FirstNameLastName: "One"}})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Failed)
	require.False(t, st.ExistsAndValid("1"))
	require.Len(t, j.failures, 1)
	require.Equal(t, "1", j.failures[0].DiscoveryID)
}

func TestHarvestChunkedModeGroupsAndUsesJournalResumption(t *testing.T) {
	t.Parallel()

	source := &flakySource{responses: map[string][]domain.Activity{
		"1": {{DiscoveryID: "a1", Title: "Thesis Committee (Committee Member)", ObjectTypeDisplayName: domain.ActivityTypeCommittee}},
		"2": {{DiscoveryID: "a2", Title: "Thesis Committee (Committee Member)", ObjectTypeDisplayName: domain.ActivityTypeCommittee}},
	}}
	st := newMemStore()
	j := newMemJournal()
	j.completed["2"] = struct{}{}

	h := buildHarvester(t, source, st, j, 2, config.ModeChunked)
	summary, err := h.Run(context.Background(), []domain.Profile{
		{DiscoveryID: "1"},
		{DiscoveryID: "2"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, summary.Fetched)
	require.Equal(t, 1, summary.Skipped)

	grouped, ok := st.chunks[0]
	require.True(t, ok)
	require.Len(t, grouped, 1)
	require.Len(t, grouped["1"], 1)
	// No per-entity artifacts in chunked mode.
	require.False(t, st.ExistsAndValid("1"))
}

func TestHarvestWorkersDefaultsToSerialInRetryMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		explicit  bool
		retryMode bool
		want      int
	}{
		{"normal run keeps the pool", false, false, 4},
		{"retry run drops to one worker", false, true, 1},
		{"explicit sizing wins in retry mode", true, true, 4},
		{"explicit sizing outside retry mode", true, false, 4},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, HarvestWorkers(4, tc.explicit, tc.retryMode))
		})
	}
}

func TestHarvestChunkedModeRefetchesAfterFailure(t *testing.T) {
	t.Parallel()

	j, err := journal.New(t.TempDir(), 0)
	require.NoError(t, err)
	worklist := []domain.Profile{{DiscoveryID: "1", FirstNameLastName: "One"}}
	st := newMemStore()

	// First run: the upstream rejects the subject outright.
	down := &flakySource{
		failures: map[string]int{"1": 100},
		failWith: &domain.StatusError{Code: 403},
	}
	h := buildHarvester(t, down, st, j, 2, config.ModeChunked)
	first, err := h.Run(context.Background(), worklist)
	require.NoError(t, err)
	require.Equal(t, 1, first.Failed)

	// Second run with the same journal: the failed line must not read as a
	// completion, so the subject is fetched for real this time.
	up := &flakySource{responses: map[string][]domain.Activity{
		"1": {{DiscoveryID: "a1", Title: "Thesis Committee (Committee Member)", ObjectTypeDisplayName: domain.ActivityTypeCommittee}},
	}}
	h = buildHarvester(t, up, st, j, 2, config.ModeChunked)
	second, err := h.Run(context.Background(), worklist)
	require.NoError(t, err)

	require.Equal(t, 1, second.Fetched)
	require.Zero(t, second.Skipped)
	require.Positive(t, up.requests)
	require.Len(t, st.chunks[0]["1"], 1)
}

// buildHarvester assembles a Harvester with a no-op backoff sleep.
func buildHarvester(t *testing.T, source ports.ActivitySource, st ports.RoleStore, j ports.Journal, workers int, mode config.OutputMode) *Harvester {
	t.Helper()

	fetcher := NewFetcher(source, config.RetryConfig{MaxAttempts: 2, BackoffMs: 1}, nil)
	fetcher.sleep = noSleep
	return NewHarvester(HarvesterDeps{
		Fetcher: fetcher,
		Store:   st,
		Journal: j,
		Logger:  slog.Default(),
	}, workers, mode, 0)
}
