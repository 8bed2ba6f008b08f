package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

// HarvesterDeps wires the driven adapters into the chunk scheduler.
type HarvesterDeps struct {
	Fetcher *Fetcher
	Store   ports.RoleStore
	Journal ports.Journal
	Logger  *slog.Logger
}

// Harvester runs one chunk of the worklist: a bounded parallel pass over every
// entry, then a serial second pass over the failed and empty ones. Serial
// retries trade throughput for success rate; a second concurrent burst at an
// already-struggling upstream mostly buys more rate-limiting.
type Harvester struct {
	fetcher *Fetcher
	store   ports.RoleStore
	journal ports.Journal
	logger  *slog.Logger
	workers int
	mode    config.OutputMode
	chunk   int
}

// Summary is the final per-outcome tally for one chunk invocation.
type Summary struct {
	Processed int
	Fetched   int
	Empty     int
	Skipped   int
	Failed    int
	Exhausted int
	Retried   int
}

// NewHarvester builds the scheduler for one chunk invocation.
func NewHarvester(deps HarvesterDeps, workers int, mode config.OutputMode, chunkIndex int) *Harvester {
	return &Harvester{
		fetcher: deps.Fetcher,
		store:   deps.Store,
		journal: deps.Journal,
		logger:  deps.Logger,
		workers: workers,
		mode:    mode,
		chunk:   chunkIndex,
	}
}

// HarvestWorkers sizes the pool for one invocation. Retry runs work through a
// registry of prior failures, usually against an upstream that was already
// struggling, so they fall back to a single worker unless the operator sized
// the pool explicitly.
func HarvestWorkers(configured int, explicit, retryMode bool) int {
	if retryMode && !explicit {
		return 1
	}
	return configured
}

// Run processes the chunk to completion. Per-entry failures are data, never
// errors; the returned error covers only infrastructure the whole run needs
// (the journal's completed-set and the chunk artifact write).
func (h *Harvester) Run(ctx context.Context, chunk []domain.Profile) (Summary, error) {
	completed, err := h.completedSet()
	if err != nil {
		return Summary{}, err
	}

	results := h.parallelPass(ctx, chunk, completed)

	retried := h.serialPass(ctx, results)

	if h.mode == config.ModeChunked {
		if err := h.store.WriteChunk(h.chunk, groupResults(results)); err != nil {
			return Summary{}, fmt.Errorf("write chunk artifact: %w", err)
		}
	}

	failures := collectFailures(results)
	if err := h.journal.WriteFailures(failures); err != nil {
		h.logger.Warn("could not write failure registry", "error", err)
	}

	summary := tally(results)
	summary.Retried = retried
	h.logger.Info("chunk complete",
		"chunk", h.chunk,
		"processed", summary.Processed,
		"fetched", summary.Fetched,
		"empty", summary.Empty,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"exhausted", summary.Exhausted,
		"retried", summary.Retried)

	return summary, nil
}

// completedSet is the chunked-mode resumption signal. Per-entity mode resumes
// off artifacts instead, checked per entry inside processEntry.
func (h *Harvester) completedSet() (map[string]struct{}, error) {
	if h.mode != config.ModeChunked {
		return nil, nil
	}
	completed, err := h.journal.CompletedIDs()
	if err != nil {
		return nil, fmt.Errorf("load completed set: %w", err)
	}
	return completed, nil
}

// parallelPass dispatches every entry to a bounded pool and collects outcomes
// in completion order, stored back by index so the retry pass can pair each
// result with its profile. Workers never return errors; the group exists only
// for its concurrency limit.
func (h *Harvester) parallelPass(ctx context.Context, chunk []domain.Profile, completed map[string]struct{}) []domain.Result {
	results := make([]domain.Result, len(chunk))

	var g errgroup.Group
	g.SetLimit(h.workers)
	for i, profile := range chunk {
		i, profile := i, profile
		g.Go(func() error {
			results[i] = h.processEntry(ctx, profile, completed, false)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// serialPass re-runs every retry-eligible entry one at a time, after all
// concurrent attempts have finished. Resumption checks are bypassed: a written
// empty artifact must not mask the refetch it scheduled.
func (h *Harvester) serialPass(ctx context.Context, results []domain.Result) int {
	retried := 0
	for i, result := range results {
		if !result.Retryable() {
			continue
		}
		retried++
		h.logger.Debug("serial retry", "id", result.Profile.DiscoveryID, "prior", result.Outcome)
		results[i] = h.processEntry(ctx, result.Profile, nil, true)
	}
	return retried
}

// processEntry handles one profile end to end: resumption check, fetch,
// immediate persistence, journal line. Used by both passes.
func (h *Harvester) processEntry(ctx context.Context, profile domain.Profile, completed map[string]struct{}, force bool) domain.Result {
	id := profile.DiscoveryID
	if id == "" {
		return domain.Result{Profile: profile, Outcome: domain.OutcomeSkipped}
	}

	if !force && h.resumed(id, completed) {
		h.logger.Debug("already harvested", "id", id)
		return domain.Result{Profile: profile, Outcome: domain.OutcomeSkipped}
	}

	result := h.fetcher.Fetch(ctx, profile)

	if h.mode == config.ModePerEntity {
		switch result.Outcome {
		case domain.OutcomeFetched, domain.OutcomeEmpty:
			if err := h.store.Write(id, result.Roles); err != nil {
				h.logger.Warn("persist failed", "id", id, "error", err)
				result = domain.Result{Profile: profile, Outcome: domain.OutcomeFailed, Err: err}
			}
		}
	}

	h.journal.Record(id, profile.Name(), result.Outcome)
	h.logResult(result)
	return result
}

func (h *Harvester) resumed(id string, completed map[string]struct{}) bool {
	if h.mode == config.ModeChunked {
		_, ok := completed[id]
		return ok
	}
	return h.store.ExistsAndValid(id)
}

func (h *Harvester) logResult(result domain.Result) {
	switch result.Outcome {
	case domain.OutcomeFetched:
		h.logger.Info("harvested", "id", result.Profile.DiscoveryID, "name", result.Profile.Name(), "roles", len(result.Roles))
	case domain.OutcomeEmpty:
		h.logger.Info("no committee roles", "id", result.Profile.DiscoveryID, "name", result.Profile.Name())
	case domain.OutcomeFailed, domain.OutcomeExhausted:
		h.logger.Warn("entry failed", "id", result.Profile.DiscoveryID, "outcome", result.Outcome, "error", result.Err)
	}
}

// groupResults builds the legacy grouped mapping; only non-empty role lists
// appear, matching the layout merge expects from chunk artifacts.
func groupResults(results []domain.Result) domain.MergedDataset {
	grouped := domain.MergedDataset{}
	for _, result := range results {
		if result.Outcome == domain.OutcomeFetched && len(result.Roles) > 0 {
			grouped[result.Profile.DiscoveryID] = append(grouped[result.Profile.DiscoveryID], result.Roles...)
		}
	}
	return grouped
}

// collectFailures lists entries still failed or exhausted after the serial
// pass, for the error registry a retry-mode run consumes.
func collectFailures(results []domain.Result) []domain.Profile {
	var failures []domain.Profile
	for _, result := range results {
		switch result.Outcome {
		case domain.OutcomeFailed, domain.OutcomeExhausted:
			failures = append(failures, result.Profile)
		}
	}
	return failures
}

func tally(results []domain.Result) Summary {
	summary := Summary{Processed: len(results)}
	for _, result := range results {
		switch result.Outcome {
		case domain.OutcomeFetched:
			summary.Fetched++
		case domain.OutcomeEmpty:
			summary.Empty++
		case domain.OutcomeSkipped:
			summary.Skipped++
		case domain.OutcomeFailed:
			summary.Failed++
		case domain.OutcomeExhausted:
			summary.Exhausted++
		}
	}
	return summary
}
