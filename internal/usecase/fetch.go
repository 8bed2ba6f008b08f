package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"CommitteeHarvester/internal/classify"
	"CommitteeHarvester/internal/config"
	"CommitteeHarvester/internal/domain"
	"CommitteeHarvester/internal/ports"
)

// Fetcher resolves one profile's committee activities from the directory and
// classifies them into roles. It owns the retry policy; the transport client
// only reports status codes.
type Fetcher struct {
	source ports.ActivitySource
	retry  config.RetryConfig
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewFetcher wires the activity source and retry settings.
func NewFetcher(source ports.ActivitySource, retry config.RetryConfig, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		retry:  retry,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Fetch produces exactly one result for the profile. Candidate identifiers are
// tried in order (URL id first, then the numeric id); the first candidate with
// any matching activities wins and results are never merged across candidates.
// Transient failures restart the whole candidate loop after a backoff, up to
// the attempt budget; terminal failures end the fetch immediately.
func (f *Fetcher) Fetch(ctx context.Context, profile domain.Profile) domain.Result {
	if strings.TrimSpace(profile.DiscoveryID) == "" {
		return domain.Result{Profile: profile, Outcome: domain.OutcomeSkipped}
	}

	candidates := candidateIDs(profile)

	var lastErr error
	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		matches, err := f.tryCandidates(ctx, candidates)
		if err == nil {
			roles := classify.Roles(profile, matches)
			outcome := domain.OutcomeFetched
			if len(roles) == 0 {
				outcome = domain.OutcomeEmpty
			}
			return domain.Result{Profile: profile, Roles: roles, Outcome: outcome}
		}

		if !domain.TransientFailure(err) {
			f.debug("terminal fetch failure", "id", profile.DiscoveryID, "error", err)
			return domain.Result{Profile: profile, Outcome: domain.OutcomeFailed, Err: err}
		}

		lastErr = err
		f.debug("transient fetch failure", "id", profile.DiscoveryID, "attempt", attempt, "error", err)
		if attempt < f.retry.MaxAttempts {
			f.sleep(f.retry.Backoff())
		}
	}

	return domain.Result{Profile: profile, Outcome: domain.OutcomeExhausted, Err: lastErr}
}

// tryCandidates runs one pass over the candidate list. Any request error aborts
// the pass; a candidate that succeeds with zero matches just yields to the next
// one. Exhausting all candidates without matches is a valid empty result.
func (f *Fetcher) tryCandidates(ctx context.Context, candidates []string) ([]domain.Activity, error) {
	for _, candidate := range candidates {
		activities, err := f.source.LinkedActivities(ctx, candidate)
		if err != nil {
			return nil, err
		}

		matches := filterCommittee(activities)
		if len(matches) > 0 {
			return matches, nil
		}
	}
	return nil, nil
}

func candidateIDs(profile domain.Profile) []string {
	candidates := make([]string, 0, 2)
	for _, id := range []string{profile.DiscoveryURLID, profile.DiscoveryID} {
		if strings.TrimSpace(id) != "" {
			candidates = append(candidates, id)
		}
	}
	return candidates
}

func filterCommittee(activities []domain.Activity) []domain.Activity {
	var matches []domain.Activity
	for _, activity := range activities {
		if activity.ObjectTypeDisplayName == domain.ActivityTypeCommittee {
			matches = append(matches, activity)
		}
	}
	return matches
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
