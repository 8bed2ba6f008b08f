package usecase

import "CommitteeHarvester/internal/domain"

// Partition selects one invocation's contiguous slice of the worklist. With a
// restrict set, the worklist is first filtered to member identifiers in
// original order. Chunk size is len/total + 1, so the final chunk runs short
// and is fully empty whenever the length divides evenly; downstream tooling
// counts on a consistent chunk count, so that stays. Chunk assignment is only
// stable while total stays fixed across the whole distributed run.
func Partition(profiles []domain.Profile, index, total int, restrict map[string]struct{}) []domain.Profile {
	if total < 1 || index < 0 || index >= total {
		return nil
	}

	if restrict != nil {
		filtered := make([]domain.Profile, 0, len(restrict))
		for _, p := range profiles {
			if _, ok := restrict[p.DiscoveryID]; ok {
				filtered = append(filtered, p)
			}
		}
		profiles = filtered
	}

	size := len(profiles)/total + 1
	start := index * size
	if start >= len(profiles) {
		return nil
	}

	end := start + size
	if end > len(profiles) {
		end = len(profiles)
	}
	return profiles[start:end]
}
