package domain

// ActivityTypeCommittee is the only activity type the pipeline keeps; everything
// else returned by the directory is filtered out before classification.
const ActivityTypeCommittee = "Graduate Committee Participation"

// Profile is one worklist entry from the directory snapshot. DiscoveryID is the
// canonical identifier; DiscoveryURLID is a secondary lookup key that is often
// more reliable for activity queries and is therefore tried first.
type Profile struct {
	DiscoveryID       string `json:"discoveryId"`
	DiscoveryURLID    string `json:"discoveryUrlId,omitempty"`
	FirstNameLastName string `json:"firstNameLastName,omitempty"`
}

// Name returns the display name or a placeholder for logging.
func (p Profile) Name() string {
	if p.FirstNameLastName == "" {
		return "Unknown"
	}
	return p.FirstNameLastName
}

// ActivityDate wraps the nested date object the directory API emits.
type ActivityDate struct {
	DateTime string `json:"dateTime,omitempty"`
}

// Activity is one raw record from the activities endpoint. It is consumed by the
// classifier and never persisted directly.
type Activity struct {
	DiscoveryID           string       `json:"discoveryId"`
	Title                 string       `json:"title"`
	ObjectTypeDisplayName string       `json:"objectTypeDisplayName"`
	Date1                 ActivityDate `json:"date1"`
	Date2                 ActivityDate `json:"date2"`
}

// RoleStatus is the derived standing of a subject on a graduate committee.
type RoleStatus string

const (
	StatusEnded   RoleStatus = "No longer on student's committee or student has graduated"
	StatusMentor  RoleStatus = "Current mentor"
	StatusMember  RoleStatus = "Current committee member"
	StatusUnknown RoleStatus = "Unknown"
)

// CommitteeRole is the normalized, persisted unit of output. Immutable once
// classified; re-derived from a fresh fetch rather than updated.
type CommitteeRole struct {
	UserDiscoveryID     string     `json:"userDiscoveryId"`
	UserDiscoveryURLID  string     `json:"userDiscoveryUrlId,omitempty"`
	UserName            string     `json:"userName"`
	TeachingDiscoveryID string     `json:"teachingDiscoveryId"`
	Title               string     `json:"title"`
	Status              RoleStatus `json:"status"`
	StartDate           string     `json:"startDate,omitempty"`
	EndDate             string     `json:"endDate,omitempty"`
}

// Outcome categorizes the result of processing one worklist entry.
type Outcome string

const (
	// OutcomeFetched means the fetch succeeded with at least one role.
	OutcomeFetched Outcome = "fetched"
	// OutcomeEmpty means the fetch succeeded but matched no committee activities.
	OutcomeEmpty Outcome = "empty"
	// OutcomeSkipped means the entry needed no fetch: the identifier was missing
	// or a valid artifact already existed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means a terminal (non-retryable) failure for this run.
	OutcomeFailed Outcome = "failed"
	// OutcomeExhausted means transient failures persisted through every attempt.
	OutcomeExhausted Outcome = "exhausted"
)

// Result is the unit of work outcome for one profile. Roles is meaningful only
// when Outcome is OutcomeFetched or OutcomeEmpty.
type Result struct {
	Profile Profile
	Roles   []CommitteeRole
	Outcome Outcome
	Err     error
}

// Retryable reports whether the entry belongs in the serial second pass. Empty
// results count: a zero-length list can also be a transient upstream hiccup.
func (r Result) Retryable() bool {
	switch r.Outcome {
	case OutcomeEmpty, OutcomeFailed, OutcomeExhausted:
		return true
	}
	return false
}

// MergedDataset maps a subject identifier to its accumulated roles. Role lists
// from repeated keys are concatenated, never deduplicated; overlapping legacy
// chunks can therefore produce duplicates downstream consumers must tolerate.
type MergedDataset map[string][]CommitteeRole
