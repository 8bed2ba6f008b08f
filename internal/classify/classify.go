// Package classify derives normalized committee roles from raw directory
// activities. Pure functions only; callers filter to the committee activity
// type before classifying.
package classify

import (
	"strings"

	"CommitteeHarvester/internal/domain"
)

const (
	mentorMarker = "(Committee Member & Mentor)"
	memberMarker = "(Committee Member)"
)

// Role maps one activity to a committee role for the given profile. An end date
// dominates title-based inference: a closed date range always means the subject
// is no longer on the committee, whatever the title says.
func Role(profile domain.Profile, activity domain.Activity) domain.CommitteeRole {
	return domain.CommitteeRole{
		UserDiscoveryID:     profile.DiscoveryID,
		UserDiscoveryURLID:  profile.DiscoveryURLID,
		UserName:            profile.Name(),
		TeachingDiscoveryID: activity.DiscoveryID,
		Title:               activity.Title,
		Status:              status(activity),
		StartDate:           activity.Date1.DateTime,
		EndDate:             activity.Date2.DateTime,
	}
}

// Roles classifies every activity in source order.
func Roles(profile domain.Profile, activities []domain.Activity) []domain.CommitteeRole {
	roles := make([]domain.CommitteeRole, 0, len(activities))
	for _, activity := range activities {
		roles = append(roles, Role(profile, activity))
	}
	return roles
}

func status(activity domain.Activity) domain.RoleStatus {
	switch {
	case activity.Date2.DateTime != "":
		return domain.StatusEnded
	case strings.Contains(activity.Title, mentorMarker):
		return domain.StatusMentor
	case strings.Contains(activity.Title, memberMarker):
		return domain.StatusMember
	}
	return domain.StatusUnknown
}
