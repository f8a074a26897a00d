package models

import "time"

type Volunteer struct {
	ID             string
	UserID         string
	Skills         []string
	Available      bool
	LocationID     string
	Latitude       float64
	Longitude      float64
	Specialization string
	ExperienceYrs  int
}

// HasAnySkill reports whether the volunteer covers at least one required tag.
func (v *Volunteer) HasAnySkill(required []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, need := range required {
		for _, have := range v.Skills {
			if have == need {
				return true
			}
		}
	}
	return false
}

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentEnRoute   AssignmentStatus = "en_route"
	AssignmentOnSite    AssignmentStatus = "on_site"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// VolunteerAssignment tracks one volunteer working one report.
type VolunteerAssignment struct {
	ID          string
	VolunteerID string
	ReportID    string
	Status      AssignmentStatus
	AssignedAt  time.Time
	EnRouteAt   *time.Time
	ArrivedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// CanAssignmentTransition reports whether the edge is legal.
// assigned->en_route->on_site->completed; cancelled from assigned only
// (timeout or operator action before acknowledgment).
func CanAssignmentTransition(from, to AssignmentStatus) bool {
	switch from {
	case AssignmentAssigned:
		return to == AssignmentEnRoute || to == AssignmentCancelled
	case AssignmentEnRoute:
		return to == AssignmentOnSite
	case AssignmentOnSite:
		return to == AssignmentCompleted
	default:
		return false
	}
}
