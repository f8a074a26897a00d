// Package events defines the domain events emitted by the coordination
// engine and the in-process bus that delivers them. Events are published
// after the owning state transition commits, never inside entity locks.
package events

import "time"

type Type string

const (
	TypeReportSubmitted         Type = "report.submitted"
	TypeReportValidated         Type = "report.validated"
	TypeDisasterCreated         Type = "disaster.created"
	TypeDisasterStatusChanged   Type = "disaster.status_changed"
	TypeResourceAllocated       Type = "resource.allocated"
	TypeAllocationStatusChanged Type = "allocation.status_changed"
	TypeEvacueeAssigned         Type = "evacuee.assigned"
	TypeCenterFull              Type = "center.full"
	TypeVolunteerDispatched     Type = "volunteer.dispatched"
	TypeAssignmentTimedOut      Type = "assignment.timed_out"
)

// Event is a flat envelope: only the id fields relevant to the event type
// are populated. Flat shape keeps the journal row and JSON form trivial.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	ReportID     string `json:"report_id,omitempty"`
	DisasterID   string `json:"disaster_id,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	AllocationID string `json:"allocation_id,omitempty"`
	CenterID     string `json:"center_id,omitempty"`
	AssignmentID string `json:"assignment_id,omitempty"`
	VolunteerID  string `json:"volunteer_id,omitempty"`

	Status   string `json:"status,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Count    int    `json:"count,omitempty"`
}
