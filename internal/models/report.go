package models

import "time"

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportValid    ReportStatus = "valid"
	ReportInvalid  ReportStatus = "invalid"
	ReportResolved ReportStatus = "resolved"
)

// Report is a citizen-submitted incident report. Created in pending; mutated
// only by the validator, never deleted.
type Report struct {
	ID                string
	ReporterID        string // empty means anonymous
	DisasterType      DisasterType
	LocationID        string
	EstimatedSeverity int // 1..5
	Casualties        int
	Injuries          int
	Missing           int
	Affected          int
	MediaCount        int
	RequiredSkills    []string
	ImpactRadiusM     float64
	Status            ReportStatus
	Credibility       float64 // [0,1]
	ValidatorID       string
	ValidationNotes   string
	ValidatedAt       *time.Time
	SubmittedAt       time.Time
}

func (r *Report) Anonymous() bool { return r.ReporterID == "" }

// CanReportTransition reports whether the edge from -> to is legal.
// Legal edges: pending->valid, pending->invalid, valid->resolved.
func CanReportTransition(from, to ReportStatus) bool {
	switch from {
	case ReportPending:
		return to == ReportValid || to == ReportInvalid
	case ReportValid:
		return to == ReportResolved
	default:
		return false
	}
}
