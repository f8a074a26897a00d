package models

import "time"

type DisasterType string

const (
	DisasterTypeEarthquake DisasterType = "earthquake"
	DisasterTypeFlood      DisasterType = "flood"
	DisasterTypeTsunami    DisasterType = "tsunami"
	DisasterTypeLandslide  DisasterType = "landslide"
	DisasterTypeVolcano    DisasterType = "volcano"
	DisasterTypeFire       DisasterType = "fire"
	DisasterTypeStorm      DisasterType = "storm"
	DisasterTypeDrought    DisasterType = "drought"
	DisasterTypeEpidemic   DisasterType = "epidemic"
	DisasterTypeOther      DisasterType = "other"
)

type DisasterStatus string

const (
	DisasterActive    DisasterStatus = "active"
	DisasterContained DisasterStatus = "contained"
	DisasterResolved  DisasterStatus = "resolved"
)

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityCritical  Priority = "critical"
	PriorityEmergency Priority = "emergency"
)

// Disaster is a tracked event correlated from one or more validated reports.
type Disaster struct {
	ID            string
	Type          DisasterType
	Severity      int // 1..5, max of linked report estimates
	Priority      Priority
	Status        DisasterStatus
	StartTime     time.Time
	EndTime       *time.Time // set iff status != active
	LocationID    string
	Latitude      float64
	Longitude     float64
	ImpactRadiusM float64
	ReportIDs     []string
	Affected      int // sum of linked reports' affected counts
}

func (d *Disaster) Coordinates() Coordinates {
	return Coordinates{Latitude: d.Latitude, Longitude: d.Longitude}
}

// CanDisasterTransition reports whether the operator edge is legal.
// Legal edges: active->contained, contained->resolved.
func CanDisasterTransition(from, to DisasterStatus) bool {
	switch from {
	case DisasterActive:
		return to == DisasterContained
	case DisasterContained:
		return to == DisasterResolved
	default:
		return false
	}
}

// DerivePriority maps severity to a priority band, bumped one band for
// disaster types with fast-moving onset.
func DerivePriority(t DisasterType, severity int) Priority {
	var p Priority
	switch {
	case severity <= 1:
		p = PriorityLow
	case severity == 2:
		p = PriorityMedium
	case severity == 3:
		p = PriorityHigh
	case severity == 4:
		p = PriorityCritical
	default:
		p = PriorityEmergency
	}

	switch t {
	case DisasterTypeEarthquake, DisasterTypeTsunami, DisasterTypeVolcano:
		switch p {
		case PriorityLow:
			p = PriorityMedium
		case PriorityMedium:
			p = PriorityHigh
		case PriorityHigh:
			p = PriorityCritical
		}
	}
	return p
}
