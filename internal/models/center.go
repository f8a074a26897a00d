package models

import "time"

type CenterStatus string

const (
	CenterOperational CenterStatus = "operational"
	CenterFull        CenterStatus = "full"
	CenterClosed      CenterStatus = "closed"
)

// EvacuationCenter shelters evacuees up to a fixed capacity.
// 0 <= Occupancy <= Capacity always holds.
type EvacuationCenter struct {
	ID         string
	Name       string
	LocationID string
	Latitude   float64
	Longitude  float64
	Capacity   int
	Occupancy  int
	Closed     bool // operator flag, overrides the derived status
}

// Status derives the center status from occupancy and the closed flag.
func (c *EvacuationCenter) Status() CenterStatus {
	if c.Closed {
		return CenterClosed
	}
	if c.Occupancy >= c.Capacity {
		return CenterFull
	}
	return CenterOperational
}

func (c *EvacuationCenter) Headroom() int {
	return c.Capacity - c.Occupancy
}

// EvacuationAssignment records a group of evacuees placed at a center.
type EvacuationAssignment struct {
	ID         string
	CenterID   string
	Count      int
	AssignedAt time.Time
}
