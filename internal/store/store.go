// Package store persists entity snapshots and the domain-event journal.
// The engine is authoritative in memory; the store is the durability
// collaborator, written to outside any engine lock.
package store

import (
	"context"
	"time"

	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/models"
)

type EventFilter struct {
	Limit int
	Since *time.Time
	Type  *events.Type
}

// EntityStore is the write-through surface used by the presentation layer
// after engine operations commit.
type EntityStore interface {
	SaveLocation(ctx context.Context, l *models.Location) error
	GetLocation(ctx context.Context, id string) (*models.Location, error)

	SaveReport(ctx context.Context, r *models.Report) error
	SaveDisaster(ctx context.Context, d *models.Disaster) error
	SaveResource(ctx context.Context, r *models.EmergencyResource) error
	SaveAllocation(ctx context.Context, a *models.ResourceAllocation) error
	SaveCenter(ctx context.Context, c *models.EvacuationCenter) error
	SaveVolunteer(ctx context.Context, v *models.Volunteer) error
	SaveAssignment(ctx context.Context, a *models.VolunteerAssignment) error
}

// EventJournal is the analytics collaborator's record of everything the
// engine emitted.
type EventJournal interface {
	AppendEvent(ctx context.Context, ev events.Event) error
	ListEvents(ctx context.Context, f EventFilter) ([]events.Event, error)
}
