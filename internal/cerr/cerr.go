// Package cerr defines the coordination engine's error taxonomy. Every error
// here is recoverable and meant to be returned to the caller typed; the
// presentation layer maps them to transport codes.
package cerr

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a referenced entity id does not exist.
// Wrap with context via NotFound().
var ErrNotFound = errors.New("not found")

// ErrConflict reports a lost concurrent-update race. Safe to retry.
var ErrConflict = errors.New("conflict")

func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func Conflict(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrConflict)
}

// ValidationError reports malformed input (e.g. severity outside 1-5).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransition reports a state-machine rule violation.
type InvalidTransition struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("%s %s: illegal transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// InsufficientResource reports an allocation exceeding availability.
type InsufficientResource struct {
	ResourceID string
	Requested  int
	Available  int
}

func (e *InsufficientResource) Error() string {
	return fmt.Sprintf("resource %s: requested %d, available %d", e.ResourceID, e.Requested, e.Available)
}

// NoCapacityAvailable reports that no operational evacuation center within
// the search radius has enough headroom.
type NoCapacityAvailable struct {
	Count         int
	SearchRadiusM float64
}

func (e *NoCapacityAvailable) Error() string {
	return fmt.Sprintf("no center with headroom for %d within %.0fm", e.Count, e.SearchRadiusM)
}

// GeoIndexError reports malformed coordinates.
type GeoIndexError struct {
	Lat float64
	Lon float64
}

func (e *GeoIndexError) Error() string {
	return fmt.Sprintf("invalid coordinates (%f, %f)", e.Lat, e.Lon)
}
