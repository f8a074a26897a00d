package ledger

import (
	"errors"
	"log/slog"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/geoindex"
	"github.com/terrasiaga/coordination/internal/models"
)

// Engine orchestrates multi-resource allocation requests against the ledger.
// Each request is a saga: resources are reserved one by one, preferring
// nearby stock; any failure rolls back the reservations already committed in
// this request before the error surfaces.
type Engine struct {
	ledger *Ledger
}

func NewEngine(l *Ledger) *Engine {
	return &Engine{ledger: l}
}

// RequestItem asks for a quantity of a resource category.
type RequestItem struct {
	Category string
	Quantity int
}

// Request reserves every item for the disaster, sourcing each from the
// nearest stock that can cover it whole. All-or-nothing: on failure no
// allocation from this request stays visible.
func (e *Engine) Request(disasterID string, near geoindex.Point, items []RequestItem, allocatorID string) ([]*models.ResourceAllocation, error) {
	if len(items) == 0 {
		return nil, &cerr.ValidationError{Field: "items", Reason: "at least one item required"}
	}

	var committed []*models.ResourceAllocation
	for _, item := range items {
		a, err := e.allocateItem(disasterID, near, item, allocatorID)
		if err != nil {
			e.rollback(committed)
			return nil, err
		}
		committed = append(committed, a)
	}
	return committed, nil
}

// allocateItem walks candidate resources of the category by proximity and
// reserves from the first that can cover the quantity. A concurrent race on
// one candidate just moves on to the next.
func (e *Engine) allocateItem(disasterID string, near geoindex.Point, item RequestItem, allocatorID string) (*models.ResourceAllocation, error) {
	candidates, err := e.ledger.ResourcesByCategory(item.Category, near)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, cerr.NotFound("resource category", item.Category)
	}

	var lastErr error
	bestAvail := 0
	for _, res := range candidates {
		a, err := e.ledger.Allocate(res.ID, disasterID, item.Quantity, allocatorID)
		if err == nil {
			return a, nil
		}
		var insufficient *cerr.InsufficientResource
		if errors.As(err, &insufficient) {
			if insufficient.Available > bestAvail {
				bestAvail = insufficient.Available
			}
			lastErr = err
			continue
		}
		return nil, err
	}

	if lastErr != nil {
		return nil, &cerr.InsufficientResource{Requested: item.Quantity, Available: bestAvail}
	}
	return nil, lastErr
}

// rollback cancels allocations committed earlier in a failed saga.
func (e *Engine) rollback(committed []*models.ResourceAllocation) {
	for i := len(committed) - 1; i >= 0; i-- {
		a := committed[i]
		if _, err := e.ledger.Transition(a.ID, models.AllocationCancelled); err != nil {
			slog.Error("saga rollback failed", "allocation", a.ID, "error", err)
		}
	}
}
