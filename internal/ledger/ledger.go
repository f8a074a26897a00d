// Package ledger is the authoritative bookkeeping of resource stock versus
// allocations. Allocation decisions are linearizable per resource: the
// read-decide-commit section runs under that resource's lock, and no two
// concurrent allocations can jointly overdraw stock. Different resources
// proceed fully in parallel.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/geoindex"
	"github.com/terrasiaga/coordination/internal/models"
)

type Ledger struct {
	bus *events.Bus
	idx *geoindex.Index

	mu          sync.RWMutex
	resources   map[string]*models.EmergencyResource
	allocations map[string]*models.ResourceAllocation
	byResource  map[string][]string
	locks       map[string]*sync.Mutex

	now func() time.Time
}

func New(bus *events.Bus) *Ledger {
	return &Ledger{
		bus:         bus,
		idx:         geoindex.New(),
		resources:   make(map[string]*models.EmergencyResource),
		allocations: make(map[string]*models.ResourceAllocation),
		byResource:  make(map[string][]string),
		locks:       make(map[string]*sync.Mutex),
		now:         time.Now,
	}
}

// AddResource registers a stock entry and indexes its location.
func (l *Ledger) AddResource(res *models.EmergencyResource) (*models.EmergencyResource, error) {
	if res.Quantity < 0 {
		return nil, &cerr.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if res.Category == "" {
		return nil, &cerr.ValidationError{Field: "category", Reason: "required"}
	}

	cp := *res
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}

	if err := l.idx.Insert(cp.ID, geoindex.Point{Lat: cp.Latitude, Lon: cp.Longitude}); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.resources[cp.ID] = &cp
	l.locks[cp.ID] = &sync.Mutex{}
	l.mu.Unlock()

	out := cp
	return &out, nil
}

// Restock raises total stock. The only mutation of quantity after creation.
func (l *Ledger) Restock(resourceID string, delta int) (*models.EmergencyResource, error) {
	if delta <= 0 {
		return nil, &cerr.ValidationError{Field: "delta", Reason: "must be positive"}
	}

	lk, err := l.lockFor(resourceID)
	if err != nil {
		return nil, err
	}
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	res := l.resources[resourceID]
	res.Quantity += delta
	out := *res
	l.mu.Unlock()
	return &out, nil
}

func (l *Ledger) lockFor(resourceID string) (*sync.Mutex, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lk, ok := l.locks[resourceID]
	if !ok {
		return nil, cerr.NotFound("resource", resourceID)
	}
	return lk, nil
}

// availableLocked computes quantity minus active allocations. Caller holds
// the resource lock.
func (l *Ledger) availableLocked(resourceID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := l.resources[resourceID]
	avail := res.Quantity
	for _, id := range l.byResource[resourceID] {
		a := l.allocations[id]
		if a.Status.Active() {
			avail -= a.Quantity
		}
	}
	return avail
}

// Available returns current unallocated stock for a resource.
func (l *Ledger) Available(resourceID string) (int, error) {
	lk, err := l.lockFor(resourceID)
	if err != nil {
		return 0, err
	}
	lk.Lock()
	defer lk.Unlock()
	return l.availableLocked(resourceID), nil
}

// Allocate reserves quantity against a resource for a disaster. Fails with
// InsufficientResource when the request exceeds availability.
func (l *Ledger) Allocate(resourceID, disasterID string, quantity int, allocatorID string) (*models.ResourceAllocation, error) {
	if quantity <= 0 {
		return nil, &cerr.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	lk, err := l.lockFor(resourceID)
	if err != nil {
		return nil, err
	}

	lk.Lock()
	avail := l.availableLocked(resourceID)
	if quantity > avail {
		lk.Unlock()
		return nil, &cerr.InsufficientResource{ResourceID: resourceID, Requested: quantity, Available: avail}
	}

	now := l.now().UTC()
	a := &models.ResourceAllocation{
		ID:          uuid.NewString(),
		ResourceID:  resourceID,
		DisasterID:  disasterID,
		Quantity:    quantity,
		Status:      models.AllocationAllocated,
		AllocatorID: allocatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.mu.Lock()
	l.allocations[a.ID] = a
	l.byResource[resourceID] = append(l.byResource[resourceID], a.ID)
	l.mu.Unlock()
	out := *a
	lk.Unlock()

	l.bus.Publish(events.Event{
		Type:         events.TypeResourceAllocated,
		AllocationID: out.ID,
		ResourceID:   resourceID,
		DisasterID:   disasterID,
		Quantity:     quantity,
	})
	return &out, nil
}

// Transition moves an allocation along allocated->in_transit->delivered,
// with cancellation allowed before delivery. Cancelling releases the
// reserved quantity.
func (l *Ledger) Transition(allocationID string, to models.AllocationStatus) (*models.ResourceAllocation, error) {
	l.mu.RLock()
	a, ok := l.allocations[allocationID]
	var resourceID string
	if ok {
		resourceID = a.ResourceID
	}
	l.mu.RUnlock()
	if !ok {
		return nil, cerr.NotFound("allocation", allocationID)
	}

	lk, err := l.lockFor(resourceID)
	if err != nil {
		return nil, err
	}

	lk.Lock()
	l.mu.Lock()
	from := a.Status
	if !models.CanAllocationTransition(from, to) {
		l.mu.Unlock()
		lk.Unlock()
		return nil, &cerr.InvalidTransition{Entity: "allocation", ID: allocationID, From: string(from), To: string(to)}
	}
	a.Status = to
	a.UpdatedAt = l.now().UTC()
	out := *a
	l.mu.Unlock()
	lk.Unlock()

	l.bus.Publish(events.Event{
		Type:         events.TypeAllocationStatusChanged,
		AllocationID: allocationID,
		ResourceID:   resourceID,
		DisasterID:   out.DisasterID,
		From:         string(from),
		To:           string(to),
	})
	return &out, nil
}

func (l *Ledger) GetResource(resourceID string) (*models.EmergencyResource, models.ResourceStatus, error) {
	lk, err := l.lockFor(resourceID)
	if err != nil {
		return nil, "", err
	}
	lk.Lock()
	defer lk.Unlock()

	remaining := l.availableLocked(resourceID)
	l.mu.RLock()
	cp := *l.resources[resourceID]
	l.mu.RUnlock()
	return &cp, cp.StatusFor(remaining), nil
}

func (l *Ledger) GetAllocation(allocationID string) (*models.ResourceAllocation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.allocations[allocationID]
	if !ok {
		return nil, cerr.NotFound("allocation", allocationID)
	}
	cp := *a
	return &cp, nil
}

// ResourcesByCategory returns resource ids of a category ordered by distance
// from the given point.
func (l *Ledger) ResourcesByCategory(category string, near geoindex.Point) ([]*models.EmergencyResource, error) {
	l.mu.RLock()
	n := len(l.resources)
	l.mu.RUnlock()

	matches, err := l.idx.Nearest(near, n)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*models.EmergencyResource
	for _, m := range matches {
		res, ok := l.resources[m.ID]
		if !ok || res.Category != category {
			continue
		}
		cp := *res
		out = append(out, &cp)
	}
	return out, nil
}
