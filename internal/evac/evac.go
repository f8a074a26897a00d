// Package evac manages evacuation-center occupancy. Occupancy updates are
// linearizable per center; assignment walks candidate centers nearest-first.
package evac

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/geoindex"
	"github.com/terrasiaga/coordination/internal/models"
)

type Config struct {
	MaxSearchRadiusM float64
}

func DefaultConfig() Config {
	return Config{MaxSearchRadiusM: 50000}
}

type Manager struct {
	cfg Config
	bus *events.Bus
	idx *geoindex.Index

	mu      sync.RWMutex
	centers map[string]*models.EvacuationCenter
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func New(cfg Config, bus *events.Bus) *Manager {
	return &Manager{
		cfg:     cfg,
		bus:     bus,
		idx:     geoindex.New(),
		centers: make(map[string]*models.EvacuationCenter),
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

func (m *Manager) AddCenter(c *models.EvacuationCenter) (*models.EvacuationCenter, error) {
	if c.Capacity <= 0 {
		return nil, &cerr.ValidationError{Field: "capacity", Reason: "must be positive"}
	}
	if c.Occupancy < 0 || c.Occupancy > c.Capacity {
		return nil, &cerr.ValidationError{Field: "occupancy", Reason: "must be within [0, capacity]"}
	}

	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if err := m.idx.Insert(cp.ID, geoindex.Point{Lat: cp.Latitude, Lon: cp.Longitude}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.centers[cp.ID] = &cp
	m.locks[cp.ID] = &sync.Mutex{}
	m.mu.Unlock()

	out := cp
	return &out, nil
}

func (m *Manager) lockFor(centerID string) (*sync.Mutex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lk, ok := m.locks[centerID]
	if !ok {
		return nil, cerr.NotFound("center", centerID)
	}
	return lk, nil
}

// Assign places count evacuees at the nearest operational center with enough
// headroom. Fails with NoCapacityAvailable when no center within the search
// radius can take them.
func (m *Manager) Assign(count int, near geoindex.Point) (*models.EvacuationAssignment, error) {
	if count <= 0 {
		return nil, &cerr.ValidationError{Field: "count", Reason: "must be positive"}
	}

	matches, err := m.idx.Within(near, m.cfg.MaxSearchRadiusM)
	if err != nil {
		return nil, err
	}

	for _, match := range matches {
		lk, err := m.lockFor(match.ID)
		if err != nil {
			continue // removed since the query; next candidate
		}

		lk.Lock()
		m.mu.Lock()
		c := m.centers[match.ID]
		if c.Closed || c.Headroom() < count {
			m.mu.Unlock()
			lk.Unlock()
			continue
		}
		c.Occupancy += count
		becameFull := c.Occupancy >= c.Capacity
		m.mu.Unlock()
		lk.Unlock()

		a := &models.EvacuationAssignment{
			ID:         uuid.NewString(),
			CenterID:   match.ID,
			Count:      count,
			AssignedAt: m.now().UTC(),
		}
		m.bus.Publish(events.Event{
			Type:     events.TypeEvacueeAssigned,
			CenterID: match.ID,
			Count:    count,
		})
		if becameFull {
			m.bus.Publish(events.Event{
				Type:     events.TypeCenterFull,
				CenterID: match.ID,
			})
		}
		return a, nil
	}

	return nil, &cerr.NoCapacityAvailable{Count: count, SearchRadiusM: m.cfg.MaxSearchRadiusM}
}

// Release decrements occupancy, flooring at zero. A full center reopens
// automatically once headroom exists, unless explicitly closed.
func (m *Manager) Release(centerID string, count int) (*models.EvacuationCenter, error) {
	if count <= 0 {
		return nil, &cerr.ValidationError{Field: "count", Reason: "must be positive"}
	}
	lk, err := m.lockFor(centerID)
	if err != nil {
		return nil, err
	}

	lk.Lock()
	defer lk.Unlock()
	m.mu.Lock()
	c := m.centers[centerID]
	c.Occupancy -= count
	if c.Occupancy < 0 {
		c.Occupancy = 0
	}
	out := *c
	m.mu.Unlock()
	return &out, nil
}

// Close marks a center closed. Closed overrides the derived status and
// excludes the center from assignment.
func (m *Manager) Close(centerID string) (*models.EvacuationCenter, error) {
	return m.setClosed(centerID, true)
}

func (m *Manager) Reopen(centerID string) (*models.EvacuationCenter, error) {
	return m.setClosed(centerID, false)
}

func (m *Manager) setClosed(centerID string, closed bool) (*models.EvacuationCenter, error) {
	lk, err := m.lockFor(centerID)
	if err != nil {
		return nil, err
	}
	lk.Lock()
	defer lk.Unlock()
	m.mu.Lock()
	c := m.centers[centerID]
	c.Closed = closed
	out := *c
	m.mu.Unlock()
	return &out, nil
}

func (m *Manager) Get(centerID string) (*models.EvacuationCenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.centers[centerID]
	if !ok {
		return nil, cerr.NotFound("center", centerID)
	}
	cp := *c
	return &cp, nil
}

func (m *Manager) List() []*models.EvacuationCenter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.EvacuationCenter, 0, len(m.centers))
	for _, c := range m.centers {
		cp := *c
		out = append(out, &cp)
	}
	return out
}
