// Package registry correlates validated reports into tracked disasters and
// runs the operator-driven disaster lifecycle.
package registry

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
	MergeRadiusFloorM float64       // minimum merge radius regardless of impact radii
	MergeWindow       time.Duration // max age of a disaster to merge into
}

func DefaultConfig() Config {
	return Config{
		MergeRadiusFloorM: 2000,
		MergeWindow:       24 * time.Hour,
	}
}

// Registry holds active and historical disasters. The spatial index carries
// only active disasters, so correlation candidates are always mergeable by
// status.
type Registry struct {
	cfg Config
	bus *events.Bus
	idx *geoindex.Index

	mu        sync.RWMutex
	disasters map[string]*models.Disaster
	linked    map[string]string // report id -> disaster id, for idempotent delivery

	now func() time.Time
}

func New(cfg Config, bus *events.Bus) *Registry {
	return &Registry{
		cfg:       cfg,
		bus:       bus,
		idx:       geoindex.New(),
		disasters: make(map[string]*models.Disaster),
		linked:    make(map[string]string),
		now:       time.Now,
	}
}

// OnReportValidated links the report to a correlating active disaster or
// creates a new one. Duplicate delivery for the same report is a no-op and
// returns the already-linked disaster.
func (r *Registry) OnReportValidated(rep *models.Report, at geoindex.Point) (*models.Disaster, error) {
	if rep.Status != models.ReportValid {
		return nil, &cerr.ValidationError{Field: "report", Reason: "only valid reports correlate to disasters"}
	}

	searchRadius := rep.ImpactRadiusM
	if searchRadius < r.cfg.MergeRadiusFloorM {
		searchRadius = r.cfg.MergeRadiusFloorM
	}

	r.mu.Lock()

	if id, ok := r.linked[rep.ID]; ok {
		out := snapshot(r.disasters[id])
		r.mu.Unlock()
		return out, nil
	}

	validatedAt := r.now().UTC()
	if rep.ValidatedAt != nil {
		validatedAt = rep.ValidatedAt.UTC()
	}

	if d := r.findMergeTargetLocked(rep, at, searchRadius, validatedAt); d != nil {
		d.ReportIDs = append(d.ReportIDs, rep.ID)
		if rep.EstimatedSeverity > d.Severity {
			d.Severity = rep.EstimatedSeverity
			d.Priority = models.DerivePriority(d.Type, d.Severity)
		}
		if rep.ImpactRadiusM > d.ImpactRadiusM {
			d.ImpactRadiusM = rep.ImpactRadiusM
		}
		d.Affected += rep.Affected
		r.linked[rep.ID] = d.ID
		out := snapshot(d)
		r.mu.Unlock()
		return out, nil
	}

	d := &models.Disaster{
		ID:            uuid.NewString(),
		Type:          rep.DisasterType,
		Severity:      rep.EstimatedSeverity,
		Priority:      models.DerivePriority(rep.DisasterType, rep.EstimatedSeverity),
		Status:        models.DisasterActive,
		StartTime:     validatedAt,
		LocationID:    rep.LocationID,
		Latitude:      at.Lat,
		Longitude:     at.Lon,
		ImpactRadiusM: rep.ImpactRadiusM,
		ReportIDs:     []string{rep.ID},
		Affected:      rep.Affected,
	}
	if err := r.idx.Insert(d.ID, at); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.disasters[d.ID] = d
	r.linked[rep.ID] = d.ID
	out := snapshot(d)
	r.mu.Unlock()

	r.bus.Publish(events.Event{
		Type:       events.TypeDisasterCreated,
		DisasterID: d.ID,
		ReportID:   rep.ID,
	})
	return out, nil
}

// findMergeTargetLocked returns the nearest active disaster of the same type
// within the merge radius and window, or nil.
func (r *Registry) findMergeTargetLocked(rep *models.Report, at geoindex.Point, searchRadius float64, validatedAt time.Time) *models.Disaster {
	// Candidates beyond the per-pair merge radius still need enumerating
	// because the candidate's own impact radius can extend the threshold.
	maxImpact := 0.0
	for _, d := range r.disasters {
		if d.Status == models.DisasterActive && d.ImpactRadiusM > maxImpact {
			maxImpact = d.ImpactRadiusM
		}
	}
	enumRadius := searchRadius
	if maxImpact > enumRadius {
		enumRadius = maxImpact
	}

	matches, err := r.idx.Within(at, enumRadius)
	if err != nil {
		return nil
	}

	cutoff := validatedAt.Add(-r.cfg.MergeWindow)
	for _, m := range matches {
		d, ok := r.disasters[m.ID]
		if !ok || d.Status != models.DisasterActive || d.Type != rep.DisasterType {
			continue
		}
		if d.StartTime.Before(cutoff) {
			continue
		}
		mergeRadius := searchRadius
		if d.ImpactRadiusM > mergeRadius {
			mergeRadius = d.ImpactRadiusM
		}
		if m.Meters <= mergeRadius {
			return d
		}
	}
	return nil
}

// Transition applies an operator status change. Resolving requires an end
// time; containment stamps the transition time as the end time.
func (r *Registry) Transition(disasterID string, to models.DisasterStatus, endTime *time.Time, actorID string) (*models.Disaster, error) {
	r.mu.Lock()
	d, ok := r.disasters[disasterID]
	if !ok {
		r.mu.Unlock()
		return nil, cerr.NotFound("disaster", disasterID)
	}
	from := d.Status
	if !models.CanDisasterTransition(from, to) {
		r.mu.Unlock()
		return nil, &cerr.InvalidTransition{Entity: "disaster", ID: disasterID, From: string(from), To: string(to)}
	}
	if to == models.DisasterResolved && endTime == nil {
		r.mu.Unlock()
		return nil, &cerr.ValidationError{Field: "end_time", Reason: "required to resolve a disaster"}
	}

	d.Status = to
	switch to {
	case models.DisasterContained:
		t := r.now().UTC()
		d.EndTime = &t
		r.idx.Remove(d.ID) // no longer a correlation candidate
	case models.DisasterResolved:
		t := endTime.UTC()
		d.EndTime = &t
	}
	out := snapshot(d)
	r.mu.Unlock()

	r.bus.Publish(events.Event{
		Type:       events.TypeDisasterStatusChanged,
		DisasterID: disasterID,
		From:       string(from),
		To:         string(to),
	})
	return out, nil
}

func (r *Registry) Get(disasterID string) (*models.Disaster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.disasters[disasterID]
	if !ok {
		return nil, cerr.NotFound("disaster", disasterID)
	}
	return snapshot(d), nil
}

// List returns all disasters, optionally filtered by status.
func (r *Registry) List(status models.DisasterStatus) []*models.Disaster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Disaster, 0, len(r.disasters))
	for _, d := range r.disasters {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, snapshot(d))
	}
	return out
}

func snapshot(d *models.Disaster) *models.Disaster {
	cp := *d
	cp.ReportIDs = append([]string(nil), d.ReportIDs...)
	if d.EndTime != nil {
		t := *d.EndTime
		cp.EndTime = &t
	}
	return &cp
}
