// Package dispatch matches volunteers to reports and tracks assignment
// progress. The only automatic transition in the engine lives here: an
// assignment not acknowledged within the configured timeout is cancelled and
// the next candidate is dispatched.
package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/geoindex"
	"github.com/terrasiaga/coordination/internal/models"
)

type Config struct {
	AckTimeout    time.Duration // assigned -> en_route deadline
	SweepInterval time.Duration // timeout monitor cadence
}

func DefaultConfig() Config {
	return Config{
		AckTimeout:    15 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}

// reportInfo is retained per dispatched report so timed-out assignments can
// be re-dispatched without the caller resupplying the report.
type reportInfo struct {
	at     geoindex.Point
	skills []string
	tried  map[string]bool // volunteer ids already attempted
}

type Dispatcher struct {
	cfg Config
	bus *events.Bus
	idx *geoindex.Index

	mu          sync.RWMutex
	volunteers  map[string]*models.Volunteer
	assignments map[string]*models.VolunteerAssignment
	reports     map[string]*reportInfo

	wg  sync.WaitGroup
	now func() time.Time
}

func New(cfg Config, bus *events.Bus) *Dispatcher {
	return &Dispatcher{
		cfg:         cfg,
		bus:         bus,
		idx:         geoindex.New(),
		volunteers:  make(map[string]*models.Volunteer),
		assignments: make(map[string]*models.VolunteerAssignment),
		reports:     make(map[string]*reportInfo),
		now:         time.Now,
	}
}

func (d *Dispatcher) AddVolunteer(v *models.Volunteer) (*models.Volunteer, error) {
	cp := *v
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Skills = append([]string(nil), v.Skills...)

	if err := d.idx.Insert(cp.ID, geoindex.Point{Lat: cp.Latitude, Lon: cp.Longitude}); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.volunteers[cp.ID] = &cp
	d.mu.Unlock()

	out := cp
	return &out, nil
}

// Candidate is a ranked dispatch option.
type Candidate struct {
	VolunteerID string  `json:"volunteer_id"`
	Meters      float64 `json:"meters"`
	Experience  int     `json:"experience_yrs"`
}

// FindCandidates returns available volunteers with at least one matching
// skill, ranked by distance then by descending experience.
func (d *Dispatcher) FindCandidates(rep *models.Report, at geoindex.Point, limit int) ([]Candidate, error) {
	d.mu.RLock()
	total := len(d.volunteers)
	d.mu.RUnlock()

	matches, err := d.idx.Nearest(at, total)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	var out []Candidate
	for _, m := range matches {
		v, ok := d.volunteers[m.ID]
		if !ok || !v.Available || !v.HasAnySkill(rep.RequiredSkills) {
			continue
		}
		out = append(out, Candidate{VolunteerID: v.ID, Meters: m.Meters, Experience: v.ExperienceYrs})
	}
	d.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Meters != out[j].Meters {
			return out[i].Meters < out[j].Meters
		}
		return out[i].Experience > out[j].Experience
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Dispatch assigns a volunteer to a report and marks them unavailable.
func (d *Dispatcher) Dispatch(rep *models.Report, at geoindex.Point, volunteerID string) (*models.VolunteerAssignment, error) {
	d.mu.Lock()
	v, ok := d.volunteers[volunteerID]
	if !ok {
		d.mu.Unlock()
		return nil, cerr.NotFound("volunteer", volunteerID)
	}
	if !v.Available {
		d.mu.Unlock()
		return nil, cerr.Conflict("volunteer", volunteerID)
	}

	v.Available = false
	a := &models.VolunteerAssignment{
		ID:          uuid.NewString(),
		VolunteerID: volunteerID,
		ReportID:    rep.ID,
		Status:      models.AssignmentAssigned,
		AssignedAt:  d.now().UTC(),
	}
	d.assignments[a.ID] = a

	info, ok := d.reports[rep.ID]
	if !ok {
		info = &reportInfo{at: at, skills: append([]string(nil), rep.RequiredSkills...), tried: make(map[string]bool)}
		d.reports[rep.ID] = info
	}
	info.tried[volunteerID] = true
	out := *a
	d.mu.Unlock()

	d.bus.Publish(events.Event{
		Type:         events.TypeVolunteerDispatched,
		AssignmentID: out.ID,
		VolunteerID:  volunteerID,
		ReportID:     rep.ID,
	})
	return &out, nil
}

// Transition advances an assignment, stamping the step's timestamp.
// Completion frees the volunteer; operator cancellation of an unacknowledged
// assignment does too.
func (d *Dispatcher) Transition(assignmentID string, to models.AssignmentStatus) (*models.VolunteerAssignment, error) {
	d.mu.Lock()
	a, ok := d.assignments[assignmentID]
	if !ok {
		d.mu.Unlock()
		return nil, cerr.NotFound("assignment", assignmentID)
	}
	from := a.Status
	if !models.CanAssignmentTransition(from, to) {
		d.mu.Unlock()
		return nil, &cerr.InvalidTransition{Entity: "assignment", ID: assignmentID, From: string(from), To: string(to)}
	}

	now := d.now().UTC()
	a.Status = to
	switch to {
	case models.AssignmentEnRoute:
		a.EnRouteAt = &now
	case models.AssignmentOnSite:
		a.ArrivedAt = &now
	case models.AssignmentCompleted:
		a.CompletedAt = &now
		if v, ok := d.volunteers[a.VolunteerID]; ok {
			v.Available = true
		}
	case models.AssignmentCancelled:
		a.CancelledAt = &now
		if v, ok := d.volunteers[a.VolunteerID]; ok {
			v.Available = true
		}
	}
	out := snapshot(a)
	d.mu.Unlock()
	return out, nil
}

func (d *Dispatcher) GetAssignment(assignmentID string) (*models.VolunteerAssignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.assignments[assignmentID]
	if !ok {
		return nil, cerr.NotFound("assignment", assignmentID)
	}
	return snapshot(a), nil
}

func (d *Dispatcher) GetVolunteer(volunteerID string) (*models.Volunteer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.volunteers[volunteerID]
	if !ok {
		return nil, cerr.NotFound("volunteer", volunteerID)
	}
	cp := *v
	cp.Skills = append([]string(nil), v.Skills...)
	return &cp, nil
}

// Start launches the acknowledgment-timeout monitor.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.runMonitor(ctx)
}

// Stop waits for the monitor to exit. Cancel the Start context first.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
}

func (d *Dispatcher) runMonitor(ctx context.Context) {
	defer d.wg.Done()
	slog.Info("starting assignment timeout monitor", "interval", d.cfg.SweepInterval, "ack_timeout", d.cfg.AckTimeout)

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("assignment timeout monitor shutting down")
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}

// Sweep cancels assignments stuck in assigned past the ack deadline and
// re-dispatches the next-best candidate for each affected report.
func (d *Dispatcher) Sweep() {
	deadline := d.now().UTC().Add(-d.cfg.AckTimeout)

	type timedOut struct {
		assignmentID string
		volunteerID  string
		reportID     string
	}
	var expired []timedOut

	d.mu.Lock()
	for _, a := range d.assignments {
		if a.Status != models.AssignmentAssigned || a.AssignedAt.After(deadline) {
			continue
		}
		now := d.now().UTC()
		a.Status = models.AssignmentCancelled
		a.CancelledAt = &now
		if v, ok := d.volunteers[a.VolunteerID]; ok {
			v.Available = true
		}
		expired = append(expired, timedOut{a.ID, a.VolunteerID, a.ReportID})
	}
	d.mu.Unlock()

	for _, e := range expired {
		d.bus.Publish(events.Event{
			Type:         events.TypeAssignmentTimedOut,
			AssignmentID: e.assignmentID,
			VolunteerID:  e.volunteerID,
			ReportID:     e.reportID,
		})
		d.redispatch(e.reportID)
	}
}

// redispatch finds the next candidate for a report, skipping volunteers
// already attempted.
func (d *Dispatcher) redispatch(reportID string) {
	d.mu.RLock()
	info, ok := d.reports[reportID]
	if !ok {
		d.mu.RUnlock()
		return
	}
	at := info.at
	skills := append([]string(nil), info.skills...)
	tried := make(map[string]bool, len(info.tried))
	for id := range info.tried {
		tried[id] = true
	}
	d.mu.RUnlock()

	rep := &models.Report{ID: reportID, RequiredSkills: skills}
	candidates, err := d.FindCandidates(rep, at, 0)
	if err != nil {
		slog.Error("redispatch candidate search failed", "report", reportID, "error", err)
		return
	}
	for _, c := range candidates {
		if tried[c.VolunteerID] {
			continue
		}
		if _, err := d.Dispatch(rep, at, c.VolunteerID); err != nil {
			continue // lost a race for this volunteer; try the next
		}
		slog.Info("re-dispatched after timeout", "report", reportID, "volunteer", c.VolunteerID)
		return
	}
	slog.Warn("no remaining candidates after timeout", "report", reportID)
}

func snapshot(a *models.VolunteerAssignment) *models.VolunteerAssignment {
	cp := *a
	for _, ts := range []**time.Time{&cp.EnRouteAt, &cp.ArrivedAt, &cp.CompletedAt, &cp.CancelledAt} {
		if *ts != nil {
			t := **ts
			*ts = &t
		}
	}
	return &cp
}
