// Package validator owns the report lifecycle: submission with credibility
// scoring, validation, and resolution.
package validator

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
	CorrelationRadiusM float64       // corroboration search radius
	CorrelationWindow  time.Duration // corroboration time window
}

func DefaultConfig() Config {
	return Config{
		CorrelationRadiusM: 500,
		CorrelationWindow:  6 * time.Hour,
	}
}

// Validator keeps the authoritative report set and a spatial index of report
// locations used for corroboration density.
type Validator struct {
	cfg Config
	bus *events.Bus
	idx *geoindex.Index

	mu      sync.RWMutex
	reports map[string]*models.Report
	points  map[string]geoindex.Point

	now func() time.Time
}

func New(cfg Config, bus *events.Bus) *Validator {
	return &Validator{
		cfg:     cfg,
		bus:     bus,
		idx:     geoindex.New(),
		reports: make(map[string]*models.Report),
		points:  make(map[string]geoindex.Point),
		now:     time.Now,
	}
}

// SubmitInput carries everything a citizen submission provides. Coordinates
// arrive resolved because locations are owned by the presentation layer.
type SubmitInput struct {
	ReporterID        string // empty for anonymous
	DisasterType      models.DisasterType
	LocationID        string
	Latitude          float64
	Longitude         float64
	EstimatedSeverity int
	Casualties        int
	Injuries          int
	Missing           int
	Affected          int
	MediaCount        int
	RequiredSkills    []string
	ImpactRadiusM     float64
}

// Submit creates a pending report, scores its credibility, and emits
// ReportSubmitted.
func (v *Validator) Submit(in SubmitInput) (*models.Report, error) {
	if in.EstimatedSeverity < 1 || in.EstimatedSeverity > 5 {
		return nil, &cerr.ValidationError{Field: "estimated_severity", Reason: "must be between 1 and 5"}
	}
	for field, n := range map[string]int{
		"casualties": in.Casualties,
		"injuries":   in.Injuries,
		"missing":    in.Missing,
		"affected":   in.Affected,
		"media":      in.MediaCount,
	} {
		if n < 0 {
			return nil, &cerr.ValidationError{Field: field, Reason: "must not be negative"}
		}
	}

	at := geoindex.Point{Lat: in.Latitude, Lon: in.Longitude}
	now := v.now().UTC()

	rep := &models.Report{
		ID:                uuid.NewString(),
		ReporterID:        in.ReporterID,
		DisasterType:      in.DisasterType,
		LocationID:        in.LocationID,
		EstimatedSeverity: in.EstimatedSeverity,
		Casualties:        in.Casualties,
		Injuries:          in.Injuries,
		Missing:           in.Missing,
		Affected:          in.Affected,
		MediaCount:        in.MediaCount,
		RequiredSkills:    in.RequiredSkills,
		ImpactRadiusM:     in.ImpactRadiusM,
		Status:            models.ReportPending,
		SubmittedAt:       now,
	}

	v.mu.Lock()
	corroborating := v.corroboratingLocked(rep, at)
	rep.Credibility = Credibility(rep.Anonymous(), corroborating, rep.MediaCount)
	if err := v.idx.Insert(rep.ID, at); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.reports[rep.ID] = rep
	v.points[rep.ID] = at
	v.mu.Unlock()

	v.bus.Publish(events.Event{
		Type:     events.TypeReportSubmitted,
		ReportID: rep.ID,
		Status:   string(rep.Status),
	})
	return snapshot(rep), nil
}

// corroboratingLocked counts independent reports within the correlation
// radius and window. Reports from the same non-anonymous reporter are not
// independent.
func (v *Validator) corroboratingLocked(rep *models.Report, at geoindex.Point) int {
	matches, err := v.idx.Within(at, v.cfg.CorrelationRadiusM)
	if err != nil {
		return 0
	}

	cutoff := rep.SubmittedAt.Add(-v.cfg.CorrelationWindow)
	n := 0
	for _, m := range matches {
		other, ok := v.reports[m.ID]
		if !ok || other.ID == rep.ID {
			continue
		}
		if other.SubmittedAt.Before(cutoff) {
			continue
		}
		if rep.ReporterID != "" && other.ReporterID == rep.ReporterID {
			continue
		}
		n++
	}
	return n
}

// Credibility is the pure scoring function: base 0.3 (anonymous) or 0.6,
// +0.1 per corroborating report capped at +0.3, +0.05 per media item capped
// at +0.1, clamped to [0,1].
func Credibility(anonymous bool, corroborating, mediaCount int) float64 {
	score := 0.6
	if anonymous {
		score = 0.3
	}

	corr := float64(corroborating) * 0.1
	if corr > 0.3 {
		corr = 0.3
	}
	media := float64(mediaCount) * 0.05
	if media > 0.1 {
		media = 0.1
	}

	score += corr + media
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Validate moves a pending report to valid or invalid. A valid outcome emits
// ReportValidated, which the disaster registry consumes.
func (v *Validator) Validate(reportID, validatorID string, valid bool, notes string) (*models.Report, error) {
	to := models.ReportValid
	if !valid {
		to = models.ReportInvalid
	}

	v.mu.Lock()
	rep, ok := v.reports[reportID]
	if !ok {
		v.mu.Unlock()
		return nil, cerr.NotFound("report", reportID)
	}
	if !models.CanReportTransition(rep.Status, to) {
		from := rep.Status
		v.mu.Unlock()
		return nil, &cerr.InvalidTransition{Entity: "report", ID: reportID, From: string(from), To: string(to)}
	}

	now := v.now().UTC()
	rep.Status = to
	rep.ValidatorID = validatorID
	rep.ValidationNotes = notes
	rep.ValidatedAt = &now
	out := snapshot(rep)
	v.mu.Unlock()

	v.bus.Publish(events.Event{
		Type:     events.TypeReportValidated,
		ReportID: reportID,
		Status:   string(to),
	})
	return out, nil
}

// Resolve moves a valid report to resolved.
func (v *Validator) Resolve(reportID string) (*models.Report, error) {
	v.mu.Lock()
	rep, ok := v.reports[reportID]
	if !ok {
		v.mu.Unlock()
		return nil, cerr.NotFound("report", reportID)
	}
	if !models.CanReportTransition(rep.Status, models.ReportResolved) {
		from := rep.Status
		v.mu.Unlock()
		return nil, &cerr.InvalidTransition{Entity: "report", ID: reportID, From: string(from), To: string(models.ReportResolved)}
	}
	rep.Status = models.ReportResolved
	out := snapshot(rep)
	v.mu.Unlock()

	return out, nil
}

func (v *Validator) Get(reportID string) (*models.Report, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rep, ok := v.reports[reportID]
	if !ok {
		return nil, cerr.NotFound("report", reportID)
	}
	return snapshot(rep), nil
}

// Point returns the submitted coordinates of a report.
func (v *Validator) Point(reportID string) (geoindex.Point, error) {
	v.mu.RLock()
	p, ok := v.points[reportID]
	v.mu.RUnlock()
	if !ok {
		return geoindex.Point{}, cerr.NotFound("report", reportID)
	}
	return p, nil
}

func snapshot(r *models.Report) *models.Report {
	cp := *r
	cp.RequiredSkills = append([]string(nil), r.RequiredSkills...)
	if r.ValidatedAt != nil {
		t := *r.ValidatedAt
		cp.ValidatedAt = &t
	}
	return &cp
}
