package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/geoindex"
	"github.com/terrasiaga/coordination/internal/models"
)

func newTestRegistry(t *testing.T) (*Registry, *events.Bus, func()) {
	t.Helper()
	bus := events.NewBus(1, 50)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	r := New(DefaultConfig(), bus)
	return r, bus, func() {
		cancel()
		bus.Stop()
	}
}

func validReport(id string, sev int) *models.Report {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Report{
		ID:                id,
		DisasterType:      models.DisasterTypeFlood,
		LocationID:        "loc-" + id,
		EstimatedSeverity: sev,
		Affected:          100,
		Status:            models.ReportValid,
		ValidatedAt:       &now,
	}
}

func TestOnReportValidated_CreatesDisaster(t *testing.T) {
	r, bus, done := newTestRegistry(t)
	defer done()

	var created events.Event
	bus.RegisterHandler(events.TypeDisasterCreated, func(ev events.Event) { created = ev })

	rep := validReport("r1", 3)
	d, err := r.OnReportValidated(rep, geoindex.Point{Lat: -6.2, Lon: 106.8})
	if err != nil {
		t.Fatalf("OnReportValidated failed: %v", err)
	}

	if d.Status != models.DisasterActive {
		t.Errorf("expected active, got %s", d.Status)
	}
	if d.Severity != 3 {
		t.Errorf("expected severity 3, got %d", d.Severity)
	}
	if d.StartTime != rep.ValidatedAt.UTC() {
		t.Errorf("expected start time = validation time")
	}
	if created.DisasterID != d.ID {
		t.Errorf("expected DisasterCreated event for %s, got %+v", d.ID, created)
	}
}

func TestOnReportValidated_RejectsPendingReport(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	rep := validReport("r1", 3)
	rep.Status = models.ReportPending
	_, err := r.OnReportValidated(rep, geoindex.Point{Lat: 0, Lon: 0})
	var verr *cerr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestOnReportValidated_MergesNearbySameType(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	// Two flood reports 1.2km apart, 3h apart: one disaster, severity = max.
	first := validReport("r1", 2)
	d1, err := r.OnReportValidated(first, geoindex.Point{Lat: -6.2, Lon: 106.8})
	if err != nil {
		t.Fatalf("first report failed: %v", err)
	}

	later := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	second := validReport("r2", 4)
	second.ValidatedAt = &later
	d2, err := r.OnReportValidated(second, geoindex.Point{Lat: -6.2108, Lon: 106.8}) // ~1.2km south
	if err != nil {
		t.Fatalf("second report failed: %v", err)
	}

	if d1.ID != d2.ID {
		t.Fatalf("expected both reports on one disaster, got %s and %s", d1.ID, d2.ID)
	}
	if d2.Severity != 4 {
		t.Errorf("expected merged severity 4, got %d", d2.Severity)
	}
	if len(d2.ReportIDs) != 2 {
		t.Errorf("expected 2 linked reports, got %d", len(d2.ReportIDs))
	}
	if d2.Affected != 200 {
		t.Errorf("expected affected aggregation 200, got %d", d2.Affected)
	}
}

func TestOnReportValidated_DifferentTypeDoesNotMerge(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	flood := validReport("r1", 3)
	d1, _ := r.OnReportValidated(flood, geoindex.Point{Lat: -6.2, Lon: 106.8})

	quake := validReport("r2", 3)
	quake.DisasterType = models.DisasterTypeEarthquake
	d2, _ := r.OnReportValidated(quake, geoindex.Point{Lat: -6.2, Lon: 106.8})

	if d1.ID == d2.ID {
		t.Error("expected different disaster types to not merge")
	}
}

func TestOnReportValidated_FarApartDoesNotMerge(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	d1, _ := r.OnReportValidated(validReport("r1", 3), geoindex.Point{Lat: -6.2, Lon: 106.8})
	// ~5.5km away, default merge radius is 2km.
	d2, _ := r.OnReportValidated(validReport("r2", 3), geoindex.Point{Lat: -6.25, Lon: 106.8})

	if d1.ID == d2.ID {
		t.Error("expected reports 5km apart to create separate disasters")
	}
}

func TestOnReportValidated_ImpactRadiusExtendsMerge(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	wide := validReport("r1", 3)
	wide.ImpactRadiusM = 10000
	d1, _ := r.OnReportValidated(wide, geoindex.Point{Lat: -6.2, Lon: 106.8})

	// ~5.5km away, inside the first report's 10km impact radius.
	d2, _ := r.OnReportValidated(validReport("r2", 3), geoindex.Point{Lat: -6.25, Lon: 106.8})

	if d1.ID != d2.ID {
		t.Error("expected merge within the wider impact radius")
	}
}

func TestOnReportValidated_DuplicateDeliveryIdempotent(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	rep := validReport("r1", 3)
	at := geoindex.Point{Lat: -6.2, Lon: 106.8}

	d1, err := r.OnReportValidated(rep, at)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	d2, err := r.OnReportValidated(rep, at)
	if err != nil {
		t.Fatalf("duplicate delivery failed: %v", err)
	}

	if d1.ID != d2.ID {
		t.Fatalf("duplicate delivery created a second disaster")
	}
	if len(d2.ReportIDs) != 1 {
		t.Errorf("duplicate delivery double-linked the report: %v", d2.ReportIDs)
	}
	if d2.Affected != 100 {
		t.Errorf("duplicate delivery double-counted affected: %d", d2.Affected)
	}
	if len(r.List(models.DisasterActive)) != 1 {
		t.Errorf("expected exactly one active disaster")
	}
}

func TestOnReportValidated_StaleDisasterOutsideWindow(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	d1, _ := r.OnReportValidated(validReport("r1", 3), geoindex.Point{Lat: -6.2, Lon: 106.8})

	// Second report validated 25h later: outside the 24h merge window.
	later := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	second := validReport("r2", 3)
	second.ValidatedAt = &later
	d2, _ := r.OnReportValidated(second, geoindex.Point{Lat: -6.2, Lon: 106.8})

	if d1.ID == d2.ID {
		t.Error("expected no merge across the 24h window")
	}
}

func TestTransition_Lifecycle(t *testing.T) {
	r, bus, done := newTestRegistry(t)
	defer done()

	var changes []events.Event
	bus.RegisterHandler(events.TypeDisasterStatusChanged, func(ev events.Event) {
		changes = append(changes, ev)
	})

	d, _ := r.OnReportValidated(validReport("r1", 3), geoindex.Point{Lat: -6.2, Lon: 106.8})

	// active -> resolved skips contained: illegal.
	end := time.Now().UTC()
	var itErr *cerr.InvalidTransition
	if _, err := r.Transition(d.ID, models.DisasterResolved, &end, "op-1"); !errors.As(err, &itErr) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}

	contained, err := r.Transition(d.ID, models.DisasterContained, nil, "op-1")
	if err != nil {
		t.Fatalf("contain failed: %v", err)
	}
	if contained.EndTime == nil {
		t.Error("expected end_time stamped on containment")
	}

	// resolve without end time: rejected.
	var verr *cerr.ValidationError
	if _, err := r.Transition(d.ID, models.DisasterResolved, nil, "op-1"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError without end_time, got %v", err)
	}

	resolved, err := r.Transition(d.ID, models.DisasterResolved, &end, "op-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.EndTime == nil || !resolved.EndTime.Equal(end) {
		t.Errorf("expected supplied end_time, got %v", resolved.EndTime)
	}

	// resolved is terminal.
	if _, err := r.Transition(d.ID, models.DisasterContained, nil, "op-1"); !errors.As(err, &itErr) {
		t.Errorf("expected InvalidTransition from resolved, got %v", err)
	}

	if len(changes) != 2 || changes[0].To != string(models.DisasterContained) || changes[1].To != string(models.DisasterResolved) {
		t.Errorf("unexpected status change events: %+v", changes)
	}
}

func TestTransition_ContainedDisasterStopsCorrelating(t *testing.T) {
	r, _, done := newTestRegistry(t)
	defer done()

	d, _ := r.OnReportValidated(validReport("r1", 3), geoindex.Point{Lat: -6.2, Lon: 106.8})
	r.Transition(d.ID, models.DisasterContained, nil, "op-1")

	d2, _ := r.OnReportValidated(validReport("r2", 3), geoindex.Point{Lat: -6.2, Lon: 106.8})
	if d.ID == d2.ID {
		t.Error("expected contained disaster to stop attracting reports")
	}
}
