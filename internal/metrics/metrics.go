package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terrasiaga/coordination/internal/events"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coordination_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coordination_http_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coordination_events_total",
		Help: "Domain events emitted by type",
	}, []string{"type"})
	ReportsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordination_reports_submitted_total",
		Help: "Total incident reports submitted",
	})
	DisastersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordination_disasters_created_total",
		Help: "Total disasters created from validated reports",
	})
	AllocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordination_allocations_total",
		Help: "Total resource allocations committed",
	})
	EvacueesAssignedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordination_evacuees_assigned_total",
		Help: "Total evacuees placed at centers",
	})
	DispatchTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordination_dispatch_timeouts_total",
		Help: "Total volunteer assignments cancelled for missing the ack deadline",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(ReportsSubmittedTotal)
	prometheus.MustRegister(DisastersCreatedTotal)
	prometheus.MustRegister(AllocationsTotal)
	prometheus.MustRegister(EvacueesAssignedTotal)
	prometheus.MustRegister(DispatchTimeoutsTotal)
}

// Sink observes every bus event; register it with Bus.RegisterSink.
func Sink(_ context.Context, ev events.Event) error {
	EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case events.TypeReportSubmitted:
		ReportsSubmittedTotal.Inc()
	case events.TypeDisasterCreated:
		DisastersCreatedTotal.Inc()
	case events.TypeResourceAllocated:
		AllocationsTotal.Inc()
	case events.TypeEvacueeAssigned:
		EvacueesAssignedTotal.Add(float64(ev.Count))
	case events.TypeAssignmentTimedOut:
		DispatchTimeoutsTotal.Inc()
	}
	return nil
}

func Handler() http.Handler { return promhttp.Handler() }
