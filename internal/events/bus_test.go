package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startedBus(t *testing.T) (*Bus, context.CancelFunc) {
	t.Helper()
	bus := NewBus(2, 20)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	return bus, cancel
}

func TestBus_HandlersRunSynchronously(t *testing.T) {
	bus, cancel := startedBus(t)
	defer func() {
		cancel()
		bus.Stop()
	}()

	var seen []string
	bus.RegisterHandler(TypeReportValidated, func(ev Event) {
		seen = append(seen, ev.ReportID)
	})

	bus.Publish(Event{Type: TypeReportValidated, ReportID: "r1"})
	bus.Publish(Event{Type: TypeReportValidated, ReportID: "r2"})
	bus.Publish(Event{Type: TypeReportSubmitted, ReportID: "r3"}) // different type

	if len(seen) != 2 || seen[0] != "r1" || seen[1] != "r2" {
		t.Errorf("expected handler to see [r1 r2] in order, got %v", seen)
	}
}

func TestBus_PublishStampsIDAndTime(t *testing.T) {
	bus, cancel := startedBus(t)
	defer func() {
		cancel()
		bus.Stop()
	}()

	var got Event
	bus.RegisterHandler(TypeDisasterCreated, func(ev Event) { got = ev })
	bus.Publish(Event{Type: TypeDisasterCreated, DisasterID: "d1"})

	if got.ID == "" {
		t.Error("expected event id to be stamped")
	}
	if got.OccurredAt.IsZero() {
		t.Error("expected occurred_at to be stamped")
	}
}

func TestBus_SinksReceiveAsync(t *testing.T) {
	bus, cancel := startedBus(t)

	var count atomic.Int64
	bus.RegisterSink(func(ctx context.Context, ev Event) error {
		count.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: TypeResourceAllocated})
	}

	cancel()
	bus.Stop()

	if count.Load() != 10 {
		t.Errorf("expected 10 sink deliveries, got %d", count.Load())
	}
}

func TestBus_SubscribeAndUnsubscribe(t *testing.T) {
	bus, cancel := startedBus(t)
	defer func() {
		cancel()
		bus.Stop()
	}()

	id, ch := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	bus.Publish(Event{Type: TypeCenterFull, CenterID: "c1"})

	select {
	case ev := <-ch:
		if ev.CenterID != "c1" {
			t.Errorf("expected center c1, got %s", ev.CenterID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber delivery")
	}

	bus.Unsubscribe(id)
	if bus.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %d", bus.SubscriberCount())
	}
}

func TestBus_SlowSubscriberSkipped(t *testing.T) {
	bus, cancel := startedBus(t)

	_, ch := bus.Subscribe()

	// Never read from ch; overflow its buffer.
	for i := 0; i < 150; i++ {
		bus.Publish(Event{Type: TypeEvacueeAssigned, Count: i})
	}

	cancel()
	bus.Stop()

	// Buffer holds at most 100; the rest were dropped, not blocked on.
	n := 0
	for range ch {
		n++
	}
	if n > 100 {
		t.Errorf("expected at most 100 buffered events, got %d", n)
	}
}
