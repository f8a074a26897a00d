package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/terrasiaga/coordination/internal/cerr"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLedger(t *testing.T) (*Ledger, func()) {
	t.Helper()
	bus := events.NewBus(1, 200)
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	l := New(bus)
	return l, func() {
		cancel()
		bus.Stop()
	}
}

func addRice(t *testing.T, l *Ledger, qty int) *models.EmergencyResource {
	t.Helper()
	res, err := l.AddResource(&models.EmergencyResource{
		Category: "rice",
		Quantity: qty,
		Latitude: -6.2,
		Longitude: 106.8,
	})
	if err != nil {
		t.Fatalf("AddResource failed: %v", err)
	}
	return res
}

func TestAllocate_HappyPath(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 1000)

	a, err := l.Allocate(res.ID, "d1", 600, "op-1")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if a.Status != models.AllocationAllocated {
		t.Errorf("expected allocated, got %s", a.Status)
	}

	avail, err := l.Available(res.ID)
	if err != nil {
		t.Fatalf("Available failed: %v", err)
	}
	if avail != 400 {
		t.Errorf("expected 400 available, got %d", avail)
	}
}

func TestAllocate_InsufficientCarriesAmounts(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 1000)
	if _, err := l.Allocate(res.ID, "d1", 600, "op-1"); err != nil {
		t.Fatalf("first allocation failed: %v", err)
	}

	_, err := l.Allocate(res.ID, "d1", 500, "op-1")
	var insErr *cerr.InsufficientResource
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientResource, got %v", err)
	}
	if insErr.Requested != 500 || insErr.Available != 400 {
		t.Errorf("expected requested=500 available=400, got %+v", insErr)
	}
}

func TestAllocate_ConcurrentNeverOverdraws(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 1000)

	// Scenario: 600 and 500 concurrently against 1000. Exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, qty := range []int{600, 500} {
		wg.Add(1)
		go func(i, qty int) {
			defer wg.Done()
			_, errs[i] = l.Allocate(res.ID, "d1", qty, "op-1")
		}(i, qty)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			var insErr *cerr.InsufficientResource
			if !errors.As(err, &insErr) {
				t.Fatalf("unexpected error type: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one failure, got %d", failures)
	}

	avail, _ := l.Available(res.ID)
	if avail < 0 {
		t.Errorf("resource overdrawn: available %d", avail)
	}
}

func TestTransition_MonotonicOrder(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 100)
	a, _ := l.Allocate(res.ID, "d1", 50, "op-1")

	var itErr *cerr.InvalidTransition

	// allocated -> delivered skips in_transit: illegal.
	if _, err := l.Transition(a.ID, models.AllocationDelivered); !errors.As(err, &itErr) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}

	if _, err := l.Transition(a.ID, models.AllocationInTransit); err != nil {
		t.Fatalf("in_transit failed: %v", err)
	}
	if _, err := l.Transition(a.ID, models.AllocationDelivered); err != nil {
		t.Fatalf("delivered failed: %v", err)
	}

	// delivered is terminal; cancel must fail.
	if _, err := l.Transition(a.ID, models.AllocationCancelled); !errors.As(err, &itErr) {
		t.Errorf("expected InvalidTransition cancelling delivered, got %v", err)
	}
}

func TestTransition_CancelReleasesQuantity(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 100)
	a, _ := l.Allocate(res.ID, "d1", 80, "op-1")

	if avail, _ := l.Available(res.ID); avail != 20 {
		t.Fatalf("expected 20 available, got %d", avail)
	}

	if _, err := l.Transition(a.ID, models.AllocationCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if avail, _ := l.Available(res.ID); avail != 100 {
		t.Errorf("expected cancel to release quantity, got %d available", avail)
	}
}

func TestDeliveredStillCountsAgainstStock(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 100)
	a, _ := l.Allocate(res.ID, "d1", 80, "op-1")
	l.Transition(a.ID, models.AllocationInTransit)
	l.Transition(a.ID, models.AllocationDelivered)

	if avail, _ := l.Available(res.ID); avail != 20 {
		t.Errorf("delivered stock must stay consumed, got %d available", avail)
	}
}

func TestRestock(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 100)
	l.Allocate(res.ID, "d1", 90, "op-1")

	if _, err := l.Restock(res.ID, 50); err != nil {
		t.Fatalf("Restock failed: %v", err)
	}
	if avail, _ := l.Available(res.ID); avail != 60 {
		t.Errorf("expected 60 available after restock, got %d", avail)
	}

	var verr *cerr.ValidationError
	if _, err := l.Restock(res.ID, 0); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for zero delta, got %v", err)
	}
}

func TestResourceStatusDerivation(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	res := addRice(t, l, 100)

	if _, st, _ := l.GetResource(res.ID); st != models.ResourceAvailable {
		t.Errorf("expected available, got %s", st)
	}

	l.Allocate(res.ID, "d1", 40, "op-1")
	if _, st, _ := l.GetResource(res.ID); st != models.ResourceReserved {
		t.Errorf("expected reserved, got %s", st)
	}

	l.Allocate(res.ID, "d1", 60, "op-1")
	if _, st, _ := l.GetResource(res.ID); st != models.ResourceDepleted {
		t.Errorf("expected depleted, got %s", st)
	}
}

// Property: under random sequences of allocate/transition/cancel, the sum of
// active allocation quantities never exceeds total stock.
func TestLedgerInvariant_RandomOps(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	rng := rand.New(rand.NewSource(99))
	const total = 500
	res := addRice(t, l, total)

	var live []string
	for op := 0; op < 2000; op++ {
		switch rng.Intn(4) {
		case 0, 1:
			qty := 1 + rng.Intn(120)
			if a, err := l.Allocate(res.ID, "d1", qty, "op-1"); err == nil {
				live = append(live, a.ID)
			}
		case 2:
			if len(live) > 0 {
				id := live[rng.Intn(len(live))]
				a, _ := l.GetAllocation(id)
				next := models.AllocationInTransit
				if a.Status == models.AllocationInTransit {
					next = models.AllocationDelivered
				}
				l.Transition(id, next)
			}
		case 3:
			if len(live) > 0 {
				i := rng.Intn(len(live))
				if _, err := l.Transition(live[i], models.AllocationCancelled); err == nil {
					live = append(live[:i], live[i+1:]...)
				}
			}
		}

		avail, err := l.Available(res.ID)
		if err != nil {
			t.Fatalf("Available failed: %v", err)
		}
		if avail < 0 {
			t.Fatalf("invariant violated at op %d: available %d", op, avail)
		}
	}
}

func TestAllocate_UnknownResource(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	_, err := l.Allocate("ghost", "d1", 1, "op-1")
	if !errors.Is(err, cerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentResourcesIndependent(t *testing.T) {
	l, done := newTestLedger(t)
	defer done()

	var ids []string
	for i := 0; i < 4; i++ {
		res, err := l.AddResource(&models.EmergencyResource{
			Category: fmt.Sprintf("cat-%d", i),
			Quantity: 1000,
			Latitude: float64(i),
			Longitude: float64(i),
		})
		if err != nil {
			t.Fatalf("AddResource failed: %v", err)
		}
		ids = append(ids, res.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					l.Allocate(id, "d1", 10, "op-1")
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		avail, _ := l.Available(id)
		if avail < 0 {
			t.Errorf("resource %s overdrawn: %d", id, avail)
		}
	}
}
