package models

import "time"

type ResourceStatus string

const (
	ResourceAvailable ResourceStatus = "available"
	ResourceReserved  ResourceStatus = "reserved"
	ResourceDepleted  ResourceStatus = "depleted"
)

// EmergencyResource is a stock of supplies at a location. Quantity is the
// total stock; only restock operations change it after creation.
type EmergencyResource struct {
	ID         string
	Category   string
	Quantity   int
	LocationID string
	Latitude   float64
	Longitude  float64
}

// StatusFor derives the resource status from remaining (unallocated) stock.
func (r *EmergencyResource) StatusFor(remaining int) ResourceStatus {
	switch {
	case remaining <= 0:
		return ResourceDepleted
	case remaining < r.Quantity:
		return ResourceReserved
	default:
		return ResourceAvailable
	}
}

type AllocationStatus string

const (
	AllocationAllocated AllocationStatus = "allocated"
	AllocationInTransit AllocationStatus = "in_transit"
	AllocationDelivered AllocationStatus = "delivered"
	AllocationCancelled AllocationStatus = "cancelled"
)

// Active reports whether the allocation still holds stock against its
// resource. Cancelled allocations release their quantity; delivered ones
// consumed it.
func (s AllocationStatus) Active() bool {
	return s != AllocationCancelled
}

// ResourceAllocation reserves quantity of a resource for a disaster.
// Quantity is immutable after creation; only status moves.
type ResourceAllocation struct {
	ID          string
	ResourceID  string
	DisasterID  string
	Quantity    int
	Status      AllocationStatus
	AllocatorID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanAllocationTransition reports whether the edge is legal. Status order is
// monotonic allocated->in_transit->delivered; cancelled is reachable from
// allocated or in_transit only.
func CanAllocationTransition(from, to AllocationStatus) bool {
	switch from {
	case AllocationAllocated:
		return to == AllocationInTransit || to == AllocationCancelled
	case AllocationInTransit:
		return to == AllocationDelivered || to == AllocationCancelled
	default:
		return false
	}
}
