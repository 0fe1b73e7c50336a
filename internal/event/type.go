package event

import "time"

const (
	// LifecycleEventsQueue carries agreement and intervention status
	// changes out to downstream services.
	LifecycleEventsQueue = "hact_lifecycle_events"

	// CompletionEventsQueue carries completed assurance activities in from
	// the monitoring services.
	CompletionEventsQueue = "hact_completion_events"

	// RecomputeRequestsQueue carries full snapshot rebuild requests, e.g.
	// after a nightly financial sync.
	RecomputeRequestsQueue = "hact_recompute_requests"
)

// LifecycleEvent is published on every successful status transition.
type LifecycleEvent struct {
	ID         string    `json:"id"`
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CompletionEvent reports one finished assurance activity for a partner.
// Kind is "programmatic_visit", "spot_check" or "audit"; Date is the
// completion date that picks the quarter bucket.
type CompletionEvent struct {
	ID           string    `json:"id"`
	VendorNumber string    `json:"vendor_number"`
	Kind         string    `json:"kind"`
	Date         time.Time `json:"date"`
}

// RecomputeRequest asks for full snapshot rebuilds. An empty VendorNumbers
// list means every visible partner.
type RecomputeRequest struct {
	ID            string   `json:"id"`
	VendorNumbers []string `json:"vendor_numbers"`
}
