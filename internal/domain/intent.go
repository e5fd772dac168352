package domain

import "time"

// IntentStatus is the lifecycle of a state-changing operation on one target.
type IntentStatus string

const (
	IntentIdle      IntentStatus = "IDLE"
	IntentInFlight  IntentStatus = "IN_FLIGHT"
	IntentSucceeded IntentStatus = "SUCCEEDED"
	IntentFailed    IntentStatus = "FAILED"
)

// MutationIntent tracks the latest mutation for a logical target such as a
// job id. At most one intent per key is in flight. Epoch is the session
// epoch the mutation ran under.
type MutationIntent struct {
	Key       string       `json:"key"`
	Status    IntentStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	Epoch     uint64       `json:"epoch"`
	UpdatedAt time.Time    `json:"updatedAt,omitempty"`
}

// InFlight reports whether the intent is outstanding.
func (i MutationIntent) InFlight() bool {
	return i.Status == IntentInFlight
}
