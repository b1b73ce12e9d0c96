package lifecycle

import "time"

// Record is the persisted lifecycle of one owning entity instance.
// Records are values: callers get copies and mutate stored state only through CompareAndSwap.
type Record struct {
	ID           string    `json:"id"`
	TemplateKind string    `json:"templateKind"`
	CurrentState string    `json:"currentState"`
	Version      uint64    `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot is a record together with the events legal from its current state.
type Snapshot struct {
	Record     Record   `json:"record"`
	NextEvents []string `json:"nextEvents"`
}

// Terminal reports whether no further event can be dispatched.
func (s Snapshot) Terminal() bool {
	return len(s.NextEvents) == 0
}
