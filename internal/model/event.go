package model

import "time"

// EventFields is the display projection of an entity written to the device
// calendar. It is derived from a [Snapshot] plus presentation-only extras
// and is never persisted.
type EventFields struct {
	Title    string
	Start    time.Time
	End      time.Time
	Location string
	Notes    string
	URL      string
}
