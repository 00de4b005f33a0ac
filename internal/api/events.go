package api

import "time"

// DashboardEvent is the wrapper for every message pushed to connected
// dashboard clients over /ws. The dashboard is snapshot-only: the hub
// periodically rebroadcasts a fresh DashboardSnapshot rather than streaming
// individual domain events, since a mint's state already changes many times
// a second and per-swap events would overwhelm a browser client.
type DashboardEvent struct {
	Type      string      `json:"type"` // always "snapshot"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}
