package types

import "time"

// DaemonInfo describes the running daemon.
type DaemonInfo struct {
	Version string `json:"version"`
	// HostUpdate is nil when periodic host updates are off.
	HostUpdate       *HostUpdateInfo `json:"hostUpdate,omitempty"`
	EventSubscribers int             `json:"eventSubscribers"`
}

type HostUpdateInfo struct {
	NextRun time.Time `json:"nextRun"`
	Running bool      `json:"running"`
}
