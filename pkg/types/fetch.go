package types

import "time"

// FetchPhase is the per-instance network phase. It is transient and never
// persisted.
type FetchPhase int

const (
	FetchIdle FetchPhase = iota
	FetchInFlight
	FetchResolved
)

func (p FetchPhase) String() string {
	switch p {
	case FetchIdle:
		return "idle"
	case FetchInFlight:
		return "inFlight"
	case FetchResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

func (p FetchPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *FetchPhase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "inFlight":
		*p = FetchInFlight
	case "resolved":
		*p = FetchResolved
	default:
		*p = FetchIdle
	}
	return nil
}

// FetchState tracks the refresh cycle of one instance. StartedAt is set
// while in flight, Result once resolved.
type FetchState struct {
	Phase     FetchPhase   `json:"phase"`
	StartedAt time.Time    `json:"startedAt,omitempty"`
	Result    DisplayState `json:"result,omitempty"`
}

func (s FetchState) InFlight() bool {
	return s.Phase == FetchInFlight
}

// RefreshSource names what triggered a refresh. It is only used for logs
// and metrics.
type RefreshSource string

const (
	SourceUpdate      RefreshSource = "update"
	SourceAlarm       RefreshSource = "alarm"
	SourceDoubleClick RefreshSource = "doubleClick"
	SourceManual      RefreshSource = "manual"
)
