package types

import "time"

// DisplayKind tags the active variant of a DisplayState.
type DisplayKind string

const (
	DisplayUnconfigured DisplayKind = "unconfigured"
	DisplayOk           DisplayKind = "ok"
	DisplayError        DisplayKind = "error"
)

// Reason is the error category shown for a failed refresh.
type Reason string

const (
	// ReasonData means the API answered with a non-zero code or a payload
	// that could not be understood.
	ReasonData Reason = "data"
	// ReasonNetwork means the API answered with a non-2xx status.
	ReasonNetwork Reason = "network"
	// ReasonFailed covers timeouts and transport errors.
	ReasonFailed Reason = "failed"
)

// DisplayState is the single input to rendering. Exactly one variant is
// active, selected by Kind.
type DisplayState struct {
	Kind DisplayKind `json:"kind"`

	// Ok
	Percentage int    `json:"percentage,omitempty"`
	ReportedAt int64  `json:"reportedAt,omitempty"` // epoch millis
	BatteryID  string `json:"batteryId,omitempty"`

	// Error
	Reason Reason `json:"reason,omitempty"`
}

func Unconfigured() DisplayState {
	return DisplayState{Kind: DisplayUnconfigured}
}

func Ok(percentage int, reportedAt int64, batteryID string) DisplayState {
	return DisplayState{
		Kind:       DisplayOk,
		Percentage: percentage,
		ReportedAt: reportedAt,
		BatteryID:  batteryID,
	}
}

func ErrorState(reason Reason) DisplayState {
	return DisplayState{Kind: DisplayError, Reason: reason}
}

// ReportTime returns ReportedAt as a time.Time.
func (s DisplayState) ReportTime() time.Time {
	return time.UnixMilli(s.ReportedAt)
}

func (s DisplayState) IsZero() bool {
	return s.Kind == ""
}
