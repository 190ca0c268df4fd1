package events

import "encoding/json"

// Event name constants
const (
	WidgetRender    = "widget.render"
	WidgetConfigure = "widget.configure"
	WidgetRemoved   = "widget.removed"
	WidgetDisabled  = "widget.disabled"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// RenderEvent is the typed payload for widget.render.
type RenderEvent struct {
	Instance   int    `json:"instance"`
	Kind       string `json:"kind"`
	Percentage int    `json:"percentage,omitempty"`
	BatteryID  string `json:"batteryId,omitempty"`
	ReportedAt int64  `json:"reportedAt,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Text       string `json:"text"`
	Ts         int64  `json:"ts"`
}

// InstanceEvent is the payload for widget.configure and widget.removed.
type InstanceEvent struct {
	Instance int   `json:"instance"`
	Ts       int64 `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.RenderEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Instance, payload.Kind)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
