package daemon

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/events"
	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// hostRenderer is the widget.Renderer of the daemon. It writes the PNG
// surface and announces every render and configuration request on the
// event hub, where the CLI and other hosts pick them up.
type hostRenderer struct {
	png  *render.PNG
	text render.Formatter
	hub  *events.EventHub
}

func newHostRenderer(png *render.PNG, text render.Formatter, hub *events.EventHub) *hostRenderer {
	return &hostRenderer{png: png, text: text, hub: hub}
}

func (r *hostRenderer) Render(id types.InstanceID, s types.DisplayState) {
	if r.png != nil {
		r.png.Render(id, s)
	}

	t := r.text.Texts(s)
	logrus.WithFields(logrus.Fields{
		"instance": id,
		"kind":     s.Kind,
		"text":     t.Headline,
	}).Debug("widget rendered")

	r.hub.Publish(events.WidgetRender, events.RenderEvent{
		Instance:   int(id),
		Kind:       string(s.Kind),
		Percentage: s.Percentage,
		BatteryID:  s.BatteryID,
		ReportedAt: s.ReportedAt,
		Reason:     string(s.Reason),
		Text:       t.Headline,
		Ts:         time.Now().UnixMilli(),
	})
}

func (r *hostRenderer) OpenConfiguration(id types.InstanceID) {
	logrus.WithField("instance", id).Info("configuration requested")
	r.hub.Publish(events.WidgetConfigure, events.InstanceEvent{
		Instance: int(id),
		Ts:       time.Now().UnixMilli(),
	})
}
