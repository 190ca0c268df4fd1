package widget

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/types"
)

// DoubleTapWindow is the longest gap between two taps that still counts
// as a double tap.
const DoubleTapWindow = 500 * time.Millisecond

// TapKind is how a tap was classified.
type TapKind string

const (
	TapIgnored TapKind = "ignored"
	TapSingle  TapKind = "single"
	TapDouble  TapKind = "double"
)

// OnTap classifies a tap on id. A tap within DoubleTapWindow of the
// previous one clears the tracker and refreshes right away, bypassing the
// schedule. Any other tap records its time and opens the configuration
// surface.
func (c *Coordinator) OnTap(ctx context.Context, id types.InstanceID) TapKind {
	if !id.Valid() {
		return TapIgnored
	}

	c.mu.Lock()
	inst := c.instanceLocked(id)
	now := c.now()
	last := inst.lastTapAt

	if !last.IsZero() {
		if gap := now.Sub(last); gap >= 0 && gap <= DoubleTapWindow {
			inst.lastTapAt = time.Time{}
			c.mu.Unlock()

			logrus.WithFields(logrus.Fields{
				"instance": id,
				"gap":      gap,
			}).Debug("double tap")
			c.Refresh(ctx, id, types.SourceDoubleClick)
			return TapDouble
		}
	}

	inst.lastTapAt = now
	c.mu.Unlock()

	logrus.WithField("instance", id).Debug("single tap, opening configuration")
	c.openConfiguration(id, inst)
	return TapSingle
}

func (c *Coordinator) openConfiguration(id types.InstanceID, inst *instance) {
	inst.renderMu.Lock()
	defer inst.renderMu.Unlock()

	if inst.removed {
		return
	}
	c.renderer.OpenConfiguration(id)
}
