package widget

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/metrics"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// Arm replaces the schedule of id with a new one firing after the
// configured refresh interval. Each fire refreshes and then arms again,
// re-reading the interval. Unconfigured instances end up with no
// schedule.
func (c *Coordinator) Arm(id types.InstanceID) {
	if !id.Valid() {
		return
	}
	c.arm(id, nil)
}

// arm does the work of Arm. With expectGen set it only proceeds if id is
// still tracked and was not re-armed or cancelled since that generation.
func (c *Coordinator) arm(id types.InstanceID, expectGen *uint64) {
	cfg, err := c.store.Load(id)
	if err != nil {
		logrus.WithField("instance", id).Errorf("failed to load instance config: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var inst *instance
	if expectGen != nil {
		var ok bool
		inst, ok = c.instances[id]
		if !ok || inst.armGen != *expectGen {
			return
		}
	} else {
		inst = c.instanceLocked(id)
	}

	c.cancelScheduleLocked(inst)

	if err != nil || !cfg.Configured() {
		return
	}

	inst.armGen++
	gen := inst.armGen
	interval := cfg.RefreshInterval()
	inst.handle = c.sched.Schedule(interval, func() {
		c.fire(id, gen)
	})
	metrics.LiveSchedules.Inc()

	logrus.WithFields(logrus.Fields{
		"instance": id,
		"interval": interval,
	}).Debug("refresh armed")
}

// fire runs a due schedule. A schedule that was cancelled or superseded
// does nothing.
func (c *Coordinator) fire(id types.InstanceID, gen uint64) {
	c.mu.Lock()
	inst, ok := c.instances[id]
	if !ok || inst.armGen != gen {
		c.mu.Unlock()
		return
	}
	inst.handle = 0
	metrics.LiveSchedules.Dec()
	c.mu.Unlock()

	c.refresh(context.Background(), id, types.SourceAlarm, false)
	c.arm(id, &gen)
}

// cancelScheduleLocked drops the live schedule of inst, if any. Bumping
// the generation also neutralizes a fire that is already running.
func (c *Coordinator) cancelScheduleLocked(inst *instance) {
	inst.armGen++
	if inst.handle == 0 {
		return
	}
	c.sched.Cancel(inst.handle)
	inst.handle = 0
	metrics.LiveSchedules.Dec()
}
