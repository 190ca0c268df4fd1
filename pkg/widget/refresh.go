package widget

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/metrics"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// Refresh fetches and renders the status of id. If a fetch is already in
// flight for id the call returns immediately with ok == false; the
// outstanding fetch renders when it completes. Unconfigured instances
// render as such without touching the network.
//
// The returned state is what was computed by this call; ok reports
// whether it reached the renderer.
func (c *Coordinator) Refresh(ctx context.Context, id types.InstanceID, source types.RefreshSource) (state types.DisplayState, ok bool) {
	if !id.Valid() {
		return types.DisplayState{}, false
	}
	return c.refresh(ctx, id, source, true)
}

// refresh does the work of Refresh. Without track it leaves untracked
// (removed) instances alone instead of bringing them back.
func (c *Coordinator) refresh(ctx context.Context, id types.InstanceID, source types.RefreshSource, track bool) (state types.DisplayState, ok bool) {
	logger := logrus.WithFields(logrus.Fields{
		"instance": id,
		"source":   source,
	})

	cfg, err := c.store.Load(id)
	if err != nil {
		logger.Errorf("failed to load instance config: %v", err)
	}

	c.mu.Lock()
	inst, tracked := c.instances[id]
	if !tracked {
		if !track {
			c.mu.Unlock()
			return types.DisplayState{}, false
		}
		inst = c.instanceLocked(id)
	}

	if err != nil || !cfg.Configured() {
		if err != nil {
			state = types.ErrorState(types.ReasonFailed)
		} else {
			state = types.Unconfigured()
		}
		if !inst.fetch.InFlight() {
			inst.fetch = types.FetchState{Phase: types.FetchResolved, Result: state}
		}
		inst.display = state
		c.mu.Unlock()

		logger.Debug("instance not configured")
		return state, c.render(id, inst, state)
	}

	if inst.fetch.InFlight() {
		c.mu.Unlock()
		metrics.FetchCoalescedTotal.WithLabelValues(string(source)).Inc()
		logger.Debug("fetch already in flight, coalescing")
		return types.DisplayState{}, false
	}

	startedAt := c.now()
	inst.fetch = types.FetchState{Phase: types.FetchInFlight, StartedAt: startedAt}
	fetchCtx, cancel := context.WithTimeout(inst.ctx, c.fetchTimeout)
	c.mu.Unlock()

	// The caller may give up too, e.g. an HTTP request going away.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	logger = logger.WithFields(cfg.LogrusFields()).WithField("cycle", uuid.NewString())
	logger.Debug("refreshing")

	begin := time.Now()
	status, err := c.client.FetchStatus(fetchCtx, cfg.Request())
	cancel()
	metrics.FetchDuration.Observe(time.Since(begin).Seconds())

	state = toDisplayState(cfg.BatteryID, status, err)
	result := "ok"
	if state.Kind == types.DisplayError {
		result = string(state.Reason)
		logger.WithField("reason", state.Reason).Warnf("refresh failed: %v", err)
	}
	metrics.FetchTotal.WithLabelValues(string(source), result).Inc()

	c.mu.Lock()
	if c.instances[id] != inst {
		c.mu.Unlock()
		logger.Debug("instance went away during fetch, discarding result")
		return state, false
	}
	inst.fetch = types.FetchState{Phase: types.FetchResolved, StartedAt: startedAt, Result: state}
	inst.display = state
	c.mu.Unlock()

	if state.Kind == types.DisplayOk {
		metrics.BatteryPercentage.WithLabelValues(id.String(), state.BatteryID).Set(float64(state.Percentage))
		logger.WithField("percentage", state.Percentage).Info("battery status updated")
	}

	return state, c.render(id, inst, state)
}

func toDisplayState(batteryID string, status *batteryapi.Status, err error) types.DisplayState {
	if err != nil {
		return types.ErrorState(batteryapi.ReasonOf(err))
	}
	if status == nil {
		return types.ErrorState(types.ReasonData)
	}
	return types.Ok(status.Percentage, status.ReportedAt, batteryID)
}

// render hands state to the renderer unless the instance was removed.
func (c *Coordinator) render(id types.InstanceID, inst *instance, state types.DisplayState) bool {
	inst.renderMu.Lock()
	defer inst.renderMu.Unlock()

	if inst.removed {
		return false
	}
	c.renderer.Render(id, state)
	metrics.RenderTotal.WithLabelValues(string(state.Kind)).Inc()
	return true
}
