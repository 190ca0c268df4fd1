// Package widget drives the refresh lifecycle of battery widgets. A
// Coordinator owns all per-instance state: the fetch phase, the last
// display state, the tap tracker and the armed schedule. Host events
// (placement, alarm fire, tap, removal) all funnel through it.
package widget

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/metrics"
	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/scheduler"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// Renderer draws display states onto the host surface.
type Renderer interface {
	Render(id types.InstanceID, state types.DisplayState)
	OpenConfiguration(id types.InstanceID)
}

// StatusFetcher is the remote battery API.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, req batteryapi.Request) (*batteryapi.Status, error)
}

type instance struct {
	// Guarded by Coordinator.mu.
	fetch     types.FetchState
	display   types.DisplayState
	lastTapAt time.Time
	handle    scheduler.Handle
	armGen    uint64
	// ctx is cancelled when the instance is removed or the provider is
	// disabled, aborting any fetch in flight.
	ctx    context.Context
	cancel context.CancelFunc

	// renderMu serializes renderer calls for this instance.
	renderMu sync.Mutex
	removed  bool // guarded by renderMu
}

// Coordinator is the sole writer of per-instance fetch and display state.
type Coordinator struct {
	store    config.Store
	client   StatusFetcher
	sched    scheduler.Scheduler
	renderer Renderer

	logo         *render.Logo
	now          func() time.Time
	fetchTimeout time.Duration

	mu        sync.Mutex
	instances map[types.InstanceID]*instance
}

type Option func(*Coordinator)

// WithClock replaces time.Now. Tap classification and fetch start times
// use it.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithFetchTimeout overrides batteryapi.RenderTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.fetchTimeout = d
	}
}

// WithLogo hands the shared logo cache to the coordinator, which releases
// it when the provider is disabled.
func WithLogo(l *render.Logo) Option {
	return func(c *Coordinator) {
		c.logo = l
	}
}

func New(store config.Store, client StatusFetcher, sched scheduler.Scheduler, renderer Renderer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		client:       client,
		sched:        sched,
		renderer:     renderer,
		now:          time.Now,
		fetchTimeout: batteryapi.RenderTimeout,
		instances:    make(map[types.InstanceID]*instance),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// instanceLocked returns the tracked state of id, creating it if needed.
func (c *Coordinator) instanceLocked(id types.InstanceID) *instance {
	inst, ok := c.instances[id]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		inst = &instance{ctx: ctx, cancel: cancel}
		c.instances[id] = inst
	}
	return inst
}

// OnInstancesUpdated refreshes and arms every valid id. Instances are
// handled concurrently; the call returns when all of them are done.
// Unconfigured instances render as such and get no schedule.
func (c *Coordinator) OnInstancesUpdated(ctx context.Context, ids []types.InstanceID) {
	var wg sync.WaitGroup
	for _, id := range ids {
		if !id.Valid() {
			logrus.Debugf("ignoring invalid instance id %d", id)
			continue
		}

		wg.Add(1)
		go func(id types.InstanceID) {
			defer wg.Done()
			c.Refresh(ctx, id, types.SourceUpdate)
			c.Arm(id)
		}(id)
	}
	wg.Wait()
}

// OnInstanceRemoved stops everything belonging to id and purges its
// state, including the stored configuration. No render for id happens
// after it returns.
func (c *Coordinator) OnInstanceRemoved(id types.InstanceID) {
	if !id.Valid() {
		return
	}

	c.mu.Lock()
	inst, ok := c.instances[id]
	if ok {
		c.cancelScheduleLocked(inst)
		inst.cancel()
		delete(c.instances, id)
	}
	c.mu.Unlock()

	if ok {
		inst.renderMu.Lock()
		inst.removed = true
		inst.renderMu.Unlock()
	}

	if err := c.store.Delete(id); err != nil {
		logrus.WithField("instance", id).Errorf("failed to delete instance config: %v", err)
	}
	metrics.BatteryPercentage.DeletePartialMatch(prometheus.Labels{"instance": id.String()})

	logrus.WithField("instance", id).Info("instance removed")
}

// OnAllDisabled cancels every schedule, drops all in-memory state and
// releases the logo. Stored configuration is left alone.
func (c *Coordinator) OnAllDisabled() {
	c.mu.Lock()
	dropped := make([]*instance, 0, len(c.instances))
	for id, inst := range c.instances {
		c.cancelScheduleLocked(inst)
		inst.cancel()
		delete(c.instances, id)
		dropped = append(dropped, inst)
	}
	c.mu.Unlock()

	for _, inst := range dropped {
		inst.renderMu.Lock()
		inst.removed = true
		inst.renderMu.Unlock()
	}

	if c.logo != nil {
		c.logo.Release()
	}
	metrics.BatteryPercentage.Reset()

	logrus.WithField("instances", len(dropped)).Info("widget provider disabled")
}

// Snapshot is a read-only view of one tracked instance.
type Snapshot struct {
	ID        types.InstanceID   `json:"id"`
	Fetch     types.FetchState   `json:"fetch"`
	Display   types.DisplayState `json:"display"`
	Armed     bool               `json:"armed"`
	LastTapAt *time.Time         `json:"lastTapAt,omitempty"`
}

// State returns the snapshot of id, if it is tracked.
func (c *Coordinator) State(id types.InstanceID) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.instances[id]
	if !ok {
		return Snapshot{}, false
	}
	s := Snapshot{
		ID:      id,
		Fetch:   inst.fetch,
		Display: inst.display,
		Armed:   inst.handle != 0,
	}
	if !inst.lastTapAt.IsZero() {
		t := inst.lastTapAt
		s.LastTapAt = &t
	}
	return s, true
}

// Tracked returns the ids with in-memory state.
func (c *Coordinator) Tracked() []types.InstanceID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]types.InstanceID, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}
	return ids
}
