package widget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoha/batterywidget/pkg/batteryapi"
	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/render"
	"github.com/xiaoha/batterywidget/pkg/scheduler"
	"github.com/xiaoha/batterywidget/pkg/types"
)

type renderCall struct {
	id    types.InstanceID
	state types.DisplayState
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders []renderCall
	configs []types.InstanceID
}

func (r *fakeRenderer) Render(id types.InstanceID, state types.DisplayState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, renderCall{id: id, state: state})
}

func (r *fakeRenderer) OpenConfiguration(id types.InstanceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, id)
}

func (r *fakeRenderer) Renders() []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderCall(nil), r.renders...)
}

func (r *fakeRenderer) Configs() []types.InstanceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.InstanceID(nil), r.configs...)
}

type fakeFetcher struct {
	calls int32
	fn    func(ctx context.Context, req batteryapi.Request) (*batteryapi.Status, error)
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, req batteryapi.Request) (*batteryapi.Status, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, req)
}

func (f *fakeFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func okFetcher(percentage int, reportedAt int64) *fakeFetcher {
	return &fakeFetcher{fn: func(_ context.Context, req batteryapi.Request) (*batteryapi.Status, error) {
		return &batteryapi.Status{BatteryID: req.BatteryID, Percentage: percentage, ReportedAt: reportedAt}, nil
	}}
}

type harness struct {
	store    *config.Memory
	sched    *scheduler.Manual
	renderer *fakeRenderer
	logo     *render.Logo
	c        *Coordinator
}

func newHarness(t *testing.T, fetcher StatusFetcher, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:    config.NewMemory(),
		sched:    scheduler.NewManual(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
		renderer: &fakeRenderer{},
		logo:     render.NewLogo(),
	}
	opts = append([]Option{WithClock(h.sched.Now), WithLogo(h.logo)}, opts...)
	h.c = New(h.store, fetcher, h.sched, h.renderer, opts...)
	return h
}

func (h *harness) configure(t *testing.T, id types.InstanceID, batteryID string, minutes int) {
	t.Helper()
	require.NoError(t, h.store.Save(config.Instance{ID: id, BatteryID: batteryID, RefreshIntervalMinutes: minutes}))
}

func TestUnconfiguredNeverFetches(t *testing.T) {
	f := okFetcher(50, 1)
	h := newHarness(t, f)

	state, ok := h.c.Refresh(context.Background(), 1, types.SourceManual)
	assert.True(t, ok)
	assert.Equal(t, types.Unconfigured(), state)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{1, 2})

	assert.Equal(t, 0, f.Calls())
	assert.Equal(t, 0, h.sched.Len(), "unconfigured instances must not be armed")
	for _, r := range h.renderer.Renders() {
		assert.Equal(t, types.DisplayUnconfigured, r.state.Kind)
	}
	assert.Len(t, h.renderer.Renders(), 3)
}

func TestSentinelIDIgnored(t *testing.T) {
	f := okFetcher(50, 1)
	h := newHarness(t, f)
	h.configure(t, 0, "b", 30)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{types.InvalidInstanceID})
	assert.Equal(t, TapIgnored, h.c.OnTap(context.Background(), types.InvalidInstanceID))

	assert.Empty(t, h.renderer.Renders())
	assert.Empty(t, h.c.Tracked())
	assert.Equal(t, 0, f.Calls())
}

func TestUpdateRendersOkAndArms(t *testing.T) {
	f := okFetcher(87, 1700000000000)
	h := newHarness(t, f)
	h.configure(t, 7, "8903128939", 30)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{7})

	renders := h.renderer.Renders()
	require.Len(t, renders, 1)
	assert.Equal(t, types.Ok(87, 1700000000000, "8903128939"), renders[0].state)

	snap, ok := h.c.State(7)
	require.True(t, ok)
	assert.True(t, snap.Armed)
	assert.Equal(t, types.FetchResolved, snap.Fetch.Phase)
	assert.Equal(t, 1, h.sched.Len())

	// Next fire is exactly refreshIntervalMinutes away.
	h.sched.Advance(30*time.Minute - time.Second)
	assert.Equal(t, 1, f.Calls())
	h.sched.Advance(time.Second)
	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, 1, h.sched.Len(), "alarm must re-arm itself")
}

func TestAlarmRereadsInterval(t *testing.T) {
	f := okFetcher(50, 1)
	h := newHarness(t, f)
	h.configure(t, 3, "b", 30)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{3})
	h.configure(t, 3, "b", 10)

	h.sched.Advance(30 * time.Minute)
	assert.Equal(t, 2, f.Calls())

	h.sched.Advance(10 * time.Minute)
	assert.Equal(t, 3, f.Calls())
}

func TestConcurrentRefreshCoalesces(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{fn: func(_ context.Context, req batteryapi.Request) (*batteryapi.Status, error) {
		close(started)
		<-release
		return &batteryapi.Status{BatteryID: req.BatteryID, Percentage: 64, ReportedAt: 2}, nil
	}}
	h := newHarness(t, f)
	h.configure(t, 4, "b", 30)

	done := make(chan types.DisplayState)
	go func() {
		state, _ := h.c.Refresh(context.Background(), 4, types.SourceUpdate)
		done <- state
	}()
	<-started

	snap, _ := h.c.State(4)
	assert.True(t, snap.Fetch.InFlight())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := h.c.Refresh(context.Background(), 4, types.SourceManual)
			assert.False(t, ok)
		}()
	}
	wg.Wait()

	// A double tap while in flight is coalesced as well.
	h.c.OnTap(context.Background(), 4)
	h.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, TapDouble, h.c.OnTap(context.Background(), 4))

	close(release)
	assert.Equal(t, types.Ok(64, 2, "b"), <-done)
	assert.Equal(t, 1, f.Calls())
	assert.Len(t, h.renderer.Renders(), 1)
}

func TestTapDisambiguation(t *testing.T) {
	f := okFetcher(90, 1)
	h := newHarness(t, f)
	h.configure(t, 5, "b", 30)
	ctx := context.Background()

	assert.Equal(t, TapSingle, h.c.OnTap(ctx, 5))
	assert.Equal(t, []types.InstanceID{5}, h.renderer.Configs())

	h.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, TapDouble, h.c.OnTap(ctx, 5))
	assert.Equal(t, 1, f.Calls())
	assert.Len(t, h.renderer.Renders(), 1)

	// The tracker was cleared, so the next tap is single again.
	h.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, TapSingle, h.c.OnTap(ctx, 5))

	// Too slow: single, and the timer restarts from this tap.
	h.sched.Advance(501 * time.Millisecond)
	assert.Equal(t, TapSingle, h.c.OnTap(ctx, 5))
	h.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, TapDouble, h.c.OnTap(ctx, 5))

	assert.Len(t, h.renderer.Configs(), 3)
	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, 0, h.sched.Len(), "double tap bypasses the schedule")
}

func TestRemovedInstanceNeverRendersAgain(t *testing.T) {
	f := okFetcher(10, 1)
	h := newHarness(t, f)
	h.configure(t, 9, "b", 30)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{9})
	require.Len(t, h.renderer.Renders(), 1)

	h.c.OnInstanceRemoved(9)
	assert.Equal(t, 0, h.sched.Len())

	h.sched.Advance(2 * time.Hour)
	assert.Len(t, h.renderer.Renders(), 1)
	assert.Equal(t, 1, f.Calls())

	ids, err := h.store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, tracked := h.c.State(9)
	assert.False(t, tracked)
}

func TestRemovalDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	f := &fakeFetcher{fn: func(ctx context.Context, _ batteryapi.Request) (*batteryapi.Status, error) {
		close(started)
		<-ctx.Done()
		return nil, &batteryapi.FetchError{Reason: types.ReasonFailed, Err: ctx.Err()}
	}}
	h := newHarness(t, f)
	h.configure(t, 11, "b", 30)

	done := make(chan bool)
	go func() {
		_, ok := h.c.Refresh(context.Background(), 11, types.SourceUpdate)
		done <- ok
	}()
	<-started

	h.c.OnInstanceRemoved(11)

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("removal did not cancel the in-flight fetch")
	}
	assert.Empty(t, h.renderer.Renders())
}

func TestTimeoutYieldsFailedAndStillArms(t *testing.T) {
	f := &fakeFetcher{fn: func(ctx context.Context, _ batteryapi.Request) (*batteryapi.Status, error) {
		<-ctx.Done()
		return nil, &batteryapi.FetchError{Reason: types.ReasonFailed, Err: ctx.Err()}
	}}
	h := newHarness(t, f, WithFetchTimeout(20*time.Millisecond))
	h.configure(t, 12, "b", 30)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{12})

	renders := h.renderer.Renders()
	require.Len(t, renders, 1)
	assert.Equal(t, types.ErrorState(types.ReasonFailed), renders[0].state)
	assert.Equal(t, 1, h.sched.Len(), "a failed fetch still re-arms")

	h.sched.Advance(30 * time.Minute)
	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, 1, h.sched.Len())
}

func TestErrorMappingThroughHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.DisplayState
	}{
		{"ok", http.StatusOK, `{"code":0,"message":"","data":{"batteryLife":87,"reportTime":1700000000000}}`, types.Ok(87, 1700000000000, "b1")},
		{"http 500", http.StatusInternalServerError, ``, types.ErrorState(types.ReasonNetwork)},
		{"code 1", http.StatusOK, `{"code":1,"message":"not found"}`, types.ErrorState(types.ReasonData)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := newHarness(t, batteryapi.NewClient())
			require.NoError(t, h.store.Save(config.Instance{ID: 1, BatteryID: "b1", BaseURL: srv.URL}))

			state, ok := h.c.Refresh(context.Background(), 1, types.SourceManual)
			assert.True(t, ok)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestHTTPTimeoutMapsToFailed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	h := newHarness(t, batteryapi.NewClient(), WithFetchTimeout(50*time.Millisecond))
	require.NoError(t, h.store.Save(config.Instance{ID: 1, BatteryID: "b1", BaseURL: srv.URL}))

	state, _ := h.c.Refresh(context.Background(), 1, types.SourceManual)
	assert.Equal(t, types.ErrorState(types.ReasonFailed), state)
}

func TestArmIsIdempotent(t *testing.T) {
	f := okFetcher(50, 1)
	h := newHarness(t, f)
	h.configure(t, 2, "b", 30)

	h.c.Arm(2)
	h.c.Arm(2)
	assert.Equal(t, 1, h.sched.Len())

	h.sched.Advance(30 * time.Minute)
	assert.Equal(t, 1, f.Calls(), "the cancelled handle must not fire")
	assert.Equal(t, 1, h.sched.Len())
}

func TestArmUnconfiguredCancels(t *testing.T) {
	f := okFetcher(50, 1)
	h := newHarness(t, f)
	h.configure(t, 2, "b", 30)

	h.c.Arm(2)
	require.Equal(t, 1, h.sched.Len())

	h.configure(t, 2, "", 30)
	h.c.Arm(2)
	assert.Equal(t, 0, h.sched.Len())
}

func TestOnAllDisabled(t *testing.T) {
	f := okFetcher(50, 1)
	h := newHarness(t, f)
	h.configure(t, 1, "a", 30)
	h.configure(t, 2, "b", 30)

	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{1, 2})
	require.Equal(t, 2, h.sched.Len())
	_, err := h.logo.Image()
	require.NoError(t, err)

	h.c.OnAllDisabled()

	assert.Equal(t, 0, h.sched.Len())
	assert.Empty(t, h.c.Tracked())
	assert.False(t, h.logo.Loaded())

	ids, err := h.store.List()
	require.NoError(t, err)
	assert.Equal(t, []types.InstanceID{1, 2}, ids, "stored configuration survives disable")

	h.sched.Advance(time.Hour)
	assert.Equal(t, 2, f.Calls())

	// Instances come back on the next update.
	h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{1})
	assert.Equal(t, 3, f.Calls())
	assert.Equal(t, 1, h.sched.Len())
}

func TestIndependentInstances(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFetcher{fn: func(_ context.Context, req batteryapi.Request) (*batteryapi.Status, error) {
		if req.BatteryID == "slow" {
			<-block
		}
		return &batteryapi.Status{BatteryID: req.BatteryID, Percentage: 1, ReportedAt: 1}, nil
	}}
	h := newHarness(t, f)
	h.configure(t, 1, "slow", 30)
	h.configure(t, 2, "fast", 30)

	go h.c.Refresh(context.Background(), 1, types.SourceManual)

	state, ok := h.c.Refresh(context.Background(), 2, types.SourceManual)
	assert.True(t, ok)
	assert.Equal(t, "fast", state.BatteryID)

	close(block)
}

// nextFireIn returns how far the live schedule of id is from now.
func (h *harness) nextFireIn(t *testing.T, id types.InstanceID) time.Duration {
	t.Helper()
	h.c.mu.Lock()
	inst, ok := h.c.instances[id]
	require.True(t, ok)
	handle := inst.handle
	h.c.mu.Unlock()

	at, ok := h.sched.FireAt(handle)
	require.True(t, ok, "instance %d is not armed", id)
	return at.Sub(h.sched.Now())
}

func TestArmUsesResolvedInterval(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    time.Duration
	}{
		{name: "zero", minutes: 0, want: 30 * time.Minute},
		{name: "negative", minutes: -3, want: 30 * time.Minute},
		{name: "duration overflow", minutes: 153722868, want: 30 * time.Minute},
		{name: "above one week", minutes: config.MaxRefreshIntervalMinutes + 1, want: 30 * time.Minute},
		{name: "one week", minutes: config.MaxRefreshIntervalMinutes, want: 7 * 24 * time.Hour},
		{name: "explicit", minutes: 45, want: 45 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := okFetcher(50, 1)
			h := newHarness(t, f)
			h.configure(t, 2, "b", tt.minutes)

			h.c.OnInstancesUpdated(context.Background(), []types.InstanceID{2})
			assert.Equal(t, tt.want, h.nextFireIn(t, 2))

			h.sched.Advance(tt.want - time.Second)
			assert.Equal(t, 1, f.Calls(), "no refresh before the interval elapses")
			h.sched.Advance(time.Second)
			assert.Equal(t, 2, f.Calls())
			assert.Equal(t, tt.want, h.nextFireIn(t, 2))
		})
	}
}
