package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoha/batterywidget/pkg/config"
	"github.com/xiaoha/batterywidget/pkg/events"
	"github.com/xiaoha/batterywidget/pkg/types"
)

// serveUnix serves h on a fresh unix socket and returns its path.
func serveUnix(t *testing.T, h http.Handler) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "bw")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "d.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)

	srv := &http.Server{Handler: h}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })
	return path
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.GetVersion()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestSendMethods(t *testing.T) {
	type seen struct {
		method, path, body, contentType string
	}
	got := make(chan seen, 1)
	path := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- seen{r.Method, r.URL.Path, string(b), r.Header.Get("Content-Type")}
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`"boom"`))
		default:
			_, _ = w.Write([]byte(`"ok"`))
		}
	}))
	c := NewClient(path)

	ret, err := c.Put("/instances/1/config", `{"batteryId":"b"}`)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, ret)
	assert.Equal(t, seen{http.MethodPut, "/instances/1/config", `{"batteryId":"b"}`, "application/json"}, <-got)

	_, err = c.Delete("/instances/1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, (<-got).method)

	_, err = c.Get("/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	<-got

	_, err = c.Post("/broken", "")
	assert.ErrorContains(t, err, "got 500")
	<-got

	_, err = c.Send("PATCH", "/x", "")
	assert.Error(t, err)
}

func TestAPIs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"v0.3.0"`))
	})
	mux.HandleFunc("/instances/7/config", func(w http.ResponseWriter, r *http.Request) {
		var u config.Update
		_ = json.NewDecoder(r.Body).Decode(&u)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"config":{"id":7,"batteryId":%q,"regionCode":"0755"}}`, u.BatteryID)
	})
	mux.HandleFunc("/instances/7/tap", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"double"`))
	})
	mux.HandleFunc("/instances/7/refresh", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":{"kind":"error","reason":"network"},"rendered":true}`))
	})
	mux.HandleFunc("/daemon", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"version":"v0.3.0","hostUpdate":{"nextRun":"2024-05-01T14:00:00Z","running":true},"eventSubscribers":2}`))
	})
	updates := make(chan string, 2)
	mux.HandleFunc("/update", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		updates <- string(b)
		_, _ = w.Write([]byte(`"ok"`))
	})
	c := NewClient(serveUnix(t, mux))

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v0.3.0", v)

	info, err := c.GetDaemonInfo()
	require.NoError(t, err)
	assert.Equal(t, 2, info.EventSubscribers)
	require.NotNil(t, info.HostUpdate)
	assert.True(t, info.HostUpdate.NextRun.Equal(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)))

	st, err := c.Configure(7, config.Update{BatteryID: "8903128939"})
	require.NoError(t, err)
	assert.Equal(t, "8903128939", st.Config.BatteryID)
	assert.Nil(t, st.State)

	kind, err := c.Tap(7)
	require.NoError(t, err)
	assert.Equal(t, "double", kind)

	res, err := c.Refresh(7)
	require.NoError(t, err)
	assert.Equal(t, types.ErrorState(types.ReasonNetwork), res.State)

	require.NoError(t, c.Update(1, 2))
	assert.JSONEq(t, `[1,2]`, <-updates)
	require.NoError(t, c.Update())
	assert.Empty(t, <-updates)
}

func TestSubscribeEvents(t *testing.T) {
	path := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event:widget.render\ndata:{\"instance\":3,\"kind\":\"ok\",\"percentage\":87,\"text\":\"87%\",\"ts\":1}\n\n"))
		_, _ = w.Write([]byte("event: widget.removed\ndata: {\"instance\":3,\"ts\":2}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	c := NewClient(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := c.SubscribeEvents(ctx)

	ev := recv(t, ch)
	assert.Equal(t, events.WidgetRender, ev.Name)
	payload, err := events.DecodeAs[events.RenderEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, 87, payload.Percentage)

	ev = recv(t, ch)
	assert.Equal(t, events.WidgetRemoved, ev.Name)

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func recv(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
	}
	return events.Event{}
}

func TestDaemonNotRunningIsSentinel(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	err := c.Disable()
	assert.True(t, errors.Is(err, ErrDaemonNotRunning))
}
