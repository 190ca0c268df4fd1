package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFires(t *testing.T) {
	s := NewTimer()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	h := s.Schedule(time.Second, func() { fired <- struct{}{} })
	assert.NotZero(t, h)
	assert.Equal(t, 1, s.Len())

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("timer did not fire in time")
	}
	assert.Equal(t, 0, s.Len())
}

func TestTimerCancel(t *testing.T) {
	s := NewTimer()
	defer s.Stop()

	var fired int32
	h := s.Schedule(time.Second, func() { atomic.AddInt32(&fired, 1) })
	s.Cancel(h)
	s.Cancel(h)
	s.Cancel(0)
	assert.Equal(t, 0, s.Len())

	time.Sleep(2100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var order []string
	m.Schedule(2*time.Minute, func() { order = append(order, "b") })
	m.Schedule(time.Minute, func() { order = append(order, "a") })
	h := m.Schedule(90*time.Second, func() { order = append(order, "cancelled") })
	m.Cancel(h)

	at, ok := m.FireAt(h)
	assert.False(t, ok)
	assert.True(t, at.IsZero())

	m.Advance(30 * time.Second)
	assert.Empty(t, order)
	assert.Equal(t, start.Add(30*time.Second), m.Now())

	m.Advance(2 * time.Minute)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, start.Add(150*time.Second), m.Now())
	assert.Equal(t, 0, m.Len())
}

func TestManualRescheduleFromCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	count := 0
	var tick func()
	tick = func() {
		count++
		m.Schedule(time.Minute, tick)
	}
	m.Schedule(time.Minute, tick)

	m.Advance(5 * time.Minute)
	assert.Equal(t, 5, count)
	require.Equal(t, 1, m.Len())
}
