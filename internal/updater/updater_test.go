package updater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeResolver 按纬度符号给出时区：lat>0 → A，lat<0 → B，lat==0 → 未命中
type fakeResolver struct{}

func (fakeResolver) Resolve(lat, lon float64) (string, bool) {
	switch {
	case lat > 0:
		return "A", true
	case lat < 0:
		return "B", true
	}
	return "", false
}

func TestInitialStateUnknown(t *testing.T) {
	o := New(fakeResolver{})
	tz, ok := o.Current()
	require.False(t, ok)
	require.Empty(t, tz)
	require.Equal(t, DefaultMinDistance, o.MinDistance())
}

func TestDedupIdempotence(t *testing.T) {
	o := New(fakeResolver{})
	events := 0
	for i := 0; i < 10; i++ {
		if _, changed := o.OnCoordinate(1+float64(i)*0.1, 2); changed {
			events++
		}
	}
	require.Equal(t, 1, events)
	tz, ok := o.Current()
	require.True(t, ok)
	require.Equal(t, "A", tz)
}

func TestChangeDetection(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	o := New(fakeResolver{}, withClock(func() time.Time { return fixed }))
	var got []Event
	for _, lat := range []float64{1, 2, -1} {
		if ev, changed := o.OnCoordinate(lat, 0); changed {
			got = append(got, ev)
		}
	}
	require.Equal(t, []Event{
		{Timezone: "A", Lat: 1, At: fixed},
		{Timezone: "B", Previous: "A", Lat: -1, At: fixed},
	}, got)
}

func TestUnresolvedDoesNotClobber(t *testing.T) {
	o := New(fakeResolver{})
	_, changed := o.OnCoordinate(1, 0)
	require.True(t, changed)

	_, changed = o.OnCoordinate(0, 0)
	require.False(t, changed)
	tz, ok := o.Current()
	require.True(t, ok)
	require.Equal(t, "A", tz)

	_, changed = o.OnCoordinate(1, 0)
	require.False(t, changed)
}

func TestUnresolvedFromUnknownStaysUnknown(t *testing.T) {
	o := New(fakeResolver{})
	_, changed := o.OnCoordinate(0, 0)
	require.False(t, changed)
	_, ok := o.Current()
	require.False(t, ok)
}

func TestWithMinDistance(t *testing.T) {
	require.Equal(t, 250.0, New(fakeResolver{}, WithMinDistance(250)).MinDistance())
	require.Equal(t, DefaultMinDistance, New(fakeResolver{}, WithMinDistance(-1)).MinDistance())
}

type recordingSink struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *recordingSink) SetTimezone(ctx context.Context, tz string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tz)
	return s.fail[tz]
}

func TestRunAppliesChangesOnly(t *testing.T) {
	o := New(fakeResolver{})
	sink := &recordingSink{}
	fixes := make(chan Fix, 8)
	for _, lat := range []float64{1, 1, 0, 2, -3, -3, 4} {
		fixes <- Fix{Lat: lat, Provider: "test"}
	}
	close(fixes)
	require.NoError(t, o.Run(context.Background(), fixes, sink))
	require.Equal(t, []string{"A", "B", "A"}, sink.calls)
}

func TestRunSinkFailureIsNotRetried(t *testing.T) {
	o := New(fakeResolver{})
	sink := &recordingSink{fail: map[string]error{"A": errors.New("permission denied")}}
	fixes := make(chan Fix, 4)
	fixes <- Fix{Lat: 1}
	fixes <- Fix{Lat: 2}
	close(fixes)
	require.NoError(t, o.Run(context.Background(), fixes, sink))
	// 事件已发出、状态已推进，同一时区不会再次尝试
	require.Equal(t, []string{"A"}, sink.calls)
	tz, _ := o.Current()
	require.Equal(t, "A", tz)
}

func TestApplyWrapsSinkError(t *testing.T) {
	o := New(fakeResolver{})
	cause := errors.New("service unavailable")
	err := o.apply(context.Background(), SinkFunc(func(context.Context, string) error { return cause }), Event{Timezone: "A"})
	var se *SinkApplyError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "A", se.Timezone)
	require.ErrorIs(t, err, cause)
}

func TestRunStopsOnCancel(t *testing.T) {
	o := New(fakeResolver{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, make(chan Fix), nil) }()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentOnCoordinateEmitsOnce(t *testing.T) {
	o := New(fakeResolver{})
	var mu sync.Mutex
	events := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, changed := o.OnCoordinate(5, 5); changed {
				mu.Lock()
				events++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, events)
}

func TestMoved(t *testing.T) {
	a := Fix{Lat: 52.52, Lon: 13.405}
	require.False(t, Moved(a, Fix{Lat: 52.5201, Lon: 13.405}, 1000))
	// 约 0.01° 纬度 ≈ 1.1 km
	require.True(t, Moved(a, Fix{Lat: 52.53, Lon: 13.405}, 1000))
	require.InDelta(t, 111.2, haversine(0, 0, 1, 0), 0.1)
}

func TestDeliverReturnsSinkError(t *testing.T) {
	o := New(fakeResolver{})
	sink := &recordingSink{fail: map[string]error{"B": errors.New("denied")}}

	ev, changed, err := o.Deliver(context.Background(), Fix{Lat: 1}, sink)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "A", ev.Timezone)

	ev, changed, err = o.Deliver(context.Background(), Fix{Lat: -1}, sink)
	require.True(t, changed)
	require.Equal(t, "B", ev.Timezone)
	var se *SinkApplyError
	require.ErrorAs(t, err, &se)

	_, changed, err = o.Deliver(context.Background(), Fix{Lat: -2}, nil)
	require.NoError(t, err)
	require.False(t, changed)
}

// gateSink 在应用 block 指定的时区时阻塞，直到 release 关闭
type gateSink struct {
	recordingSink
	block   string
	entered chan struct{}
	release chan struct{}
}

func (s *gateSink) SetTimezone(ctx context.Context, tz string) error {
	if tz == s.block {
		close(s.entered)
		<-s.release
	}
	return s.recordingSink.SetTimezone(ctx, tz)
}

func TestConcurrentDeliverAppliesInEmitOrder(t *testing.T) {
	o := New(fakeResolver{})
	sink := &gateSink{block: "A", entered: make(chan struct{}), release: make(chan struct{})}

	first := make(chan struct{})
	go func() {
		defer close(first)
		_, _, _ = o.Deliver(context.Background(), Fix{Lat: 1, Provider: "geoclue"}, sink)
	}()
	<-sink.entered

	second := make(chan struct{})
	go func() {
		defer close(second)
		_, _, _ = o.Deliver(context.Background(), Fix{Lat: -1, Provider: "http"}, sink)
	}()
	// 第二个 Deliver 必须等待第一个应用完成，期间既不推进状态也不触达 sink
	select {
	case <-second:
		t.Fatal("second Deliver finished while the first apply was still running")
	case <-time.After(50 * time.Millisecond):
	}
	tz, _ := o.Current()
	require.Equal(t, "A", tz)

	close(sink.release)
	<-first
	<-second

	require.Equal(t, []string{"A", "B"}, sink.calls)
	tz, _ = o.Current()
	require.Equal(t, "B", tz)
}
