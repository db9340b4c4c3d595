package resolver

import (
	"math"
	"sync"
	"testing"
	"time"

	"tzupdated/internal/boundary"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.Ring {
	return orb.Ring{{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat}}
}

func build(t *testing.T, fs ...boundary.Feature) *boundary.Index {
	t.Helper()
	ix, err := boundary.Build(fs)
	require.NoError(t, err)
	return ix
}

func region(name string, rings ...orb.Ring) boundary.Feature {
	return boundary.Feature{Name: name, Geometry: orb.MultiPolygon{orb.Polygon(rings)}}
}

func TestEastWestScenario(t *testing.T) {
	r := New(build(t,
		region("East", square(0, 0, 1, 1)),
		region("West", square(-1, -1, 0, 0)),
	))

	tz, ok := r.Resolve(0.5, 0.5)
	require.True(t, ok)
	require.Equal(t, "East", tz)

	tz, ok = r.Resolve(-0.5, -0.5)
	require.True(t, ok)
	require.Equal(t, "West", tz)

	tz, ok = r.Resolve(5, 5)
	require.False(t, ok)
	require.Empty(t, tz)
}

func TestSharedEdgeIsDeterministic(t *testing.T) {
	r := New(build(t,
		region("Zulu", square(1, 0, 2, 1)),
		region("Alpha", square(0, 0, 1, 1)),
	))
	// 共享边 lon=1：两者面积相等，按名称取 Alpha
	for i := 0; i < 50; i++ {
		res := r.Explain(0.5, 1)
		require.True(t, res.Found)
		require.Equal(t, "Alpha", res.Timezone)
		require.True(t, res.Ambiguous)
		require.Equal(t, []string{"Alpha", "Zulu"}, res.Matches)
	}
	// 共享角点（东西两块只在原点相接）
	r = New(build(t,
		region("East", square(0, 0, 1, 1)),
		region("West", square(-1, -1, 0, 0)),
	))
	first, ok := r.Resolve(0, 0)
	require.True(t, ok)
	for i := 0; i < 50; i++ {
		tz, _ := r.Resolve(0, 0)
		require.Equal(t, first, tz)
	}
	require.Equal(t, "East", first)
}

func TestBoundaryPointIsContained(t *testing.T) {
	r := New(build(t, region("Only", square(0, 0, 1, 1))))
	for _, pt := range [][2]float64{{0, 0.5}, {1, 0.5}, {0.5, 0}, {0.5, 1}, {1, 1}} {
		tz, ok := r.Resolve(pt[0], pt[1])
		require.True(t, ok, "lat=%v lon=%v", pt[0], pt[1])
		require.Equal(t, "Only", tz)
	}
	_, ok := r.Resolve(1.0000001, 0.5)
	require.False(t, ok)
}

func TestHoleExclusion(t *testing.T) {
	outer := square(0, 0, 10, 10)
	hole := square(4, 4, 6, 6)
	r := New(build(t, region("Donut", outer, hole)))

	_, ok := r.Resolve(5, 5)
	require.False(t, ok, "point in hole must not be contained")

	tz, ok := r.Resolve(2, 2)
	require.True(t, ok)
	require.Equal(t, "Donut", tz)

	// 洞的边界属于多边形边界
	tz, ok = r.Resolve(4, 5)
	require.True(t, ok)
	require.Equal(t, "Donut", tz)
}

func TestEnclaveInsideHoleResolvesToEnclave(t *testing.T) {
	r := New(build(t,
		region("Outer", square(0, 0, 10, 10), square(4, 4, 6, 6)),
		region("Enclave", square(4, 4, 6, 6)),
	))
	res := r.Explain(5, 5)
	require.Equal(t, "Enclave", res.Timezone)
	require.False(t, res.Ambiguous)

	res = r.Explain(1, 1)
	require.Equal(t, "Outer", res.Timezone)
}

func TestOverlapSmallestAreaWins(t *testing.T) {
	r := New(build(t,
		region("Big", square(0, 0, 10, 10)),
		region("Small", square(2, 2, 3, 3)),
	))
	res := r.Explain(2.5, 2.5)
	require.True(t, res.Found)
	require.True(t, res.Ambiguous)
	require.Equal(t, "Small", res.Timezone)
	require.Equal(t, []string{"Small", "Big"}, res.Matches)
	require.Equal(t, SourceBoundary, res.Source)

	res = r.Explain(8, 8)
	require.Equal(t, "Big", res.Timezone)
	require.False(t, res.Ambiguous)
}

func TestSameRegionOverlapIsNotAmbiguous(t *testing.T) {
	r := New(build(t, boundary.Feature{Name: "Dup", Geometry: orb.MultiPolygon{
		{square(0, 0, 2, 2)},
		{square(1, 1, 3, 3)},
	}}))
	res := r.Explain(1.5, 1.5)
	require.Equal(t, "Dup", res.Timezone)
	require.False(t, res.Ambiguous)
	require.Equal(t, []string{"Dup"}, res.Matches)
}

func TestInvalidCoordinates(t *testing.T) {
	r := New(build(t, region("Any", square(-180, -90, 180, 90))))
	for _, pt := range [][2]float64{{91, 0}, {0, 181}, {math.NaN(), 0}, {0, math.Inf(1)}} {
		_, ok := r.Resolve(pt[0], pt[1])
		require.False(t, ok)
	}
	tz, ok := r.Resolve(0, 0)
	require.True(t, ok)
	require.Equal(t, "Any", tz)
}

type stubFallback struct {
	tz    string
	calls int
}

func (s *stubFallback) Name() string { return "stub" }

func (s *stubFallback) Lookup(lat, lon float64) string {
	s.calls++
	return s.tz
}

func TestFallbackOnlyOnMiss(t *testing.T) {
	fb := &stubFallback{tz: "Etc/GMT-5"}
	r := New(build(t, region("East", square(0, 0, 1, 1))), WithFallback(fb))

	res := r.Explain(0.5, 0.5)
	require.Equal(t, "East", res.Timezone)
	require.Equal(t, 0, fb.calls)

	res = r.Explain(30, 70)
	require.True(t, res.Found)
	require.Equal(t, "Etc/GMT-5", res.Timezone)
	require.Equal(t, "stub", res.Source)
	require.Equal(t, 1, fb.calls)

	fb.tz = ""
	_, ok := r.Resolve(30, 70)
	require.False(t, ok)
}

func TestNewFallback(t *testing.T) {
	f, err := NewFallback("")
	require.NoError(t, err)
	require.Nil(t, f)
	f, err = NewFallback("LatLong")
	require.NoError(t, err)
	require.Equal(t, "latlong", f.Name())
	_, err = NewFallback("bogus")
	require.Error(t, err)
}

func TestConcurrentResolve(t *testing.T) {
	r := New(build(t,
		region("East", square(0, 0, 1, 1)),
		region("West", square(-1, -1, 0, 0)),
	))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tz, _ := r.Resolve(0.5, 0.5)
				if tz != "East" {
					t.Errorf("got %q", tz)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCached(t *testing.T) {
	c := NewCached(New(build(t, region("East", square(0, 0, 1, 1)))), 2, time.Minute)
	tz, ok := c.Resolve(0.5, 0.5)
	require.True(t, ok)
	require.Equal(t, "East", tz)
	require.Equal(t, 1, c.lru.Len())
	_, ok = c.Resolve(0.5, 0.5)
	require.True(t, ok)
	require.Equal(t, 1, c.lru.Len())
	c.Resolve(5, 5)
	c.Resolve(6, 6)
	require.Equal(t, 2, c.lru.Len())
	_, ok = c.lru.Get(CoordKey(0.5, 0.5))
	require.False(t, ok, "oldest entry evicted")
}

func TestLRUExpiry(t *testing.T) {
	l := NewLRU(4, time.Nanosecond)
	l.Set("k", Resolution{Timezone: "X", Found: true})
	time.Sleep(time.Millisecond)
	_, ok := l.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, l.Len())
}

func TestCachedAgreesWithResolverNearEdge(t *testing.T) {
	r := New(build(t, region("Only", square(0, 0, 1, 1))))
	c := NewCached(r, 16, time.Minute)
	for _, lat := range []float64{0.9999996, 1.0000004, 0.9999996} {
		want, wantOK := r.Resolve(lat, 0.5)
		got, gotOK := c.Resolve(lat, 0.5)
		require.Equal(t, wantOK, gotOK, "lat=%v", lat)
		require.Equal(t, want, got, "lat=%v", lat)
	}
	_, ok := c.Resolve(1.0000004, 0.5)
	require.False(t, ok)
	require.NotEqual(t, CoordKey(0.9999996, 0.5), CoordKey(1.0000004, 0.5))
	require.Equal(t, "0.9999996,0.5", CoordKey(0.9999996, 0.5))
}
