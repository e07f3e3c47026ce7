package viewport

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

func collection(geoms ...orb.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range geoms {
		fc.Append(geojson.NewFeature(g))
	}
	return fc
}

func TestFitToAllNoData(t *testing.T) {
	cur := Default()

	got, ok := FitToAll(cur)
	require.False(t, ok)
	require.Equal(t, cur, got)

	got, ok = FitToAll(cur, nil, geojson.NewFeatureCollection(), nil)
	require.False(t, ok)
	require.Equal(t, cur, got)
}

func TestFitToAll(t *testing.T) {
	a := collection(orb.Point{106, -7})
	b := collection(orb.Polygon{{{108, -6}, {108.5, -6}, {108.5, -5}, {108, -6}}})

	got, ok := FitToAll(Default(), a, nil, b)
	require.True(t, ok)
	require.InDelta(t, 107.25, got.Longitude, 1e-9)
	require.InDelta(t, -6.0, got.Latitude, 1e-9)
	// lon span 2.5, lat span 2 → 14 - log2(250)
	require.InDelta(t, 14-math.Log2(250), got.Zoom, 1e-9)
}

func TestFitToAllNestedGeometry(t *testing.T) {
	mp := orb.MultiPolygon{
		{{{110, -8}, {110.1, -8}, {110.1, -7.9}, {110, -8}}},
		{{{110.2, -7.7}, {110.3, -7.7}, {110.3, -7.6}, {110.2, -7.7}}},
	}
	bound, ok := Bounds(collection(mp))
	require.True(t, ok)
	require.Equal(t, orb.Point{110, -8}, bound.Min)
	require.Equal(t, orb.Point{110.3, -7.6}, bound.Max)
}

func TestZoom(t *testing.T) {
	cases := []struct {
		lon, lat float64
		want     float64
	}{
		{0.01, 0.005, 14},
		{0.1, 0.2, 14 - math.Log2(20)},
		{3, 1, math.Max(5, 14-math.Log2(300))},
		{50, 10, 5},
		{-0.02, 0.01, 14 - math.Log2(2)},
	}
	for _, c := range cases {
		require.InDelta(t, c.want, Zoom(c.lon, c.lat), 1e-9)
	}
}

func TestZoomSinglePoint(t *testing.T) {
	require.Equal(t, MaxZoom, Zoom(0, 0))

	got, ok := FitToAll(Default(), collection(orb.Point{110, -7}))
	require.True(t, ok)
	require.Equal(t, MaxZoom, got.Zoom)
	require.Equal(t, 110.0, got.Longitude)
	require.Equal(t, -7.0, got.Latitude)
}

func TestFitToAllIgnoresEmptyRing(t *testing.T) {
	fc := collection(
		orb.Polygon{orb.Ring{}},
		orb.Point{107.1, -6.9},
		orb.Point{107.2, -6.8},
	)

	bound, ok := Bounds(fc)
	require.True(t, ok)
	require.Equal(t, orb.Point{107.1, -6.9}, bound.Min)
	require.Equal(t, orb.Point{107.2, -6.8}, bound.Max)

	got, ok := FitToAll(Default(), fc)
	require.True(t, ok)
	require.InDelta(t, 107.15, got.Longitude, 1e-9)
	require.InDelta(t, -6.85, got.Latitude, 1e-9)
	require.InDelta(t, 14-math.Log2(0.1*100), got.Zoom, 1e-9)

	got, ok = FitToAll(Default(), collection(orb.Polygon{orb.Ring{}}))
	require.False(t, ok)
	require.Equal(t, Default(), got)
}
