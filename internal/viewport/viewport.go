// Package viewport holds the map camera and fits it to loaded data.
package viewport

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// MinFitZoom is the floor of the fit heuristic.
	MinFitZoom = 5.0
	// MaxZoom is used for a zero-extent bound (a single point).
	MaxZoom = 22.0
)

// Viewport is the map camera.
type Viewport struct {
	Latitude  float64 `json:"latitude" doc:"Center latitude" example:"-6.515"`
	Longitude float64 `json:"longitude" doc:"Center longitude" example:"107.393"`
	Zoom      float64 `json:"zoom" doc:"Zoom level" example:"14.5"`
}

// Default is the initial camera over West Java.
func Default() Viewport {
	return Viewport{Latitude: -6.515, Longitude: 107.393, Zoom: 14.5}
}

// Zoom returns max(5, 14 - log2(max(lonSpan, latSpan) * 100)). A zero
// extent (a single point) yields MaxZoom instead of +Inf.
func Zoom(lonSpan, latSpan float64) float64 {
	span := math.Max(math.Abs(lonSpan), math.Abs(latSpan))
	z := math.Max(MinFitZoom, 14-math.Log2(span*100))
	if math.IsInf(z, 1) {
		return MaxZoom
	}
	return z
}

// Bounds unions the bounds of every feature in the collections. Geometries
// without any coordinate, such as a polygon with an empty ring, have orb's
// inverted empty bound and are skipped. ok is false when no coordinate is left.
func Bounds(collections ...*geojson.FeatureCollection) (orb.Bound, bool) {
	var (
		bound orb.Bound
		found bool
	)
	for _, fc := range collections {
		if fc == nil {
			continue
		}
		for _, f := range fc.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			b := f.Geometry.Bound()
			if b.IsEmpty() {
				continue
			}
			if !found {
				bound, found = b, true
				continue
			}
			bound = bound.Union(b)
		}
	}
	return bound, found
}

// FitToAll centers the viewport on the union of all features. When every
// collection is absent or empty it returns current unchanged and false.
func FitToAll(current Viewport, collections ...*geojson.FeatureCollection) (Viewport, bool) {
	bound, ok := Bounds(collections...)
	if !ok {
		return current, false
	}

	center := bound.Center()
	return Viewport{
		Latitude:  center.Lat(),
		Longitude: center.Lon(),
		Zoom:      Zoom(bound.Right()-bound.Left(), bound.Top()-bound.Bottom()),
	}, true
}
