// Package spatial derives interaction artifacts from a clicked point: the
// fixed-radius buffer disc, travel-time isochrones, and the record that is
// posted to the persistence endpoint.
package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

const (
	// DefaultRadius and DefaultUnits are the buffer created from the popup.
	DefaultRadius = 1.0
	DefaultUnits  = "kilometers"

	// CircleSteps is the number of vertices on a buffer ring.
	CircleSteps = 64
)

var unitMeters = map[string]float64{
	"meters":     1,
	"metres":     1,
	"kilometers": 1000,
	"kilometres": 1000,
	"miles":      1609.344,
	"feet":       0.3048,
}

// ToMeters converts a distance in the given units to meters.
func ToMeters(distance float64, units string) (float64, error) {
	f, ok := unitMeters[units]
	if !ok {
		return 0, fmt.Errorf("unsupported units %q", units)
	}
	return distance * f, nil
}

// BufferArtifact is a disc around a clicked point.
type BufferArtifact struct {
	Collection *geojson.FeatureCollection
	Center     orb.Point
	Radius     float64
	Units      string
}

// Buffer builds a single-polygon collection approximating a geodesic disc of
// the given radius around center.
func Buffer(center orb.Point, radius float64, units string) (BufferArtifact, error) {
	if radius <= 0 {
		return BufferArtifact{}, fmt.Errorf("buffer radius must be positive, got %v", radius)
	}
	meters, err := ToMeters(radius, units)
	if err != nil {
		return BufferArtifact{}, err
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(Circle(center, meters, CircleSteps)))

	return BufferArtifact{
		Collection: fc,
		Center:     center,
		Radius:     radius,
		Units:      units,
	}, nil
}

// Circle returns a closed ring of steps vertices at distance meters from
// center, walking counter-clockwise from north.
func Circle(center orb.Point, meters float64, steps int) orb.Polygon {
	if steps < 3 {
		steps = 3
	}
	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		bearing := float64(i) * -360 / float64(steps)
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, meters))
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Record returns the persistence payload for the buffer.
func (b BufferArtifact) Record() Record {
	return Record{
		Type:        "buffer",
		Geometry:    b.Collection,
		Coordinates: [2]float64{b.Center.Lon(), b.Center.Lat()},
		Metadata:    Metadata{Radius: b.Radius, Units: b.Units},
	}
}
