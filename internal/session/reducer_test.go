package session

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/viewport"
)

func mustReduce(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, err = Reduce(s, a)
		require.NoError(t, err)
	}
	return s
}

func pointCollection(pts ...orb.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range pts {
		fc.Append(geojson.NewFeature(p))
	}
	return fc
}

func TestNewState(t *testing.T) {
	s := NewState(geodata.DefaultCatalog())
	require.Equal(t, viewport.Default(), s.Viewport)
	require.Len(t, s.Datasets, 4)
	for _, d := range s.Datasets {
		require.True(t, d.Visible)
		require.False(t, d.Loaded())
	}
	require.Equal(t, ModeIdle, s.Mode())
}

func TestClickAndCreateBuffer(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()), Click{Lng: 110.0, Lat: -7.0})
	require.Equal(t, ModePopup, s.Mode())

	s = mustReduce(t, s, CreateBuffer{})
	require.Equal(t, ModeBuffer, s.Mode())
	require.False(t, s.Popup.Visible)
	require.NotNil(t, s.Buffer)
	require.Equal(t, orb.Point{110.0, -7.0}, s.Buffer.Center)
	require.Equal(t, 1.0, s.Buffer.Radius)
	require.Equal(t, "kilometers", s.Buffer.Units)

	ring := s.Buffer.Collection.Features[0].Geometry.(orb.Polygon)[0]
	require.InDelta(t, 1000, geo.Distance(orb.Point{110.0, -7.0}, ring[0]), 1)
}

func TestSecondBufferReplaces(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()),
		Click{Lng: 110.0, Lat: -7.0}, CreateBuffer{},
		Click{Lng: 111.0, Lat: -6.0}, CreateBuffer{},
	)
	require.NotNil(t, s.Buffer)
	require.Equal(t, orb.Point{111.0, -6.0}, s.Buffer.Center)
	require.Len(t, s.Buffer.Collection.Features, 1)
}

func TestClickDiscardsBuffer(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()),
		Click{Lng: 110.0, Lat: -7.0}, CreateBuffer{}, Click{Lng: 1, Lat: 2})
	require.Nil(t, s.Buffer)
	require.Equal(t, ModePopup, s.Mode())
}

func TestCreateBufferWithoutPopup(t *testing.T) {
	s := NewState(geodata.DefaultCatalog())
	next, err := Reduce(s, CreateBuffer{})
	require.ErrorIs(t, err, ErrNoPopup)
	require.Equal(t, s, next)

	s = mustReduce(t, s, Click{Lng: 1, Lat: 1}, ClosePopup{})
	require.Equal(t, ModeIdle, s.Mode())
	_, err = Reduce(s, CreateBuffer{})
	require.ErrorIs(t, err, ErrNoPopup)
}

func TestIsochroneExcludesBuffer(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()),
		Click{Lng: 110, Lat: -7}, CreateBuffer{}, Click{Lng: 110, Lat: -7})

	art := spatial.IsochroneArtifact{Collection: pointCollection(orb.Point{110, -7}), Center: orb.Point{110, -7}}
	s = mustReduce(t, s, IsochroneCreated{Artifact: art})
	require.Equal(t, ModeIsochrone, s.Mode())
	require.Nil(t, s.Buffer)
	require.NotNil(t, s.Isochrone)

	s = mustReduce(t, s, Click{Lng: 110, Lat: -7}, CreateBuffer{})
	require.Nil(t, s.Isochrone)
	require.NotNil(t, s.Buffer)
}

func TestIsochroneForMovedPopupIsStale(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()), Click{Lng: 100, Lat: 0})
	_, err := Reduce(s, IsochroneCreated{Artifact: spatial.IsochroneArtifact{Center: orb.Point{110, -7}}})
	require.ErrorIs(t, err, ErrStale)
}

func TestToggleTwiceRestores(t *testing.T) {
	fc := pointCollection(orb.Point{107.1, -6.9})
	s := NewState(geodata.DefaultCatalog())
	s = mustReduce(t, s, LoadStarted{})
	s = mustReduce(t, s, DatasetLoaded{Generation: s.Generation, Name: "fasum", Result: geodata.Result{Collection: fc, Count: 1, Total: 1}})

	once := mustReduce(t, s, ToggleLayer{Name: "fasum"})
	d, _ := once.Dataset("fasum")
	require.False(t, d.Visible)
	require.Equal(t, "(hidden)", d.StatusText())
	require.Same(t, fc, d.Collection)

	twice := mustReduce(t, once, ToggleLayer{Name: "fasum"})
	require.Equal(t, s, twice)

	orig, _ := s.Dataset("fasum")
	require.True(t, orig.Visible, "reducer must not mutate its input")

	_, err := Reduce(s, ToggleLayer{Name: "nope"})
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestLoadFinishedFitsAndReportsLastError(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()), LoadStarted{})
	gen := s.Generation

	s = mustReduce(t, s,
		DatasetFailed{Generation: gen, Name: "fasum", Err: &geodata.FetchError{Dataset: "fasum", StatusCode: 404}},
		DatasetLoaded{Generation: gen, Name: "jawa_health", Result: geodata.Result{Collection: pointCollection(orb.Point{106, -7}, orb.Point{108, -6})}},
		DatasetFailed{Generation: gen, Name: "jawa", Err: &geodata.FetchError{Dataset: "jawa", StatusCode: 500}},
		LoadFinished{Generation: gen},
	)
	require.False(t, s.Loading)
	require.Equal(t, "failed to fetch jawa: 500 Internal Server Error", s.Error)
	require.InDelta(t, 107.0, s.Viewport.Longitude, 1e-9)
	require.InDelta(t, -6.5, s.Viewport.Latitude, 1e-9)
	require.InDelta(t, viewport.Zoom(2, 1), s.Viewport.Zoom, 1e-9)

	d, _ := s.Dataset("jawa_health")
	require.True(t, d.Visible)
	require.True(t, d.Loaded())
}

func TestLoadFinishedWithNothingKeepsViewport(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()), LoadStarted{})
	s = mustReduce(t, s, LoadFinished{Generation: s.Generation})
	require.Equal(t, viewport.Default(), s.Viewport)
	require.Empty(t, s.Error)
}

func TestStaleGeneration(t *testing.T) {
	s := mustReduce(t, NewState(geodata.DefaultCatalog()), LoadStarted{}, LoadStarted{})
	_, err := Reduce(s, DatasetLoaded{Generation: 1, Name: "fasum"})
	require.ErrorIs(t, err, ErrStale)
	_, err = Reduce(s, LoadFinished{Generation: 1})
	require.True(t, IsStale(err))
}
