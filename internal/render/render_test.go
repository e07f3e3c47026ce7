package render

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/session"
)

func loaded(t *testing.T, c geodata.Catalog, name string, fc *geojson.FeatureCollection) session.State {
	t.Helper()
	s, err := session.Reduce(session.NewState(c), session.LoadStarted{})
	require.NoError(t, err)
	s, err = session.Reduce(s, session.DatasetLoaded{
		Generation: s.Generation, Name: name,
		Result: geodata.Result{Collection: fc, Count: len(fc.Features), Total: len(fc.Features)},
	})
	require.NoError(t, err)
	return s
}

func TestBuildHousePoint(t *testing.T) {
	body := []byte(`{"type":"FeatureCollection","features":[{"geometry":{"type":"Point","coordinates":[107.1,-6.9]},"properties":{"type":"house"}}]}`)
	res, err := geodata.Decode("fasum", body)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)

	c := geodata.DefaultCatalog()
	st := Build(loaded(t, c, "fasum", res.Collection), c, Options{})

	require.Len(t, st.Sources, 1)
	require.Equal(t, "fasum-data", st.Sources[0].ID)
	require.Len(t, st.Layers, 1)
	require.Equal(t, "circle", st.Layers[0].Type)
	require.Equal(t, "#FF9900", ColorFor(c.Datasets[0].Style, res.Collection.Features[0].Properties))
	require.Equal(t, "Fasum: 1 features (visible)", st.Stats[0].Text)
}

func TestBuildPolygonDataset(t *testing.T) {
	c := geodata.DefaultCatalog()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{{106, -7}, {108, -7}, {108, -6}, {106, -7}}}))
	s := loaded(t, c, "jawa", fc)

	st := Build(s, c, Options{MapStyleURL: "https://example.test/style.json"})
	require.Equal(t, "https://example.test/style.json", st.MapStyleURL)
	require.Len(t, st.Layers, 2)
	require.Equal(t, "jawa-layer", st.Layers[0].ID)
	require.Equal(t, "#800080", st.Layers[0].Paint["fill-color"])
	require.Equal(t, 0.3, st.Layers[0].Paint["fill-opacity"])
	require.Equal(t, "jawa-outline", st.Layers[1].ID)
	require.Equal(t, "#000000", st.Layers[1].Paint["line-color"])

	hidden, err := session.Reduce(s, session.ToggleLayer{Name: "jawa"})
	require.NoError(t, err)
	st = Build(hidden, c, Options{})
	require.Empty(t, st.Layers)
	require.Equal(t, "Jawa: 1 features (hidden)", st.Stats[1].Text)

	d, _ := s.Dataset("jawa")
	require.True(t, d.Visible)
}

func TestBuildBufferAndPopup(t *testing.T) {
	c := geodata.DefaultCatalog()
	s, err := session.Reduce(session.NewState(c), session.Click{Lng: 110.0, Lat: -7.0})
	require.NoError(t, err)

	st := Build(s, c, Options{IsochroneEnabled: true})
	require.NotNil(t, st.Popup)
	require.Equal(t, "110.000000", st.Popup.LongitudeText)
	require.Equal(t, "-7.000000", st.Popup.LatitudeText)
	require.True(t, st.Popup.CanIsochrone)
	require.Equal(t, "popup", st.Mode)

	s, err = session.Reduce(s, session.CreateBuffer{})
	require.NoError(t, err)
	st = Build(s, c, Options{})
	require.Nil(t, st.Popup)
	require.Len(t, st.Layers, 1)
	require.Equal(t, "buffer-layer", st.Layers[0].ID)
	require.Equal(t, AccentColor, st.Layers[0].Paint["fill-color"])
	require.Equal(t, AccentOpacity, st.Layers[0].Paint["fill-opacity"])
}

func TestColorExpression(t *testing.T) {
	c := geodata.DefaultCatalog()
	expr, ok := ColorExpression(c.Datasets[0].Style).([]any)
	require.True(t, ok)
	require.Equal(t, "match", expr[0])
	require.Equal(t, []any{"get", "type"}, expr[1])
	require.Equal(t, "#FF9900", expr[len(expr)-1])
	require.Len(t, expr, 2+2*7+1)

	require.Equal(t, "#800080", ColorExpression(c.Datasets[1].Style))
	require.Equal(t, "#ff0000", ColorFor(c.Datasets[0].Style, geojson.Properties{"type": "hospital"}))
	require.Equal(t, "#FF9900", ColorFor(c.Datasets[0].Style, geojson.Properties{"type": "barn"}))
}

func TestLegendAndViewportText(t *testing.T) {
	c := geodata.DefaultCatalog()
	legend := Legend(c)
	require.Len(t, legend, 10)
	require.Equal(t, "House", legend[0].Label)
	require.Equal(t, "Kalimantan Healthcare Buffers", legend[9].Label)

	st := Build(session.NewState(c), c, Options{})
	require.Equal(t, "Viewport: -6.5150, 107.3930 @ 14.5", st.ViewportText)
	require.Len(t, st.Stats, 4)
}

func TestSafeBuild(t *testing.T) {
	c := geodata.DefaultCatalog()
	_, err := SafeBuild(session.NewState(c), c, Options{})
	require.NoError(t, err)
}
