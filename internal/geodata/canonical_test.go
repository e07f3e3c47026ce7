package geodata

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestDecodeFeatureCollection(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[
		{"geometry":{"type":"Point","coordinates":[107.1,-6.9]},"properties":{"type":"house"}}
	]}`

	res, err := Decode("fasum", []byte(body))
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, 1, res.Total)
	require.Len(t, res.Collection.Features, 1)

	f := res.Collection.Features[0]
	require.Equal(t, "Feature", f.Type)
	require.Equal(t, orb.Point{107.1, -6.9}, f.Geometry)
	require.Equal(t, "house", f.Properties["type"])
}

func TestDecodeBareArray(t *testing.T) {
	body := `[
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
		{"type":"Feature","geometry":null}
	]`

	res, err := Decode("jawa", []byte(body))
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, 2, res.Total)
	require.Equal(t, 1, res.Dropped())
	require.NotNil(t, res.Collection.Features[0].Properties)
	require.Empty(t, res.Collection.Features[0].Properties)
}

func TestDecodeDropsInvalidFeatures(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[
		{"properties":{"name":"no geometry"}},
		{"geometry":null},
		{"geometry":{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}},
		{"geometry":{"type":"Polygon","coordinates":[]}},
		{"geometry":{"type":"Point"}},
		{"geometry":{"type":"Point","coordinates":null}},
		"not a feature",
		{"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":"weird"},
		{"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]},"properties":{"type":"school"}}
	]}`

	res, err := Decode("jawa_health", []byte(body))
	require.NoError(t, err)
	require.Equal(t, 9, res.Total)
	require.Equal(t, 2, res.Count)
	require.Equal(t, res.Count, len(res.Collection.Features))

	require.Equal(t, "Polygon", res.Collection.Features[0].Geometry.GeoJSONType())
	require.Empty(t, res.Collection.Features[0].Properties)
	require.Equal(t, "MultiPolygon", res.Collection.Features[1].Geometry.GeoJSONType())
}

func TestDecodeFormatErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            ``,
		"wrong type":       `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]}}`,
		"features missing": `{"type":"FeatureCollection"}`,
		"features object":  `{"type":"FeatureCollection","features":{}}`,
		"scalar":           `42`,
		"string":           `"FeatureCollection"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode("kl_health", []byte(body))
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			require.Equal(t, "kl_health", fe.Dataset)
		})
	}
}

func TestCanonicalizeIsFreshCollection(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(`{"geometry":{"type":"Point","coordinates":[1,2]},"id":7,"extra":true}`),
	}
	a := Canonicalize(items)
	b := Canonicalize(items)
	require.NotSame(t, a, b)

	out, err := json.Marshal(a.Features[0])
	require.NoError(t, err)
	require.NotContains(t, string(out), "extra")
	require.NotContains(t, string(out), `"id"`)
	require.NotNil(t, a.Features[0].Properties)
}
