package geodata

import (
	"bytes"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Result is a validated dataset.
type Result struct {
	Collection *geojson.FeatureCollection
	// Count is the number of retained features; always len(Collection.Features).
	Count int
	// Total is the number of features in the payload before validation.
	Total int
}

// Dropped returns how many features validation discarded.
func (r Result) Dropped() int {
	return r.Total - r.Count
}

type envelope struct {
	Type     string          `json:"type"`
	Features json.RawMessage `json:"features"`
}

type rawFeature struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Decode parses a dataset payload. The body must be either
// {"type":"FeatureCollection","features":[...]} or a bare JSON array of
// features; anything else is a *FormatError.
func Decode(dataset string, body []byte) (Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Result{}, &FormatError{Dataset: dataset, Detail: "empty body"}
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return Result{}, &FormatError{Dataset: dataset, Detail: err.Error()}
		}
		if env.Type != "FeatureCollection" {
			return Result{}, &FormatError{Dataset: dataset}
		}
		if err := json.Unmarshal(env.Features, &items); err != nil || items == nil {
			return Result{}, &FormatError{Dataset: dataset, Detail: "features is not an array"}
		}
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Result{}, &FormatError{Dataset: dataset, Detail: err.Error()}
		}
	default:
		return Result{}, &FormatError{Dataset: dataset}
	}

	fc := Canonicalize(items)
	return Result{Collection: fc, Count: len(fc.Features), Total: len(items)}, nil
}

// Canonicalize keeps the features that carry a geometry with a non-empty
// coordinates array and reshapes each to {type, geometry, properties}, with
// missing properties replaced by an empty map. The result is a new
// collection; the input is not modified.
func Canonicalize(items []json.RawMessage) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, item := range items {
		var rf rawFeature
		if err := json.Unmarshal(item, &rf); err != nil {
			continue
		}
		geom, ok := decodeGeometry(rf.Geometry)
		if !ok {
			continue
		}

		f := geojson.NewFeature(geom)
		f.Properties = decodeProperties(rf.Properties)
		fc.Append(f)
	}
	return fc
}

// decodeGeometry rejects absent geometries, geometries without a
// coordinates member (GeometryCollection), and empty coordinate arrays.
func decodeGeometry(raw json.RawMessage) (orb.Geometry, bool) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}

	var rg rawGeometry
	if err := json.Unmarshal(raw, &rg); err != nil {
		return nil, false
	}

	var coords []json.RawMessage
	if err := json.Unmarshal(rg.Coordinates, &coords); err != nil || len(coords) == 0 {
		return nil, false
	}

	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil || g == nil || g.Coordinates == nil {
		return nil, false
	}
	return g.Coordinates, true
}

func decodeProperties(raw json.RawMessage) geojson.Properties {
	props := geojson.Properties{}
	if len(raw) == 0 {
		return props
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return props
	}
	for k, v := range m {
		props[k] = v
	}
	return props
}
