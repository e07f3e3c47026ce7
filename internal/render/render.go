// Package render turns session state into the map layer stack sent to the
// browser. Build is pure: it reads the state and never changes it.
package render

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/session"
	"github.com/joeblew999/sichatas/internal/viewport"
)

const (
	// AccentColor fills buffer and isochrone artifacts.
	AccentColor   = "#088"
	AccentOpacity = 0.4

	pointRadius = 6
)

// Options are the map settings that do not live in session state.
type Options struct {
	MapStyleURL      string
	AccessToken      string
	IsochroneEnabled bool
}

// Source is a GeoJSON source.
type Source struct {
	ID   string                     `json:"id"`
	Data *geojson.FeatureCollection `json:"data"`
}

// Layer is a style layer drawn from a source.
type Layer struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Paint  map[string]any `json:"paint"`
	Filter []any          `json:"filter,omitempty"`
}

// Popup is the open popup.
type Popup struct {
	Longitude     float64 `json:"longitude"`
	Latitude      float64 `json:"latitude"`
	LongitudeText string  `json:"longitudeText"`
	LatitudeText  string  `json:"latitudeText"`
	CanIsochrone  bool    `json:"canIsochrone"`
}

// Stat is one line of the statistics panel.
type Stat struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Title   string `json:"title"`
	Count   int    `json:"count"`
	Visible bool   `json:"visible"`
	Text    string `json:"text"`
}

// LegendEntry is a color swatch with its label.
type LegendEntry struct {
	Label   string  `json:"label"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// Stack is everything the page needs to draw the map.
type Stack struct {
	Viewport     viewport.Viewport `json:"viewport"`
	ViewportText string            `json:"viewportText"`
	MapStyleURL  string            `json:"mapStyleUrl"`
	AccessToken  string            `json:"accessToken,omitempty"`
	Sources      []Source          `json:"sources"`
	Layers       []Layer           `json:"layers"`
	Popup        *Popup            `json:"popup,omitempty"`
	Stats        []Stat            `json:"stats"`
	Legend       []LegendEntry     `json:"legend"`
	Mode         string            `json:"mode"`
	Loading      bool              `json:"loading"`
	Error        string            `json:"error,omitempty"`
}

// Build computes the layer stack for s.
func Build(s session.State, c geodata.Catalog, opts Options) Stack {
	st := Stack{
		Viewport:     s.Viewport,
		ViewportText: ViewportText(s.Viewport),
		MapStyleURL:  opts.MapStyleURL,
		AccessToken:  opts.AccessToken,
		Sources:      []Source{},
		Layers:       []Layer{},
		Legend:       Legend(c),
		Mode:         s.Mode().String(),
		Loading:      s.Loading,
		Error:        s.Error,
	}

	if s.Buffer != nil {
		st.addArtifact("buffer", s.Buffer.Collection)
	}
	if s.Isochrone != nil {
		st.addArtifact("isochrone", s.Isochrone.Collection)
	}

	for _, ds := range c.Datasets {
		d, ok := s.Dataset(ds.Name)
		if !ok {
			continue
		}
		st.Stats = append(st.Stats, Stat{
			Name:    ds.Name,
			Label:   ds.Label,
			Title:   ds.Title,
			Count:   d.Count,
			Visible: d.Visible,
			Text:    StatText(ds.Label, d),
		})
		if !d.Visible || d.Empty() {
			continue
		}
		st.addDataset(ds, d.Collection)
	}

	if s.Popup.Visible {
		st.Popup = &Popup{
			Longitude:     s.Popup.Longitude,
			Latitude:      s.Popup.Latitude,
			LongitudeText: fmt.Sprintf("%.6f", s.Popup.Longitude),
			LatitudeText:  fmt.Sprintf("%.6f", s.Popup.Latitude),
			CanIsochrone:  opts.IsochroneEnabled,
		}
	}
	return st
}

func (st *Stack) addArtifact(name string, fc *geojson.FeatureCollection) {
	if fc == nil {
		return
	}
	src := name + "-data"
	st.Sources = append(st.Sources, Source{ID: src, Data: fc})
	st.Layers = append(st.Layers, Layer{
		ID:     name + "-layer",
		Type:   "fill",
		Source: src,
		Paint: map[string]any{
			"fill-color":         AccentColor,
			"fill-opacity":       AccentOpacity,
			"fill-outline-color": AccentColor,
		},
	})
}

func (st *Stack) addDataset(ds geodata.Dataset, fc *geojson.FeatureCollection) {
	src := ds.Name + "-data"
	st.Sources = append(st.Sources, Source{ID: src, Data: fc})

	kinds := geometryKinds(fc)
	color := ColorExpression(ds.Style)

	if kinds.areas {
		st.Layers = append(st.Layers, Layer{
			ID:     ds.Name + "-layer",
			Type:   "fill",
			Source: src,
			Paint: map[string]any{
				"fill-color":     color,
				"fill-opacity":   ds.Style.FillOpacity,
				"fill-antialias": true,
			},
		})
	}
	if kinds.areas || kinds.lines {
		st.Layers = append(st.Layers, Layer{
			ID:     ds.Name + "-outline",
			Type:   "line",
			Source: src,
			Paint: map[string]any{
				"line-color":   ds.Style.LineColor,
				"line-width":   ds.Style.LineWidth,
				"line-opacity": ds.Style.LineOpacity,
			},
		})
	}
	if kinds.points {
		st.Layers = append(st.Layers, Layer{
			ID:     ds.Name + "-points",
			Type:   "circle",
			Source: src,
			Paint: map[string]any{
				"circle-color":        color,
				"circle-opacity":      ds.Style.FillOpacity,
				"circle-radius":       pointRadius,
				"circle-stroke-color": ds.Style.LineColor,
				"circle-stroke-width": ds.Style.LineWidth,
			},
			Filter: []any{"in", []any{"geometry-type"}, []any{"literal", []string{"Point", "MultiPoint"}}},
		})
	}
}

type kinds struct {
	points, lines, areas bool
}

func geometryKinds(fc *geojson.FeatureCollection) kinds {
	var k kinds
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		k.add(f.Geometry)
	}
	return k
}

func (k *kinds) add(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point, orb.MultiPoint:
		k.points = true
	case orb.LineString, orb.MultiLineString:
		k.lines = true
	case orb.Ring, orb.Polygon, orb.MultiPolygon, orb.Bound:
		k.areas = true
	case orb.Collection:
		for _, sub := range g {
			k.add(sub)
		}
	}
}

// ColorExpression returns a match expression for categorical styles and a
// flat color otherwise.
func ColorExpression(s geodata.Style) any {
	if !s.Categorical() {
		return s.FillColor
	}
	expr := []any{"match", []any{"get", s.CategoryProperty}}
	for _, c := range s.Categories {
		expr = append(expr, c.Value, c.Color)
	}
	return append(expr, s.FillColor)
}

// ColorFor resolves the fill color of one feature.
func ColorFor(s geodata.Style, props geojson.Properties) string {
	if !s.Categorical() {
		return s.FillColor
	}
	v, _ := props[s.CategoryProperty].(string)
	for _, c := range s.Categories {
		if c.Value == v {
			return c.Color
		}
	}
	return s.FillColor
}

// StatText is the statistics panel line for a dataset.
func StatText(label string, d session.DatasetState) string {
	return fmt.Sprintf("%s: %d features %s", label, d.Count, d.StatusText())
}

// ViewportText is the statistics panel camera line.
func ViewportText(v viewport.Viewport) string {
	return fmt.Sprintf("Viewport: %.4f, %.4f @ %.1f", v.Latitude, v.Longitude, v.Zoom)
}

// Legend lists categories of categorical datasets and one swatch for each
// flat-colored dataset.
func Legend(c geodata.Catalog) []LegendEntry {
	var out []LegendEntry
	for _, ds := range c.Datasets {
		if ds.Style.Categorical() {
			for _, cat := range ds.Style.Categories {
				label := cat.Label
				if label == "" {
					label = cat.Value
				}
				out = append(out, LegendEntry{Label: label, Color: cat.Color, Opacity: ds.Style.FillOpacity})
			}
			continue
		}
		label := ds.LegendLabel
		if label == "" {
			label = ds.Label
		}
		out = append(out, LegendEntry{Label: label, Color: ds.Style.FillColor, Opacity: ds.Style.FillOpacity})
	}
	return out
}

// RenderError wraps a failure while rendering.
type RenderError struct {
	Cause any
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Cause)
}

// SafeBuild is Build with panics turned into a *RenderError. The previous
// frame stays on screen when it fails.
func SafeBuild(s session.State, c geodata.Catalog, opts Options) (st Stack, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("render panic", "error", r)
			err = &RenderError{Cause: r}
		}
	}()
	return Build(s, c, opts), nil
}
