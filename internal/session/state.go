// Package session owns the per-visitor map state and the transitions that
// change it. Every user action is a named Action applied by Reduce; the
// Session type adds the side effects (fetching, persistence, isochrones)
// around those transitions.
package session

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/viewport"
)

// Mode is the interaction state derived from State.
type Mode int

const (
	ModeIdle Mode = iota
	ModePopup
	ModeBuffer
	ModeIsochrone
)

func (m Mode) String() string {
	switch m {
	case ModePopup:
		return "popup"
	case ModeBuffer:
		return "buffer"
	case ModeIsochrone:
		return "isochrone"
	default:
		return "idle"
	}
}

// DatasetState is one catalog slot. Collection is nil until the first
// successful fetch and is only ever replaced.
type DatasetState struct {
	Name       string
	Collection *geojson.FeatureCollection
	Count      int
	Visible    bool
	Err        error
}

// Loaded reports whether a collection has been fetched.
func (d DatasetState) Loaded() bool {
	return d.Collection != nil
}

// Empty reports whether there is nothing to draw.
func (d DatasetState) Empty() bool {
	return d.Collection == nil || len(d.Collection.Features) == 0
}

// StatusText is the visibility suffix shown in the statistics panel.
func (d DatasetState) StatusText() string {
	if d.Visible {
		return "(visible)"
	}
	return "(hidden)"
}

// PopupState is the last clicked coordinate.
type PopupState struct {
	Longitude float64
	Latitude  float64
	Visible   bool
}

// Point returns the popup coordinate.
func (p PopupState) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// State is everything needed to render one map.
type State struct {
	Viewport  viewport.Viewport
	Datasets  []DatasetState
	Popup     PopupState
	Buffer    *spatial.BufferArtifact
	Isochrone *spatial.IsochroneArtifact

	Loading    bool
	Error      string
	Generation uint64
}

// NewState returns the initial state for a catalog: default viewport, every
// dataset empty and visible.
func NewState(c geodata.Catalog) State {
	ds := make([]DatasetState, len(c.Datasets))
	for i, d := range c.Datasets {
		ds[i] = DatasetState{Name: d.Name, Visible: true}
	}
	return State{Viewport: viewport.Default(), Datasets: ds}
}

// Mode derives the interaction mode.
func (s State) Mode() Mode {
	switch {
	case s.Popup.Visible:
		return ModePopup
	case s.Isochrone != nil:
		return ModeIsochrone
	case s.Buffer != nil:
		return ModeBuffer
	default:
		return ModeIdle
	}
}

// Dataset returns the slot for name.
func (s State) Dataset(name string) (DatasetState, bool) {
	if i := s.index(name); i >= 0 {
		return s.Datasets[i], true
	}
	return DatasetState{}, false
}

func (s State) index(name string) int {
	for i := range s.Datasets {
		if s.Datasets[i].Name == name {
			return i
		}
	}
	return -1
}

// Collections returns every loaded collection in catalog order.
func (s State) Collections() []*geojson.FeatureCollection {
	out := make([]*geojson.FeatureCollection, 0, len(s.Datasets))
	for _, d := range s.Datasets {
		if d.Collection != nil {
			out = append(out, d.Collection)
		}
	}
	return out
}

// Clone copies the dataset slice so the result can be changed without
// touching s. Collections and artifacts are shared since they are never
// mutated.
func (s State) Clone() State {
	s.Datasets = append([]DatasetState(nil), s.Datasets...)
	return s
}
