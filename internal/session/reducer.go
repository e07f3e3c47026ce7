package session

import (
	"errors"
	"fmt"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/viewport"
)

var (
	// ErrNoPopup is returned for artifact actions without an open popup.
	ErrNoPopup = errors.New("no point selected")
	// ErrStale is returned for results that belong to a superseded request.
	ErrStale = errors.New("stale result")
	// ErrUnknownDataset is returned for a dataset name not in the catalog.
	ErrUnknownDataset = errors.New("unknown dataset")
)

// Action is a named state transition.
type Action interface {
	apply(s *State) error
}

// Reduce applies a to a copy of s. On error the original state is returned
// unchanged.
func Reduce(s State, a Action) (State, error) {
	next := s.Clone()
	if err := a.apply(&next); err != nil {
		return s, err
	}
	return next, nil
}

// Click opens the popup at a coordinate and discards any artifact.
type Click struct {
	Lng float64
	Lat float64
}

func (a Click) apply(s *State) error {
	s.Popup = PopupState{Longitude: a.Lng, Latitude: a.Lat, Visible: true}
	s.Buffer = nil
	s.Isochrone = nil
	return nil
}

// ClosePopup hides the popup.
type ClosePopup struct{}

func (ClosePopup) apply(s *State) error {
	s.Popup.Visible = false
	return nil
}

// CreateBuffer replaces the artifact with a 1 km disc around the popup.
type CreateBuffer struct{}

func (CreateBuffer) apply(s *State) error {
	if !s.Popup.Visible {
		return ErrNoPopup
	}
	b, err := spatial.Buffer(s.Popup.Point(), spatial.DefaultRadius, spatial.DefaultUnits)
	if err != nil {
		return err
	}
	s.Buffer = &b
	s.Isochrone = nil
	s.Popup.Visible = false
	return nil
}

// IsochroneCreated swaps in isochrone polygons for the open popup.
type IsochroneCreated struct {
	Artifact spatial.IsochroneArtifact
}

func (a IsochroneCreated) apply(s *State) error {
	if !s.Popup.Visible {
		return ErrNoPopup
	}
	if a.Artifact.Center != s.Popup.Point() {
		return ErrStale
	}
	iso := a.Artifact
	s.Isochrone = &iso
	s.Buffer = nil
	s.Popup.Visible = false
	return nil
}

// ToggleLayer flips one dataset's visibility.
type ToggleLayer struct {
	Name string
}

func (a ToggleLayer) apply(s *State) error {
	i := s.index(a.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, a.Name)
	}
	s.Datasets[i].Visible = !s.Datasets[i].Visible
	return nil
}

// FitToData centers the viewport on every loaded feature.
type FitToData struct{}

func (FitToData) apply(s *State) error {
	s.Viewport, _ = viewport.FitToAll(s.Viewport, s.Collections()...)
	return nil
}

// SetViewport records the camera after the user pans or zooms.
type SetViewport struct {
	Viewport viewport.Viewport
}

func (a SetViewport) apply(s *State) error {
	s.Viewport = a.Viewport
	return nil
}

// LoadStarted begins a new load generation and clears the error banner.
type LoadStarted struct{}

func (LoadStarted) apply(s *State) error {
	s.Generation++
	s.Loading = true
	s.Error = ""
	for i := range s.Datasets {
		s.Datasets[i].Err = nil
	}
	return nil
}

// DatasetLoaded replaces one dataset's collection.
type DatasetLoaded struct {
	Generation uint64
	Name       string
	Result     geodata.Result
}

func (a DatasetLoaded) apply(s *State) error {
	if a.Generation != s.Generation {
		return ErrStale
	}
	i := s.index(a.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, a.Name)
	}
	d := &s.Datasets[i]
	d.Collection = a.Result.Collection
	d.Count = a.Result.Count
	d.Err = nil
	return nil
}

// DatasetFailed records a fetch error. A previously loaded collection is
// kept.
type DatasetFailed struct {
	Generation uint64
	Name       string
	Err        error
}

func (a DatasetFailed) apply(s *State) error {
	if a.Generation != s.Generation {
		return ErrStale
	}
	i := s.index(a.Name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, a.Name)
	}
	s.Datasets[i].Err = a.Err
	return nil
}

// LoadFinished closes a generation: the banner shows the last failure in
// catalog order and the viewport is fitted to whatever loaded.
type LoadFinished struct {
	Generation uint64
}

func (a LoadFinished) apply(s *State) error {
	if a.Generation != s.Generation {
		return ErrStale
	}
	s.Loading = false
	s.Error = ""
	for _, d := range s.Datasets {
		if d.Err != nil {
			s.Error = d.Err.Error()
		}
	}
	return FitToData{}.apply(s)
}
