package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/metrics"
	"github.com/joeblew999/sichatas/internal/service"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/tasks"
)

// Fetcher loads one dataset.
type Fetcher interface {
	Fetch(ctx context.Context, ds geodata.Dataset) (geodata.Result, error)
}

// Isochrones requests travel-time polygons.
type Isochrones interface {
	Enabled() bool
	Fetch(ctx context.Context, center orb.Point, opts spatial.IsochroneOptions) (spatial.IsochroneArtifact, error)
}

// Persister saves artifacts.
type Persister interface {
	Save(ctx context.Context, rec spatial.Record) error
}

// Deps are shared by every session.
type Deps struct {
	Catalog    geodata.Catalog
	Fetcher    Fetcher
	Isochrones Isochrones
	Persister  Persister
	Queue      *tasks.Queue
	Bus        *service.EventBus

	// Concurrency bounds parallel dataset fetches. 1 fetches in catalog order.
	Concurrency int

	IsochroneDefaults spatial.IsochroneOptions
}

// Session is one visitor's map.
type Session struct {
	ID   string
	deps Deps

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastSeen time.Time
}

// New creates a session with the initial state.
func New(id string, deps Deps) *Session {
	return &Session{
		ID:       id,
		deps:     deps,
		state:    NewState(deps.Catalog),
		lastSeen: time.Now(),
	}
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies an action and notifies subscribers when it succeeds.
func (s *Session) Dispatch(a Action) (State, error) {
	s.mu.Lock()
	next, err := Reduce(s.state, a)
	if err == nil {
		s.state = next
	}
	s.lastSeen = time.Now()
	snap := s.state.Clone()
	s.mu.Unlock()

	if err == nil {
		s.publish("updated")
	}
	return snap, err
}

func (s *Session) publish(action string) {
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(service.Event{Resource: "session", Action: action, ID: s.ID})
	}
}

// Load fetches every catalog dataset, waits for all of them, then fits the
// viewport. A newer Load cancels this one; its results are then discarded
// and ErrStale is returned. The returned error is the first fetch failure;
// the state still carries the datasets that did load.
func (s *Session) Load(ctx context.Context) (State, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.state, _ = Reduce(s.state, LoadStarted{})
	gen := s.state.Generation
	s.mu.Unlock()
	s.publish("loading")

	g := new(errgroup.Group)
	if s.deps.Concurrency > 0 {
		g.SetLimit(s.deps.Concurrency)
	}
	for _, ds := range s.deps.Catalog.Datasets {
		g.Go(func() error {
			res, err := s.deps.Fetcher.Fetch(ctx, ds)
			if err != nil {
				slog.Error("dataset fetch failed", "session", s.ID, "dataset", ds.Name, "error", err)
				s.Dispatch(DatasetFailed{Generation: gen, Name: ds.Name, Err: err})
				return err
			}
			s.Dispatch(DatasetLoaded{Generation: gen, Name: ds.Name, Result: res})
			return nil
		})
	}
	loadErr := g.Wait()

	st, err := s.Dispatch(LoadFinished{Generation: gen})
	if err != nil {
		return st, err
	}
	return st, loadErr
}

// CreateBuffer draws the buffer around the popup and queues its
// persistence. A failed save is logged and counted only.
func (s *Session) CreateBuffer() (State, error) {
	st, err := s.Dispatch(CreateBuffer{})
	if err != nil {
		return st, err
	}
	if s.deps.Persister == nil || s.deps.Queue == nil || st.Buffer == nil {
		return st, nil
	}

	rec := st.Buffer.Record()
	s.deps.Queue.Submit(tasks.Task{
		Name: "persist-buffer",
		Run: func(ctx context.Context) error {
			return s.deps.Persister.Save(ctx, rec)
		},
		OnSuccess: func() {
			metrics.Persistence.WithLabelValues(rec.Type, "ok").Inc()
			slog.Info("buffer saved", "session", s.ID, "lng", rec.Coordinates[0], "lat", rec.Coordinates[1])
		},
		OnFailure: func(err error) {
			metrics.Persistence.WithLabelValues(rec.Type, "error").Inc()
			slog.Error("failed to save buffer", "session", s.ID, "error", err)
		},
	})
	return st, nil
}

// CreateIsochrone requests isochrones around the popup. Zero fields in opts
// take the configured defaults.
func (s *Session) CreateIsochrone(ctx context.Context, opts spatial.IsochroneOptions) (State, error) {
	st := s.State()
	if !st.Popup.Visible {
		return st, ErrNoPopup
	}
	if s.deps.Isochrones == nil || !s.deps.Isochrones.Enabled() {
		return st, spatial.ErrIsochroneDisabled
	}

	opts = s.withDefaults(opts)
	art, err := s.deps.Isochrones.Fetch(ctx, st.Popup.Point(), opts)
	if err != nil {
		return st, fmt.Errorf("creating isochrone: %w", err)
	}
	return s.Dispatch(IsochroneCreated{Artifact: art})
}

func (s *Session) withDefaults(opts spatial.IsochroneOptions) spatial.IsochroneOptions {
	d := s.deps.IsochroneDefaults
	if opts.Profile == "" {
		opts.Profile = d.Profile
	}
	if opts.Method == "" {
		opts.Method = d.Method
	}
	if opts.Interval == 0 {
		opts.Interval = d.Interval
	}
	return opts
}

// Close cancels an in-flight load.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// IsStale reports whether err means a newer request superseded this one.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}
