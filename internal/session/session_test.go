package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/service"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/tasks"
)

type fakeFetcher struct {
	results map[string]geodata.Result
	errs    map[string]error
	block   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, ds geodata.Dataset) (geodata.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return geodata.Result{}, ctx.Err()
		}
	}
	if err, ok := f.errs[ds.Name]; ok {
		return geodata.Result{}, err
	}
	return f.results[ds.Name], nil
}

type recordingPersister struct {
	mu   sync.Mutex
	recs []spatial.Record
	err  error
	done chan struct{}
}

func (p *recordingPersister) Save(_ context.Context, rec spatial.Record) error {
	p.mu.Lock()
	p.recs = append(p.recs, rec)
	p.mu.Unlock()
	p.done <- struct{}{}
	return p.err
}

type fakeIsochrones struct {
	enabled bool
	opts    spatial.IsochroneOptions
}

func (f *fakeIsochrones) Enabled() bool { return f.enabled }

func (f *fakeIsochrones) Fetch(_ context.Context, center orb.Point, opts spatial.IsochroneOptions) (spatial.IsochroneArtifact, error) {
	f.opts = opts
	return spatial.IsochroneArtifact{Collection: pointCollection(center), Center: center, Options: opts}, nil
}

func fasumResult() geodata.Result {
	return geodata.Result{Collection: pointCollection(orb.Point{107.1, -6.9}), Count: 1, Total: 1}
}

func TestLoadPartialFailure(t *testing.T) {
	bus := service.NewEventBus()
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	f := &fakeFetcher{
		results: map[string]geodata.Result{"fasum": fasumResult()},
		errs:    map[string]error{"jawa": &geodata.FetchError{Dataset: "jawa", StatusCode: 500}},
	}
	s := New("s1", Deps{Catalog: geodata.DefaultCatalog(), Fetcher: f, Bus: bus, Concurrency: 1})

	st, err := s.Load(context.Background())
	var fe *geodata.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "failed to fetch jawa: 500 Internal Server Error", st.Error)

	d, _ := st.Dataset("fasum")
	require.Equal(t, 1, d.Count)
	require.True(t, d.Visible)
	require.InDelta(t, 107.1, st.Viewport.Longitude, 1e-9)
	require.Equal(t, 22.0, st.Viewport.Zoom)

	ev := <-events
	require.Equal(t, "session", ev.Resource)
	require.Equal(t, "s1", ev.ID)
}

func TestLoadCancelledByNewerLoad(t *testing.T) {
	f := &fakeFetcher{results: map[string]geodata.Result{"fasum": fasumResult()}, block: make(chan struct{})}
	s := New("s1", Deps{Catalog: geodata.DefaultCatalog(), Fetcher: f, Concurrency: 4})

	first := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background())
		first <- err
	}()
	require.Eventually(t, func() bool { return s.State().Generation == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background())
		second <- err
	}()
	require.ErrorIs(t, <-first, ErrStale)

	close(f.block)
	require.NoError(t, <-second)
	st := s.State()
	require.Equal(t, uint64(2), st.Generation)
	require.False(t, st.Loading)
	d, _ := st.Dataset("fasum")
	require.True(t, d.Loaded())
}

func TestCreateBufferPersists(t *testing.T) {
	q := tasks.NewQueue(1, 4, time.Second)
	defer q.Close()
	p := &recordingPersister{done: make(chan struct{}, 1)}
	s := New("s1", Deps{Catalog: geodata.DefaultCatalog(), Persister: p, Queue: q})

	_, err := s.CreateBuffer()
	require.ErrorIs(t, err, ErrNoPopup)

	_, err = s.Dispatch(Click{Lng: 110.0, Lat: -7.0})
	require.NoError(t, err)
	st, err := s.CreateBuffer()
	require.NoError(t, err)
	require.NotNil(t, st.Buffer)

	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.recs, 1)
	require.Equal(t, "buffer", p.recs[0].Type)
	require.Equal(t, [2]float64{110.0, -7.0}, p.recs[0].Coordinates)
	require.Equal(t, spatial.Metadata{Radius: 1, Units: "kilometers"}, p.recs[0].Metadata)
}

func TestCreateBufferPersistFailureKeepsState(t *testing.T) {
	q := tasks.NewQueue(1, 4, time.Second)
	p := &recordingPersister{done: make(chan struct{}, 1), err: errors.New("down")}
	s := New("s1", Deps{Catalog: geodata.DefaultCatalog(), Persister: p, Queue: q})

	_, err := s.Dispatch(Click{Lng: 110.0, Lat: -7.0})
	require.NoError(t, err)
	_, err = s.CreateBuffer()
	require.NoError(t, err)
	<-p.done
	q.Close()

	require.NotNil(t, s.State().Buffer)
}

func TestCreateIsochrone(t *testing.T) {
	iso := &fakeIsochrones{}
	s := New("s1", Deps{
		Catalog:           geodata.DefaultCatalog(),
		Isochrones:        iso,
		IsochroneDefaults: spatial.IsochroneOptions{Profile: "driving", Method: "contours_minutes", Interval: 10},
	})

	_, err := s.CreateIsochrone(context.Background(), spatial.IsochroneOptions{})
	require.ErrorIs(t, err, ErrNoPopup)

	_, err = s.Dispatch(Click{Lng: 110, Lat: -7})
	require.NoError(t, err)
	_, err = s.CreateIsochrone(context.Background(), spatial.IsochroneOptions{})
	require.ErrorIs(t, err, spatial.ErrIsochroneDisabled)

	iso.enabled = true
	st, err := s.CreateIsochrone(context.Background(), spatial.IsochroneOptions{Profile: "walking"})
	require.NoError(t, err)
	require.Equal(t, ModeIsochrone, st.Mode())
	require.Equal(t, spatial.IsochroneOptions{Profile: "walking", Method: "contours_minutes", Interval: 10}, iso.opts)
}

func TestManager(t *testing.T) {
	m := NewManager(Deps{Catalog: geodata.DefaultCatalog()}, time.Minute)
	s := m.Create()
	require.NotEmpty(t, s.ID)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, 1, m.Len())

	require.Equal(t, 0, m.Sweep(time.Now()))
	require.Equal(t, 1, m.Sweep(time.Now().Add(2*time.Minute)))
	_, ok = m.Get(s.ID)
	require.False(t, ok)
}
