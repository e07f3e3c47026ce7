package geodata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fasum":
			w.Write([]byte(`{"type":"FeatureCollection","features":[{"geometry":{"type":"Point","coordinates":[107.1,-6.9]},"properties":{"type":"house"}}]}`))
		case "/api/jawa":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/api/kl_health":
			w.Write([]byte(`{"hello":"world"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	catalog := DefaultCatalog()
	f := NewFetcher(srv.URL+"/", nil)

	fasum, _ := catalog.Lookup("fasum")
	res, err := f.Fetch(context.Background(), fasum)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)

	jawa, _ := catalog.Lookup("jawa")
	_, err = f.Fetch(context.Background(), jawa)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	require.Equal(t, "failed to fetch jawa: 500 Internal Server Error", err.Error())

	kl, _ := catalog.Lookup("kl_health")
	_, err = f.Fetch(context.Background(), kl)
	var fmtErr *FormatError
	require.True(t, errors.As(err, &fmtErr))
}

func TestFetcherCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, _ := DefaultCatalog().Lookup("fasum")
	_, err := NewFetcher(srv.URL, nil).Fetch(ctx, ds)
	require.ErrorIs(t, err, context.Canceled)
}
