package spatial

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestPersisterSave(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/spatial", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b, err := Buffer(orb.Point{110.0, -7.0}, DefaultRadius, DefaultUnits)
	require.NoError(t, err)

	require.NoError(t, NewPersister(srv.URL, nil).Save(context.Background(), b.Record()))
	require.Equal(t, "buffer", got["type"])
	require.Equal(t, []any{110.0, -7.0}, got["coordinates"])
	require.Equal(t, map[string]any{"radius": 1.0, "units": "kilometers"}, got["metadata"])
}

func TestPersisterSaveFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := Buffer(orb.Point{1, 1}, DefaultRadius, DefaultUnits)
	require.NoError(t, err)

	err = NewPersister(srv.URL, nil).Save(context.Background(), b.Record())
	require.ErrorContains(t, err, "503")
}
