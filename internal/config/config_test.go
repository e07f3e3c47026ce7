package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 1, cfg.Fetch.Concurrency)
	require.Equal(t, "driving", cfg.Isochrone.Profile)
	require.Equal(t, "contours_minutes", cfg.Isochrone.Method)
	require.Equal(t, 10, cfg.Isochrone.Interval)
	require.Empty(t, cfg.Map.Token)
	require.Equal(t, "https://basemap.mapid.io/styles/street-new-generation/style.json?key=", cfg.Map.StyleWithKey())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SICHATAS_FETCH_CONCURRENCY", "4")
	t.Setenv("MAPBOX_TOKEN", "pk.test")
	t.Setenv("SICHATAS_MAP_KEY", "abc")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Fetch.Concurrency)
	require.Equal(t, "pk.test", cfg.Map.Token)
	require.Contains(t, cfg.Map.StyleWithKey(), "key=abc")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "isochrone:\n  profile: walking\n  interval: 15\npersist:\n  workers: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "walking", cfg.Isochrone.Profile)
	require.Equal(t, 15, cfg.Isochrone.Interval)
	require.Equal(t, 3, cfg.Persist.Workers)
}

func TestValidate(t *testing.T) {
	t.Setenv("SICHATAS_ISOCHRONE_METHOD", "contours_hours")
	_, err := Load(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "isochrone.method")
}
