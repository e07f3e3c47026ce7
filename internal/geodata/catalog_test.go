package geodata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, []string{"fasum", "jawa", "jawa_health", "kl_health"}, c.Names())

	fasum, ok := c.Lookup("fasum")
	require.True(t, ok)
	require.True(t, fasum.Style.Categorical())
	require.Equal(t, "#FF9900", fasum.Style.FillColor)

	jawa, ok := c.ByEndpoint("jawa")
	require.True(t, ok)
	require.False(t, jawa.Style.Categorical())

	_, ok = c.Lookup("missing")
	require.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	require.Len(t, c.Datasets, 4)

	path := filepath.Join(t.TempDir(), "datasets.yaml")
	yaml := `datasets:
  - name: rivers
    style:
      fill_color: "#00f"
      line_color: "#003"
      line_width: 1
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err = LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Datasets, 1)
	require.Equal(t, "rivers", c.Datasets[0].Endpoint)
	require.Equal(t, "rivers.geojson", c.Datasets[0].File)
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  - name: a\n  - name: a\n"), 0o644))

	_, err := LoadCatalog(path)
	require.ErrorContains(t, err, "listed twice")
}
