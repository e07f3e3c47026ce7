// Package geodata loads the map's GeoJSON datasets: the dataset catalog,
// HTTP fetching, and validation into canonical feature collections.
package geodata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Category is one entry of a categorical fill: features whose category
// property equals Value are drawn with Color.
type Category struct {
	Value string `yaml:"value" json:"value"`
	Color string `yaml:"color" json:"color"`
	Label string `yaml:"label" json:"label"`
}

// Style is the paint configuration for a dataset's fill and outline layers.
type Style struct {
	FillColor        string     `yaml:"fill_color" json:"fillColor"`
	FillOpacity      float64    `yaml:"fill_opacity" json:"fillOpacity"`
	CategoryProperty string     `yaml:"category_property,omitempty" json:"categoryProperty,omitempty"`
	Categories       []Category `yaml:"categories,omitempty" json:"categories,omitempty"`
	LineColor        string     `yaml:"line_color" json:"lineColor"`
	LineWidth        float64    `yaml:"line_width" json:"lineWidth"`
	LineOpacity      float64    `yaml:"line_opacity" json:"lineOpacity"`
}

// Categorical reports whether the fill color depends on a feature property.
func (s Style) Categorical() bool {
	return s.CategoryProperty != "" && len(s.Categories) > 0
}

// Dataset is a catalog entry: a named endpoint and how to draw it.
type Dataset struct {
	Name        string `yaml:"name" json:"name" doc:"Dataset key" example:"fasum"`
	Endpoint    string `yaml:"endpoint" json:"endpoint" doc:"Path segment under /api/" example:"fasum"`
	Label       string `yaml:"label" json:"label" doc:"Statistics panel label" example:"Fasum"`
	Title       string `yaml:"title" json:"title" doc:"Toggle button title" example:"Building Layer"`
	LegendLabel string `yaml:"legend_label,omitempty" json:"legendLabel,omitempty" doc:"Legend entry for flat-colored datasets"`
	File        string `yaml:"file" json:"file" doc:"Source file served for this dataset" example:"fasum.geojson"`
	Style       Style  `yaml:"style" json:"style"`
}

// Catalog is the ordered list of datasets shown on the map.
type Catalog struct {
	Datasets []Dataset `yaml:"datasets" json:"datasets"`
}

// DefaultCatalog returns the four datasets of the SICHATAS map.
func DefaultCatalog() Catalog {
	return Catalog{Datasets: []Dataset{
		{
			Name: "fasum", Endpoint: "fasum", Label: "Fasum", Title: "Building Layer",
			File: "fasum.geojson",
			Style: Style{
				FillColor: "#FF9900", FillOpacity: 0.6,
				CategoryProperty: "type",
				Categories: []Category{
					{Value: "house", Color: "#FF9900", Label: "House"},
					{Value: "school", Color: "#3388ff", Label: "School"},
					{Value: "general", Color: "#ffcc00", Label: "General Building"},
					{Value: "commercial", Color: "#ff6600", Label: "Commercial"},
					{Value: "mosque", Color: "#00cc66", Label: "Mosque"},
					{Value: "church", Color: "#9900cc", Label: "Church"},
					{Value: "hospital", Color: "#ff0000", Label: "Hospital"},
				},
				LineColor: "#666", LineWidth: 1, LineOpacity: 0.9,
			},
		},
		{
			Name: "jawa", Endpoint: "jawa", Label: "Jawa", Title: "Jawa Layer",
			LegendLabel: "Jawa Provinces", File: "jawa.geojson",
			Style: Style{
				FillColor: "#800080", FillOpacity: 0.3,
				LineColor: "#000000", LineWidth: 2, LineOpacity: 0.8,
			},
		},
		{
			Name: "jawa_health", Endpoint: "jawa_health", Label: "Jawa Health", Title: "Jawa Healthcare Layer",
			LegendLabel: "Jawa Healthcare Buffers", File: "jawa_health.geojson",
			Style: Style{
				FillColor: "#00FF00", FillOpacity: 0.4,
				LineColor: "#006600", LineWidth: 1, LineOpacity: 0.9,
			},
		},
		{
			Name: "kl_health", Endpoint: "kl_health", Label: "KL Health", Title: "Kalimantan Healthcare Layer",
			LegendLabel: "Kalimantan Healthcare Buffers", File: "kl_health.geojson",
			Style: Style{
				FillColor: "#0000FF", FillOpacity: 0.4,
				LineColor: "#000066", LineWidth: 1, LineOpacity: 0.9,
			},
		},
	}}
}

// LoadCatalog reads a catalog from a YAML file. An empty path yields the
// default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c *Catalog) normalize() error {
	if len(c.Datasets) == 0 {
		return fmt.Errorf("catalog has no datasets")
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i := range c.Datasets {
		d := &c.Datasets[i]
		if d.Name == "" {
			return fmt.Errorf("catalog entry %d has no name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("dataset %q listed twice", d.Name)
		}
		seen[d.Name] = true
		if d.Endpoint == "" {
			d.Endpoint = d.Name
		}
		if d.Label == "" {
			d.Label = d.Name
		}
		if d.File == "" {
			d.File = d.Name + ".geojson"
		}
	}
	return nil
}

// Lookup returns the dataset with the given name.
func (c Catalog) Lookup(name string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// ByEndpoint returns the dataset served under the given /api/ path segment.
func (c Catalog) ByEndpoint(endpoint string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.Endpoint == endpoint {
			return d, true
		}
	}
	return Dataset{}, false
}

// Names lists dataset names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		names[i] = d.Name
	}
	return names
}
