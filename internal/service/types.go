// Package service contains the data-serving side of the map service and the
// event bus that connects session changes to open SSE streams.
package service

// DatasetFile describes one catalog dataset's source file.
type DatasetFile struct {
	Name      string `json:"name" doc:"Dataset key" example:"fasum"`
	Endpoint  string `json:"endpoint" doc:"Path the dataset is served at" example:"/api/fasum"`
	Label     string `json:"label" doc:"Display label" example:"Fasum"`
	File      string `json:"file" doc:"Source file name" example:"fasum.geojson"`
	Available bool   `json:"available" doc:"Whether the source file exists"`
	Size      string `json:"size,omitempty" doc:"Human-readable file size" example:"1.2 MB"`
}
