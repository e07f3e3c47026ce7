package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/service"
)

type DatasetsBody struct {
	Datasets []geodata.Dataset    `json:"datasets" doc:"Dataset catalog in display order"`
	Files    []service.DatasetFile `json:"files" doc:"Source file status per dataset"`
}

type DatasetInput struct {
	Dataset string `path:"dataset" doc:"Dataset endpoint" example:"fasum"`
}

// DatasetOutput carries the source bytes unchanged so that both accepted
// payload shapes reach the client as stored.
type DatasetOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// RegisterDatasets registers the catalog and dataset routes.
func (h *APIHandler) RegisterDatasets(api huma.API) {
	huma.Get(api, "/api/v1/datasets", h.ListDatasets, huma.OperationTags("datasets"))
	huma.Register(api, huma.Operation{
		OperationID: "get-dataset",
		Method:      "GET",
		Path:        "/api/{dataset}",
		Summary:     "Get dataset GeoJSON",
		Description: "Returns a feature collection or a bare array of features.",
		Tags:        []string{"datasets"},
	}, h.GetDataset)
}

func (h *APIHandler) ListDatasets(ctx context.Context, input *struct{}) (*struct{ Body DatasetsBody }, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return &struct{ Body DatasetsBody }{Body: DatasetsBody{
			Datasets: []geodata.Dataset{}, Files: []service.DatasetFile{},
		}}, nil
	}
	return &struct{ Body DatasetsBody }{Body: DatasetsBody{
		Datasets: h.svc.Datasets.Catalog().Datasets,
		Files:    h.svc.Datasets.List(),
	}}, nil
}

func (h *APIHandler) GetDataset(ctx context.Context, input *DatasetInput) (*DatasetOutput, error) {
	if h.svc == nil || h.svc.Datasets == nil {
		return nil, huma.Error503ServiceUnavailable("datasets not available")
	}
	_, data, err := h.svc.Datasets.Read(input.Dataset)
	switch {
	case errors.Is(err, service.ErrDatasetNotFound):
		return nil, huma.Error404NotFound("dataset not found")
	case errors.Is(err, service.ErrSourceMissing):
		return nil, huma.Error404NotFound(err.Error())
	case err != nil:
		return nil, huma.Error500InternalServerError("failed to read dataset", err)
	}
	return &DatasetOutput{ContentType: "application/geo+json", Body: data}, nil
}
