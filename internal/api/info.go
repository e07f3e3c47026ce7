package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir   string
	dbOK      bool
	isochrone bool
}

func NewInfoHandler(dataDir string, dbOK, isochrone bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, isochrone: isochrone}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether the artifact store is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"datasets", "buffer", "map"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	if h.isochrone {
		features = append(features, "isochrone")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "sichatas",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Features: features,
	}}, nil
}
