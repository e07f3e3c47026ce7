package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/sichatas/internal/humastar"
	"github.com/joeblew999/sichatas/internal/metrics"
	"github.com/joeblew999/sichatas/internal/service"
	"github.com/joeblew999/sichatas/internal/store"
)

// SpatialMetadata describes how an artifact was derived.
type SpatialMetadata struct {
	Radius float64 `json:"radius,omitempty" minimum:"0" doc:"Buffer radius" example:"1"`
	Units  string  `json:"units,omitempty" doc:"Radius units" example:"kilometers"`
}

// SpatialRecordBody is the payload posted for a buffer or isochrone.
type SpatialRecordBody struct {
	Type        string           `json:"type" enum:"buffer,isochrone" doc:"Artifact kind" example:"buffer"`
	Geometry    map[string]any   `json:"geometry" doc:"GeoJSON of the artifact"`
	Coordinates []float64        `json:"coordinates" minItems:"2" maxItems:"2" doc:"Clicked point as [lng, lat]"`
	Metadata    *SpatialMetadata `json:"metadata,omitempty" doc:"Derivation parameters"`
}

// SpatialRecord is a stored artifact.
type SpatialRecord struct {
	ID          string          `json:"id" doc:"Record ID"`
	Type        string          `json:"type" doc:"Artifact kind" example:"buffer"`
	Geometry    any             `json:"geometry" doc:"GeoJSON of the artifact"`
	Coordinates []float64       `json:"coordinates" doc:"Clicked point as [lng, lat]"`
	Metadata    SpatialMetadata `json:"metadata" doc:"Derivation parameters"`
	CreatedAt   time.Time       `json:"createdAt" doc:"Creation time"`
}

// CreatedSpatialBody is returned by POST /api/spatial.
type CreatedSpatialBody struct {
	ID      string `json:"id" doc:"Generated record ID"`
	Message string `json:"message" doc:"Result message"`
}

var spatialActions = []humastar.ActionDef{
	{Rel: "self", Pattern: "/api/spatial/%s", Method: "GET", Title: "Stored record"},
	{Rel: "collection", Pattern: "/api/spatial", Method: "GET", Title: "Saved artifacts"},
}

// Actions links the created record.
func (b CreatedSpatialBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, spatialActions)
}

type SpatialListInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

type SpatialIDInput struct {
	ID string `path:"id" doc:"Record ID"`
}

// RegisterSpatial registers the artifact persistence routes.
func (h *APIHandler) RegisterSpatial(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-spatial-record",
		Method:        "POST",
		Path:          "/api/spatial",
		Summary:       "Save a spatial artifact",
		Tags:          []string{"spatial"},
		DefaultStatus: 201,
	}, h.CreateSpatial)
	huma.Get(api, "/api/spatial", h.ListSpatial, huma.OperationTags("spatial"))
	huma.Get(api, "/api/spatial/{id}", h.GetSpatial, huma.OperationTags("spatial"))
}

func (h *APIHandler) store() (*store.Store, error) {
	if h.svc == nil || h.svc.Store == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	return h.svc.Store, nil
}

func (h *APIHandler) CreateSpatial(ctx context.Context, input *struct{ Body SpatialRecordBody }) (*struct{ Body CreatedSpatialBody }, error) {
	st, err := h.store()
	if err != nil {
		return nil, err
	}

	b := input.Body
	geom, err := json.Marshal(b.Geometry)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid geometry", err)
	}
	rec := store.Record{
		Kind:     b.Type,
		Geometry: geom,
		Lng:      b.Coordinates[0],
		Lat:      b.Coordinates[1],
	}
	if b.Metadata != nil {
		rec.Radius = b.Metadata.Radius
		rec.Units = b.Metadata.Units
	}

	saved, err := st.Insert(ctx, rec)
	if err != nil {
		metrics.Persistence.WithLabelValues(b.Type, "store_error").Inc()
		return nil, huma.Error500InternalServerError("failed to save record", err)
	}
	metrics.Persistence.WithLabelValues(b.Type, "stored").Inc()
	if h.svc.Bus != nil {
		h.svc.Bus.Publish(service.Event{Resource: "spatial", Action: "created", ID: saved.ID})
	}

	return &struct{ Body CreatedSpatialBody }{Body: CreatedSpatialBody{
		ID: saved.ID, Message: b.Type + " saved",
	}}, nil
}

func (h *APIHandler) ListSpatial(ctx context.Context, input *SpatialListInput) (*struct {
	Body humastar.PageBody[SpatialRecord]
}, error) {
	st, err := h.store()
	if err != nil {
		return nil, err
	}
	total, err := st.Count(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count records", err)
	}
	recs, err := st.List(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list records", err)
	}

	data := make([]SpatialRecord, 0, len(recs))
	for _, r := range recs {
		data = append(data, toSpatialRecord(r))
	}
	return &struct {
		Body humastar.PageBody[SpatialRecord]
	}{Body: humastar.NewPage(data, total, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetSpatial(ctx context.Context, input *SpatialIDInput) (*struct{ Body SpatialRecord }, error) {
	st, err := h.store()
	if err != nil {
		return nil, err
	}
	r, err := st.Get(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error404NotFound("record not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read record", err)
	}
	return &struct{ Body SpatialRecord }{Body: toSpatialRecord(r)}, nil
}

func toSpatialRecord(r store.Record) SpatialRecord {
	var geom any
	_ = json.Unmarshal(r.Geometry, &geom)
	return SpatialRecord{
		ID:          r.ID,
		Type:        r.Kind,
		Geometry:    geom,
		Coordinates: []float64{r.Lng, r.Lat},
		Metadata:    SpatialMetadata{Radius: r.Radius, Units: r.Units},
		CreatedAt:   r.CreatedAt,
	}
}
