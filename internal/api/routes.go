// Package api defines the Huma API routes and handlers.
package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/sichatas/internal/service"
	"github.com/joeblew999/sichatas/internal/store"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Datasets *service.DatasetService
	Store    *store.Store
	Bus      *service.EventBus
}

// Types

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
	DB      string `json:"db" doc:"Artifact store status" example:"ok"`
}

// APIHandler holds all REST API handlers.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterDatasets(api)
	h.RegisterSpatial(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	body := HealthBody{Status: "ok", Version: "1.0.0", DB: "unavailable"}
	if h.svc != nil && h.svc.Store != nil {
		if err := h.svc.Store.Ping(ctx); err != nil {
			body.DB = "error"
		} else {
			body.DB = "ok"
		}
	}
	return &struct{ Body HealthBody }{Body: body}, nil
}
