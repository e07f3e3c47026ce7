// Package mapview contains the Datastar SSE handlers behind the map page.
// Every handler applies one session action and streams the re-rendered
// panels plus the layer stack the page's map widget draws.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/humastar"
	"github.com/joeblew999/sichatas/internal/render"
	"github.com/joeblew999/sichatas/internal/service"
	"github.com/joeblew999/sichatas/internal/session"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/templates"
	"github.com/joeblew999/sichatas/internal/viewport"
)

// StackEvent is the browser event carrying the layer stack.
const StackEvent = "sichatas-stack"

// View is the data every fragment template receives.
type View struct {
	Base  string
	Stack render.Stack
}

// Base returns the route prefix for a session.
func Base(id string) string {
	return "/api/v1/map/" + id
}

// Handler serves the map UI.
type Handler struct {
	humastar.Handler
	sessions *session.Manager
	catalog  geodata.Catalog
	opts     render.Options
	bus      Subscriber
	defaults spatial.IsochroneOptions
}

// Subscriber delivers change events for one session.
type Subscriber interface {
	SubscribeID(id string) (<-chan service.Event, func())
}

// Config configures a Handler.
type Config struct {
	Sessions          *session.Manager
	Catalog           geodata.Catalog
	Render            render.Options
	Renderer          *templates.Renderer
	Events            Subscriber
	IsochroneDefaults spatial.IsochroneOptions
}

// NewHandler creates a map handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: cfg.Renderer},
		sessions: cfg.Sessions,
		catalog:  cfg.Catalog,
		opts:     cfg.Render,
		bus:      cfg.Events,
		defaults: cfg.IsochroneDefaults,
	}
}

// SessionInput identifies the session in the path.
type SessionInput struct {
	Session string `path:"session" doc:"Map session ID" format:"uuid"`
}

// SignalsInput is a session action carrying Datastar signals.
type SignalsInput struct {
	Session string `path:"session" doc:"Map session ID" format:"uuid"`
	RawBody []byte
}

// ToggleInput names the layer to toggle.
type ToggleInput struct {
	Session string `path:"session" doc:"Map session ID" format:"uuid"`
	Name    string `path:"name" doc:"Dataset name" example:"fasum"`
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("map")
	huma.Get(api, "/api/v1/map/{session}/load", h.Load, tags)
	huma.Get(api, "/api/v1/map/{session}/events", h.Events, tags)
	huma.Post(api, "/api/v1/map/{session}/retry", h.Retry, tags)
	huma.Post(api, "/api/v1/map/{session}/click", h.Click, tags)
	huma.Post(api, "/api/v1/map/{session}/popup/close", h.ClosePopup, tags)
	huma.Post(api, "/api/v1/map/{session}/buffer", h.CreateBuffer, tags)
	huma.Post(api, "/api/v1/map/{session}/isochrone", h.CreateIsochrone, tags)
	huma.Post(api, "/api/v1/map/{session}/fit", h.Fit, tags)
	huma.Post(api, "/api/v1/map/{session}/viewport", h.SetViewport, tags)
	huma.Post(api, "/api/v1/map/{session}/layers/{name}/toggle", h.ToggleLayer, tags)
}

func (h *Handler) session(id string) (*session.Session, error) {
	s, ok := h.sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return s, nil
}

// push streams the panels and the layer stack for st.
func (h *Handler) push(sse humastar.SSE, id string, st session.State) {
	stack, err := render.SafeBuild(st, h.catalog, h.opts)
	if err != nil {
		sse.Error(err.Error())
		return
	}
	v := View{Base: Base(id), Stack: stack}

	sse.Patch(h.Render("stats", v), "#stats")
	sse.Patch(h.Render("toggles", v), "#toggles")
	sse.Patch(h.Render("popup", v), "#popup")
	sse.Patch(h.Render("banner", v), "#banner")
	sse.Signals(map[string]any{
		"loading": st.Loading,
		"mode":    stack.Mode,
		"error":   st.Error,
	})
	sse.DispatchCustomEvent(StackEvent, stack)
}

// apply dispatches a and streams the resulting state. Rejected actions
// still stream the unchanged state with an error signal.
func (h *Handler) apply(id string, a session.Action) (*huma.StreamResponse, error) {
	s, err := h.session(id)
	if err != nil {
		return nil, err
	}
	st, err := s.Dispatch(a)
	return h.Stream(func(sse humastar.SSE) {
		h.push(sse, id, st)
		if err != nil {
			sse.Error(err.Error())
		}
	}), nil
}

func (h *Handler) Load(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.push(sse, s.ID, s.State())
		st, err := s.Load(ctx)
		if session.IsStale(err) {
			return
		}
		h.push(sse, s.ID, st)
	}), nil
}

func (h *Handler) Retry(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	return h.Load(ctx, input)
}

// Events streams re-renders whenever the session changes elsewhere, such as
// from the map widget's own requests or another tab.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	if h.bus == nil {
		return nil, huma.Error503ServiceUnavailable("events not available")
	}
	return h.Stream(func(sse humastar.SSE) {
		ch, stop := h.bus.SubscribeID(s.ID)
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				h.push(sse, s.ID, s.State())
			}
		}
	}), nil
}

func (h *Handler) Click(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := (&humastar.SignalsInput{RawBody: input.RawBody}).MustParse()
	if err != nil {
		return nil, err
	}
	lng, okLng := signals.Number("lng")
	lat, okLat := signals.Number("lat")
	if !okLng || !okLat {
		return nil, huma.Error400BadRequest("lng and lat must be numbers")
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("coordinate out of range: %v, %v", lng, lat))
	}
	return h.apply(input.Session, session.Click{Lng: lng, Lat: lat})
}

func (h *Handler) ClosePopup(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	return h.apply(input.Session, session.ClosePopup{})
}

func (h *Handler) CreateBuffer(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	s, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	st, err := s.CreateBuffer()
	return h.Stream(func(sse humastar.SSE) {
		h.push(sse, s.ID, st)
		if err != nil {
			sse.Error(err.Error())
		}
	}), nil
}

func (h *Handler) CreateIsochrone(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := (&humastar.SignalsInput{RawBody: input.RawBody}).MustParse()
	if err != nil {
		return nil, err
	}
	s, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}

	opts := spatial.IsochroneOptions{
		Profile:  signals.String("profile"),
		Method:   signals.String("method"),
		Interval: signals.Int("interval"),
	}
	st, err := s.CreateIsochrone(ctx, opts)
	return h.Stream(func(sse humastar.SSE) {
		h.push(sse, s.ID, st)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, spatial.ErrIsochroneDisabled) {
				msg = "Isochrones are not available: no access token configured"
			}
			sse.Error(msg)
		}
	}), nil
}

func (h *Handler) Fit(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	return h.apply(input.Session, session.FitToData{})
}

func (h *Handler) SetViewport(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := (&humastar.SignalsInput{RawBody: input.RawBody}).MustParse()
	if err != nil {
		return nil, err
	}
	lat, okLat := signals.Number("latitude")
	lng, okLng := signals.Number("longitude")
	zoom, okZoom := signals.Number("zoom")
	if !okLat || !okLng || !okZoom {
		return nil, huma.Error400BadRequest("latitude, longitude and zoom must be numbers")
	}
	v := viewport.Viewport{Latitude: lat, Longitude: lng, Zoom: zoom}
	if v.Latitude < -90 || v.Latitude > 90 || v.Zoom < 0 || v.Zoom > viewport.MaxZoom {
		return nil, huma.Error422UnprocessableEntity("viewport out of range")
	}
	return h.apply(input.Session, session.SetViewport{Viewport: v})
}

func (h *Handler) ToggleLayer(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	if _, ok := h.catalog.Lookup(input.Name); !ok {
		return nil, huma.Error404NotFound("unknown dataset " + input.Name)
	}
	return h.apply(input.Session, session.ToggleLayer{Name: input.Name})
}

// PageHandler serves GET /map: it starts a session and renders the page
// that opens the session's load and event streams.
func (h *Handler) PageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := h.sessions.Create()
		base := Base(s.ID)

		stack := render.Build(s.State(), h.catalog, h.opts)
		page, err := humastar.NewPageData(map[string]any{
			"loading":  true,
			"error":    "",
			"mode":     stack.Mode,
			"profile":  h.defaults.Profile,
			"method":   h.defaults.Method,
			"interval": h.defaults.Interval,
		}, base+"/load", base+"/events")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		html, err := h.Renderer.Render("map-page", map[string]any{
			"Page": page,
			"View": View{Base: base, Stack: stack},
		})
		if err != nil {
			slog.Error("rendering map page", "error", err)
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}
}
