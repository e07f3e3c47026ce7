// Package humastar bridges Huma operations and Datastar server-sent events.
//
// A handler embeds [Handler], returns h.Stream from its operation and uses
// the [SSE] helper to patch fragments and signals. Request signals arrive as
// the raw JSON body and are read through [Signals]. [Links] and [PageBody]
// add RFC 8288 Link headers to the JSON side of the API.
package humastar

import (
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/sichatas/internal/templates"
)

// Handler is an embeddable base for Huma handlers that answer with Datastar
// events.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream returns a StreamResponse that calls fn with a ready SSE helper.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// Render renders a fragment. Failures are logged and yield "", so one broken
// panel does not abort the rest of the stream.
func (h *Handler) Render(name string, data any) string {
	s, err := h.Renderer.Render(name, data)
	if err != nil {
		slog.Error("template render failed", "template", name, "error", err)
		return ""
	}
	return s
}

// SSE wraps the Datastar generator for one response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a Datastar stream on a humago context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML of selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
	)
}

// Error sets the error signal.
func (s SSE) Error(msg string) {
	s.Signals(map[string]any{"error": msg})
}

// Signals patches the given signals.
func (s SSE) Signals(signals map[string]any) {
	if err := s.MarshalAndPatchSignals(signals); err != nil {
		slog.Warn("patching signals", "error", err)
	}
}
