package api

import "github.com/joeblew999/sichatas/internal/humastar"

// AddPageLinks points API entry points at routes outside the OpenAPI
// document, which Links.Derive cannot discover.
func AddPageLinks(l *humastar.Links) {
	l.Add("/health", "/map", "app")
	l.Add("/health", "/metrics", "metrics")
	l.Add("/api/v1/info", "/health", "health")
	l.Add("/api/v1/info", "/map", "app")
	l.Add("/api/v1/datasets", "/map", "app")
}
