// pagedata.go: page template data for Datastar pages.
//
// PageData carries the data-signals initializer and the SSE endpoints a
// page opens on load, so templates never hardcode signal JSON or URLs.
package humastar

import (
	"encoding/json"
	"fmt"
)

// PageData holds everything a page template needs to boot Datastar.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// SSEInits holds SSE endpoint URLs opened when the page loads, one
	// element each so Datastar keeps every stream open.
	SSEInits []string
}

// NewPageData encodes the initial signals.
func NewPageData(signals map[string]any, inits ...string) (PageData, error) {
	b, err := json.Marshal(signals)
	if err != nil {
		return PageData{}, fmt.Errorf("encoding page signals: %w", err)
	}
	return PageData{Signals: string(b), SSEInits: inits}, nil
}
