package geodata

import (
	"fmt"
	"net/http"
)

// FetchError reports a non-2xx response from a dataset endpoint.
type FetchError struct {
	Dataset    string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %d %s", e.Dataset, e.StatusCode, http.StatusText(e.StatusCode))
}

// FormatError reports a payload that is neither a FeatureCollection nor a
// bare array of features.
type FormatError struct {
	Dataset string
	Detail  string
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid %s GeoJSON format received from API", e.Dataset)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
