package geodata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joeblew999/sichatas/internal/metrics"
)

// maxBodyBytes bounds a single dataset payload.
const maxBodyBytes = 256 << 20

// Fetcher retrieves datasets from {baseURL}/api/{endpoint}.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// NewFetcher creates a fetcher. A nil client gets a 30 second timeout.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// URL returns the endpoint URL for a dataset.
func (f *Fetcher) URL(ds Dataset) string {
	return f.baseURL + "/api/" + ds.Endpoint
}

// Fetch loads and validates one dataset. It returns *FetchError for non-2xx
// responses and *FormatError for payloads of the wrong shape; transport
// failures are returned wrapped.
func (f *Fetcher) Fetch(ctx context.Context, ds Dataset) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(ds), nil)
	if err != nil {
		return Result{}, fmt.Errorf("building %s request: %w", ds.Name, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.DatasetFetches.WithLabelValues(ds.Name, "transport_error").Inc()
		return Result{}, fmt.Errorf("fetching %s: %w", ds.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.DatasetFetches.WithLabelValues(ds.Name, "fetch_error").Inc()
		return Result{}, &FetchError{Dataset: ds.Name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.DatasetFetches.WithLabelValues(ds.Name, "transport_error").Inc()
		return Result{}, fmt.Errorf("reading %s: %w", ds.Name, err)
	}

	res, err := Decode(ds.Name, body)
	if err != nil {
		metrics.DatasetFetches.WithLabelValues(ds.Name, "format_error").Inc()
		return Result{}, err
	}

	metrics.DatasetFetches.WithLabelValues(ds.Name, "ok").Inc()
	metrics.FeaturesRetained.WithLabelValues(ds.Name).Set(float64(res.Count))
	metrics.FeaturesDropped.WithLabelValues(ds.Name).Add(float64(res.Dropped()))
	slog.Debug("dataset fetched",
		"dataset", ds.Name, "valid", res.Count, "total", res.Total)

	return res, nil
}
