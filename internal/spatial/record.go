package spatial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Record is the body posted to /api/spatial.
type Record struct {
	Type        string                     `json:"type"`
	Geometry    *geojson.FeatureCollection `json:"geometry"`
	Coordinates [2]float64                 `json:"coordinates"`
	Metadata    Metadata                   `json:"metadata"`
}

// Metadata describes how the artifact was derived.
type Metadata struct {
	Radius float64 `json:"radius"`
	Units  string  `json:"units"`
}

// Persister posts records to {baseURL}/api/spatial. Only the response status
// is checked.
type Persister struct {
	url    string
	client *http.Client
}

// NewPersister creates a persister. A nil client gets a 10 second timeout.
func NewPersister(baseURL string, client *http.Client) *Persister {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Persister{
		url:    strings.TrimRight(baseURL, "/") + "/api/spatial",
		client: client,
	}
}

// Save posts one record.
func (p *Persister) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", rec.Type, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("saving %s: %w", rec.Type, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to save %s: %s", rec.Type, resp.Status)
	}
	return nil
}
