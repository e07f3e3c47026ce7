package spatial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/metrics"
)

// ErrIsochroneDisabled is returned when no access token is configured.
var ErrIsochroneDisabled = errors.New("isochrone service not configured")

var profiles = map[string]bool{
	"driving":         true,
	"driving-traffic": true,
	"walking":         true,
	"cycling":         true,
}

// IsochroneOptions parameterizes a request.
type IsochroneOptions struct {
	Profile  string `json:"profile" enum:"driving,driving-traffic,walking,cycling" doc:"Routing profile"`
	Method   string `json:"method" enum:"contours_minutes,contours_meters" doc:"Contour kind"`
	Interval int    `json:"interval" minimum:"1" doc:"Contour value in minutes or meters"`
}

// Validate checks the options.
func (o IsochroneOptions) Validate() error {
	if !profiles[o.Profile] {
		return fmt.Errorf("unknown isochrone profile %q", o.Profile)
	}
	if o.Method != "contours_minutes" && o.Method != "contours_meters" {
		return fmt.Errorf("unknown isochrone method %q", o.Method)
	}
	if o.Interval <= 0 {
		return fmt.Errorf("isochrone interval must be positive, got %d", o.Interval)
	}
	return nil
}

// IsochroneArtifact is a set of travel-time polygons around a point.
type IsochroneArtifact struct {
	Collection *geojson.FeatureCollection
	Center     orb.Point
	Options    IsochroneOptions
}

// IsochroneConfig configures an IsochroneClient.
type IsochroneConfig struct {
	BaseURL  string
	Token    string
	Colors   string
	CacheTTL time.Duration
	Cache    Cache
	Client   *http.Client
}

// IsochroneClient requests isochrones from a Mapbox-compatible service.
type IsochroneClient struct {
	baseURL string
	token   string
	colors  string
	ttl     time.Duration
	cache   Cache
	client  *http.Client
}

// NewIsochroneClient creates a client. Cache may be nil.
func NewIsochroneClient(cfg IsochroneConfig) *IsochroneClient {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &IsochroneClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		colors:  cfg.Colors,
		ttl:     cfg.CacheTTL,
		cache:   cfg.Cache,
		client:  client,
	}
}

// Enabled reports whether an access token is configured.
func (c *IsochroneClient) Enabled() bool {
	return c != nil && c.token != ""
}

// URL builds the request URL for center and opts.
func (c *IsochroneClient) URL(center orb.Point, opts IsochroneOptions) string {
	q := url.Values{}
	q.Set(opts.Method, strconv.Itoa(opts.Interval))
	if c.colors != "" {
		q.Set("contours_colors", c.colors)
	}
	q.Set("polygons", "true")
	q.Set("denoise", "0")
	q.Set("access_token", c.token)

	return fmt.Sprintf("%s/isochrone/v1/mapbox/%s/%s,%s?%s",
		c.baseURL, opts.Profile,
		strconv.FormatFloat(center.Lon(), 'f', -1, 64),
		strconv.FormatFloat(center.Lat(), 'f', -1, 64),
		q.Encode())
}

func cacheKey(center orb.Point, opts IsochroneOptions) string {
	return fmt.Sprintf("isochrone:%s:%s:%d:%.5f:%.5f",
		opts.Profile, opts.Method, opts.Interval, center.Lon(), center.Lat())
}

// Fetch returns the isochrone polygons around center.
func (c *IsochroneClient) Fetch(ctx context.Context, center orb.Point, opts IsochroneOptions) (IsochroneArtifact, error) {
	if !c.Enabled() {
		return IsochroneArtifact{}, ErrIsochroneDisabled
	}
	if err := opts.Validate(); err != nil {
		return IsochroneArtifact{}, err
	}

	key := cacheKey(center, opts)
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			if res, err := geodata.Decode("isochrone", body); err == nil {
				metrics.IsochroneRequests.WithLabelValues("cache").Inc()
				return IsochroneArtifact{Collection: res.Collection, Center: center, Options: opts}, nil
			}
		}
	}

	body, err := c.get(ctx, c.URL(center, opts))
	if err != nil {
		metrics.IsochroneRequests.WithLabelValues("error").Inc()
		return IsochroneArtifact{}, err
	}
	res, err := geodata.Decode("isochrone", body)
	if err != nil {
		metrics.IsochroneRequests.WithLabelValues("error").Inc()
		return IsochroneArtifact{}, err
	}

	metrics.IsochroneRequests.WithLabelValues("remote").Inc()
	if c.cache != nil {
		c.cache.Set(ctx, key, body, c.ttl)
	}
	return IsochroneArtifact{Collection: res.Collection, Center: center, Options: opts}, nil
}

func (c *IsochroneClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building isochrone request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting isochrone: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &geodata.FetchError{Dataset: "isochrone", StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("reading isochrone: %w", err)
	}
	return body, nil
}
