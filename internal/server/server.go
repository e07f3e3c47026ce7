// Package server wires the services, the Huma API and the map page into one
// http.Handler.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/sichatas/internal/api"
	"github.com/joeblew999/sichatas/internal/api/mapview"
	"github.com/joeblew999/sichatas/internal/config"
	"github.com/joeblew999/sichatas/internal/geodata"
	"github.com/joeblew999/sichatas/internal/humastar"
	"github.com/joeblew999/sichatas/internal/metrics"
	"github.com/joeblew999/sichatas/internal/render"
	"github.com/joeblew999/sichatas/internal/service"
	"github.com/joeblew999/sichatas/internal/session"
	"github.com/joeblew999/sichatas/internal/spatial"
	"github.com/joeblew999/sichatas/internal/store"
	"github.com/joeblew999/sichatas/internal/tasks"
	"github.com/joeblew999/sichatas/internal/templates"
	"github.com/joeblew999/sichatas/web"
)

const (
	sessionTTL     = 2 * time.Hour
	sweepInterval  = 5 * time.Minute
	persistTimeout = 10 * time.Second
	isochroneCache = 64 << 20
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Serve templates and static files from disk instead of the embedded copy.

	Settings *config.Config
}

// BaseURL is the address the service reaches itself on.
func (c Config) BaseURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", host, c.Port)
}

// Server is the SICHATAS HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	store    *store.Store
	queue    *tasks.Queue
	sessions *session.Manager
	cache    *spatial.MemoryCache
	fetcher  *geodata.Fetcher
	catalog  geodata.Catalog

	stop chan struct{}
}

// New creates a server. The artifact store is optional: when DuckDB cannot
// be opened the spatial routes answer 503 and everything else keeps working.
func New(cfg Config) (*Server, error) {
	if cfg.Settings == nil {
		settings, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg.Settings = settings
	}
	settings := cfg.Settings

	catalog, err := geodata.LoadCatalog(settings.Catalog.File)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("SICHATAS API", "1.0.0")
	humaConfig.Info.Description = "Health facility map: GeoJSON datasets, spatial artifacts and the map page."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL(), Description: "Local server"},
	}
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	links := humastar.NewLinks()
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())
	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		catalog: catalog,
		stop:    make(chan struct{}),
	}

	st, err := store.Open(store.Config{DataDir: cfg.DataDir, DBName: "sichatas"})
	if err != nil {
		slog.Warn("artifact store unavailable", "error", err)
	} else {
		s.store = st
	}

	bus := service.NewEventBus()
	s.queue = tasks.NewQueue(settings.Persist.Workers, settings.Persist.QueueDepth, persistTimeout)

	baseURL := settings.Fetch.BaseURL
	if baseURL == "" {
		baseURL = cfg.BaseURL()
	}
	s.fetcher = geodata.NewFetcher(baseURL, &http.Client{Timeout: settings.Fetch.TimeoutDuration()})

	isochrones, err := s.isochroneClient(settings)
	if err != nil {
		return nil, err
	}

	defaults := spatial.IsochroneOptions{
		Profile:  settings.Isochrone.Profile,
		Method:   settings.Isochrone.Method,
		Interval: settings.Isochrone.Interval,
	}
	s.sessions = session.NewManager(session.Deps{
		Catalog:           catalog,
		Fetcher:           s.fetcher,
		Isochrones:        isochrones,
		Persister:         spatial.NewPersister(baseURL, nil),
		Queue:             s.queue,
		Bus:               bus,
		Concurrency:       settings.Fetch.Concurrency,
		IsochroneDefaults: defaults,
	}, sessionTTL)

	assets, err := s.assets()
	if err != nil {
		return nil, err
	}
	renderer, err := templates.New(assets)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	api.RegisterRoutes(humaAPI, &api.Services{
		Datasets: service.NewDatasetService(cfg.DataDir, catalog),
		Store:    s.store,
		Bus:      bus,
	})
	api.NewInfoHandler(cfg.DataDir, s.store != nil, isochrones.Enabled()).RegisterRoutes(humaAPI)

	mapHandler := mapview.NewHandler(mapview.Config{
		Sessions: s.sessions,
		Catalog:  catalog,
		Render: render.Options{
			MapStyleURL:      settings.Map.StyleWithKey(),
			AccessToken:      settings.Map.Token,
			IsochroneEnabled: isochrones.Enabled(),
		},
		Renderer:          renderer,
		Events:            bus,
		IsochroneDefaults: defaults,
	})
	mapHandler.RegisterRoutes(humaAPI)

	links.Derive(humaAPI)
	api.AddPageLinks(links)

	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	var page http.Handler = mapHandler.PageHandler()
	if cfg.WebDir != "" {
		page = reloading(renderer, assets, page)
	}
	mux.Handle("GET /map", page)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		for _, link := range links.For("/health") {
			w.Header().Add("Link", link)
		}
		http.Redirect(w, r, "/map", http.StatusFound)
	})

	s.handler = metrics.Middleware(mux)

	go s.sweep()
	return s, nil
}

func (s *Server) assets() (fs.FS, error) {
	if s.config.WebDir == "" {
		return web.FS, nil
	}
	if _, err := os.Stat(s.config.WebDir); err != nil {
		return nil, fmt.Errorf("web dir: %w", err)
	}
	slog.Info("serving web assets from disk", "dir", s.config.WebDir)
	return os.DirFS(s.config.WebDir), nil
}

// reloading re-parses the templates from disk before each page load so edits
// under WebDir show up without a restart. A parse error keeps the previous
// templates.
func reloading(r *templates.Renderer, fsys fs.FS, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := r.Reload(fsys); err != nil {
			slog.Warn("template reload failed", "error", err)
		}
		next.ServeHTTP(w, req)
	})
}

// isochroneClient builds the isochrone client with an in-process cache and,
// when configured, a shared Redis tier behind it.
func (s *Server) isochroneClient(settings *config.Config) (*spatial.IsochroneClient, error) {
	mem, err := spatial.NewMemoryCache(isochroneCache)
	if err != nil {
		return nil, fmt.Errorf("isochrone cache: %w", err)
	}
	s.cache = mem
	tiers := spatial.Tiered{mem}

	if settings.Redis.Addr != "" {
		rc := spatial.NewRedisCache(spatial.OpenRedis(settings.Redis.Addr, settings.Redis.Password, settings.Redis.DB))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, isochrone cache is process-local", "addr", settings.Redis.Addr, "error", err)
		} else {
			tiers = append(tiers, rc)
		}
	}

	return spatial.NewIsochroneClient(spatial.IsochroneConfig{
		BaseURL:  settings.Isochrone.BaseURL,
		Token:    settings.Map.Token,
		Colors:   settings.Isochrone.Colors,
		CacheTTL: time.Duration(settings.Isochrone.CacheTTL) * time.Second,
		Cache:    tiers,
	}), nil
}

func (s *Server) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			if n := s.sessions.Sweep(now); n > 0 {
				slog.Debug("expired map sessions", "count", n)
			}
		}
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Catalog returns the dataset catalog in use.
func (s *Server) Catalog() geodata.Catalog {
	return s.catalog
}

// Fetcher returns the dataset client the sessions use.
func (s *Server) Fetcher() *geodata.Fetcher {
	return s.fetcher
}

// Close stops background work and releases the store.
func (s *Server) Close() error {
	close(s.stop)
	s.sessions.Close()
	s.queue.Close()
	s.cache.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
