package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/sichatas/internal/config"
	"github.com/joeblew999/sichatas/internal/logging"
	"github.com/joeblew999/sichatas/internal/server"
)

// Options defines the CLI flags and env vars for the server.
// Flags: --host, --port, --data-dir, --web-dir, --config-dir
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_WEB_DIR, SERVICE_CONFIG_DIR
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir   string `doc:"Directory holding sources/ and the DuckDB store" default:".data"`
	WebDir    string `doc:"Serve web/ from disk instead of the embedded copy"`
	ConfigDir string `doc:"Directory searched for config.yaml" default:"."`
}

func newServer(opts *Options) (*server.Server, *config.Config) {
	_ = godotenv.Load() // .env is optional

	settings, err := config.Load(opts.ConfigDir, "./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(settings.Log.Level, settings.Log.Format)

	srv, err := server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		DataDir:  opts.DataDir,
		WebDir:   opts.WebDir,
		Settings: settings,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
	return srv, settings
}

// closeServer releases the store and background workers. Subcommands call it
// before os.Exit, which skips deferred calls.
func closeServer(srv *server.Server) {
	if err := srv.Close(); err != nil {
		slog.Warn("closing server", "error", err)
	}
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var httpServer *http.Server

		hooks.OnStart(func() {
			var settings *config.Config
			srv, settings = newServer(opts)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("SICHATAS map server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Basemap: key set: %t, isochrones: %t\n", settings.Map.Key != "", settings.Map.Token != "")
			fmt.Println()
			fmt.Printf("  Map:     %s/map\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
			closeServer(srv)
		})
	})

	cli.Root().Use = "sichatas"
	cli.Root().Short = "Health facility map with buffers and isochrones"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := newServer(opts)
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			closeServer(srv)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// fetch subcommand: load every dataset once and print statistics
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every catalog dataset from the backend and print feature counts",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := newServer(opts)
			failed := fetchAll(cmd.Context(), srv.Catalog(), srv.Fetcher(), os.Stdout)
			closeServer(srv)
			if failed > 0 {
				fmt.Fprintf(os.Stderr, "%d of %d datasets failed\n", failed, len(srv.Catalog().Datasets))
				os.Exit(1)
			}
		}),
	}
	cli.Root().AddCommand(fetchCmd)

	cli.Run()
}
