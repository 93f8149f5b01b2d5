// Package main is the roomfinder CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/roomfinder/internal/catalog"
	"github.com/hyperjump/roomfinder/internal/cli"
	"github.com/hyperjump/roomfinder/internal/config"
	"github.com/hyperjump/roomfinder/internal/embedding"
	"github.com/hyperjump/roomfinder/internal/endpoint"
	"github.com/hyperjump/roomfinder/internal/errs"
	"github.com/hyperjump/roomfinder/internal/indexer"
	"github.com/hyperjump/roomfinder/internal/models"
	"github.com/hyperjump/roomfinder/internal/search"
	"github.com/hyperjump/roomfinder/internal/server"
	"github.com/hyperjump/roomfinder/internal/storage"
	"github.com/hyperjump/roomfinder/internal/tui"
	"github.com/hyperjump/roomfinder/internal/watcher"
	"github.com/hyperjump/roomfinder/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/roomfinder/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory wins so "roomfinder server" from a project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "server":
		runServer(args)
	case "search":
		runSearch(args)
	case "browse":
		runBrowse(args)
	case "import":
		runImport(args)
	case "export":
		runExport(args)
	case "reindex":
		runReindex(args)
	case "embed":
		runEmbed(args)
	case "status":
		runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("roomfinder version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// setup loads the config and builds a logger and the local components. serve adds the
// checks that only apply when the HTTP server runs.
func setup(configPath string, debugFlag, serve bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	if serve {
		if err := cfg.ValidateServer(); err != nil {
			fatalf("Invalid server config: %v", err)
		}
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("backend", cfg.Embedding.Backend))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Embedding.WarmOnStart && components.Model != nil {
		go func() {
			if err := components.Model.Warm(ctx); err != nil {
				logger.Warn("model warm-up failed; will retry on first request", zap.Error(err))
			}
		}()
	}

	if cfg.Catalog.Path != "" {
		stats, err := components.Importer.Import(ctx, cfg.Catalog.Path, false)
		if stats != nil {
			logger.Info("catalog imported",
				zap.String("path", cfg.Catalog.Path),
				zap.Int("imported", stats.Imported),
				zap.Int("failed", stats.Failed))
		}
		if err != nil {
			logger.Warn("catalog import incomplete", zap.Error(err))
		}
		if cfg.Catalog.Watch {
			var opts []watcher.WatcherOption
			if cfg.Debug || *debug {
				opts = append(opts, watcher.WithLogger(logger))
			}
			w, err := components.Importer.Watch(ctx, cfg.Catalog.Path, opts...)
			if err != nil {
				logger.Warn("catalog watch failed", zap.String("path", cfg.Catalog.Path), zap.Error(err))
			} else {
				defer w.Stop()
			}
		}
	}

	srv := server.NewServer(components.Gateway, components.Indexer, components.Storage, cfg, logger, components.serverOptions(cfg, logger)...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: roomfinder search [flags] [query]\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query lists every room.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  roomfinder search room with a whiteboard for 8 people
  roomfinder search --limit 3 --min-score 0.3 "quiet room with video conferencing"
  roomfinder search --output json projector
  roomfinder search --server "" boardroom       # search the local database directly
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after the positional arguments to the front.
// The flag package stops at the first non-flag argument, so "search projector -limit 3"
// would otherwise leave -limit unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// minScoreFlag is a float flag that remembers whether it was set.
type minScoreFlag struct {
	value *float64
}

func (f *minScoreFlag) String() string {
	if f.value == nil {
		return ""
	}
	return fmt.Sprintf("%g", *f.value)
}

func (f *minScoreFlag) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid score %q", s)
	}
	f.value = &v
	return nil
}

// searcher returns the HTTP client when serverURL is set, otherwise the local gateway.
func searcher(serverURL, configPath string) (tui.Searcher, func()) {
	if serverURL != "" {
		return cli.NewClient(serverURL, 0), func() {}
	}
	_, logger, components := setup(configPath, false, false)
	return components.Gateway, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL ("" searches the local database)`)
	limit := fs.Int("limit", 10, "maximum number of results (0 = all)")
	var minScore minScoreFlag
	fs.Var(&minScore, "min-score", "drop results scoring below this (-1..1)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(args))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	query := &models.SearchQuery{
		Query:    buildSearchQuery(fs.Args()),
		Limit:    *limit,
		MinScore: minScore.value,
	}

	s, done := searcher(*serverURL, *configPath)
	defer done()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	response, err := s.Search(ctx, query)
	if err != nil {
		if errors.Is(err, errs.ErrNoRoomsIndexed) {
			fatalf("No rooms are indexed yet. Import a catalog with: roomfinder import <file>")
		}
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runBrowse(args []string) {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL ("" browses the local database)`)
	limit := fs.Int("limit", 20, "maximum number of rooms shown")
	_ = fs.Parse(args)

	s, done := searcher(*serverURL, *configPath)
	defer done()
	if err := tui.Run(s, *limit); err != nil {
		fatalf("Browser failed: %v", err)
	}
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	prune := fs.Bool("prune", false, "delete stored rooms that are not in the catalog")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: roomfinder import [--prune] <catalog.yaml|catalog.xlsx>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Importer.Import(context.Background(), fs.Arg(0), *prune)
	if stats != nil {
		if format == cli.OutputJSON {
			_ = json.NewEncoder(os.Stdout).Encode(stats)
		} else {
			fmt.Printf("Imported %d room(s), %d failed, %d pruned\n", stats.Imported, stats.Failed, stats.Pruned)
		}
	}
	if err != nil {
		fatalf("Import failed: %v", err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 {
		fmt.Println("Usage: roomfinder export <catalog.yaml|catalog.xlsx>")
		os.Exit(1)
	}
	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	rooms, err := components.Storage.ListRooms(context.Background())
	if err != nil {
		fatalf("Export failed: %v", err)
	}
	if err := catalog.SaveFile(fs.Arg(0), rooms); err != nil {
		fatalf("Export failed: %v", err)
	}
	fmt.Printf("Exported %d room(s) to %s\n", len(rooms), fs.Arg(0))
}

func runReindex(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-embed every room, not only stale ones")
	_ = fs.Parse(args)

	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Indexer.Reindex(context.Background(), *force)
	if err != nil {
		fatalf("Reindex failed: %v", err)
	}
	fmt.Printf("Embedded %d room(s), skipped %d\n", stats.Embedded, stats.Skipped)
}

func runEmbed(args []string) {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(reorderArgs(args))

	_, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	vec, err := components.Embedder.Embed(ctx, buildSearchQuery(fs.Args()))
	if err != nil {
		fatalf("Embed failed: %v", err)
	}
	_ = json.NewEncoder(os.Stdout).Encode(models.EmbedResponse{Data: vec, Length: len(vec)})
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL ("" reads the local database)`)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	var st *cli.Status
	if *serverURL != "" {
		st, err = cli.NewClient(*serverURL, 0).Status(context.Background())
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, logger, components := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		st, err = localStatus(context.Background(), cfg, components)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.Status, error) {
	rooms, err := c.Storage.CountRooms(ctx)
	if err != nil {
		return nil, err
	}
	indexed, err := c.Storage.CountIndexedRooms(ctx)
	if err != nil {
		return nil, err
	}
	st := &cli.Status{
		Rooms:           rooms,
		IndexedRooms:    indexed,
		EndpointEnabled: cfg.Endpoint.EnabledOrDefault(),
		Model: map[string]interface{}{
			"backend":    cfg.Embedding.Backend,
			"version":    cfg.Embedding.ModelVersion,
			"dimensions": cfg.Embedding.Dimensions,
		},
		DatabasePath: cfg.Storage.DatabasePath,
	}
	if c.Model != nil {
		st.Model["state"] = c.Model.State().String()
	}
	if n, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath); err == nil {
		st.DiskUsageBytes = n
	}
	return st, nil
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	// Model is the in-process model service; nil for the remote backend.
	Model    *embedding.Service
	Gateway  *search.Gateway
	Indexer  *indexer.Indexer
	Importer *catalog.Importer
}

// Close releases the embedder and the database.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func (c *Components) serverOptions(cfg *config.Config, logger *zap.Logger) []server.Option {
	var opts []server.Option
	if c.Model != nil {
		opts = append(opts, server.WithModelStatus(c.Model))
	}
	if cfg.Endpoint.EnabledOrDefault() {
		opts = append(opts, server.WithEndpoint(endpoint.New(c.Embedder, cfg.Endpoint.Credential,
			endpoint.WithRateLimit(cfg.Endpoint.RateLimit, cfg.Endpoint.Burst),
			endpoint.WithMaxBodyBytes(cfg.Endpoint.MaxBodyBytes),
			endpoint.WithLogger(logger),
		)))
	}
	return opts
}

// newEmbedder builds the embedder for the configured backend. The returned service is
// nil for the remote backend, which has no local model lifecycle.
func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, *embedding.Service, error) {
	var load embedding.Loader
	switch cfg.Embedding.Backend {
	case config.BackendRemote:
		remote, err := embedding.NewRemoteEmbedder(embedding.RemoteOptions{
			BaseURL:    cfg.Remote.BaseURL,
			Credential: cfg.Remote.Credential,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Remote.Timeout,
			MaxRetries: cfg.Remote.MaxRetries,
			Backoff:    cfg.Remote.Backoff,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return remote, nil, nil
	case config.BackendMock:
		load = embedding.MockLoader(embedding.NewMockModel(cfg.Embedding.Dimensions))
	default:
		load = embedding.NewONNXLoader(embedding.ONNXOptions{
			ModelPath:   cfg.Embedding.ModelPath,
			Dimensions:  cfg.Embedding.Dimensions,
			MaxTokens:   cfg.Embedding.MaxTokens,
			LibraryPath: cfg.Embedding.RuntimeLibrary,
		})
	}
	svc := embedding.NewService(load, cfg.Embedding.Dimensions,
		embedding.WithLogger(logger),
		embedding.WithLoadTimeout(cfg.Embedding.LoadTimeout),
	)
	return svc, svc, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	embedder, model, err := newEmbedder(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	gateway := search.NewGateway(store, embedder, search.Options{
		MinScore:     cfg.Search.MinScore,
		TieTolerance: cfg.Search.TieTolerance,
		MaxLimit:     cfg.Search.MaxLimit,
		ModelVersion: cfg.Embedding.ModelVersion,
	}, logger)
	idx := indexer.NewIndexer(store, embedder, cfg.Embedding.ModelVersion, indexer.WithLogger(logger))
	return &Components{
		Storage:  store,
		Embedder: embedder,
		Model:    model,
		Gateway:  gateway,
		Indexer:  idx,
		Importer: catalog.NewImporter(idx, store, logger),
	}, nil
}

func printUsage() {
	fmt.Println(`roomfinder - Semantic conference room search

Usage:
  roomfinder server [flags]              Start the HTTP server (API + embedding endpoint)
  roomfinder search [flags] [query]      Search rooms by description
  roomfinder browse [flags]              Interactive room browser
  roomfinder import [flags] <file>       Import a room catalog (.yaml or .xlsx)
  roomfinder export [flags] <file>       Export stored rooms to a catalog file
  roomfinder reindex [flags]             Re-embed rooms with stale or missing vectors
  roomfinder embed [flags] <text>        Print the embedding of a text
  roomfinder status [flags]              Show room counts and model state
  roomfinder version                     Show version
  roomfinder help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/roomfinder/config.yaml)
  --server string    Server URL for search, browse and status (default: http://localhost:8080).
                     Use --server "" to work on the local database directly.

Search Flags:
  --limit int        Maximum number of results (default: 10, 0 = all)
  --min-score float  Drop results scoring below this value
  --output string    Output format: text or json (default: text)

Import Flags:
  --prune            Delete stored rooms missing from the catalog

Reindex Flags:
  --force            Re-embed every room

Environment:
  ROOMFINDER_SERVICE_URL   Base URL of the remote embedding service
  ROOMFINDER_SERVICE_KEY   Shared bearer credential for the embedding endpoint

Examples:
  roomfinder server
  roomfinder import rooms.xlsx
  roomfinder search "room for 10 people with a projector"
  roomfinder search --output json whiteboard
  roomfinder browse
  roomfinder status --output json`)
}
