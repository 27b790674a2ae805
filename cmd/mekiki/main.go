// Package main is the Mekiki CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/mekiki/internal/catalog"
	"github.com/hyperjump/mekiki/internal/cli"
	"github.com/hyperjump/mekiki/internal/config"
	"github.com/hyperjump/mekiki/internal/embedding"
	"github.com/hyperjump/mekiki/internal/index"
	"github.com/hyperjump/mekiki/internal/ingest"
	"github.com/hyperjump/mekiki/internal/keyword"
	"github.com/hyperjump/mekiki/internal/models"
	"github.com/hyperjump/mekiki/internal/search"
	"github.com/hyperjump/mekiki/internal/server"
	"github.com/hyperjump/mekiki/internal/storage"
	"github.com/hyperjump/mekiki/internal/vector"
	"github.com/hyperjump/mekiki/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mekiki/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "mekiki server" from the project dir uses the project's
// config (including debug). Returns the config and the path actually loaded.
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
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "add":
		runAdd()
	case "import":
		runImport()
	case "snapshot":
		runSnapshot()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mekiki version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (feed ingestion, per-product inserts, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ing := components.Ingester
	var feedWatcher *ingest.Watcher
	if cfg.Ingest.FeedDir != "" {
		watchOpts := []ingest.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, ingest.WithWatchLogger(logger))
		}
		feedWatcher = ingest.NewWatcher(
			cfg.Ingest.FeedDir,
			cfg.Ingest.Extensions,
			func(path string) {
				n, err := ing.IngestFile(context.Background(), path)
				if err != nil {
					logger.Warn("feed ingest failed", zap.String("path", path), zap.Error(err))
					return
				}
				logger.Info("feed ingested", zap.String("path", path), zap.Int("products", n))
			},
			watchOpts...,
		)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := feedWatcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start feed watcher", zap.Error(err))
		}
		feedWatcher.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Ingester,
		components.Manager,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if feedWatcher != nil {
		feedWatcher.Stop()
	}
	if cfg.Storage.SnapshotDir != "" {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := storage.Save(saveCtx, components.Manager, cfg.Storage.SnapshotDir); err != nil {
			logger.Warn("snapshot save failed", zap.String("dir", cfg.Storage.SnapshotDir), zap.Error(err))
		}
		saveCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "mekiki search \"query\"
// -limit 5" would otherwise leave -limit unparsed.
func searchArgsReorder(args []string) []string {
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

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: mekiki search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Modes:
  text     Rank products by text similarity to the query (default).
  image    Rank products by visual similarity to --image.
  hybrid   Blend text and image similarity; tune with --text-weight.
  keyword  Exact-term match on titles and descriptions.

Examples:
  mekiki search red running shoes
  mekiki search --mode hybrid --image photo.jpg red shoes
  mekiki search --mode image --image photo.jpg
  mekiki search --mode keyword ceramic mug
  mekiki search --limit 20 --output json leather bag
`)
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open indices directly when server is not running)")
	mode := fs.String("mode", "text", "search mode: text, image, hybrid, or keyword")
	imagePath := fs.String("image", "", "query image path (image and hybrid modes)")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	textWeight := fs.Float64("text-weight", -1, "hybrid text weight in [0,1] (-1 = server default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" && *imagePath == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "compact":
		format = cli.OutputCompact
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text, compact, or json\n", *outputFormat)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Mode:      models.SearchMode(*mode),
		Query:     queryStr,
		ImagePath: *imagePath,
		Limit:     *limit,
	}
	if *textWeight >= 0 {
		w := *textWeight
		searchQuery.TextWeight = &w
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids Bleve lock
		// conflicts and reuses the warm indices).
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct index access (when the server is not running).
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Engine.Search(context.Background(), searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	productID := fs.String("id", "", "product id (generated when empty)")
	title := fs.String("title", "", "product title")
	description := fs.String("description", "", "product description")
	image := fs.String("image", "", "product image path (required)")
	_ = fs.Parse(os.Args[2:])

	if *image == "" {
		fmt.Println("Usage: mekiki add --image <path> [--id ID] [--title TITLE] [--description TEXT]")
		os.Exit(1)
	}
	input := models.ProductInput{
		ProductID:   *productID,
		Title:       *title,
		Description: *description,
		ImagePath:   *image,
	}
	body, _ := json.Marshal(input)
	resp, err := http.Post(*serverURL+"/api/v1/products", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Slot      int    `json:"slot"`
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Printf("Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Product indexed: %s (slot %d)\n", out.ProductID, out.Slot)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mekiki import [flags] <feed-file>")
		fmt.Println("Feed files are .jsonl (one product per line) or .xlsx (header row + products).")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	n, err := components.Ingester.IngestFile(context.Background(), path)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.SnapshotDir != "" {
		if err := storage.Save(context.Background(), components.Manager, cfg.Storage.SnapshotDir); err != nil {
			fmt.Printf("Snapshot save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Imported %d product(s) from %s\n", n, path)
}

func runSnapshot() {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/snapshot", "application/json", nil)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Printf("Snapshot failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("Snapshot saved")
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Products   int   `json:"products"`
	ImageCount int   `json:"image_count"`
	TextCount  int   `json:"text_count"`
	DiskBytes  int64 `json:"disk_bytes"`
	Config     struct {
		EmbeddingKind       string  `json:"embedding_kind"`
		EmbeddingDimensions int     `json:"embedding_dimensions"`
		DefaultTextWeight   float64 `json:"default_text_weight"`
	} `json:"config"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open indices directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		status.Products = components.Manager.Size()
		status.ImageCount = components.Manager.ImageCount()
		status.TextCount = components.Manager.TextCount()
		status.Config.EmbeddingKind = cfg.Embedding.Kind
		status.Config.EmbeddingDimensions = cfg.Embedding.Dimensions
		status.Config.DefaultTextWeight = cfg.Search.DefaultTextWeight
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.SnapshotDir, cfg.Storage.KeywordIndexPath); err == nil {
			status.DiskBytes = diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("products:        %d   # products in the catalog\n", status.Products)
		fmt.Printf("image_vectors:   %d   # vectors in the image index\n", status.ImageCount)
		fmt.Printf("text_vectors:    %d   # vectors in the text index\n", status.TextCount)
		fmt.Printf("disk_bytes:      %d   # snapshots + keyword index on disk\n", status.DiskBytes)
		fmt.Println()
		fmt.Println("# configuration")
		fmt.Printf("embedding_kind:  %s\n", status.Config.EmbeddingKind)
		if status.Config.EmbeddingDimensions > 0 {
			fmt.Printf("embedding_dims:  %d\n", status.Config.EmbeddingDimensions)
		}
		fmt.Printf("text_weight:     %.2f\n", status.Config.DefaultTextWeight)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Embedder     embedding.Embedder
	Manager      *index.Manager
	KeywordIndex keyword.Index
	Engine       *search.Engine
	Ingester     *ingest.Ingester
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	var embedder embedding.Embedder
	if cfg.Embedding.Kind == "mock" {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.TextModelPath,
			cfg.Embedding.ImageModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			if logger != nil {
				logger.Warn("onnx embedder unavailable, using mock embeddings", zap.Error(err))
			}
			embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = onnxEmbedder
		}
	}

	imageIndex, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image index: %w", err)
	}
	textIndex, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize text index: %w", err)
	}
	manager, err := index.NewManager(imageIndex, textIndex, catalog.NewStore())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index manager: %w", err)
	}

	if cfg.Storage.SnapshotDir != "" {
		loaded, err := storage.Load(context.Background(), manager, cfg.Storage.SnapshotDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if logger != nil {
			if loaded {
				logger.Info("snapshot loaded",
					zap.String("dir", cfg.Storage.SnapshotDir),
					zap.Int("products", manager.Size()))
			} else {
				logger.Info("no snapshot found, starting empty",
					zap.String("dir", cfg.Storage.SnapshotDir))
			}
		}
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath,
		keyword.SearchOptions{TitleBoost: cfg.Search.TitleBoost})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	engine := search.NewEngine(manager, embedder, keywordIndex, &cfg.Search)

	ingOpts := []ingest.IngesterOption{}
	if debug && logger != nil {
		ingOpts = append(ingOpts, ingest.WithLogger(logger))
	}
	ing := ingest.NewIngester(manager, embedder, keywordIndex, ingOpts...)

	return &Components{
		Embedder:     embedder,
		Manager:      manager,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Ingester:     ing,
	}, nil
}

func printUsage() {
	fmt.Println(`mekiki - Semantic product search engine

Usage:
  mekiki server [flags]           Start the HTTP server
  mekiki search [flags] <query>   Search products
  mekiki add [flags]              Add a single product
  mekiki import [flags] <feed>    Import a product feed file
  mekiki snapshot [flags]         Ask the server to save a snapshot
  mekiki status [flags]           Show engine/index status
  mekiki version                  Show version
  mekiki help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mekiki/config.yaml)
  --debug            Enable debug logging (feed ingestion, per-product inserts, etc.)

Search Flags:
  --config string       Config file path (for direct mode)
  --server string       Server URL (default: http://localhost:8080). Use empty (--server "") to open indices directly.
  --mode string         Search mode: text, image, hybrid, or keyword (default: text)
  --image string        Query image path (image and hybrid modes)
  --limit int           Number of results (default from server config)
  --text-weight float   Hybrid text weight in [0,1] (default from server config)
  --output string       Output format: text, compact, or json (default: text)

Add Flags:
  --server string       Server URL (default: http://localhost:8080)
  --id string           Product id (generated when empty)
  --title string        Product title
  --description string  Product description
  --image string        Product image path (required)

Import Flags:
  --config string    Config file path

Examples:
  mekiki server
  mekiki search red running shoes
  mekiki search --mode hybrid --image photo.jpg red shoes
  mekiki search --output json "ceramic mug"   # structured JSON for other apps
  mekiki add --image images/p-1.jpg --title "Red running shoes"
  mekiki import feeds/products.jsonl
  mekiki snapshot
  mekiki status --output json`)
}
