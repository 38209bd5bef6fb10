package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/spendlens/pkg/api"
	"github.com/hazyhaar/spendlens/pkg/auth"
	"github.com/hazyhaar/spendlens/pkg/chassis"
	"github.com/hazyhaar/spendlens/pkg/feed"
	"github.com/hazyhaar/spendlens/pkg/spend"
)

const version = "1.0.0"

type config struct {
	Addr           string              `yaml:"addr"`
	BaseURL        string              `yaml:"base_url"`
	Password       string              `yaml:"password"`
	DataDir        string              `yaml:"data_dir"`
	RefreshSeconds int                 `yaml:"refresh_seconds"`
	CertFile       string              `yaml:"cert_file"`
	KeyFile        string              `yaml:"key_file"`
	Insecure       bool                `yaml:"insecure"`
	DisableMCP     bool                `yaml:"disable_mcp"`
	Datasets       []spend.DatasetSpec `yaml:"datasets"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "sources":
		cmdSources(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: spendlens <command>\n\nCommands:\n  serve     Start the dashboard API server\n  sources   List catalogued CSV sources\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig(*cfgPath, logger)
	specs := cfg.specs()
	if err := validateSpecs(specs); err != nil {
		logger.Error("invalid dataset config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "error", err)
		os.Exit(1)
	}

	// Catalog: path overrides stored there survive restarts.
	catalog, err := feed.OpenCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		logger.Error("open catalog", "error", err)
		os.Exit(1)
	}
	defer catalog.Close()
	if err := catalog.Seed(specs); err != nil {
		logger.Error("seed catalog", "error", err)
		os.Exit(1)
	}
	specs = applyCatalogPaths(catalog, specs, logger)

	// Sessions. An empty password leaves the API open.
	var sessions *auth.Store
	if cfg.Password != "" {
		sessions, err = auth.OpenStore(filepath.Join(cfg.DataDir, "sessions.db"), cfg.Password)
		if err != nil {
			logger.Error("open session store", "error", err)
			os.Exit(1)
		}
		defer sessions.Close()
		if n, err := sessions.PurgeExpired(); err == nil && n > 0 {
			logger.Info("purged expired sessions", "count", n)
		}
	} else {
		logger.Warn("no password configured, API is open")
	}

	// Load all datasets.
	loader := feed.NewLoader(cfg.BaseURL, catalog, logger).WithCache(feed.NewCache())
	reg := spend.NewRegistry(loader, specs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := reg.Load(ctx); err != nil {
		logger.Error("initial load failed", "error", err)
		os.Exit(1)
	}
	datasets, rows := reg.Counts()
	logger.Info("datasets loaded", "count", datasets, "rows", rows)

	// Periodic refresh keeps charts current without restarts.
	refresher := spend.NewRefresher(reg, time.Duration(cfg.RefreshSeconds)*time.Second, logger)
	go refresher.Start(ctx)

	// SIGHUP: refresh on demand.
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, refreshing datasets")
			reg.Refresh(ctx)
		}
	}()

	var mcpHandler http.Handler
	if !cfg.DisableMCP {
		mcpHandler = server.NewStreamableHTTPServer(api.NewMCPServer(reg, version, logger))
	}

	handler := api.NewRouter(reg, sessions, mcpHandler, logger)
	srv, err := chassis.New(chassis.Config{
		Addr:     cfg.Addr,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
		Insecure: cfg.Insecure,
		Handler:  handler,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("server setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(shutdownCtx)
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:           ":8430",
		BaseURL:        "http://localhost:8000/data",
		DataDir:        "data",
		RefreshSeconds: 30,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// specs returns the configured datasets, falling back to the built-in
// catalog when the config names none.
func (c config) specs() []spend.DatasetSpec {
	if len(c.Datasets) > 0 {
		return c.Datasets
	}
	return spend.DefaultSpecs()
}

func validateSpecs(specs []spend.DatasetSpec) error {
	seen := make(map[string]struct{})
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate dataset id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// applyCatalogPaths replaces each spec's path with the catalogued one, so
// operator overrides made with SetPath take effect without editing config.
func applyCatalogPaths(catalog *feed.Catalog, specs []spend.DatasetSpec, logger *slog.Logger) []spend.DatasetSpec {
	for i, s := range specs {
		path, err := catalog.GetPath(s.ID)
		if err != nil {
			logger.Warn("catalog lookup failed", "dataset", s.ID, "error", err)
			continue
		}
		specs[i].Path = path
	}
	return specs
}
