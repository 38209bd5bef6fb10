package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/spendlens/pkg/feed"
)

func cmdSources(args []string) {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	check := fs.Bool("check", false, "probe each source with a HEAD request")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := loadConfig(*cfgPath, logger)

	catalog, err := feed.OpenCatalog(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open catalog: %v\n", err)
		os.Exit(1)
	}
	defer catalog.Close()

	if err := catalog.Seed(cfg.specs()); err != nil {
		fmt.Fprintf(os.Stderr, "seed catalog: %v\n", err)
		os.Exit(1)
	}

	if *check {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		checker := feed.NewChecker(catalog, cfg.BaseURL, logger, time.Hour)
		checker.CheckAll(ctx)
	}

	sources, err := catalog.ListSources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list sources: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Catalogued sources:")
	fmt.Println()
	for _, src := range sources {
		status := ""
		if src.LastStatus != nil {
			status = fmt.Sprintf("  [%d]", *src.LastStatus)
		}
		rows := ""
		if src.RowCount != nil && *src.RowCount > 0 {
			rows = fmt.Sprintf("  %d rows", *src.RowCount)
		}
		fmt.Printf("  %-22s  %-10s  %s%s%s\n", src.DatasetID, src.Kind, src.Path, status, rows)
		if src.LastError != nil && *src.LastError != "" {
			fmt.Printf("  %-22s  last error: %s\n", "", *src.LastError)
		}
	}
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  spendlens sources [--check] [--config <path>]")
}
