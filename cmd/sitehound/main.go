// Command sitehound crawls a configured site into an SQLite store.
//
//	sitehound crawl --config config.yaml
//	sitehound export --config config.yaml
//	sitehound search --config config.yaml <query>
//	sitehound validate --config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitehound/artifacts"
	"sitehound/canon"
	"sitehound/config"
	"sitehound/engine"
	"sitehound/export"
	"sitehound/extract"
	"sitehound/faq"
	"sitehound/fetch"
	"sitehound/robots"
	"sitehound/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration")
	logLevel := fs.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.Parse(os.Args[2:])

	setupLogging(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	switch cmd {
	case "validate":
		fmt.Println("config ok")
	case "crawl":
		if err := runCrawl(cfg); err != nil {
			slog.Error("crawl", "error", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(cfg); err != nil {
			slog.Error("export", "error", err)
			os.Exit(1)
		}
	case "search":
		if fs.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "search: query required")
			os.Exit(2)
		}
		if err := runSearch(cfg, fs.Arg(0)); err != nil {
			slog.Error("search", "error", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func runCrawl(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	writer, err := artifacts.NewWriter(map[artifacts.Kind]string{
		artifacts.KindHTML:       cfg.OutputDirs.HTML,
		artifacts.KindMarkdown:   cfg.OutputDirs.Markdown,
		artifacts.KindPDF:        cfg.OutputDirs.PDF,
		artifacts.KindPDFText:    cfg.OutputDirs.PDFText,
		artifacts.KindVideo:      cfg.OutputDirs.Video,
		artifacts.KindTranscript: cfg.OutputDirs.Transcripts,
	})
	if err != nil {
		return err
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent:      cfg.UserAgent,
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		Delay:          cfg.Delay(),
		Retry: fetch.RetryPolicy{
			MaxAttempts:   cfg.Retries.Total,
			BackoffFactor: cfg.Retries.BackoffFactor,
		},
	})

	eng := engine.New(
		st,
		fetcher,
		robots.New(robots.Config{UserAgent: cfg.UserAgent, Enabled: cfg.Robots()}),
		canon.New(cfg.HostAliases),
		extract.New(cfg.MainContentSelectors, nil),
		faq.New(),
		writer,
		engine.Config{
			Seeds:                cfg.SeedURLs,
			AllowedDomains:       cfg.AllowedDomains,
			MaxDepthFAQ:          cfg.MaxDepthFAQ,
			MaxDepthGeneral:      cfg.MaxDepthGeneral,
			ExcludedSections:     cfg.ExcludedSitemapSections,
			ContentTypeAllowlist: cfg.ContentTypeAllowlist,
		},
	)

	start := time.Now()
	if err := eng.Run(ctx); err != nil {
		return err
	}

	statuses, err := st.StatusCounts()
	if err != nil {
		return err
	}
	slog.Info("crawl finished", "elapsed", time.Since(start).Round(time.Second), "statuses", statuses)
	return nil
}

func runExport(cfg *config.Config) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	return export.New(st, cfg.OutputDirs.JSON, nil).Run()
}

func runSearch(cfg *config.Config, query string) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	hits, err := st.Search(query, 20)
	if err != nil {
		return err
	}
	for _, h := range hits {
		fmt.Printf("%s\t%s\t%s\n", h.URL, h.Title, h.Snippet)
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sitehound <crawl|export|search|validate> [--config path] [--log-level level]")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
