// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/reindex"
	"github.com/poiesic/docqa/server"
	"github.com/urfave/cli/v2"
)

// newLibrary is replaced in tests to inject a mock provider.
var newLibrary = docqa.NewLibrary

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := reindex.DefaultConfig()
	return &cli.App{
		Name:  "docqa",
		Usage: "Ask questions about PDF and text documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (defaults apply if it does not exist)",
				Value:   "docqa.yaml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file holding API keys",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the document store, uploads and indexes",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Document store backend (badger, sqlite)",
			},
		},
		Before: before,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to the configured server.addr)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest PDF and TXT files",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about an ingested document",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "doc",
						Usage:    "Document ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to retrieve (0 uses the configured default)",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List ingested documents",
				Action: listCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document, its chunks and its index",
				ArgsUsage: "ID",
				Action:    deleteCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild vector indexes from stored chunks",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "doc",
						Usage: "Document ID to reindex (repeatable; all documents when omitted)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
						Value: defaults.BatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: defaults.ReportInterval,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: defaults.MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: defaults.RetryDelay,
					},
				},
			},
		},
	}
}

func before(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if store := c.String("store"); store != "" {
		cfg.Store = strings.ToLower(store)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openLibrary(c *cli.Context) (*docqa.Library, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts, err := docqa.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	lib, err := newLibrary(cfg.DataDir, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, cfg, nil
}

func serveCommand(c *cli.Context) error {
	lib, cfg, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv, err := server.New(lib, server.WithMaxUploadBytes(int64(cfg.Server.MaxUploadMB)<<20))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, addr)
}

func ingestCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file is required")
	}
	lib, _, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	out := c.App.Writer
	failed := 0
	for _, res := range lib.IngestAll(c.Context, paths...) {
		if res.Err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", res.Source.Path, res.Err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%d chunks\n", res.Document.ID, res.Document.Filename, res.Document.ChunkCount)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(paths))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}
	if c.Int("top-k") < 0 {
		return errors.New("top-k cannot be negative")
	}
	lib, _, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	answer, err := lib.Ask(c.Context, c.String("doc"), question, c.Int("top-k"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, answer.Text)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Sources (%s):\n", answer.Elapsed)
	for i, src := range answer.Sources {
		fmt.Fprintf(out, "%d. [%.4f] %s\n", i+1, src.Score, snippet(src.ChunkText, 120))
	}
	return nil
}

func listCommand(c *cli.Context) error {
	lib, _, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	docs, err := lib.Documents(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tCHUNKS\tUPLOADED")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", doc.ID, doc.Filename, doc.ChunkCount, doc.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func deleteCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("a document ID is required")
	}
	lib, _, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func reindexCommand(c *cli.Context) error {
	reindexConfig := reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	lib, cfg, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	fmt.Fprintf(c.App.ErrWriter, "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedder.Model)

	summary, err := lib.Reindex(c.Context, reindexConfig, c.App.ErrWriter, c.StringSlice("doc")...)
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "reindexed %d documents (%d chunks) in %s\n",
		summary.Documents, summary.Chunks, summary.Elapsed.Round(time.Millisecond))
	return nil
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
