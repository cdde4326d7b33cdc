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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poiesic/filingrag"
	"github.com/poiesic/filingrag/api"
	"github.com/poiesic/filingrag/config"
	"github.com/poiesic/filingrag/core"
	"github.com/poiesic/filingrag/ingestion"
	"github.com/poiesic/filingrag/reembed"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

// systemOptions are appended to every filingrag.Open call.
var systemOptions []filingrag.Option

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "filingrag",
		Usage: "Fetch, render and index SEC 10-K filings for retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "filingrag.yaml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to .env file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "process",
				Usage:     "Fetch, render and index the 10-K filings of one or more symbols",
				ArgsUsage: "SYMBOL...",
				Action:    processCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Retrieve the chunks most similar to a query",
				ArgsUsage: "QUERY",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of results (defaults to retrieval.top_k)",
					},
					&cli.StringFlag{
						Name:    "symbol",
						Aliases: []string{"s"},
						Usage:   "Only return chunks from this symbol's filing",
					},
				},
			},
			{
				Name:      "analyze",
				Usage:     "Process a filing and search it for one kind of analysis",
				ArgsUsage: "SYMBOL",
				Action:    analyzeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Analysis type (risk_factors, financial_performance, market_risks, ...)",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Explicit query, overriding the analysis type",
					},
					&cli.BoolFlag{
						Name:  "store",
						Usage: "Fetch and index the filing before searching",
						Value: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of results (defaults to retrieval.analysis_top_k)",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print index configuration and collection counts",
				Action: statsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the embedding of every chunk in a collection",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Collection to reembed (defaults to retrieval.collection)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to server.addr)",
					},
				},
			},
			{
				Name:   "init-config",
				Usage:  "Write the effective configuration to the config path",
				Action: initConfigCommand,
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.IsSet("log-level") {
		if _, err := config.ParseLevel(c.String("log-level")); err != nil {
			return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
		}
		cfg.LogLevel = c.String("log-level")
	}
	if err := filingrag.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openSystem(c *cli.Context) (*filingrag.System, error) {
	system, err := filingrag.Open(loadedConfig(c), systemOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return system, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func processCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one symbol is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	results, err := system.Process(c.Context, c.Args().Slice()...)
	if c.Bool("json") {
		if perr := printJSON(c, results); perr != nil {
			return perr
		}
	} else {
		for _, r := range results {
			if r == nil {
				continue
			}
			fmt.Fprintf(c.App.Writer, "%s: %d sections, cached=%t, ingested=%t, chunks=%d, markdown=%s\n",
				r.Symbol, len(r.Sections), r.WasCached, r.Ingested, r.ChunksCreated, r.MarkdownPath)
		}
	}
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one query is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	k := c.Int("k")
	if k == 0 {
		k = system.Config().Retrieval.TopK
	}
	hits, err := system.Query(c.Context, c.Args().First(), k, c.String("symbol"))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(c.App.Writer, "No results")
		return nil
	}
	for _, hit := range hits {
		fmt.Fprintf(c.App.Writer, "%d. [%.3f] %s %s\n%s\n\n",
			hit.Rank, hit.Score, hit.Metadata[core.MetaSymbol], hit.Metadata[core.MetaSections], hit.Content)
	}
	return nil
}

func analyzeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one symbol is required")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	k := c.Int("k")
	if k == 0 {
		k = system.Config().Retrieval.AnalysisTopK
	}
	resp, err := system.Analyzer().Analyze(c.Context, ingestion.Request{
		Symbol:        c.Args().First(),
		Query:         c.String("query"),
		AnalysisType:  ingestion.AnalysisType(c.String("type")),
		StoreDocument: c.Bool("store"),
		K:             k,
	})
	if resp != nil {
		if perr := printJSON(c, resp); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	stats, err := system.Index().Stats(c.Context)
	if err != nil {
		return err
	}
	return printJSON(c, stats)
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	collection := c.String("collection")
	if collection == "" {
		collection = system.Config().Retrieval.Collection
	}

	reembedder, err := system.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	cfg := system.Config()
	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", cfg.Paths.IndexDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.Embedding.BaseURL)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(c.Context, collection); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	system, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	addr := c.String("addr")
	if addr == "" {
		addr = system.Config().Server.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(system, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initConfigCommand(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, loadedConfig(c)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}
