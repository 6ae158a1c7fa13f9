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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/capsearch"
	"github.com/poiesic/capsearch/core"
	"github.com/poiesic/capsearch/mcpserver"
	"github.com/poiesic/capsearch/registrar"
	"github.com/poiesic/capsearch/search"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(&runner{
		open:     openDatabase,
		out:      os.Stdout,
		progress: os.Stderr,
	})
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runner holds what the commands need from the outside world.
type runner struct {
	open     func(ctx context.Context, cfg *capsearch.Config) (*capsearch.Database, error)
	out      io.Writer
	progress io.Writer
}

func openDatabase(ctx context.Context, cfg *capsearch.Config) (*capsearch.Database, error) {
	return capsearch.Open(ctx, cfg)
}

func newApp(r *runner) *cli.App {
	return &cli.App{
		Name:  "capsearch",
		Usage: "Multi-vector search over tools, knowledge sources, tables and facts",
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
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"CAPSEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (overrides ai.embedding_host)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides ai.embedding_model)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "Register or update capabilities from a YAML record file",
				Action: r.registerCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Record file; each entry needs a kind field",
						Required: true,
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Search capabilities",
				Action: r.searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Natural language query",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "weights",
						Aliases: []string{"w"},
						Usage:   "Semantic,functional,contextual weights, e.g. 0.5,0.3,0.2 (default: equal)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum combined score",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results (default: search.default_limit)",
					},
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Restrict to a kind (repeatable): tool, knowledge_source, database_table, conversation_fact",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:   "get",
				Usage:  "Print a stored capability as JSON",
				Action: r.getCommand,
				Flags:  []cli.Flag{idFlag()},
			},
			{
				Name:   "disable",
				Usage:  "Remove a capability from search results",
				Action: r.statusCommand(false),
				Flags:  []cli.Flag{idFlag()},
			},
			{
				Name:   "enable",
				Usage:  "Return a disabled capability to search results",
				Action: r.statusCommand(true),
				Flags:  []cli.Flag{idFlag()},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute the vectors of every capability, e.g. after changing the embedding model",
				Action: r.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of capabilities to process in each batch (overrides reembed.batch_size)",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Capabilities vectorized at once (overrides reembed.concurrency)",
					},
					&cli.BoolFlag{
						Name:  "continue-on-error",
						Usage: "Skip capabilities that keep failing instead of aborting",
					},
				},
			},
		},
	}
}

func idFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "Capability id",
		Required: true,
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*capsearch.Config, error) {
	cfg := capsearch.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := capsearch.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if c.IsSet("db") {
		cfg.Storage.Engine = capsearch.EngineBadger
		cfg.Storage.Path = c.String("db")
		cfg.Storage.InMemory = false
	}
	if c.IsSet("embedding-host") {
		cfg.AI.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *runner) withDatabase(c *cli.Context, cfg *capsearch.Config, fn func(db *capsearch.Database) error) error {
	if cfg == nil {
		var err error
		if cfg, err = loadConfig(c); err != nil {
			return err
		}
	}
	db, err := r.open(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func (r *runner) registerCommand(c *cli.Context) error {
	f, err := os.Open(c.String("file"))
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := registrar.DecodeRecords(f)
	if err != nil {
		return err
	}

	return r.withDatabase(c, nil, func(db *capsearch.Database) error {
		reg, err := db.NewRegistrar()
		if err != nil {
			return err
		}
		defer reg.Release()

		results, err := reg.RegisterMany(c.Context, records)
		if err != nil {
			return err
		}

		failed := 0
		for i, res := range results {
			if res.Ok() {
				fmt.Fprintf(r.out, "registered %s\n", res.ID)
				continue
			}
			failed++
			label := res.ID
			if label == "" {
				label = fmt.Sprintf("record #%d", i+1)
			}
			fmt.Fprintf(r.out, "failed %s: %v\n", label, res.Err)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d records failed", failed, len(results))
		}
		return nil
	})
}

func (r *runner) searchCommand(c *cli.Context) error {
	weights, err := parseWeights(c.String("weights"))
	if err != nil {
		return err
	}
	kinds, err := mcpserver.ParseKinds(c.StringSlice("kind"))
	if err != nil {
		return err
	}
	q := search.Query{
		Text:      c.String("query"),
		Weights:   weights,
		Threshold: c.Float64("threshold"),
		Limit:     c.Int("limit"),
		Kinds:     kinds,
	}

	return r.withDatabase(c, nil, func(db *capsearch.Database) error {
		engine, err := db.NewSearchEngine()
		if err != nil {
			return err
		}
		results, err := engine.Search(c.Context, q)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			views := make([]mcpserver.ResultView, len(results))
			for i, res := range results {
				views[i] = mcpserver.NewResultView(res)
			}
			return printJSON(r.out, views)
		}

		fmt.Fprintf(r.out, "Found %d hits\n", len(results))
		for i, res := range results {
			v := mcpserver.NewResultView(res)
			fmt.Fprintf(r.out, "%d: %s [%s] %q [%0.3f = %0.3f + %0.3f tags]\n",
				i+1, v.ID, v.Kind, v.Name, v.Score, v.VectorScore, v.TagScore)
		}
		return nil
	})
}

func (r *runner) getCommand(c *cli.Context) error {
	return r.withDatabase(c, nil, func(db *capsearch.Database) error {
		capability, err := db.Repository().GetCapability(c.Context, c.String("id"))
		if err != nil {
			return err
		}
		return printJSON(r.out, mcpserver.NewCapabilityView(capability))
	})
}

func (r *runner) statusCommand(active bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		return r.withDatabase(c, nil, func(db *capsearch.Database) error {
			reg, err := db.NewRegistrar()
			if err != nil {
				return err
			}
			defer reg.Release()

			id := c.String("id")
			if active {
				err = reg.Enable(c.Context, id)
			} else {
				err = reg.Disable(c.Context, id)
			}
			if err != nil {
				return err
			}
			status := core.StatusDisabled
			if active {
				status = core.StatusActive
			}
			fmt.Fprintf(r.out, "%s %s\n", id, status)
			return nil
		})
	}
}

func (r *runner) reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("batch-size") {
		cfg.Reembed.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("concurrency") {
		cfg.Reembed.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("continue-on-error") {
		cfg.Reembed.ContinueOnError = c.Bool("continue-on-error")
	}

	return r.withDatabase(c, cfg, func(db *capsearch.Database) error {
		reembedder, err := db.NewReembedder(r.progress)
		if err != nil {
			return err
		}

		fmt.Fprintf(r.progress, "Storage: %s\n", cfg.Storage.Engine)
		fmt.Fprintf(r.progress, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
		fmt.Fprintf(r.progress, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
		fmt.Fprintln(r.progress)

		stats, err := reembedder.Run(c.Context)
		if err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
		if len(stats.Skipped) > 0 {
			fmt.Fprintf(r.out, "skipped: %s\n", strings.Join(stats.Skipped, ", "))
		}
		return nil
	})
}

// parseWeights reads "semantic,functional,contextual". Empty means equal weights.
func parseWeights(s string) (core.SearchWeights, error) {
	if strings.TrimSpace(s) == "" {
		return core.SearchWeights{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != len(core.Dimensions) {
		return core.SearchWeights{}, fmt.Errorf("weights must have %d comma-separated values, got %q", len(core.Dimensions), s)
	}
	var w core.SearchWeights
	values := []*float64{&w.Semantic, &w.Functional, &w.Contextual}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return core.SearchWeights{}, fmt.Errorf("invalid weight %q: %w", part, err)
		}
		*values[i] = v
	}
	if err := w.Validate(); err != nil {
		return core.SearchWeights{}, err
	}
	return w, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
