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
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/capsearch"
	"github.com/poiesic/capsearch/mcpserver"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "capsearch-mcp",
		Usage: "Serve capability search as MCP tools over stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a capsearch YAML config file",
				EnvVars: []string{"CAPSEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "append logs to this file instead of stderr",
				EnvVars: []string{"CAPSEARCH_MCP_LOG_FILE"},
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the server logger. stdout carries the protocol, so logs
// never go there.
func newLogger(c *cli.Context) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	var out io.WriteCloser = nopCloser{os.Stderr}
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), out, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func serve(c *cli.Context) error {
	logger, logOut, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logOut.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := capsearch.DefaultConfig()
	if path := c.String("config"); path != "" {
		if cfg, err = capsearch.LoadConfig(path); err != nil {
			return err
		}
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("capsearch MCP server failed", "err", err)
		return err
	}
	return nil
}

func run(ctx context.Context, cfg *capsearch.Config, logger *slog.Logger) error {
	db, err := capsearch.Open(ctx, cfg, capsearch.WithLogger(logger))
	if err != nil {
		return err
	}
	defer db.Close()

	reg, err := db.NewRegistrar()
	if err != nil {
		return err
	}
	defer reg.Release()

	engine, err := db.NewSearchEngine()
	if err != nil {
		return err
	}

	server, err := mcpserver.NewServer("capsearch", "0.1.0", db.Repository(), engine, reg, mcpserver.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("serving capability search over stdio", "engine", cfg.Storage.Engine)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
