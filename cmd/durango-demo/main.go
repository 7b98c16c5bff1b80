// Copyright 2026 Minh Vu
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

// Command durango-demo runs one of the example scenarios end to end: it
// hosts a worker, connects a client, and drives the scenario against a
// local NATS server with JetStream enabled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mnvu/durango/examples/scenarios"
	_ "github.com/mnvu/durango/examples/scenarios/approval"
	_ "github.com/mnvu/durango/examples/scenarios/cleanup"
	_ "github.com/mnvu/durango/examples/scenarios/fanout"
	_ "github.com/mnvu/durango/examples/scenarios/order"
	_ "github.com/mnvu/durango/examples/scenarios/signals"
	"github.com/mnvu/durango/internal/logger"
	"github.com/mnvu/durango/internal/natz"
	"github.com/mnvu/durango/sdk/client"
	"github.com/mnvu/durango/sdk/config"
	"github.com/mnvu/durango/sdk/worker"
	"github.com/mnvu/durango/sdk/workflow"
)

func main() {
	var (
		scenario = flag.String("scenario", "order", fmt.Sprintf("scenario to run (%s)", strings.Join(scenarios.Names(), ", ")))
		release  = flag.Bool("release", false, "use the release logging pipeline (OTLP) instead of colored output")
	)
	flag.Parse()

	if err := run(*scenario, *release); err != nil {
		slog.Error("demo exited with error", "error", err)
		os.Exit(1)
	}
}

func run(scenarioName string, release bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	example, ok := scenarios.Get(scenarioName)
	if !ok {
		return fmt.Errorf("unknown scenario %q, have: %s", scenarioName, strings.Join(scenarios.Names(), ", "))
	}

	mode := logger.ModeDebug
	if release {
		mode = logger.ModeRelease
	}
	lg, err := logger.New(ctx, &logger.Options{Mode: mode, Writer: os.Stderr, ServiceName: "durango-demo"})
	if err != nil {
		return err
	}
	if lg.LoggerProvider != nil {
		defer func() { _ = lg.Shutdown(context.Background()) }()
	}
	slogger := lg.Slogger

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := natz.Connect(cfg.NATZ())
	if err != nil {
		return err
	}
	defer conn.Close()

	registry := workflow.NewRegistry()
	if err := example.Register(registry); err != nil {
		return fmt.Errorf("register scenario %q: %w", scenarioName, err)
	}

	w, err := worker.New(conn, registry, nil, &worker.Options{Logger: slogger})
	if err != nil {
		return err
	}
	c, err := client.New(conn, nil, &client.Options{Logger: slogger})
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gCtx)
	})
	g.Go(func() error {
		defer stop()
		slogger.Info("running scenario", "scenario", scenarioName)
		return example.RunClient(gCtx, c)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
