// Copyright 2025 Tom Barlow
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

// Package demo runs a scripted request scenario through the tracer.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/strand/internal/commands/shared"
	"github.com/tombee/strand/internal/config"
	"github.com/tombee/strand/internal/export"
	"github.com/tombee/strand/internal/log"
	"github.com/tombee/strand/internal/metrics"
	"github.com/tombee/strand/internal/render"
	"github.com/tombee/strand/internal/store"
	"github.com/tombee/strand/pkg/trace"
)

// NewCommand creates the demo command
func NewCommand() *cobra.Command {
	var (
		dbPath      string
		exportMode  string
		endpoint    string
		insecure    bool
		metricsAddr string
		name        string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted tracing scenario",
		Long: `Run two overlapping request chains through the tracer: a transaction
with a subsidiary segment, a deferred callback that fires while a later
transaction is active, and a final callback fired outside any context.

The resulting entity trees and recorder logs are rendered, stored, and
optionally exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, demoOptions{
				dbPath:      dbPath,
				exportMode:  exportMode,
				endpoint:    endpoint,
				insecure:    insecure,
				metricsAddr: metricsAddr,
				name:        name,
			})
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Trace database path (default: from config)")
	cmd.Flags().StringVar(&exportMode, "export", "", "Export completed traces (console, otlp-grpc, otlp-http)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "OTLP collector endpoint")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Disable TLS for OTLP export")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&name, "name", "demo", "Name for the stored trace")

	return cmd
}

type demoOptions struct {
	dbPath      string
	exportMode  string
	endpoint    string
	insecure    bool
	metricsAddr string
	name        string
}

// request is the opaque value a demo transaction represents.
type request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (r request) RootSegmentValue() any { return r.Method + " " + r.Path }

func (r request) String() string { return r.Method + " " + r.Path }

// scriptedProducer hands out one request per transaction, in order.
type scriptedProducer struct {
	requests []request
	next     int
}

func (p *scriptedProducer) Produce() (trace.RequestValue, error) {
	if p.next >= len(p.requests) {
		return nil, fmt.Errorf("script exhausted after %d requests", len(p.requests))
	}
	r := p.requests[p.next]
	p.next++
	return r, nil
}

// transactionLog collects started transactions so the demo can render and
// persist them after the run.
type transactionLog struct {
	transactions []*trace.Transaction
}

func (l *transactionLog) TransactionStarted(tx *trace.Transaction) {
	l.transactions = append(l.transactions, tx)
}

func (l *transactionLog) CallEntered(call *trace.Call) {}

func (l *transactionLog) CallExited(call *trace.Call) {}

// multiObserver fans tracer notifications out to several observers.
type multiObserver []trace.Observer

func (m multiObserver) TransactionStarted(tx *trace.Transaction) {
	for _, o := range m {
		o.TransactionStarted(tx)
	}
}

func (m multiObserver) CallEntered(call *trace.Call) {
	for _, o := range m {
		o.CallEntered(call)
	}
}

func (m multiObserver) CallExited(call *trace.Call) {
	for _, o := range m {
		o.CallExited(call)
	}
}

func runDemo(cmd *cobra.Command, opts demoOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Store.Path = opts.dbPath
	}
	if opts.exportMode != "" {
		cfg.Export.Mode = opts.exportMode
	}
	if opts.endpoint != "" {
		cfg.Export.Endpoint = opts.endpoint
	}
	if opts.insecure {
		cfg.Export.Insecure = true
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = opts.metricsAddr
	}

	logCfg := log.FromEnv()
	if shared.GetVerbose() {
		logCfg.Level = "trace"
	}
	logger := log.New(logCfg)

	txnLog := &transactionLog{}
	observers := multiObserver{trace.Observer(txnLog)}

	var metricsProvider *metrics.Provider
	if cfg.Metrics.Enabled {
		metricsProvider, err = metrics.NewProvider()
		if err != nil {
			return err
		}
		observers = append(observers, metricsProvider.Collector())
		metricsProvider.Serve(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsProvider.Shutdown(shutdownCtx)
		}()
		cmd.Printf("serving metrics on http://%s/metrics\n\n", cfg.Metrics.Addr)
	}

	recorder := trace.NewRecorder()
	tracer, err := trace.New(
		&scriptedProducer{requests: []request{
			{Method: "GET", Path: "/orders"},
			{Method: "POST", Path: "/payments"},
		}},
		trace.NewScopeStack(),
		trace.WithRecorder(recorder),
		trace.WithLogger(logger),
		trace.WithObserver(observers),
	)
	if err != nil {
		return err
	}

	if err := runScenario(tracer); err != nil {
		return shared.NewExecutionError("scenario failed", err)
	}

	if !shared.GetQuiet() {
		r := render.NewRenderer()
		cmd.Print(r.Transactions(txnLog.transactions))
		cmd.Println()
		cmd.Print(r.RecorderLogs(recorder))
		cmd.Println()
	}

	s, err := store.New(store.Config{Path: cfg.Store.Path})
	if err != nil {
		return err
	}
	defer s.Close()

	traceID, err := s.Save(ctx, opts.name, txnLog.transactions, recorder)
	if err != nil {
		return err
	}
	cmd.Printf("stored trace %s\n", traceID)

	if opts.exportMode != "" {
		exporter, err := export.New(ctx, export.Options{
			Mode:     cfg.Export.Mode,
			Endpoint: cfg.Export.Endpoint,
			Insecure: cfg.Export.Insecure,
		})
		if err != nil {
			return err
		}

		v, _, _ := shared.GetVersion()
		replayer, err := export.NewReplayer(exporter, "strand", v)
		if err != nil {
			return err
		}
		defer replayer.Shutdown(ctx)

		if err := replayer.Replay(ctx, txnLog.transactions); err != nil {
			return err
		}
		cmd.Printf("exported %d transactions via %s\n", len(txnLog.transactions), cfg.Export.Mode)
	}

	return nil
}

// runScenario drives two overlapping request chains on a single goroutine.
// Chain A registers a deferred callback; that callback fires while chain B is
// in context, resuming A's captured state nested inside B's call trace. A
// second callback fires after both chains have fully exited.
func runScenario(tracer *trace.Tracer) error {
	var pending []trace.Handler

	// Chain A: a request with one subsidiary operation and one deferred
	// callback registered mid-flight.
	chainA, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		lookup, err := tracer.SegmentProxy(func(args ...any) (any, error) {
			return "inventory ok", nil
		})
		if err != nil {
			return nil, err
		}
		if _, err := lookup(); err != nil {
			return nil, err
		}

		notify, err := tracer.CallbackProxy(func(args ...any) (any, error) {
			return "shipping notified", nil
		})
		if err != nil {
			return nil, err
		}
		pending = append(pending, notify)

		return "order accepted", nil
	})
	if err != nil {
		return err
	}

	if _, err := chainA(); err != nil {
		return err
	}

	// Chain B: while it is in context, chain A's callback fires and must
	// resume A's transaction, not attach to B's.
	chainB, err := tracer.TransactionProxy(func(args ...any) (any, error) {
		for _, callback := range pending {
			if _, err := callback(); err != nil {
				return nil, err
			}
		}
		pending = pending[:0]

		audit, err := tracer.CallbackProxy(func(args ...any) (any, error) {
			return "audit written", nil
		})
		if err != nil {
			return nil, err
		}
		pending = append(pending, audit)

		return "payment captured", nil
	})
	if err != nil {
		return err
	}

	if _, err := chainB(); err != nil {
		return err
	}

	// Both chains have exited; the remaining callback still resumes B's
	// captured context.
	for _, callback := range pending {
		if _, err := callback(); err != nil {
			return err
		}
	}

	return nil
}
