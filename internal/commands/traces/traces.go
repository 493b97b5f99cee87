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

// Package traces implements the trace inspection commands.
package traces

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/strand/internal/commands/shared"
	"github.com/tombee/strand/internal/config"
	"github.com/tombee/strand/internal/jq"
	"github.com/tombee/strand/internal/render"
	"github.com/tombee/strand/internal/store"
)

// NewCommand creates the trace command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored traces",
		Long:  `List, show, query, and prune traces persisted by previous runs.`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newPruneCommand())

	return cmd
}

// openStore opens the trace database, honoring --db over the config file.
func openStore(dbPath string) (*store.SQLiteStore, error) {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return store.New(store.Config{Path: cfg.Store.Path})
}

func newListCommand() *cobra.Command {
	var (
		dbPath string
		limit  int
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			filter := store.Filter{Limit: limit}
			if since > 0 {
				cutoff := time.Now().Add(-since)
				filter.Since = &cutoff
			}

			summaries, err := s.List(contextOrBackground(cmd), filter)
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				return shared.PrintJSON(cmd.OutOrStdout(), summaries)
			}

			cmd.Print(render.NewRenderer().Summaries(summaries))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Trace database path (default: from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of traces to list")
	cmd.Flags().DurationVar(&since, "since", 0, "Only list traces stored within this duration (e.g. 24h)")

	return cmd
}

func newShowCommand() *cobra.Command {
	var (
		dbPath   string
		jqExpr   string
		logsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "show <trace-id>",
		Short: "Show a stored trace",
		Long: `Show a stored trace: its transaction trees and the four recorder
logs. With --jq the trace record is queried instead of rendered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()

			record, err := s.Get(contextOrBackground(cmd), args[0])
			if err != nil {
				return err
			}

			if jqExpr != "" {
				executor := jq.NewExecutor(0, 0)
				result, err := executor.ExecuteRecord(contextOrBackground(cmd), jqExpr, record)
				if err != nil {
					return err
				}
				return shared.PrintJSON(cmd.OutOrStdout(), result)
			}

			if shared.GetJSON() {
				return shared.PrintJSON(cmd.OutOrStdout(), record)
			}

			r := render.NewRenderer()
			if logsOnly {
				cmd.Print(r.Logs(record.Logs))
				return nil
			}
			cmd.Print(r.Record(record))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Trace database path (default: from config)")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Query the trace record with a jq expression")
	cmd.Flags().BoolVar(&logsOnly, "logs", false, "Show only the recorder logs")

	return cmd
}

func newPruneCommand() *cobra.Command {
	var (
		dbPath    string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old traces",
		Long:  `Delete traces stored before the retention cutoff.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(shared.GetConfigPath())
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Store.Path = dbPath
			}

			cutoff := olderThan
			if cutoff == 0 {
				cutoff = time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
			}
			if cutoff == 0 {
				cmd.Println("retention disabled, nothing to prune")
				return nil
			}

			s, err := store.New(store.Config{Path: cfg.Store.Path})
			if err != nil {
				return err
			}
			defer s.Close()

			count, err := s.DeleteOlderThan(contextOrBackground(cmd), time.Now().Add(-cutoff))
			if err != nil {
				return err
			}

			cmd.Printf("pruned %d traces\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Trace database path (default: from config)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Delete traces older than this duration (default: config retention)")

	return cmd
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
