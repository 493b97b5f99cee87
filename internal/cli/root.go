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

// Package cli assembles the strand command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/strand/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for strand
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strand",
		Short: "strand - execution context tracing",
		Long: `Strand traces how execution context propagates through wrapped
handlers. It models each logical request as a transaction tree of
segments and calls, records every context transition as readable
tokens, and can persist, query, render, and export completed traces.

Run 'strand demo' to watch a scripted request flow through the tracer.
Run 'strand trace list' to browse stored traces.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	shared.RegisterGlobalFlags(cmd.PersistentFlags())

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
