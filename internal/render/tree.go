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

// Package render produces terminal output for trace trees and recorder logs.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/term"

	"github.com/tombee/strand/internal/store"
	"github.com/tombee/strand/pkg/trace"
)

const (
	// DefaultWidth is used when terminal width detection fails.
	DefaultWidth = 100

	// maxValueWidth bounds rendered entity values so deep trees stay on one
	// line per entity.
	maxValueWidth = 60
)

// Renderer renders trace trees and recorder logs for the terminal.
type Renderer struct {
	Width int
}

// NewRenderer creates a renderer with terminal width detection.
func NewRenderer() *Renderer {
	width, _, err := term.GetSize(0)
	if err != nil || width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{Width: width}
}

// Transactions renders live transaction trees.
func (r *Renderer) Transactions(transactions []*trace.Transaction) string {
	var b strings.Builder

	for _, txn := range transactions {
		fmt.Fprintf(&b, "%s %s\n",
			Transaction.Render(fmt.Sprintf("Transaction T%d", txn.ID())),
			Muted.Render(truncate(fmt.Sprintf("%v", txn.Value()), maxValueWidth)),
		)

		segments := txn.Segments()
		for i, seg := range segments {
			segBranch, segIndent := glyphs(i == len(segments)-1)
			fmt.Fprintf(&b, "%s%s %s\n",
				segBranch,
				Segment.Render(fmt.Sprintf("Segment S%d", seg.ID())),
				Muted.Render(truncate(fmt.Sprintf("%v", seg.Value()), maxValueWidth)),
			)

			calls := seg.Calls()
			for j, call := range calls {
				callBranch, _ := glyphs(j == len(calls)-1)
				fmt.Fprintf(&b, "%s%s%s\n",
					segIndent,
					callBranch,
					Call.Render(call.String()),
				)
			}
		}
	}

	return b.String()
}

// Record renders a stored trace: header, entity trees, and token logs.
func (r *Renderer) Record(record *store.TraceRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", Header.Render("Trace"), record.ID)
	fmt.Fprintf(&b, "%s %s\n", Muted.Render("name:"), record.Name)
	fmt.Fprintf(&b, "%s %s\n\n", Muted.Render("stored:"), record.CreatedAt.Format("2006-01-02 15:04:05"))

	for _, txn := range record.Transactions {
		fmt.Fprintf(&b, "%s %s\n",
			Transaction.Render(fmt.Sprintf("Transaction T%d", txn.ID)),
			Muted.Render(truncate(txn.Value, maxValueWidth)),
		)

		for i, seg := range txn.Segments {
			segBranch, segIndent := glyphs(i == len(txn.Segments)-1)
			fmt.Fprintf(&b, "%s%s %s\n",
				segBranch,
				Segment.Render(fmt.Sprintf("Segment S%d", seg.ID)),
				Muted.Render(truncate(seg.Value, maxValueWidth)),
			)

			for j, call := range seg.Calls {
				callBranch, _ := glyphs(j == len(seg.Calls)-1)
				fmt.Fprintf(&b, "%s%s%s\n",
					segIndent,
					callBranch,
					Call.Render(fmt.Sprintf("T%dS%dC%d", txn.ID, seg.ID, call.ID)),
				)
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(r.Logs(record.Logs))

	return b.String()
}

// Logs renders the four recorder logs as labeled token rows.
func (r *Renderer) Logs(logs store.LogRecord) string {
	var b strings.Builder

	sections := []struct {
		name   string
		tokens []string
	}{
		{"call trace", logs.CallTrace},
		{"creations", logs.Creations},
		{"wrappings", logs.Wrappings},
		{"verbose", logs.Verbose},
	}

	for _, section := range sections {
		fmt.Fprintf(&b, "%s %s\n", Header.Render(section.name+":"), renderTokens(section.tokens))
	}

	return b.String()
}

// RecorderLogs renders a live recorder's logs.
func (r *Renderer) RecorderLogs(rec *trace.Recorder) string {
	return r.Logs(store.LogRecord{
		CallTrace: rec.CallTrace(),
		Creations: rec.Creations(),
		Wrappings: rec.Wrappings(),
		Verbose:   rec.Verbose(),
	})
}

// Summaries renders a stored-trace listing, newest first.
func (r *Renderer) Summaries(summaries []store.TraceSummary) string {
	if len(summaries) == 0 {
		return Muted.Render("no traces stored") + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-20s  %12s  %6s  %s\n",
		Header.Render("ID"), Header.Render("NAME"),
		Header.Render("TRANSACTIONS"), Header.Render("CALLS"),
		Header.Render("STORED"),
	)

	for _, s := range summaries {
		fmt.Fprintf(&b, "%-36s  %-20s  %12d  %6d  %s\n",
			s.ID,
			truncate(s.Name, 20),
			s.TransactionCount,
			s.CallCount,
			Muted.Render(s.CreatedAt.Format("2006-01-02 15:04:05")),
		)
	}

	return b.String()
}

// renderTokens colors each token by its leading marker: entries green, exits
// red, creations bold.
func renderTokens(tokens []string) string {
	if len(tokens) == 0 {
		return Muted.Render("(empty)")
	}

	rendered := make([]string, len(tokens))
	for i, token := range tokens {
		switch {
		case strings.HasPrefix(token, "->"):
			rendered[i] = Enter.Render(token)
		case strings.HasPrefix(token, "<-"):
			rendered[i] = Exit.Render(token)
		case strings.HasPrefix(token, "+"):
			rendered[i] = Bold.Render(token)
		default:
			rendered[i] = token
		}
	}

	return strings.Join(rendered, " ")
}

func glyphs(last bool) (branch, indent string) {
	if last {
		return branchLast, lastIndent
	}
	return branchMid, pipeIndent
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
