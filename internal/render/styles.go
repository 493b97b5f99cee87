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

package render

import (
	"github.com/charmbracelet/lipgloss"
)

// CLI style colors using lipgloss
var (
	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold

	// Transaction styles transaction lines in the tree
	Transaction = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")) // green bold

	// Segment styles segment lines in the tree
	Segment = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// Call styles call lines in the tree
	Call = lipgloss.NewStyle().Foreground(lipgloss.Color("39")) // blue

	// Enter styles context-entry tokens
	Enter = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// Exit styles context-exit tokens
	Exit = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Bold styles emphasized text
	Bold = lipgloss.NewStyle().Bold(true)
)

// Tree-drawing glyphs
const (
	branchMid  = "├── "
	branchLast = "└── "
	pipeIndent = "│   "
	lastIndent = "    "
)
