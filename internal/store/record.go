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

package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// TraceRecord is the persisted form of one completed tracing session: the
// entity trees plus the recorder's ordered token logs. Entity values are
// stored as rendered strings; live handlers cannot round-trip through the
// database, so a loaded record is a read model, not a live trace.
type TraceRecord struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	CreatedAt    time.Time           `json:"created_at"`
	Transactions []TransactionRecord `json:"transactions"`
	Logs         LogRecord           `json:"logs"`
}

// TransactionRecord is the persisted form of one transaction tree.
type TransactionRecord struct {
	ID        uint64          `json:"id"`
	Value     string          `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	Segments  []SegmentRecord `json:"segments"`
}

// SegmentRecord is the persisted form of one segment and its calls.
type SegmentRecord struct {
	ID        uint64       `json:"id"`
	Value     string       `json:"value"`
	CreatedAt time.Time    `json:"created_at"`
	Calls     []CallRecord `json:"calls"`
}

// CallRecord is the persisted form of one tracked call.
type CallRecord struct {
	ID        uint64    `json:"id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// LogRecord holds the four recorder logs for a session.
type LogRecord struct {
	CallTrace []string `json:"call_trace"`
	Creations []string `json:"creations"`
	Wrappings []string `json:"wrappings"`
	Verbose   []string `json:"verbose"`
}

// TraceSummary is the listing view of a stored trace.
type TraceSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	TransactionCount int       `json:"transaction_count"`
	CallCount        int       `json:"call_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// renderValue converts an opaque entity value into its stored string form.
// JSON-representable values keep their structure; anything else (handlers,
// channels) falls back to its Go type name.
func renderValue(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("<%T>", value)
	}
	return string(data)
}
