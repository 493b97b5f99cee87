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

package errors

import (
	"fmt"
)

// ConstructionError represents an entity or tracer constructed with a missing
// required argument. These signal programmer or integration error and abort
// construction immediately; they are never retried.
type ConstructionError struct {
	// Entity is the thing being constructed (e.g., "transaction", "segment",
	// "call", "tracer")
	Entity string

	// Argument is the required argument that was missing or invalid
	Argument string

	// Cause is the underlying error, if construction failed for a reason
	// other than a missing argument (e.g., the value producer failed)
	Cause error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	msg := fmt.Sprintf("cannot construct %s", e.Entity)

	if e.Argument != "" {
		msg = fmt.Sprintf("%s: %s is required", msg, e.Argument)
	}

	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConstructionError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "store.path", "export.mode")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// StoreError represents trace storage failures.
// Use this for database errors while persisting or loading trace trees.
type StoreError struct {
	// Op describes the storage operation (e.g., "save", "load", "list")
	Op string

	// TraceID identifies the trace involved, if known
	TraceID string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("trace store %s failed for %s: %v", e.Op, e.TraceID, e.Cause)
	}
	return fmt.Sprintf("trace store %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// ExportError represents trace export failures.
// Use this for errors while replaying trace trees into an exporter backend.
type ExportError struct {
	// Exporter identifies the export backend (e.g., "console", "otlp-grpc")
	Exporter string

	// Message is the human-readable error description
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	msg := fmt.Sprintf("export via %s failed", e.Exporter)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NotFoundError represents a resource not found error.
// Use this when a requested trace or entity does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "trace", "transaction")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
