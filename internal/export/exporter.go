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

// Package export replays completed trace trees into OpenTelemetry span
// exporters.
package export

import (
	"context"
	"crypto/tls"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"

	"github.com/tombee/strand/pkg/errors"
)

// Export modes accepted by New.
const (
	ModeConsole  = "console"
	ModeOTLPGRPC = "otlp-grpc"
	ModeOTLPHTTP = "otlp-http"
)

// Options selects and configures an export backend.
type Options struct {
	// Mode selects the exporter: console, otlp-grpc, or otlp-http.
	Mode string

	// Endpoint is the collector endpoint for OTLP modes.
	Endpoint string

	// Insecure disables TLS for OTLP modes.
	Insecure bool

	// TLSConfig provides custom TLS configuration for OTLP modes.
	TLSConfig *tls.Config

	// Headers contains custom headers to send with each OTLP request.
	Headers map[string]string

	// Writer is the console mode output destination (default: os.Stdout).
	Writer io.Writer
}

// New creates a span exporter for the given options.
func New(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Mode {
	case "", ModeConsole:
		return NewConsoleExporter(ConsoleConfig{Writer: opts.Writer, PrettyPrint: true})
	case ModeOTLPGRPC:
		return NewOTLPExporter(ctx, OTLPConfig{
			Endpoint:  opts.Endpoint,
			Insecure:  opts.Insecure,
			TLSConfig: opts.TLSConfig,
			Headers:   opts.Headers,
		})
	case ModeOTLPHTTP:
		return NewOTLPHTTPExporter(ctx, OTLPHTTPConfig{
			Endpoint:  opts.Endpoint,
			Insecure:  opts.Insecure,
			TLSConfig: opts.TLSConfig,
			Headers:   opts.Headers,
		})
	default:
		return nil, &errors.ExportError{Exporter: opts.Mode, Message: "unknown export mode"}
	}
}

// ConsoleConfig holds configuration for the console exporter.
type ConsoleConfig struct {
	// Writer is the output destination (default: os.Stdout).
	Writer io.Writer

	// PrettyPrint enables human-readable formatted output.
	PrettyPrint bool
}

// NewConsoleExporter creates a console trace exporter for development. It
// prints replayed spans to the writer as JSON.
func NewConsoleExporter(cfg ConsoleConfig) (sdktrace.SpanExporter, error) {
	var opts []stdouttrace.Option

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	opts = append(opts, stdouttrace.WithWriter(writer))

	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}

	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, &errors.ExportError{Exporter: ModeConsole, Cause: err}
	}

	return exporter, nil
}

// OTLPConfig holds configuration for the OTLP gRPC exporter.
type OTLPConfig struct {
	// Endpoint is the gRPC endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS (for development only).
	Insecure bool

	// TLSConfig provides custom TLS configuration.
	TLSConfig *tls.Config

	// Headers contains custom headers to send with each request.
	Headers map[string]string
}

// NewOTLPExporter creates an OTLP gRPC trace exporter.
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (sdktrace.SpanExporter, error) {
	var opts []otlptracegrpc.Option

	opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))

	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if cfg.TLSConfig != nil {
		if err := ValidateTLSConfig(cfg.TLSConfig); err != nil {
			return nil, &errors.ExportError{Exporter: ModeOTLPGRPC, Message: "invalid TLS config", Cause: err}
		}
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(cfg.TLSConfig)))
	} else {
		// Default TLS (system cert pool with TLS 1.2+)
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, &errors.ExportError{Exporter: ModeOTLPGRPC, Cause: err}
	}

	return exporter, nil
}

// OTLPHTTPConfig holds configuration for the OTLP HTTP exporter.
type OTLPHTTPConfig struct {
	// Endpoint is the HTTP endpoint (e.g., "api.honeycomb.io").
	Endpoint string

	// URLPath is the URL path for traces (default: "/v1/traces").
	URLPath string

	// Insecure disables TLS (for development only).
	Insecure bool

	// TLSConfig provides custom TLS configuration.
	TLSConfig *tls.Config

	// Headers contains custom headers to send with each request.
	Headers map[string]string
}

// NewOTLPHTTPExporter creates an OTLP HTTP trace exporter.
func NewOTLPHTTPExporter(ctx context.Context, cfg OTLPHTTPConfig) (sdktrace.SpanExporter, error) {
	var opts []otlptracehttp.Option

	opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))

	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}

	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else if cfg.TLSConfig != nil {
		if err := ValidateTLSConfig(cfg.TLSConfig); err != nil {
			return nil, &errors.ExportError{Exporter: ModeOTLPHTTP, Message: "invalid TLS config", Cause: err}
		}
		opts = append(opts, otlptracehttp.WithTLSClientConfig(cfg.TLSConfig))
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		}))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, &errors.ExportError{Exporter: ModeOTLPHTTP, Cause: err}
	}

	return exporter, nil
}
