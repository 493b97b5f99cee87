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

package export

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTLSConfigBuilder(t *testing.T) {
	cfg := NewTLSConfigBuilder().Build()

	require.NotNil(t, cfg)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestTLSConfigBuilder_WithMinVersion(t *testing.T) {
	cfg := NewTLSConfigBuilder().WithMinVersion(tls.VersionTLS13).Build()
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}

func TestTLSConfigBuilder_WithMinVersion_ForceTLS12(t *testing.T) {
	// A lower version is clamped up to TLS 1.2
	cfg := NewTLSConfigBuilder().WithMinVersion(tls.VersionTLS10).Build()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestTLSConfigBuilder_WithServerName(t *testing.T) {
	cfg := NewTLSConfigBuilder().WithServerName("collector.example.com").Build()
	assert.Equal(t, "collector.example.com", cfg.ServerName)
}

func TestTLSConfigBuilder_WithSystemCertPool(t *testing.T) {
	builder := NewTLSConfigBuilder()
	require.NoError(t, builder.WithSystemCertPool())
	assert.NotNil(t, builder.Build().RootCAs)
}

func TestValidateTLSConfig(t *testing.T) {
	assert.NoError(t, ValidateTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	assert.Error(t, ValidateTLSConfig(nil))
	assert.Error(t, ValidateTLSConfig(&tls.Config{MinVersion: tls.VersionTLS10}))
}
