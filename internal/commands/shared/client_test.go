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

package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picahq/pica-go/internal/config"
)

func TestObserveConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "pica-test"
	cfg.Observability.Sampling.Enabled = true
	cfg.Observability.Sampling.Rate = 0.25
	cfg.Observability.Exporters = []config.ExporterConfig{
		{
			Type:           "otlp-http",
			Endpoint:       "collector:4318",
			Headers:        map[string]string{"authorization": "Bearer t"},
			TimeoutSeconds: 15,
			TLS:            config.TLSConfig{Enabled: true, VerifyCertificate: true},
		},
	}

	oc := observeConfig(cfg)

	assert.True(t, oc.Enabled)
	assert.Equal(t, "pica-test", oc.ServiceName)
	assert.True(t, oc.Sampling.Enabled)
	assert.Equal(t, 0.25, oc.Sampling.Rate)
	require.Len(t, oc.Exporters, 1)
	assert.Equal(t, "otlp-http", oc.Exporters[0].Type)
	assert.Equal(t, "collector:4318", oc.Exporters[0].Endpoint)
	assert.Equal(t, 15*time.Second, oc.Exporters[0].Timeout)
	assert.True(t, oc.Exporters[0].TLS.Enabled)
}

func TestObserveConfig_VersionFallsBackToBuild(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersion("dev", "unknown", "unknown") })

	cfg := config.Default()
	cfg.Observability.Enabled = true

	oc := observeConfig(cfg)
	assert.Equal(t, "1.2.3", oc.ServiceVersion)
}

func TestResolveSecret_FlagWins(t *testing.T) {
	secretFlag = "flag-secret"
	t.Cleanup(func() { secretFlag = "" })
	t.Setenv("PICA_SECRET", "env-secret")

	cfg := config.Default()
	value, source, err := resolveSecret(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "flag-secret", value)
	assert.Equal(t, "flag", source)
}

func TestResolveSecret_CustomEnvName(t *testing.T) {
	t.Setenv("MY_PICA_TOKEN", "custom-secret")
	t.Setenv("PICA_SECRET", "")

	cfg := config.Default()
	cfg.API.SecretEnv = "MY_PICA_TOKEN"

	value, source, err := resolveSecret(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "custom-secret", value)
	assert.Equal(t, "env:MY_PICA_TOKEN", source)
}

func TestBuildClientWithConfig(t *testing.T) {
	t.Setenv("PICA_SECRET", "sk_test_123")

	cfg := config.Default()
	cfg.Connectors = []string{"*"}

	handle, err := BuildClientWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer handle.Close(context.Background())

	require.NotNil(t, handle.Client)
	assert.Equal(t, cfg.API.BaseURL, handle.Client.BaseURL())
	assert.Nil(t, handle.Observe, "observability is opt-in")
}
