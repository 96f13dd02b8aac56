package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/reusable/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poolbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
environment: STAGING
verbose: true
pools:
  - name: " frames "
    capacity: 32
    bufferSize: 2048
  - name: scratch
    capacity: 0
    bufferSize: 64
workload:
  workers: 4
  iterations: 50
  ratePerSecond: 200
  payloadSize: 128
  detachEvery: 10
  hold: 2ms
telemetry:
  otlpEndpoint: http://localhost:4318
  serviceName: bench
drainTimeout: 3s
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvStaging, cfg.Environment)
	require.True(t, cfg.Verbose)
	require.Equal(t, []PoolConfig{
		{Name: "frames", Capacity: 32, BufferSize: 2048},
		{Name: "scratch", Capacity: 0, BufferSize: 64},
	}, cfg.Pools)
	require.Equal(t, 4, cfg.Workload.Workers)
	require.Equal(t, 50, cfg.Workload.Iterations)
	require.InDelta(t, 200, cfg.Workload.RatePerSecond, 0.0001)
	require.Equal(t, 1, cfg.Workload.Burst)
	require.Equal(t, 2*time.Millisecond, cfg.Workload.Hold)
	require.Equal(t, "http://localhost:4318", cfg.Telemetry.OTLPEndpoint)
	require.Equal(t, "bench", cfg.Telemetry.ServiceName)
	require.True(t, cfg.Telemetry.OTLPInsecure)
	require.Equal(t, 3*time.Second, cfg.DrainTimeout)
}

func TestLoadKeepsDefaultsForOmittedSections(t *testing.T) {
	path := writeConfig(t, "environment: prod\n")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	def := Default()
	require.Equal(t, EnvProd, cfg.Environment)
	require.Equal(t, def.Pools, cfg.Pools)
	require.Equal(t, def.Workload, cfg.Workload)
	require.Equal(t, def.Telemetry.ServiceName, cfg.Telemetry.ServiceName)
}

func TestLoadRejectsDuplicatePoolNames(t *testing.T) {
	path := writeConfig(t, `
pools:
  - name: buf
    capacity: 1
    bufferSize: 8
  - name: " buf"
    capacity: 1
    bufferSize: 8
`)

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	require.True(t, errs.HasCode(err, errs.CodeInvalid))
	require.Contains(t, err.Error(), `duplicate pool name \"buf\"`)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "pools: [\n")
	_, err := Load(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal config")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, loaded, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, Default().Pools, cfg.Pools)

	path := writeConfig(t, "environment: prod\n")
	cfg, loaded, err = LoadOrDefault(context.Background(), path)
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, EnvProd, cfg.Environment)

	bad := writeConfig(t, "environment: moon\n")
	_, _, err = LoadOrDefault(context.Background(), bad)
	require.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("POOLBENCH_ENV", "Prod")
	t.Setenv("POOLBENCH_OTLP_ENDPOINT", "https://collector:4318")

	cfg, _, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Environment)
	require.Equal(t, "https://collector:4318", cfg.Telemetry.OTLPEndpoint)
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, "flag.yaml", ResolvePath(" flag.yaml ", "default.yaml"))

	t.Setenv("POOLBENCH_CONFIG", "env.yaml")
	require.Equal(t, "env.yaml", ResolvePath("", "default.yaml"))

	t.Setenv("POOLBENCH_CONFIG", "")
	require.Equal(t, "default.yaml", ResolvePath("", "default.yaml"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"environment", func(c *AppConfig) { c.Environment = "moon" }},
		{"no pools", func(c *AppConfig) { c.Pools = nil }},
		{"unnamed pool", func(c *AppConfig) { c.Pools[0].Name = "" }},
		{"negative capacity", func(c *AppConfig) { c.Pools[0].Capacity = -1 }},
		{"buffer size", func(c *AppConfig) { c.Pools[0].BufferSize = 0 }},
		{"workers", func(c *AppConfig) { c.Workload.Workers = 0 }},
		{"iterations", func(c *AppConfig) { c.Workload.Iterations = -1 }},
		{"rate", func(c *AppConfig) { c.Workload.RatePerSecond = -1 }},
		{"payload", func(c *AppConfig) { c.Workload.PayloadSize = -1 }},
		{"detach", func(c *AppConfig) { c.Workload.DetachEvery = -1 }},
		{"hold", func(c *AppConfig) { c.Workload.Hold = -time.Second }},
		{"service name", func(c *AppConfig) { c.Telemetry.ServiceName = "" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errs.HasCode(err, errs.CodeInvalid))
		})
	}
}
