package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/reusable/internal/config"
	"github.com/coachpo/reusable/pkg/pool"
)

func TestRunPrintsSnapshot(t *testing.T) {
	t.Setenv("POOLBENCH_OTLP_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "poolbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: dev
pools:
  - name: frames
    capacity: 2
    bufferSize: 64
  - name: cold
    capacity: 0
    bufferSize: 16
workload:
  workers: 2
  iterations: 10
  payloadSize: 8
  detachEvery: 3
telemetry:
  enableMetrics: false
drainTimeout: 1s
`), 0o600))

	var stdout, stderr bytes.Buffer
	logger := log.New(&stderr, poolbenchLoggerPrefix, 0)
	require.NoError(t, run(context.Background(), path, &stdout, logger))

	var stats []pool.Stats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Len(t, stats, 2)
	require.Equal(t, "cold", stats[0].Name)
	require.Equal(t, "frames", stats[1].Name)
	for _, s := range stats {
		require.Zero(t, s.Outstanding)
		require.Equal(t, s.Capacity+int(s.FailCount), s.Idle)
	}
	require.NotZero(t, stats[0].FailCount)
	require.Contains(t, stderr.String(), "pool frames: borrows=20")
}

func TestRunFallsBackToDefaults(t *testing.T) {
	t.Setenv("POOLBENCH_OTLP_ENDPOINT", "")
	var stdout, stderr bytes.Buffer
	logger := log.New(&stderr, poolbenchLoggerPrefix, 0)
	require.NoError(t, run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), &stdout, logger))
	require.Contains(t, stderr.String(), "configuration file not found, using defaults")

	var stats []pool.Stats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Len(t, stats, len(config.Default().Pools))
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poolbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workload:\n  workers: -1\n"), 0o600))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), path, &stdout, log.New(&stderr, "", 0))
	require.Error(t, err)
	require.Empty(t, stdout.String())
}

func TestBuildRegistryRejectsDuplicateNames(t *testing.T) {
	_, _, err := buildRegistry([]config.PoolConfig{
		{Name: "dup", Capacity: 1, BufferSize: 8},
		{Name: "dup", Capacity: 1, BufferSize: 8},
	})
	require.Error(t, err)
}
