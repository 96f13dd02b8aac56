// Command poolbench drives borrow/return traffic through named buffer pools
// and prints their accounting as JSON.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/reusable/internal/config"
	"github.com/coachpo/reusable/internal/observability"
	"github.com/coachpo/reusable/internal/telemetry"
	"github.com/coachpo/reusable/internal/workload"
	"github.com/coachpo/reusable/pkg/pool"
)

const (
	defaultConfigPath        = "config/poolbench.yaml"
	poolbenchLoggerPrefix    = "poolbench "
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	fs := flag.NewFlagSet("poolbench", flag.ExitOnError)
	cfgPathFlag := fs.String("config", "", fmt.Sprintf("Path to poolbench configuration file (default: %s)", defaultConfigPath))
	_ = fs.Parse(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stderr, poolbenchLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
	if err := run(ctx, config.ResolvePath(*cfgPathFlag, filepath.Clean(defaultConfigPath)), os.Stdout, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, configPath string, stdout io.Writer, logger *log.Logger) error {
	appCfg, loadedFromFile, err := config.LoadOrDefault(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.SetLogger(observability.NewStdLogger(logger, appCfg.Verbose))
	defer observability.SetLogger(nil)
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s, pools=%d", appCfg.Environment, len(appCfg.Pools))

	meterProvider, shutdownTelemetry, err := telemetry.Init(ctx, appCfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	registry, pools, err := buildRegistry(appCfg.Pools)
	if err != nil {
		return fmt.Errorf("initialise pools: %w", err)
	}
	if err := telemetry.ObservePools(meterProvider, string(appCfg.Environment), registry); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	results, runErr := runWorkloads(ctx, appCfg, pools)
	for _, res := range results {
		logger.Printf("pool %s: borrows=%d fallbacks=%d detached=%d elapsed=%v",
			res.Pool, res.Borrows, res.Fallbacks, res.Detached, res.Elapsed)
	}

	var shutdownErrs []error
	if runErr != nil {
		shutdownErrs = append(shutdownErrs, runErr)
	}
	if err := registry.WriteJSON(stdout); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("write snapshot: %w", err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), appCfg.DrainTimeout)
	if err := registry.Drain(drainCtx); err != nil {
		shutdownErrs = append(shutdownErrs, err)
	}
	drainCancel()

	telemetryCtx, telemetryCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	if err := shutdownTelemetry(telemetryCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	telemetryCancel()

	return observability.AggregateErrors("poolbench", shutdownErrs)
}

type namedPool struct {
	cfg  config.PoolConfig
	pool *pool.Pool[*bytes.Buffer]
}

func buildRegistry(cfgs []config.PoolConfig) (*pool.Registry, []namedPool, error) {
	registry := pool.NewRegistry()
	pools := make([]namedPool, 0, len(cfgs))
	for _, cfg := range cfgs {
		bufferSize := cfg.BufferSize
		p := pool.New(cfg.Name, cfg.Capacity, func() *bytes.Buffer {
			return bytes.NewBuffer(make([]byte, 0, bufferSize))
		}, pool.WithLogger(observability.Log()))
		if err := registry.Register(p); err != nil {
			return nil, nil, fmt.Errorf("register %s pool: %w", cfg.Name, err)
		}
		pools = append(pools, namedPool{cfg: cfg, pool: p})
	}
	return registry, pools, nil
}

func runWorkloads(ctx context.Context, appCfg config.AppConfig, pools []namedPool) ([]workload.Result, error) {
	var (
		wg      conc.WaitGroup
		mu      sync.Mutex
		errList []error
	)
	results := make([]workload.Result, len(pools))
	for i, np := range pools {
		wg.Go(func() {
			res, err := workload.Run(ctx, np.pool, workload.FromConfig(appCfg.Workload, np.cfg))
			results[i] = res
			if err != nil {
				mu.Lock()
				errList = append(errList, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return results, observability.AggregateErrors("workload", errList)
}
