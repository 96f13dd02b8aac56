// Package config manages poolbench configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/reusable/errs"
)

const configComponent = "config"

// Environment identifies the runtime environment where poolbench operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// PoolConfig describes one named buffer pool.
type PoolConfig struct {
	Name       string `yaml:"name"`
	Capacity   int    `yaml:"capacity"`
	BufferSize int    `yaml:"bufferSize"`
}

// WorkloadConfig drives the borrow/return load generator.
type WorkloadConfig struct {
	Workers       int           `yaml:"workers"`
	Iterations    int           `yaml:"iterations"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	PayloadSize   int           `yaml:"payloadSize"`
	DetachEvery   int           `yaml:"detachEvery"`
	Hold          time.Duration `yaml:"hold"`
}

// TelemetryConfig configures OpenTelemetry metric export.
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// AppConfig is the unified poolbench configuration sourced from YAML.
type AppConfig struct {
	Environment  Environment     `yaml:"environment"`
	Verbose      bool            `yaml:"verbose"`
	Pools        []PoolConfig    `yaml:"pools"`
	Workload     WorkloadConfig  `yaml:"workload"`
	Telemetry    TelemetryConfig `yaml:"telemetry"`
	DrainTimeout time.Duration   `yaml:"drainTimeout"`
}

// Default returns the configuration used when no file is supplied.
func Default() AppConfig {
	cfg := AppConfig{
		Environment: EnvDev,
		Verbose:     false,
		Pools: []PoolConfig{
			{Name: "small", Capacity: 64, BufferSize: 512},
			{Name: "large", Capacity: 8, BufferSize: 64 * 1024},
		},
		Workload: WorkloadConfig{
			Workers:       16,
			Iterations:    1000,
			RatePerSecond: 0,
			Burst:         1,
			PayloadSize:   256,
			DetachEvery:   100,
			Hold:          0,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "",
			ServiceName:   "poolbench",
			OTLPInsecure:  true,
			EnableMetrics: true,
		},
		DrainTimeout: 5 * time.Second,
	}
	return cfg
}

// Load reads and validates an AppConfig from the provided YAML file. Fields
// absent from the file keep their Default values; environment overrides are
// applied last.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	cfg.Pools = nil
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Pools == nil {
		cfg.Pools = Default().Pools
	}

	return finish(cfg)
}

// LoadOrDefault loads configPath when it exists and falls back to Default
// otherwise. The boolean reports whether the file was used.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, bool, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, false, err
	}
	cfg, err = finish(Default())
	if err != nil {
		return AppConfig{}, false, err
	}
	return cfg, false, nil
}

// ResolvePath picks the config path from the flag value, POOLBENCH_CONFIG, or the default.
func ResolvePath(flagValue, fallback string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv("POOLBENCH_CONFIG")); path != "" {
		return path
	}
	return fallback
}

func finish(cfg AppConfig) (AppConfig, error) {
	cfg.applyEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	if env := strings.TrimSpace(os.Getenv("POOLBENCH_ENV")); env != "" {
		c.Environment = Environment(env)
	}
	if endpoint := strings.TrimSpace(os.Getenv("POOLBENCH_OTLP_ENDPOINT")); endpoint != "" {
		c.Telemetry.OTLPEndpoint = endpoint
	}
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	for i := range c.Pools {
		c.Pools[i].Name = strings.TrimSpace(c.Pools[i].Name)
	}
	if c.Workload.Burst <= 0 {
		c.Workload.Burst = 1
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = Default().DrainTimeout
	}
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return invalid("environment must be one of dev, staging, prod")
	}

	if len(c.Pools) == 0 {
		return invalid("at least one pool required")
	}
	seen := make(map[string]struct{}, len(c.Pools))
	for i, p := range c.Pools {
		if p.Name == "" {
			return invalid(fmt.Sprintf("pools[%d] name required", i))
		}
		if _, ok := seen[p.Name]; ok {
			return invalid(fmt.Sprintf("duplicate pool name %q", p.Name))
		}
		seen[p.Name] = struct{}{}
		if p.Capacity < 0 {
			return invalid(fmt.Sprintf("pools[%s] capacity must be >=0", p.Name))
		}
		if p.BufferSize <= 0 {
			return invalid(fmt.Sprintf("pools[%s] bufferSize must be >0", p.Name))
		}
	}

	if c.Workload.Workers <= 0 {
		return invalid("workload workers must be >0")
	}
	if c.Workload.Iterations < 0 {
		return invalid("workload iterations must be >=0")
	}
	if c.Workload.RatePerSecond < 0 {
		return invalid("workload ratePerSecond must be >=0")
	}
	if c.Workload.PayloadSize < 0 {
		return invalid("workload payloadSize must be >=0")
	}
	if c.Workload.DetachEvery < 0 {
		return invalid("workload detachEvery must be >=0")
	}
	if c.Workload.Hold < 0 {
		return invalid("workload hold must be >=0")
	}

	if c.Telemetry.ServiceName == "" {
		return invalid("telemetry serviceName required")
	}
	return nil
}

func invalid(msg string) error {
	return errs.New(configComponent, errs.CodeInvalid, errs.WithMessage(msg))
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open poolbench config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
