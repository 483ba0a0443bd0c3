package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/tilemm/internal/compute"
	"github.com/samcharles93/tilemm/internal/device"
	"github.com/samcharles93/tilemm/internal/logger"
	"github.com/samcharles93/tilemm/internal/matmul"
)

// Config represents the tilemm configuration file (~/.config/tilemm/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	// Device selection
	Device   string          `yaml:"device"`
	Selector string          `yaml:"selector"`
	Workers  *int64          `yaml:"workers"`
	Devices  []device.Device `yaml:"devices"`

	// Engine defaults
	TileSize     *int64 `yaml:"tile_size"`
	Strategy     string `yaml:"strategy"`
	PadRemainder *bool  `yaml:"pad_remainder"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string   `yaml:"server_address"`
	RatePerSecond *float64 `yaml:"rate_per_second"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tilemm", "config.yaml")
}

// loadConfig reads the config file. A missing file yields a zero Config; a
// malformed one is an error.
func loadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	for i, d := range cfg.Devices {
		if err := d.Validate(); err != nil {
			return Config{}, fmt.Errorf("config %q: devices[%d]: %w", path, i, err)
		}
	}
	return cfg, nil
}

// applyDeviceConfig applies config file defaults to device flags that were
// not explicitly set.
func applyDeviceConfig(c *cli.Command, cfg Config) {
	if cfg.Device != "" && !c.IsSet("device") {
		deviceName = cfg.Device
	}
	if cfg.Selector != "" && !c.IsSet("selector") {
		selectorName = cfg.Selector
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		workers = *cfg.Workers
	}
}

// applyEngineConfig applies config file defaults to engine flags.
func applyEngineConfig(c *cli.Command, cfg Config) {
	if cfg.TileSize != nil && !c.IsSet("tile") {
		tileSize = *cfg.TileSize
	}
	if cfg.Strategy != "" && !c.IsSet("strategy") {
		strategyName = cfg.Strategy
	}
	if cfg.PadRemainder != nil && !c.IsSet("pad") {
		padRemainder = *cfg.PadRemainder
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, rps *float64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.RatePerSecond != nil && !c.IsSet("rate") {
		*rps = *cfg.RatePerSecond
	}
}

// knownDevices returns the host followed by the devices declared in config,
// numbered in that order.
func knownDevices(cfg Config) []device.Device {
	devs := make([]device.Device, 0, 1+len(cfg.Devices))
	devs = append(devs, device.Host())
	for _, d := range cfg.Devices {
		if d.Kind == "" {
			d.Kind = device.GPU
		}
		devs = append(devs, d)
	}
	for i := range devs {
		devs[i].ID = i
	}
	return devs
}

func scoreFunc(selector string, kind device.Kind) (device.ScoreFunc, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "", "default":
		return device.KindScore(kind), nil
	case "vendor":
		if kind == device.Auto {
			return device.VendorScore, nil
		}
		return func(d device.Device) int {
			if d.Kind != kind {
				return -1
			}
			return device.VendorScore(d)
		}, nil
	default:
		return nil, fmt.Errorf("unknown selector %q (expected default or vendor)", selector)
	}
}

// selectDevice resolves name as a device kind or, failing that, as the exact
// name of a known device.
func selectDevice(devs []device.Device, name, selector string) (device.Device, device.ScoreFunc, error) {
	kind, kindErr := device.Normalize(name)
	if kindErr != nil {
		for _, d := range devs {
			if d.Name == name {
				score, err := scoreFunc(selector, device.Auto)
				return d, score, err
			}
		}
		return device.Device{}, nil, fmt.Errorf("no device named %q: %w", name, device.ErrNoDevice)
	}
	score, err := scoreFunc(selector, kind)
	if err != nil {
		return device.Device{}, nil, err
	}
	d, err := device.Select(devs, score)
	if err != nil {
		return device.Device{}, nil, fmt.Errorf("select %s device: %w", kind, err)
	}
	return d, score, nil
}

func newQueue(dev device.Device, log logger.Logger, opts ...compute.Option) (*compute.Queue, error) {
	opts = append([]compute.Option{
		compute.WithWorkers(int(workers)),
		compute.WithLogger(log.With("device", dev.Name)),
	}, opts...)
	return compute.NewQueue(dev, opts...)
}

func engineConfig() (matmul.Config, error) {
	strategy, err := matmul.ParseStrategy(strategyName)
	if err != nil {
		return matmul.Config{}, err
	}
	return matmul.Config{
		TileSize:     int(tileSize),
		Strategy:     strategy,
		PadRemainder: padRemainder,
	}, nil
}
