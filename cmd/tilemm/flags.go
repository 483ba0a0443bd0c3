package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilemm/internal/logger"
)

var (
	configFile   string
	deviceName   string
	selectorName string
	tileSize     int64
	strategyName string
	padRemainder bool
	workers      int64
	logLevel     string
	logFormat    string
	debug        bool

	// fileConfig is loaded once by setup before any command runs.
	fileConfig Config
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to config.yaml (default: user config dir)",
		Destination: &configFile,
	}
}

func deviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "device kind (auto, gpu, cpu, host) or device name",
			Value:       "auto",
			Destination: &deviceName,
		},
		&cli.StringFlag{
			Name:        "selector",
			Usage:       "device scoring (default, vendor)",
			Value:       "default",
			Destination: &selectorName,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "groups executing at once (0 = GOMAXPROCS)",
			Destination: &workers,
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "tile",
			Aliases:     []string{"t"},
			Usage:       "tile size along the reduction dimension",
			Value:       16,
			Destination: &tileSize,
		},
		&cli.StringFlag{
			Name:        "strategy",
			Aliases:     []string{"s"},
			Usage:       "kernel strategy (local, broadcast, ndrange, range)",
			Value:       "local",
			Destination: &strategyName,
		},
		&cli.BoolFlag{
			Name:        "pad",
			Usage:       "zero-pad a partial final tile instead of rejecting it",
			Destination: &padRemainder,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, plain, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// setup loads the config file and installs the logger in ctx.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	fileConfig = cfg

	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	log := logger.NewFormat(os.Stderr, logFormat, level)
	return logger.WithContext(ctx, log), nil
}
