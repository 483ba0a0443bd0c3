package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilemm/internal/api"
	"github.com/samcharles93/tilemm/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		rps         float64
		burst       int64
		maxElements int64
		storeCap    int64
	)

	flags := append([]cli.Flag{}, deviceFlags()...)
	flags = append(flags, engineFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.Float64Flag{
			Name:        "rate",
			Usage:       "multiply requests admitted per second (0 = unlimited)",
			Destination: &rps,
		},
		&cli.Int64Flag{
			Name:        "burst",
			Usage:       "multiply requests admitted in a burst",
			Value:       4,
			Destination: &burst,
		},
		&cli.Int64Flag{
			Name:        "max-elements",
			Usage:       "largest operand accepted, in elements",
			Value:       api.DefaultMaxElements,
			Destination: &maxElements,
		},
		&cli.Int64Flag{
			Name:        "store",
			Usage:       "results kept for GET /v1/matmul/:id",
			Value:       128,
			Destination: &storeCap,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the matmul REST API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyDeviceConfig(cmd, fileConfig)
			applyEngineConfig(cmd, fileConfig)
			applyServeConfig(cmd, fileConfig, &addr, &rps)

			defaults, err := engineConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			devs := knownDevices(fileConfig)
			dev, score, err := selectDevice(devs, deviceName, selectorName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			q, err := newQueue(dev, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			server := api.NewServer(api.ServerConfig{
				Queue:         q,
				Devices:       devs,
				Score:         score,
				Defaults:      defaults,
				RatePerSecond: rps,
				Burst:         int(burst),
				MaxElements:   int(maxElements),
				StoreCapacity: int(storeCap),
				Logger:        log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "device", dev.Name, "strategy", string(defaults.Strategy))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
