package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/tilemm/internal/logger"
	"github.com/samcharles93/tilemm/internal/matmul"
	"github.com/samcharles93/tilemm/internal/tensor"
)

func runCmd() *cli.Command {
	var (
		m, n, k  int64
		seed     int64
		single   bool
		noCheck  bool
		autotune bool
	)

	flags := append([]cli.Flag{}, deviceFlags()...)
	flags = append(flags, engineFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "m",
			Usage:       "rows of A and C",
			Value:       256,
			Destination: &m,
		},
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "columns of B and C",
			Value:       256,
			Destination: &n,
		},
		&cli.Int64Flag{
			Name:        "k",
			Usage:       "columns of A, rows of B",
			Value:       256,
			Destination: &k,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "operand seed (0 = time based)",
			Value:       1,
			Destination: &seed,
		},
		&cli.BoolFlag{
			Name:        "f32",
			Usage:       "use float32 elements instead of float64",
			Destination: &single,
		},
		&cli.BoolFlag{
			Name:        "autotune",
			Usage:       "time the viable tile sizes first and multiply with the fastest",
			Destination: &autotune,
		},
		&cli.BoolFlag{
			Name:        "no-verify",
			Usage:       "skip the serial reference check",
			Destination: &noCheck,
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Multiply random operands and check the result against a serial reference",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyDeviceConfig(cmd, fileConfig)
			applyEngineConfig(cmd, fileConfig)

			if m < 0 || n < 0 || k < 0 {
				return cli.Exit("error: dimensions must be non-negative", 1)
			}
			cfg, err := engineConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			dev, _, err := selectDevice(knownDevices(fileConfig), deviceName, selectorName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			q, err := newQueue(dev, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			fmt.Printf(" Device %s\n   Local memory size %.2f KiB\n   Max group size %d\n",
				dev, float64(dev.LocalMemBytes)/1024, dev.MaxGroupSize)

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			engine := matmul.New(q, matmul.WithConfig(cfg), matmul.WithLogger(log))
			shape := [3]int{int(m), int(n), int(k)}
			if single {
				err = runMultiply[float32](ctx, engine, shape, seed, autotune, !noCheck)
			} else {
				err = runMultiply[float64](ctx, engine, shape, seed, autotune, !noCheck)
			}
			switch {
			case err == nil:
				fmt.Println("SUCCESS")
				return nil
			case errors.Is(err, tensor.ErrNumericMismatch):
				log.Error("verification failed", "err", err)
				fmt.Println("FAILURE")
				return cli.Exit("", 1)
			default:
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
		},
	}
}

func runMultiply[T tensor.Float](ctx context.Context, e *matmul.Engine, shape [3]int, seed int64, autotune, check bool) error {
	log := logger.FromContext(ctx)
	m, n, k := shape[0], shape[1], shape[2]

	A := tensor.NewMat[T](m, k)
	B := tensor.NewMat[T](k, n)
	tensor.FillRand(&A, seed)
	tensor.FillRand(&B, seed+1)

	if autotune {
		tuned, err := matmul.Tune(ctx, matmul.NewAutotuner(), e, &A, &B)
		if err != nil {
			return err
		}
		e = matmul.New(e.Queue(), matmul.WithConfig(tuned), matmul.WithLogger(log))
	}

	cfg := e.Config()
	start := time.Now()
	C, err := matmul.Multiply(ctx, e, &A, &B)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	flops := 2 * float64(m) * float64(n) * float64(k)
	log.Info("multiply complete",
		"m", m, "n", n, "k", k,
		"strategy", string(cfg.Strategy),
		"tile", cfg.TileSize,
		"elapsed", elapsed,
		"gflops", flops/elapsed.Seconds()/1e9,
	)

	if !check {
		return nil
	}
	want := tensor.Reference(&A, &B)
	return tensor.Verify(&C, &want, tensor.DefaultTolerance)
}
