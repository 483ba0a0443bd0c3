package matmul

import (
	"fmt"
	"strings"

	"github.com/samcharles93/tilemm/internal/compute"
	"github.com/samcharles93/tilemm/internal/device"
)

// Strategy selects the kernel used for a multiply.
type Strategy string

const (
	// StrategyLocal stages A row segments through group scratch memory with
	// two barriers per tile.
	StrategyLocal Strategy = "local"
	// StrategyBroadcast keeps each lane's A element in a register and
	// broadcasts it across the group instead of using scratch memory.
	StrategyBroadcast Strategy = "broadcast"
	// StrategyNDRange uses the same partition without any staging.
	StrategyNDRange Strategy = "ndrange"
	// StrategyRange runs one independent work item per output element.
	StrategyRange Strategy = "range"
)

// Strategies lists every strategy in display order.
var Strategies = []Strategy{StrategyLocal, StrategyBroadcast, StrategyNDRange, StrategyRange}

// ParseStrategy maps a user supplied name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if s == "" {
		return StrategyLocal, nil
	}
	switch s {
	case StrategyLocal, StrategyBroadcast, StrategyNDRange, StrategyRange:
		return s, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (expected local, broadcast, ndrange, or range)", name)
	}
}

// DefaultTileSize is the tile width used when none is configured.
const DefaultTileSize = 16

// Config holds the launch parameters of an Engine.
type Config struct {
	TileSize int
	Strategy Strategy

	// PadRemainder accepts a reduction dimension that is not a multiple of
	// the tile; the final partial tile is zero-filled in scratch memory.
	PadRemainder bool
}

// DefaultConfig returns the local-memory strategy with DefaultTileSize.
func DefaultConfig() Config {
	return Config{
		TileSize: DefaultTileSize,
		Strategy: StrategyLocal,
	}
}

// Plan is a validated launch description.
type Plan struct {
	M, N, K  int
	Tile     int
	Tiles    int
	Strategy Strategy
	NDRange  compute.NDRange

	// Empty is set when the result has no elements; nothing is launched.
	Empty bool
}

// Validate checks an M×K by K×N multiply with elements of elemSize bytes
// against cfg and dev. Every constraint is checked before anything is
// scheduled.
func Validate(dev device.Device, m, n, k, elemSize int, cfg Config) (Plan, error) {
	if m < 0 || n < 0 || k < 0 {
		return Plan{}, configErrorf("dimensions", "negative dimension %dx%dx%d", m, n, k)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyLocal
	}
	p := Plan{M: m, N: n, K: k, Tile: cfg.TileSize, Strategy: strategy}
	if m == 0 || n == 0 {
		p.Empty = true
		return p, nil
	}

	if strategy == StrategyRange {
		p.Tile = 1
		p.Tiles = k
		p.NDRange = compute.NDRange{Global: compute.Range{Rows: m, Cols: n}, Local: compute.Range{Rows: 1, Cols: 1}}
		return p, nil
	}

	tile := cfg.TileSize
	if tile <= 0 {
		return Plan{}, configErrorf("tile size", "tile size %d must be positive", tile)
	}
	staged := strategy == StrategyLocal || strategy == StrategyBroadcast
	if staged && k%tile != 0 && !cfg.PadRemainder {
		return Plan{}, configErrorf("tile divides reduction dimension", "tile size %d does not divide K=%d", tile, k)
	}
	if n%tile != 0 {
		return Plan{}, configErrorf("local extent divides global extent", "group width %d does not divide N=%d", tile, n)
	}

	if tile > dev.MaxGroupSize {
		return Plan{}, &ResourceError{Resource: "group size", Requested: tile, Available: dev.MaxGroupSize, Device: dev.Name}
	}
	nd := compute.NDRange{
		Global: compute.Range{Rows: m, Cols: n},
		Local:  compute.Range{Rows: 1, Cols: tile},
	}
	switch strategy {
	case StrategyLocal:
		nd.LocalMem = tile
		nd.LocalElemSize = elemSize
		if bytes := nd.LocalMemBytes(); bytes > dev.LocalMemBytes {
			return Plan{}, &ResourceError{Resource: "local memory bytes", Requested: bytes, Available: dev.LocalMemBytes, Device: dev.Name}
		}
	case StrategyBroadcast:
		if tile > dev.MaxSubGroupSize {
			return Plan{}, &ResourceError{Resource: "sub-group size", Requested: tile, Available: dev.MaxSubGroupSize, Device: dev.Name}
		}
	case StrategyNDRange:
	default:
		return Plan{}, configErrorf("strategy", "unknown strategy %q", strategy)
	}

	p.Tiles = (k + tile - 1) / tile
	p.NDRange = nd
	return p, nil
}
