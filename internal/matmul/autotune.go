package matmul

import (
	"context"
	"sync"
	"time"

	"github.com/samcharles93/tilemm/internal/tensor"
)

// Shape keys a tuned configuration. The padding policy is part of the key:
// a tile tuned with padding is not valid for a strict caller.
type Shape struct {
	M, N, K      int
	ElemSize     int
	Strategy     Strategy
	PadRemainder bool
	Device       string
}

type Tuned struct {
	Config  Config
	Elapsed time.Duration
}

// Autotuner times each viable tile size once per shape and remembers the
// fastest. It is safe for concurrent use.
type Autotuner struct {
	mu    sync.RWMutex
	cache map[Shape]Tuned
}

func NewAutotuner() *Autotuner {
	return &Autotuner{
		cache: make(map[Shape]Tuned),
	}
}

// Lookup returns the cached result for s.
func (t *Autotuner) Lookup(s Shape) (Tuned, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tuned, ok := t.cache[s]
	return tuned, ok
}

func (t *Autotuner) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cache)
}

// Tune returns e's configuration with the tile size that multiplied A·B
// fastest. Candidates the device cannot run are skipped; if none are left the
// validation error of e's own configuration is returned. The range strategy
// has no tile and is returned unchanged.
func Tune[T tensor.Float](ctx context.Context, t *Autotuner, e *Engine, A, B *tensor.Mat[T]) (Config, error) {
	if err := checkOperands(A, B); err != nil {
		return Config{}, err
	}
	base := e.cfg
	if base.Strategy == "" {
		base.Strategy = StrategyLocal
	}
	elemSize := tensor.ElemSize[T]()
	shape := Shape{
		M: A.R, N: B.C, K: A.C,
		ElemSize:     elemSize,
		Strategy:     base.Strategy,
		PadRemainder: base.PadRemainder,
		Device:       e.q.Device().Name,
	}
	if tuned, ok := t.Lookup(shape); ok {
		return tuned.Config, nil
	}

	_, baseErr := Validate(e.q.Device(), shape.M, shape.N, shape.K, elemSize, base)
	if base.Strategy == StrategyRange || shape.M == 0 || shape.N == 0 {
		return base, baseErr
	}

	C := tensor.NewMat[T](shape.M, shape.N)
	best := Tuned{Elapsed: -1}
	for _, tile := range candidateTiles(base.TileSize) {
		cfg := base
		cfg.TileSize = tile
		p, err := Validate(e.q.Device(), shape.M, shape.N, shape.K, elemSize, cfg)
		if err != nil {
			continue
		}
		start := time.Now()
		if err := run(ctx, e.with(cfg), p, &C, A, B); err != nil {
			return Config{}, err
		}
		elapsed := time.Since(start)
		e.log.Debug("autotune candidate", "m", shape.M, "n", shape.N, "k", shape.K, "tile", tile, "elapsed", elapsed)
		if best.Elapsed < 0 || elapsed < best.Elapsed {
			best = Tuned{Config: cfg, Elapsed: elapsed}
		}
	}
	if best.Elapsed < 0 {
		return Config{}, baseErr
	}

	t.mu.Lock()
	t.cache[shape] = best
	t.mu.Unlock()
	e.log.Info("autotuned tile size", "m", shape.M, "n", shape.N, "k", shape.K,
		"strategy", string(base.Strategy), "tile", best.Config.TileSize, "elapsed", best.Elapsed)
	return best.Config, nil
}

// candidateTiles lists base, its half and double, then the common widths,
// without repeats.
func candidateTiles(base int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, tile := range []int{base, base / 2, base * 2, 8, 16, 32, 64} {
		if tile <= 0 || seen[tile] {
			continue
		}
		seen[tile] = true
		out = append(out, tile)
	}
	return out
}
