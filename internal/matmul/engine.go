// Package matmul multiplies dense matrices on a compute queue.
//
// The default strategy partitions C into groups of one row by TileSize
// columns. Each lane owns one output element; for every TileSize-wide step of
// the reduction dimension the group cooperatively stages the matching segment
// of its A row in scratch memory, synchronises, accumulates against B, and
// synchronises again before the scratch is reused.
package matmul

import (
	"context"
	"time"

	"github.com/samcharles93/tilemm/internal/compute"
	"github.com/samcharles93/tilemm/internal/logger"
	"github.com/samcharles93/tilemm/internal/tensor"
)

// Engine runs multiplies on one queue with a fixed configuration. It holds
// no per-call state and may be used concurrently.
type Engine struct {
	q   *compute.Queue
	cfg Config
	log logger.Logger

	// skipReadBarrier drops the post-read barrier of the local strategy.
	// Tests use it to show the barrier is load-bearing.
	skipReadBarrier bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithTileSize(tile int) Option {
	return func(e *Engine) { e.cfg.TileSize = tile }
}

func WithStrategy(s Strategy) Option {
	return func(e *Engine) { e.cfg.Strategy = s }
}

func WithPadRemainder(pad bool) Option {
	return func(e *Engine) { e.cfg.PadRemainder = pad }
}

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an engine bound to q.
func New(q *compute.Queue, opts ...Option) *Engine {
	e := &Engine{
		q:   q,
		cfg: DefaultConfig(),
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) with(cfg Config) *Engine {
	c := *e
	c.cfg = cfg
	return &c
}

// Queue returns the queue the engine launches on.
func (e *Engine) Queue() *compute.Queue {
	return e.q
}

// Multiply returns A·B. A and B are not modified. Configuration and resource
// errors are reported before any work is scheduled.
func Multiply[T tensor.Float](ctx context.Context, e *Engine, A, B *tensor.Mat[T]) (tensor.Mat[T], error) {
	if err := checkOperands(A, B); err != nil {
		return tensor.Mat[T]{}, err
	}
	p, err := plan[T](e, A, B)
	if err != nil {
		return tensor.Mat[T]{}, err
	}
	C := tensor.NewMat[T](A.R, B.C)
	if err := run(ctx, e, p, &C, A, B); err != nil {
		return tensor.Mat[T]{}, err
	}
	return C, nil
}

// MultiplyInto overwrites C with A·B. Previous contents of C are never read.
// On a configuration or resource error C is left untouched.
func MultiplyInto[T tensor.Float](ctx context.Context, e *Engine, C, A, B *tensor.Mat[T]) error {
	if err := checkResult(C, A, B); err != nil {
		return err
	}
	p, err := plan[T](e, A, B)
	if err != nil {
		return err
	}
	return run(ctx, e, p, C, A, B)
}

// Launch schedules C = A·B after deps and returns its completion event
// without waiting. C must not be read until the event completes.
func Launch[T tensor.Float](ctx context.Context, e *Engine, C, A, B *tensor.Mat[T], deps ...*compute.Event) (*compute.Event, error) {
	if err := checkResult(C, A, B); err != nil {
		return nil, err
	}
	p, err := plan[T](e, A, B)
	if err != nil {
		return nil, err
	}
	return launch(ctx, e, p, C, A, B, deps...)
}

func checkOperands[T tensor.Float](A, B *tensor.Mat[T]) error {
	if A.C != B.R {
		return configErrorf("inner dimensions", "A is %dx%d, B is %dx%d", A.R, A.C, B.R, B.C)
	}
	return nil
}

// checkResult validates the operands and a caller-supplied C, which must have
// the result shape and must not share storage with A or B.
func checkResult[T tensor.Float](C, A, B *tensor.Mat[T]) error {
	if err := checkOperands(A, B); err != nil {
		return err
	}
	if C.R != A.R || C.C != B.C {
		return configErrorf("result shape", "C is %dx%d, want %dx%d", C.R, C.C, A.R, B.C)
	}
	if aliases(C, A) || aliases(C, B) {
		return configErrorf("result aliasing", "C shares storage with an operand")
	}
	return nil
}

func aliases[T tensor.Float](a, b *tensor.Mat[T]) bool {
	if len(a.Data) == 0 || len(b.Data) == 0 {
		return false
	}
	return &a.Data[0] == &b.Data[0]
}

func plan[T tensor.Float](e *Engine, A, B *tensor.Mat[T]) (Plan, error) {
	p, err := Validate(e.q.Device(), A.R, B.C, A.C, tensor.ElemSize[T](), e.cfg)
	if err != nil {
		e.log.Debug("multiply rejected", "m", A.R, "n", B.C, "k", A.C, "tile", e.cfg.TileSize, "err", err)
		return Plan{}, err
	}
	return p, nil
}

func run[T tensor.Float](ctx context.Context, e *Engine, p Plan, C, A, B *tensor.Mat[T]) error {
	start := time.Now()
	ev, err := launch(ctx, e, p, C, A, B)
	if err != nil {
		return err
	}
	if err := ev.Wait(); err != nil {
		return err
	}
	e.log.Debug("multiply complete",
		"m", p.M, "n", p.N, "k", p.K,
		"strategy", string(p.Strategy),
		"tile", p.Tile,
		"elapsed", time.Since(start),
	)
	return nil
}

func launch[T tensor.Float](ctx context.Context, e *Engine, p Plan, C, A, B *tensor.Mat[T], deps ...*compute.Event) (*compute.Event, error) {
	if p.Empty {
		return e.q.ParallelFor(ctx, compute.Range{}, func(int, int) {}, deps...)
	}
	switch p.Strategy {
	case StrategyRange:
		return e.q.ParallelFor(ctx, p.NDRange.Global, rangeKernel(C, A, B, p), deps...)
	case StrategyBroadcast:
		return e.q.Launch(ctx, p.NDRange, broadcastKernel(C, A, B, p), deps...)
	case StrategyNDRange:
		return e.q.Launch(ctx, p.NDRange, ndrangeKernel(C, A, B, p), deps...)
	default:
		return e.q.Launch(ctx, p.NDRange, localKernel(C, A, B, p, !e.skipReadBarrier), deps...)
	}
}
