// Package compute runs data-parallel kernels on a simulated accelerator.
//
// A Queue is bound to one device and is owned by its caller; there is no
// process-wide queue. Kernels launched over an NDRange execute as groups of
// lanes: groups run concurrently in no particular order on a bounded set of
// workers, while the lanes of one group run as goroutines that share scratch
// memory and synchronise with Item.Barrier.
package compute

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samcharles93/tilemm/internal/device"
	"github.com/samcharles93/tilemm/internal/logger"
)

// Queue submits launches to a device.
type Queue struct {
	dev     device.Device
	workers int
	sched   Scheduler
	log     logger.Logger

	launches atomic.Uint64
	wg       sync.WaitGroup

	mu  sync.Mutex
	err error
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers bounds the number of groups executing at once.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		q.workers = n
	}
}

// WithScheduler installs a hook consulted before scratch reads.
func WithScheduler(s Scheduler) Option {
	return func(q *Queue) {
		q.sched = s
	}
}

// WithLogger sets the queue logger.
func WithLogger(l logger.Logger) Option {
	return func(q *Queue) {
		q.log = l
	}
}

// NewQueue returns a queue bound to dev.
func NewQueue(dev device.Device, opts ...Option) (*Queue, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	q := &Queue{
		dev: dev,
		log: logger.Discard(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.workers <= 0 {
		q.workers = runtime.GOMAXPROCS(0)
	}
	return q, nil
}

// Device returns the device the queue is bound to.
func (q *Queue) Device() device.Device {
	return q.dev
}

// Launch validates nd against the device and schedules kernel once every dep
// has completed. Validation failures are returned before anything is
// scheduled. A failed dependency fails the launch without running it.
func (q *Queue) Launch(ctx context.Context, nd NDRange, kernel Kernel, deps ...*Event) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := nd.Validate(q.dev); err != nil {
		return nil, err
	}

	id := q.launches.Add(1)
	log := q.log.With("launch", id)
	groups := nd.Groups()
	log.Debug("launch",
		"global", nd.Global.String(),
		"local", nd.Local.String(),
		"groups", groups.Size(),
		"local_mem", nd.LocalMemBytes(),
		"deps", len(deps),
	)

	return q.submit(deps, func() error {
		start := time.Now()
		err := q.runGroups(nd, kernel)
		log.Debug("launch complete", "elapsed", time.Since(start), "err", err)
		return err
	}), nil
}

// ParallelFor runs fn once per point of global with no grouping and no
// shared memory.
func (q *Queue) ParallelFor(ctx context.Context, global Range, fn func(row, col int), deps ...*Event) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if global.Rows < 0 || global.Cols < 0 {
		return nil, ErrPartition
	}
	return q.submit(deps, func() error {
		return q.runRange(global, fn)
	}), nil
}

// Wait blocks until every launch submitted so far completes and returns the
// first launch error since the previous Wait.
func (q *Queue) Wait() error {
	q.wg.Wait()
	q.mu.Lock()
	err := q.err
	q.err = nil
	q.mu.Unlock()
	return err
}

func (q *Queue) submit(deps []*Event, work func() error) *Event {
	ev := newEvent()
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		err := waitAll(deps)
		if err == nil {
			err = work()
		}
		if err != nil {
			q.mu.Lock()
			if q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
		}
		ev.complete(err)
	}()
	return ev
}

// runGroups hands group indices to the worker set. Groups are independent, so
// the order they are picked up in is irrelevant.
func (q *Queue) runGroups(nd NDRange, kernel Kernel) error {
	total := nd.Groups().Size()
	if total == 0 {
		return nil
	}
	workers := min(q.workers, total)

	var (
		next  atomic.Int64
		wg    sync.WaitGroup
		errMu sync.Mutex
		first error
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				gid := int(next.Add(1) - 1)
				if gid >= total {
					return
				}
				if err := newGroup(nd, gid, q.sched).run(kernel); err != nil {
					errMu.Lock()
					if first == nil {
						first = err
					}
					errMu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	return first
}

// runRange splits rows into contiguous chunks, one per worker.
func (q *Queue) runRange(global Range, fn func(row, col int)) (err error) {
	if global.Size() == 0 {
		return nil
	}
	workers := min(q.workers, global.Rows)
	chunk := (global.Rows + workers - 1) / workers

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
	)
	for w := 0; w < workers; w++ {
		rs := w * chunk
		re := min(rs+chunk, global.Rows)
		if rs >= re {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					errMu.Lock()
					if err == nil {
						err = laneError(-1, rs, rec)
					}
					errMu.Unlock()
				}
			}()
			for r := rs; r < re; r++ {
				for c := 0; c < global.Cols; c++ {
					fn(r, c)
				}
			}
		}()
	}
	wg.Wait()
	return err
}
