package compute

import (
	"math"
	"sync"
	"sync/atomic"
)

// Kernel is the body executed once per lane.
type Kernel func(it *Item)

// Scheduler is consulted before a lane reads group-shared memory. It may block
// to delay the lane; the runtime makes no other ordering promise between
// barriers.
type Scheduler interface {
	Pause(group, lane int)
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(group, lane int)

func (f SchedulerFunc) Pause(group, lane int) { f(group, lane) }

// group is the state shared by the lanes of one group for the duration of its
// execution. Scratch and broadcast slots are stored as float64 bits so lanes
// racing without a barrier read stale values instead of corrupting memory.
type group struct {
	id     Range
	linear int
	nd     NDRange
	sched  Scheduler

	local []atomic.Uint64
	bcast [2][]atomic.Uint64
	bar   *barrier

	mu  sync.Mutex
	err error
}

func newGroup(nd NDRange, linear int, sched Scheduler) *group {
	groups := nd.Groups()
	lanes := nd.Local.Size()
	g := &group{
		id:     Range{Rows: linear / groups.Cols, Cols: linear % groups.Cols},
		linear: linear,
		nd:     nd,
		sched:  sched,
		local:  make([]atomic.Uint64, nd.LocalMem),
		bar:    newBarrier(lanes),
	}
	g.bcast[0] = make([]atomic.Uint64, lanes)
	g.bcast[1] = make([]atomic.Uint64, lanes)
	return g
}

// run executes kernel on every lane of the group and blocks until all lanes
// return. The first lane failure is returned.
func (g *group) run(kernel Kernel) error {
	lanes := g.nd.Local.Size()
	var wg sync.WaitGroup
	wg.Add(lanes)
	for lane := 0; lane < lanes; lane++ {
		it := &Item{
			g:    g,
			lane: lane,
			lrow: lane / g.nd.Local.Cols,
			lcol: lane % g.nd.Local.Cols,
		}
		go func() {
			defer wg.Done()
			defer g.recover(it.lane)
			kernel(it)
		}()
	}
	wg.Wait()
	return g.err
}

func (g *group) recover(lane int) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == errBarrierBroken {
		return
	}
	g.mu.Lock()
	if g.err == nil {
		g.err = laneError(g.linear, lane, rec)
	}
	g.mu.Unlock()
	g.bar.breakAll()
}

func (g *group) pause(lane int) {
	if g.sched != nil {
		g.sched.Pause(g.linear, lane)
	}
}

// Item identifies one lane and gives it access to the group's barrier and
// scratch memory. An Item must not be used outside its kernel invocation.
type Item struct {
	g          *group
	lane       int
	lrow, lcol int
	bcastCalls int
}

// Global returns the lane's index in the global range along d.
func (it *Item) Global(d int) int {
	return it.Group(d)*it.g.nd.Local.Dim(d) + it.Local(d)
}

// Local returns the lane's index within its group along d.
func (it *Item) Local(d int) int {
	if d == Row {
		return it.lrow
	}
	return it.lcol
}

// Group returns the group's index along d.
func (it *Item) Group(d int) int {
	return it.g.id.Dim(d)
}

// GlobalRange returns the global extent along d.
func (it *Item) GlobalRange(d int) int {
	return it.g.nd.Global.Dim(d)
}

// LocalRange returns the group extent along d.
func (it *Item) LocalRange(d int) int {
	return it.g.nd.Local.Dim(d)
}

// Lane returns the linear index of the lane in its group.
func (it *Item) Lane() int {
	return it.lane
}

// Barrier blocks until every lane of the group reaches it.
func (it *Item) Barrier() {
	if !it.g.bar.wait() {
		panic(errBarrierBroken)
	}
}

// LocalStore writes v to scratch slot i.
func (it *Item) LocalStore(i int, v float64) {
	it.g.local[i].Store(math.Float64bits(v))
}

// LocalLoad reads scratch slot i.
func (it *Item) LocalLoad(i int) float64 {
	it.g.pause(it.lane)
	return math.Float64frombits(it.g.local[i].Load())
}

// Broadcast is a collective: every lane passes its own v and receives the
// value passed by lane src. All lanes of the group must call it in the same
// order.
func (it *Item) Broadcast(v float64, src int) float64 {
	slots := it.g.bcast[it.bcastCalls&1]
	it.bcastCalls++
	slots[it.lane].Store(math.Float64bits(v))
	it.Barrier()
	it.g.pause(it.lane)
	return math.Float64frombits(slots[src].Load())
}
