package memory

import (
	"fmt"

	"github.com/o2lab/ordercheck/trace"
	"github.com/o2lab/ordercheck/vclock"
	log "github.com/sirupsen/logrus"
)

// Context is what a modelled thread has to provide to touch a Cell.
type Context interface {
	ThreadID() int
	// Clock returns the thread's causality; the memory model advances and
	// joins it in place.
	Clock() *vclock.VC
	// Schedule is a preemption point taken before every access.
	Schedule()
	// Choose returns a value in [0, n).
	Choose(n int) int
	Record(a trace.Access)
}

type store struct {
	value   int
	tid     int
	seq     uint64
	release vclock.VC
}

type load struct {
	tid   int
	seq   uint64
	index int
}

// Cell is a modelled atomic integer. Its store history is the cell's
// modification order.
type Cell struct {
	name   string
	stores []store
	loads  []load
}

// NewCell creates a cell whose initial value is written by ctx.
func NewCell(ctx Context, name string, initial int) *Cell {
	c := &Cell{name: name}
	clock := ctx.Clock()
	*clock = clock.Tick(ctx.ThreadID())
	c.stores = append(c.stores, store{value: initial, tid: ctx.ThreadID(), seq: clock.Get(ctx.ThreadID())})
	return c
}

func (c *Cell) Name() string {
	return c.name
}

// Store appends v to the modification order of c.
func (c *Cell) Store(ctx Context, v int, o Ordering) {
	if !o.validForStore() {
		panic(fmt.Sprintf("%s: invalid ordering %s for store", c.name, o))
	}
	ctx.Schedule()
	tid := ctx.ThreadID()
	clock := ctx.Clock()
	*clock = clock.Tick(tid)
	s := store{value: v, tid: tid, seq: clock.Get(tid)}
	if o == Release {
		s.release = clock.Clone()
	}
	c.stores = append(c.stores, s)
	ctx.Record(trace.Access{Thread: tid, Cell: c.name, Write: true, Order: o.String(), Value: v, Index: len(c.stores) - 1})
	log.Tracef("t%d store %s=%d %s %s", tid, c.name, v, o, *clock)
}

// Load returns the value of one store visible to ctx. When more than one
// store is visible the choice is left to ctx.
func (c *Cell) Load(ctx Context, o Ordering) int {
	if !o.validForLoad() {
		panic(fmt.Sprintf("%s: invalid ordering %s for load", c.name, o))
	}
	ctx.Schedule()
	tid := ctx.ThreadID()
	clock := ctx.Clock()
	*clock = clock.Tick(tid)

	floor := c.floor(*clock)
	n := len(c.stores) - floor
	idx := len(c.stores) - 1
	if n > 1 {
		idx -= ctx.Choose(n)
	}
	s := c.stores[idx]
	if o == Acquire && s.release != nil {
		*clock = clock.Join(s.release)
	}
	c.loads = append(c.loads, load{tid: tid, seq: clock.Get(tid), index: idx})
	ctx.Record(trace.Access{Thread: tid, Cell: c.name, Order: o.String(), Value: s.value, Index: idx})
	log.Tracef("t%d load %s=%d %s (mo #%d of %d visible) %s", tid, c.name, s.value, o, idx, n, *clock)
	return s.value
}

// floor is the earliest store a thread with the given clock may still read:
// the latest store, or store read by a load, that happens-before it.
func (c *Cell) floor(clock vclock.VC) int {
	floor := 0
	for i := len(c.stores) - 1; i > floor; i-- {
		s := c.stores[i]
		if clock.Covers(s.tid, s.seq) {
			floor = i
			break
		}
	}
	for _, l := range c.loads {
		if l.index > floor && clock.Covers(l.tid, l.seq) {
			floor = l.index
		}
	}
	return floor
}

// ModificationOrder returns the values stored to c, oldest first.
func (c *Cell) ModificationOrder() []int {
	values := make([]int, len(c.stores))
	for i, s := range c.stores {
		values[i] = s.value
	}
	return values
}
