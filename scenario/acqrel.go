// Package scenario holds the concurrent programs checked by ordercheck.
//
// The central one, AcqRel, has a producer publish a flag with a Release
// store between two relaxed stores to y, while a consumer doubles y only
// after an Acquire load has seen the flag. Whatever the schedule, y must end
// up as 4, 6 or 8.
package scenario

import (
	"errors"
	"fmt"

	"github.com/o2lab/ordercheck/explorer"
	"github.com/o2lab/ordercheck/memory"
)

var ErrInvariantViolation = errors.New("invariant violation")

// Legal lists the final values of y a correct memory model permits.
var Legal = []int{4, 6, 8}

func Valid(y int) bool {
	for _, v := range Legal {
		if v == y {
			return true
		}
	}
	return false
}

// Producer stores 3 to y, publishes x = 1, then overwrites y with 4.
func Producer(t *explorer.Thread, x, y *memory.Cell) {
	y.Store(t, 3, memory.Relaxed)
	x.Store(t, 1, memory.Release)
	y.Store(t, 4, memory.Relaxed)
}

// Consumer doubles y if it sees the producer's flag. flagOrder is Acquire in
// the correct program.
func Consumer(t *explorer.Thread, x, y *memory.Cell, flagOrder memory.Ordering) {
	v := x.Load(t, flagOrder)
	t.Observe("b.x", v)
	if v == 1 {
		old := y.Load(t, memory.Relaxed)
		t.Observe("b.y", old)
		y.Store(t, old*2, memory.Relaxed)
	}
}

// AcqRel runs producer and consumer to completion and checks y.
func AcqRel(t *explorer.Thread) {
	acqRel(t, memory.Acquire)
}

// AcqRelDemoted is AcqRel with the consumer's Acquire weakened to Relaxed.
// It has executions that leave y at 2.
func AcqRelDemoted(t *explorer.Thread) {
	acqRel(t, memory.Relaxed)
}

func acqRel(t *explorer.Thread, flagOrder memory.Ordering) {
	x := memory.NewCell(t, "x", 0)
	y := memory.NewCell(t, "y", 1)

	a := t.Go(func(t *explorer.Thread) {
		Producer(t, x, y)
	})
	b := t.Go(func(t *explorer.Thread) {
		Consumer(t, x, y, flagOrder)
	})
	a.Join(t)
	b.Join(t)

	final := y.Load(t, memory.Relaxed)
	t.Observe("y", final)
	if !Valid(final) {
		t.Fail(fmt.Errorf("%w: y = %d", ErrInvariantViolation, final))
	}
}
