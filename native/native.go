// Package native runs the acqrel program on real goroutines. Go's atomics
// are sequentially consistent, which is stronger than every ordering the
// modelled program asks for, so every native outcome must also be an outcome
// of the model.
package native

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/o2lab/ordercheck/scenario"
	"github.com/o2lab/ordercheck/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"
)

// CacheLineSize is the padding placed around each Cell.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

// Cell is an atomic integer on its own cache line, so that the two cells of
// the program do not share a line.
type Cell struct {
	_ cpu.CacheLinePad
	v atomic.Int64
	_ cpu.CacheLinePad
}

func NewCell(v int64) *Cell {
	c := &Cell{}
	c.v.Store(v)
	return c
}

func (c *Cell) Load() int64 {
	return c.v.Load()
}

func (c *Cell) Store(v int64) {
	c.v.Store(v)
}

func producer(x, y *Cell) {
	y.Store(3)
	x.Store(1)
	y.Store(4)
}

func consumer(x, y *Cell) {
	if x.Load() == 1 {
		old := y.Load()
		y.Store(old * 2)
	}
}

// RunOnce runs producer and consumer concurrently and returns the final y.
func RunOnce() int {
	x, y := NewCell(0), NewCell(1)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		producer(x, y)
	}()
	go func() {
		defer wg.Done()
		runtime.Gosched()
		consumer(x, y)
	}()
	wg.Wait()
	return int(y.Load())
}

// Stress runs the program iterations times spread over workers goroutines
// and returns how often each final y was seen. It stops at the first
// invariant violation.
func Stress(ctx context.Context, iterations, workers int) (map[int]int, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if iterations < 0 {
		return nil, fmt.Errorf("negative iteration count %d", iterations)
	}
	var mu sync.Mutex
	histogram := make(map[int]int)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		n := iterations / workers
		if w < iterations%workers {
			n++
		}
		g.Go(func() error {
			local := make(map[int]int)
			defer func() {
				mu.Lock()
				for y, c := range local {
					histogram[y] += c
				}
				mu.Unlock()
			}()
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				y := RunOnce()
				local[y]++
				stats.IncStat(stats.NStressRun)
				if !scenario.Valid(y) {
					return fmt.Errorf("%w: y = %d", scenario.ErrInvariantViolation, y)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	log.Debugf("Native stress: %d iterations on %d workers: %v", iterations, workers, histogram)
	return histogram, err
}
