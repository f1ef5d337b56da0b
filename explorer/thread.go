package explorer

import (
	"fmt"
	"runtime"

	"github.com/o2lab/ordercheck/trace"
	"github.com/o2lab/ordercheck/vclock"
)

type threadState int

const (
	runnable threadState = iota
	blocked
	terminated
)

// Thread is a modelled thread. Only the thread holding the run token of its
// execution executes; all others are parked.
type Thread struct {
	id      int
	exec    *execution
	clock   vclock.VC
	wake    chan struct{}
	state   threadState
	joiners []*Thread
}

// Handle refers to a spawned thread.
type Handle struct {
	t *Thread
}

func (t *Thread) ThreadID() int {
	return t.id
}

func (t *Thread) Clock() *vclock.VC {
	return &t.clock
}

// Schedule lets the explorer switch to any other runnable thread.
func (t *Thread) Schedule() {
	t.exec.switchFrom(t)
}

// Choose branches the execution n ways on a value read.
func (t *Thread) Choose(n int) int {
	return t.exec.path.choose(readBranch, n)
}

func (t *Thread) Record(a trace.Access) {
	t.exec.trace = append(t.exec.trace, a)
}

// Observe attaches a named value to the outcome of the current execution.
func (t *Thread) Observe(key string, value int) {
	t.exec.observed[key] = value
}

// Go spawns body as a new modelled thread. The spawn happens-before every
// operation of the new thread.
func (t *Thread) Go(body func(*Thread)) *Handle {
	t.clock = t.clock.Tick(t.id)
	child := t.exec.newThread()
	child.clock = t.clock.Clone().Tick(child.id)
	t.exec.start(child, body, true)
	return &Handle{t: child}
}

// Join blocks t until h finished. Everything h did happens-before the return.
func (h *Handle) Join(t *Thread) {
	t.Schedule()
	if h.t.state != terminated {
		t.state = blocked
		h.t.joiners = append(h.t.joiners, t)
		t.exec.switchFrom(t)
	}
	t.clock = t.clock.Join(h.t.clock).Tick(t.id)
}

// Fail aborts the execution with err.
func (t *Thread) Fail(err error) {
	panic(failureSignal{err})
}

// Assertf fails the execution unless cond holds.
func (t *Thread) Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		t.Fail(fmt.Errorf(format, args...))
	}
}

func (t *Thread) park() {
	select {
	case <-t.wake:
	case <-t.exec.abort:
		runtime.Goexit()
	}
}
