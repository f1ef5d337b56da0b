package explorer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/o2lab/ordercheck/stats"
	"github.com/o2lab/ordercheck/trace"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

const DefaultMaxBranches = 1000

var (
	ErrDeadlock         = errors.New("deadlock: threads are blocked but none is runnable")
	ErrBranchLimit      = errors.New("execution exceeded the branch limit")
	ErrIterationLimit   = errors.New("exploration exceeded the iteration limit")
	ErrNondeterministic = errors.New("execution is not deterministic")
)

// Builder configures an exhaustive exploration of a concurrent body.
type Builder struct {
	// MaxPreemptions bounds the involuntary context switches per execution.
	// Zero means unbounded.
	MaxPreemptions int
	// MaxBranches bounds the choices made in one execution; zero selects
	// DefaultMaxBranches.
	MaxBranches int
	// MaxIterations bounds the number of executions; zero means unbounded.
	MaxIterations int
	Log           *log.Entry
}

type abortExecution struct {
	err error
}

type failureSignal struct {
	err error
}

// Failure is an execution that did not finish cleanly.
type Failure struct {
	Iteration int
	Thread    int
	Err       error
	// Token replays the failing execution through Builder.Replay.
	Token string
	Trace trace.Trace
}

func (f *Failure) Error() string {
	return fmt.Sprintf("execution %d failed in thread %d: %v", f.Iteration, f.Thread, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type execution struct {
	b           *Builder
	path        *path
	threads     []*Thread
	preemptions int
	trace       trace.Trace
	observed    map[string]int
	failure     *Failure
	done        chan struct{}
	abort       chan struct{}
}

func (b *Builder) logger() *log.Entry {
	if b.Log != nil {
		return b.Log
	}
	return log.WithField("component", "explorer")
}

// Check runs body under every schedule and every permitted read-from
// choice, stopping at the first failing execution.
func (b *Builder) Check(ctx context.Context, body func(*Thread)) (*Report, error) {
	max := b.MaxBranches
	if max <= 0 {
		max = DefaultMaxBranches
	}
	return b.explore(ctx, newPath(max), body)
}

// Replay runs the single execution identified by token.
func (b *Builder) Replay(ctx context.Context, token string, body func(*Thread)) (*Report, error) {
	p, err := decodePath(token)
	if err != nil {
		return nil, err
	}
	return b.explore(ctx, p, body)
}

func (b *Builder) explore(ctx context.Context, p *path, body func(*Thread)) (*Report, error) {
	logger := b.logger()
	report := newReport()
	seen := make(map[[blake2b.Size256]byte]bool)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if b.MaxIterations > 0 && report.Iterations >= b.MaxIterations {
			return report, fmt.Errorf("%w: %d executions", ErrIterationLimit, report.Iterations)
		}
		e := b.run(p, body)
		report.Iterations++
		stats.IncStat(stats.NExecution)
		report.Branches += p.pos
		report.Preemptions += e.preemptions
		stats.AddStat(stats.NPreemption, e.preemptions)

		if e.failure != nil {
			e.failure.Iteration = report.Iterations
			report.Failure = e.failure
			stats.IncStat(stats.NFailure)
			logger.Debugf("Execution %d failed: %v", report.Iterations, e.failure.Err)
			return report, e.failure
		}
		fp := e.trace.Fingerprint()
		if !seen[fp] {
			seen[fp] = true
			report.DistinctTraces++
			stats.IncStat(stats.NDistinctTrace)
		}
		report.Outcomes[outcomeKey(e.observed)]++
		logger.Tracef("Execution %d: %d choices, outcome %s", report.Iterations, p.pos, outcomeKey(e.observed))

		if !p.step() {
			logger.Debugf("Explored %d executions (%d distinct traces)", report.Iterations, report.DistinctTraces)
			return report, nil
		}
	}
}

func (b *Builder) run(p *path, body func(*Thread)) *execution {
	e := &execution{
		b:        b,
		path:     p,
		observed: make(map[string]int),
		done:     make(chan struct{}),
		abort:    make(chan struct{}),
	}
	main := e.newThread()
	main.clock = main.clock.Tick(main.id)
	e.start(main, body, false)
	<-e.done
	return e
}

func (e *execution) newThread() *Thread {
	t := &Thread{id: len(e.threads), exec: e, wake: make(chan struct{}, 1)}
	e.threads = append(e.threads, t)
	return t
}

func (e *execution) start(t *Thread, body func(*Thread), parked bool) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.fail(t, r)
			}
		}()
		if parked {
			t.park()
		}
		body(t)
		e.exit(t)
	}()
}

func (e *execution) exit(t *Thread) {
	t.state = terminated
	t.clock = t.clock.Tick(t.id)
	for _, j := range t.joiners {
		j.state = runnable
	}
	t.joiners = nil
	for _, other := range e.threads {
		if other.state != terminated {
			e.switchFrom(t)
			return
		}
	}
	close(e.done)
}

func (e *execution) fail(t *Thread, r interface{}) {
	f := &Failure{Thread: t.id, Token: e.path.token(), Trace: e.trace.Copy()}
	switch sig := r.(type) {
	case abortExecution:
		f.Err = sig.err
	case failureSignal:
		f.Err = sig.err
	case error:
		f.Err = fmt.Errorf("panic: %w", sig)
	default:
		f.Err = fmt.Errorf("panic: %v", sig)
	}
	e.failure = f
	close(e.abort)
	close(e.done)
}

// switchFrom picks the thread to run after cur's next step and hands it the
// run token. It returns once cur is scheduled again.
func (e *execution) switchFrom(cur *Thread) {
	var ready []*Thread
	for _, t := range e.threads {
		if t.state == runnable {
			ready = append(ready, t)
		}
	}
	if len(ready) == 0 {
		panic(abortExecution{ErrDeadlock})
	}

	next := ready[0]
	bounded := e.b.MaxPreemptions > 0 && e.preemptions >= e.b.MaxPreemptions
	switch {
	case cur.state == runnable && bounded:
		next = cur
	case len(ready) > 1:
		next = ready[e.path.choose(scheduleBranch, len(ready))]
	}
	if cur.state == runnable && next != cur {
		e.preemptions++
	}
	if next == cur {
		return
	}
	parks := cur.state != terminated
	next.wake <- struct{}{}
	if parks {
		cur.park()
	}
}

func outcomeKey(observed map[string]int) string {
	if len(observed) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(observed))
	for k := range observed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, observed[k])
	}
	return strings.Join(parts, " ")
}
