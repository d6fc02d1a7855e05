package executor

import (
	"container/heap"
	"context"
	"time"

	"github.com/eapache/queue"

	"github.com/niicoooo/libcyphal/pkg/log"
)

// DefaultMaxWakeInterval bounds the I/O poll when nothing is scheduled.
const DefaultMaxWakeInterval = 100 * time.Millisecond

// PollFunc waits for I/O for at most timeout. The transport adapter reads
// the medium here and feeds received datagrams into the presentation layer.
type PollFunc func(timeout time.Duration)

// Config configures an Executor.
type Config struct {
	// MaxWakeInterval caps the poll timeout. Default:
	// DefaultMaxWakeInterval.
	MaxWakeInterval time.Duration

	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time

	// Logger receives executor events. Nil disables logging.
	Logger log.Logger
}

// CallbackID identifies a scheduled callback for cancellation.
type CallbackID uint64

// callback is one scheduled timer entry.
type callback struct {
	id       CallbackID
	due      time.Time
	interval time.Duration // 0 = one-shot
	fn       func(now time.Time)
	index    int // heap position, -1 when popped
}

// callbackHeap orders callbacks by due time.
type callbackHeap []*callback

func (h callbackHeap) Len() int { return len(h) }

func (h callbackHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }

func (h callbackHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *callbackHeap) Push(x any) {
	cb := x.(*callback)
	cb.index = len(*h)
	*h = append(*h, cb)
}

func (h *callbackHeap) Pop() any {
	old := *h
	n := len(old)
	cb := old[n-1]
	old[n-1] = nil
	cb.index = -1
	*h = old[:n-1]
	return cb
}

// SpinResult reports timing diagnostics for one executor step.
type SpinResult struct {
	// CallbacksRun is the number of timer callbacks executed.
	CallbacksRun int

	// PostedRun is the number of posted calls executed.
	PostedRun int

	// Destroyed is the total reported by the drain hooks.
	Destroyed int

	// WorstLateness is the largest (now - due) over the callbacks run.
	WorstLateness time.Duration

	// NextDeadline is the earliest scheduled callback after this step;
	// zero when nothing is scheduled.
	NextDeadline time.Time
}

// Executor is the single-threaded cooperative driver. It is not safe for
// concurrent use: all scheduling and spinning must happen on one goroutine.
type Executor struct {
	maxWake time.Duration
	now     func() time.Time
	logger  log.Logger

	timers callbackHeap
	byID   map[CallbackID]*callback
	nextID CallbackID

	posted     *queue.Queue
	drainHooks []func() int
	poll       PollFunc
}

// New creates an executor.
func New(config Config) *Executor {
	if config.MaxWakeInterval <= 0 {
		config.MaxWakeInterval = DefaultMaxWakeInterval
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Executor{
		maxWake: config.MaxWakeInterval,
		now:     config.Clock,
		logger:  log.OrNoop(config.Logger),
		byID:    make(map[CallbackID]*callback),
		nextID:  1,
		posted:  queue.New(),
	}
}

// ScheduleAt runs fn once, at or after due.
func (e *Executor) ScheduleAt(due time.Time, fn func(now time.Time)) CallbackID {
	return e.schedule(due, 0, fn)
}

// ScheduleEvery runs fn repeatedly with the given period, first at
// now+interval. Missed periods are skipped, not replayed.
func (e *Executor) ScheduleEvery(interval time.Duration, fn func(now time.Time)) CallbackID {
	return e.schedule(e.now().Add(interval), interval, fn)
}

func (e *Executor) schedule(due time.Time, interval time.Duration, fn func(time.Time)) CallbackID {
	cb := &callback{id: e.nextID, due: due, interval: interval, fn: fn}
	e.nextID++
	e.byID[cb.id] = cb
	heap.Push(&e.timers, cb)
	return cb.id
}

// Cancel removes a scheduled callback. Reports whether it was still
// scheduled.
func (e *Executor) Cancel(id CallbackID) bool {
	cb, ok := e.byID[id]
	if !ok {
		return false
	}
	delete(e.byID, id)
	if cb.index >= 0 {
		heap.Remove(&e.timers, cb.index)
	}
	return true
}

// Post queues fn to run at the start of the next spin. The only way for
// medium adapters to hand work to the executor thread.
func (e *Executor) Post(fn func()) {
	e.posted.Add(fn)
}

// AddDrainHook registers a hook run once per spin, after callbacks and
// before the poll. The presentation layer registers FlushUnreferenced
// here; the hook returns the number of objects it destroyed.
func (e *Executor) AddDrainHook(hook func() int) {
	e.drainHooks = append(e.drainHooks, hook)
}

// SetPoll installs the bounded I/O wait. Without one, SpinOnce sleeps for
// the computed timeout instead.
func (e *Executor) SetPoll(poll PollFunc) {
	e.poll = poll
}

// Pending returns the number of scheduled callbacks.
func (e *Executor) Pending() int {
	return len(e.byID)
}

// SpinOnce runs one executor step and returns its diagnostics.
func (e *Executor) SpinOnce() SpinResult {
	var result SpinResult

	// Posted calls from the previous step, bounded by the queue length
	// at entry so a posting callback cannot starve the step.
	for n := e.posted.Length(); n > 0; n-- {
		fn := e.posted.Remove().(func())
		fn()
		result.PostedRun++
	}

	// Due timer callbacks.
	now := e.now()
	for len(e.timers) > 0 && !e.timers[0].due.After(now) {
		cb := heap.Pop(&e.timers).(*callback)
		lateness := now.Sub(cb.due)
		if lateness > result.WorstLateness {
			result.WorstLateness = lateness
		}

		if cb.interval > 0 {
			cb.due = cb.due.Add(cb.interval)
			if !cb.due.After(now) {
				cb.due = now.Add(cb.interval)
			}
			heap.Push(&e.timers, cb)
		} else {
			delete(e.byID, cb.id)
		}

		cb.fn(now)
		result.CallbacksRun++
	}

	// Deferred destructions, after user callbacks and before the wait.
	for _, hook := range e.drainHooks {
		result.Destroyed += hook()
	}

	// Bounded I/O wait.
	timeout := e.maxWake
	if len(e.timers) > 0 {
		result.NextDeadline = e.timers[0].due
		if until := result.NextDeadline.Sub(e.now()); until < timeout {
			timeout = until
		}
	}
	if timeout < 0 {
		timeout = 0
	}
	if e.poll != nil {
		e.poll(timeout)
	} else if timeout > 0 {
		time.Sleep(timeout)
	}

	// Some lateness is inherent; only gross overruns are worth an event.
	if result.WorstLateness > e.maxWake {
		e.logger.Log(log.Event{
			Timestamp: now,
			Layer:     log.LayerExecutor,
			Category:  log.CategoryError,
			Detail:    "callback lateness " + result.WorstLateness.String(),
		})
	}
	return result
}

// Spin runs SpinOnce until ctx is done.
func (e *Executor) Spin(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.SpinOnce()
	}
}
