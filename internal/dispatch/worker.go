package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
)

// Func definitions for unit testing
var (
	setAffinityFunc    = setAffinity
	callerPinnedToFunc = callerPinnedTo
	newCoreWorkerFunc  = newCoreWorker
)

// transitionTask is the per-core task slot payload: one pending request with
// its result and completion signal. At most one task is outstanding per core
// at any time; the dispatcher drains the previous task before arming a new
// one.
type transitionTask struct {
	oldFreq freqtable.Frequency
	newFreq freqtable.Frequency

	// status is written by the worker before done is closed and read by
	// the dispatcher only after done.
	status error
	done   chan struct{}

	// applied marks that status has been folded into the core's current
	// frequency record. Guarded by the core's suspendGuard lock.
	applied bool
}

func newTransitionTask(oldFreq, newFreq freqtable.Frequency) *transitionTask {
	return &transitionTask{
		oldFreq: oldFreq,
		newFreq: newFreq,
		done:    make(chan struct{}),
	}
}

func (t *transitionTask) complete(status error) {
	t.status = status
	close(t.done)
}

// coreWorker owns the execution context of one core. Hand-off requests run
// on its goroutine, which is locked to an OS thread pinned to the core, so
// every transition executes in the target core's own context.
type coreWorker struct {
	coreID   uint
	requests chan *transitionTask

	executor   transitionExecutor
	cancelFunc func()
	waitGroup  sync.WaitGroup
	log        logr.Logger
}

func newCoreWorker(coreID uint, executor transitionExecutor, log logr.Logger) *coreWorker {
	ctx, cancelFunc := context.WithCancel(context.Background())

	w := &coreWorker{
		coreID: coreID,
		// One-slot channel: the single-outstanding-request invariant is
		// enforced by the dispatcher draining the prior task, so submit
		// never blocks.
		requests:   make(chan *transitionTask, 1),
		executor:   executor,
		cancelFunc: cancelFunc,
		log:        log,
	}
	w.waitGroup.Add(1)

	go w.runLoop(ctx)

	return w
}

// submit arms the slot with a new task. Callers must hold the core's guard
// lock and must have drained any prior task first.
func (w *coreWorker) submit(task *transitionTask) {
	w.requests <- task
}

func (w *coreWorker) stop() {
	w.cancelFunc()
	w.waitGroup.Wait()
}

func (w *coreWorker) runLoop(ctx context.Context) {
	defer w.waitGroup.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := setAffinityFunc(w.coreID); err != nil {
		w.log.V(5).Info(fmt.Sprintf("could not pin worker thread, err: %v", err),
			"core", w.coreID)
	}

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case task := <-w.requests:
			task.complete(w.executor.execute(w.coreID, task.oldFreq, task.newFreq))
		}
	}
}

// drain completes any task armed after the stop was issued so its caller
// does not block forever on the completion signal.
func (w *coreWorker) drain() {
	select {
	case task := <-w.requests:
		task.complete(fmt.Errorf("%w: worker for core %d stopped", ErrCoreUnavailable, w.coreID))
	default:
	}
}

// setAffinity pins the calling OS thread to core.
func setAffinity(core uint) error {
	var set unix.CPUSet
	set.Set(int(core))
	return unix.SchedSetaffinity(0, &set)
}

// callerPinnedTo reports whether the calling execution context is allowed to
// run on exactly the target core and nothing else. Only then can the
// transition execute synchronously without a hand-off.
func callerPinnedTo(core uint) bool {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return false
	}
	return set.Count() == 1 && set.IsSet(int(core))
}
