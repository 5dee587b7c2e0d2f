// Package rtprio elevates the calling execution context to realtime
// scheduling priority for the duration of a frequency ramp. Without the
// elevation the caller can be preempted mid-ramp and leave the core idling
// at the old, slower frequency.
package rtprio

import (
	"fmt"
	"runtime"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// maxRTPriority is the highest SCHED_FIFO priority level on Linux.
const maxRTPriority = 99

// Func definitions for unit testing
var (
	schedGetAttrFunc = func() (*unix.SchedAttr, error) { return unix.SchedGetAttr(0, 0) }
	schedSetAttrFunc = func(attr *unix.SchedAttr) error { return unix.SchedSetAttr(0, attr, 0) }
)

// Elevator raises the calling goroutine's OS thread to realtime priority.
// The returned restore func reverts the thread to its previous scheduling
// attributes and must be called exactly once, on every exit path.
type Elevator interface {
	Elevate() (restore func(), err error)
}

type fifoElevator struct {
	log logr.Logger
}

func NewFIFOElevator(log logr.Logger) Elevator {
	return &fifoElevator{log: log}
}

// Elevate pins the goroutine to its OS thread and switches the thread to
// SCHED_FIFO at the highest realtime priority. A thread already running
// FIFO is left untouched and gets a no-op restore.
func (e *fifoElevator) Elevate() (func(), error) {
	runtime.LockOSThread()

	saved, err := schedGetAttrFunc()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to read scheduling attributes: %w", err)
	}
	if saved.Policy == unix.SCHED_FIFO {
		runtime.UnlockOSThread()
		return func() {}, nil
	}

	elevated := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: maxRTPriority,
	}
	if err := schedSetAttrFunc(elevated); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to elevate to SCHED_FIFO: %w", err)
	}

	return func() {
		if err := schedSetAttrFunc(saved); err != nil {
			// The thread stays locked to this goroutine so a failed
			// restore cannot leak realtime priority to other work.
			e.log.Error(err, "failed to restore scheduling attributes")
			return
		}
		runtime.UnlockOSThread()
	}, nil
}
