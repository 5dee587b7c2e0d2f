package dispatch

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/corefreq/cpu-freq-manager/internal/clock"
	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
	"github.com/corefreq/cpu-freq-manager/internal/notify"
	"github.com/corefreq/cpu-freq-manager/internal/rtprio"
)

// transitionExecutor performs one frequency transition in the calling
// execution context: priority elevation while ramping up, pre notification,
// the hardware switch, post notification on success.
type transitionExecutor interface {
	execute(core uint, oldFreq, newFreq freqtable.Frequency) error
}

type transitionExecutorImpl struct {
	clk      clock.RateSetter
	notifier *notify.Registry
	elevator rtprio.Elevator
	log      logr.Logger
}

func newTransitionExecutor(
	clk clock.RateSetter,
	notifier *notify.Registry,
	elevator rtprio.Elevator,
	log logr.Logger,
) transitionExecutor {
	return &transitionExecutorImpl{
		clk:      clk,
		notifier: notifier,
		elevator: elevator,
		log:      log,
	}
}

func (e *transitionExecutorImpl) execute(core uint, oldFreq, newFreq freqtable.Frequency) error {
	// Elevate the caller to realtime while increasing frequencies so the
	// ramp cannot be stalled by preemption. Restored on every exit path,
	// including a failed switch.
	if newFreq > oldFreq {
		restore, err := e.elevator.Elevate()
		if err != nil {
			e.log.V(5).Info(fmt.Sprintf("proceeding without priority elevation, err: %v", err),
				"core", core)
		} else {
			defer restore()
		}
	}

	record := notify.Transition{Core: core, OldFreq: oldFreq, NewFreq: newFreq}
	e.notifier.Notify(record, notify.PhasePre)

	if err := e.clk.SetRate(core, newFreq); err != nil {
		return fmt.Errorf("failed to set core %d to %d kHz: %w", core, newFreq, err)
	}

	e.notifier.Notify(record, notify.PhasePost)
	return nil
}
