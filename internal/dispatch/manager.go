// Package dispatch coordinates per-core frequency changes: it decides
// whether a request can run in the calling context or must be handed off to
// the target core's worker, serializes requests per core, and gates every
// change behind the core's suspend guard.
package dispatch

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/corefreq/cpu-freq-manager/internal/clock"
	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
	"github.com/corefreq/cpu-freq-manager/internal/notify"
	"github.com/corefreq/cpu-freq-manager/internal/rtprio"
)

type Manager interface {
	// RequestFrequency resolves target against the core's table in the
	// requested direction and executes the transition in the core's own
	// execution context, blocking until it completes.
	RequestFrequency(core uint, target freqtable.Frequency, rel freqtable.Relation) error

	// InitializeCore reads the core's actual frequency, corrects it onto
	// the table if needed, and starts accepting requests for the core.
	InitializeCore(core uint) error

	// CurrentFrequency reports the last known frequency of the core.
	CurrentFrequency(core uint) (freqtable.Frequency, bool)

	// Suspended reports the core's suspend gate state.
	Suspended(core uint) bool

	// Cores lists the cores this manager coordinates.
	Cores() []uint

	// Lifecycle hooks wired to the host's power-management callbacks.
	SuspendAll()
	ResumeAll()
	OnCoreOnline(core uint)
	OnCoreOfflinePrepare(core uint)
	OnCoreOfflineAborted(core uint)

	Stop()
}

// coreState is the per-core static state: one guard and one task slot per
// core, created up front and reused across requests.
type coreState struct {
	guard suspendGuard

	// The fields below are guarded by guard.mu.
	current     freqtable.Frequency
	initialized bool
	pending     *transitionTask
	worker      *coreWorker
}

// applyLocked folds a completed task into the current-frequency record.
// Idempotent; callers hold guard.mu.
func (st *coreState) applyLocked(task *transitionTask) {
	if task.applied {
		return
	}
	task.applied = true
	if task.status == nil {
		st.current = task.newFreq
	}
}

type managerImpl struct {
	clk      clock.RateSetter
	stater   clock.CoreStater
	tables   *freqtable.Registry
	executor transitionExecutor
	states   map[uint]*coreState
	log      logr.Logger
}

// NewManager creates the dispatch layer for every core the table registry
// knows about. Cores accept requests only after InitializeCore.
func NewManager(
	clk clock.RateSetter,
	stater clock.CoreStater,
	tables *freqtable.Registry,
	notifier *notify.Registry,
	log logr.Logger,
) Manager {
	m := &managerImpl{
		clk:      clk,
		stater:   stater,
		tables:   tables,
		executor: newTransitionExecutor(clk, notifier, rtprio.NewFIFOElevator(log), log),
		states:   make(map[uint]*coreState),
		log:      log,
	}
	for _, core := range tables.Cores() {
		m.states[core] = &coreState{}
	}
	return m
}

func (m *managerImpl) RequestFrequency(core uint, target freqtable.Frequency, rel freqtable.Relation) error {
	st, ok := m.states[core]
	if !ok {
		return fmt.Errorf("%w: core %d has no frequency table", ErrCoreUnavailable, core)
	}
	if !m.stater.IsActive(core) {
		m.log.V(4).Info("core is not active", "core", core)
		return fmt.Errorf("%w: core %d is offline", ErrCoreUnavailable, core)
	}

	newFreq, err := m.tables.Lookup(core, target, rel)
	if err != nil {
		return fmt.Errorf("%w: core %d target %d kHz (%s): %v",
			ErrUnsupportedFrequency, core, target, rel, err)
	}

	st.guard.mu.Lock()
	if st.guard.suspended {
		st.guard.mu.Unlock()
		m.log.V(5).Info("rejecting frequency change in suspend", "core", core)
		return fmt.Errorf("%w: core %d", ErrDeviceSuspended, core)
	}
	if !st.initialized {
		st.guard.mu.Unlock()
		return fmt.Errorf("%w: core %d not initialized", ErrCoreUnavailable, core)
	}

	// Reusing the slot requires the prior hand-off, if any, to be fully
	// finished. The wait is bounded by one hardware switch.
	if prev := st.pending; prev != nil {
		<-prev.done
		st.applyLocked(prev)
		st.pending = nil
	}
	oldFreq := st.current

	m.log.V(5).Info("target resolved", "core", core, "target", target,
		"relation", rel.String(), "selected", newFreq)

	if callerPinnedToFunc(core) {
		// Fast path: the caller already runs in the target core's
		// context. Execute under the guard lock so no suspend
		// transition can be observed mid-flight.
		err := m.executor.execute(core, oldFreq, newFreq)
		if err == nil {
			st.current = newFreq
		}
		st.guard.mu.Unlock()
		return err
	}

	task := newTransitionTask(oldFreq, newFreq)
	st.pending = task
	st.worker.submit(task)

	// The lock is not held across the wait. A suspend that lands now only
	// blocks new requests; this in-flight hand-off is allowed to finish.
	st.guard.mu.Unlock()

	<-task.done

	st.guard.mu.Lock()
	st.applyLocked(task)
	if st.pending == task {
		st.pending = nil
	}
	st.guard.mu.Unlock()

	return task.status
}

func (m *managerImpl) InitializeCore(core uint) error {
	st, ok := m.states[core]
	if !ok {
		return fmt.Errorf("%w: core %d has no frequency table", ErrCoreUnavailable, core)
	}
	table, ok := m.tables.Table(core)
	if !ok {
		return fmt.Errorf("%w: no table for core %d", ErrCoreUnavailable, core)
	}

	cur, err := m.clk.GetRate(core)
	if err != nil {
		return fmt.Errorf("failed to read current rate of core %d: %w", core, err)
	}

	// The current frequency may legitimately sit below the table's lowest
	// validated entry, so initialization alone tries both directions.
	resolved, err := table.Lookup(cur, freqtable.RelationAtLeast)
	if err != nil {
		if resolved, err = table.Lookup(cur, freqtable.RelationAtMost); err != nil {
			return fmt.Errorf("core %d at invalid frequency %d kHz: %w", core, cur, err)
		}
	}

	if resolved != cur {
		// No concurrent requests exist yet; the corrective transition
		// bypasses dispatch.
		if err := m.clk.SetRate(core, resolved); err != nil {
			return fmt.Errorf("corrective transition for core %d failed: %w", core, err)
		}
		m.log.V(4).Info("corrective transition at init", "core", core,
			"from", cur, "to", resolved)
		cur = resolved
	}

	st.guard.mu.Lock()
	st.current = cur
	if st.worker == nil {
		st.worker = newCoreWorkerFunc(core, m.executor, m.log)
	}
	st.initialized = true
	st.guard.mu.Unlock()

	m.log.V(4).Info("core ready", "core", core, "frequency", cur)
	return nil
}

func (m *managerImpl) CurrentFrequency(core uint) (freqtable.Frequency, bool) {
	st, ok := m.states[core]
	if !ok {
		return 0, false
	}
	st.guard.mu.Lock()
	defer st.guard.mu.Unlock()
	if !st.initialized {
		return 0, false
	}
	return st.current, true
}

func (m *managerImpl) Suspended(core uint) bool {
	st, ok := m.states[core]
	if !ok {
		return false
	}
	return st.guard.isSuspended()
}

func (m *managerImpl) Cores() []uint {
	cores := make([]uint, 0, len(m.states))
	for core := range m.states {
		cores = append(cores, core)
	}
	return cores
}

// SuspendAll closes every core's suspend gate before a whole-system
// suspend. Requests issued while suspended are rejected, not queued.
func (m *managerImpl) SuspendAll() {
	for core, st := range m.states {
		st.guard.setSuspended(true)
		m.log.V(5).Info("core gated for system suspend", "core", core)
	}
}

func (m *managerImpl) ResumeAll() {
	for core, st := range m.states {
		st.guard.setSuspended(false)
		m.log.V(5).Info("core gate cleared on resume", "core", core)
	}
}

// OnCoreOnline clears the core's gate and, for a core that was offline when
// the manager attached, performs the deferred initialization so the core
// starts accepting requests.
func (m *managerImpl) OnCoreOnline(core uint) {
	st, ok := m.states[core]
	if !ok {
		return
	}
	st.guard.setSuspended(false)

	st.guard.mu.Lock()
	initialized := st.initialized
	st.guard.mu.Unlock()
	if initialized {
		return
	}
	if err := m.InitializeCore(core); err != nil {
		m.log.Error(err, "late core initialization failed", "core", core)
	}
}

func (m *managerImpl) OnCoreOfflinePrepare(core uint) {
	if st, ok := m.states[core]; ok {
		st.guard.setSuspended(true)
	}
}

func (m *managerImpl) OnCoreOfflineAborted(core uint) {
	if st, ok := m.states[core]; ok {
		st.guard.setSuspended(false)
	}
}

func (m *managerImpl) Stop() {
	for core, st := range m.states {
		st.guard.mu.Lock()
		worker := st.worker
		st.worker = nil
		st.initialized = false
		st.guard.mu.Unlock()

		if worker != nil {
			worker.stop()
			m.log.V(5).Info("worker stopped", "core", core)
		}
	}
}
