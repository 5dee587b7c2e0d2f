// Package clock abstracts the platform primitive that performs the actual
// hardware frequency switch. The dispatch layer only ever talks to these
// interfaces; the sysfs implementation below is the Linux cpufreq backend.
package clock

import (
	"time"

	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
)

// RateSetter performs hardware frequency switches for individual cores.
type RateSetter interface {
	// SetRate switches core to freq. The call blocks for the duration of
	// the hardware ramp.
	SetRate(core uint, freq freqtable.Frequency) error
	// GetRate reads the frequency core is currently running at.
	GetRate(core uint) (freqtable.Frequency, error)
	// SwitchLatency reports the worst-case duration of one rate switch.
	SwitchLatency() time.Duration
}

// CoreStater reports whether a core is online and schedulable.
type CoreStater interface {
	IsActive(core uint) bool
}
