package clock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/corefreq/cpu-freq-manager/internal/freqtable"
)

const (
	userspaceGovernor = "userspace"
	cpuBasePath       = "/sys/devices/system/cpu/cpu%d"

	// readinessTimeout bounds the attach-time wait for the cpufreq sysfs
	// tree to appear. Early in boot the scaling driver may not have bound
	// yet even though the CPUs are already online.
	readinessTimeout = 30 * time.Second
)

// Func definitions for unit testing
var (
	sysfsRootFunc = defaultSysfsRoot
)

func defaultSysfsRoot() string { return "" }

// SysfsClock drives core frequencies through the Linux cpufreq sysfs
// interface using the userspace governor. A single instance covers all
// cores; calls for different cores do not synchronize with each other.
type SysfsClock struct {
	latency time.Duration
	log     logr.Logger
}

// NewSysfsClock waits for the cpufreq sysfs tree of refCore to become
// readable and probes the hardware transition latency from it. refCore
// should be any core the agent manages.
func NewSysfsClock(refCore uint, log logr.Logger) (*SysfsClock, error) {
	c := &SysfsClock{log: log}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = readinessTimeout

	probe := func() error {
		_, err := os.ReadFile(cpufreqPath(refCore, "scaling_cur_freq"))
		return err
	}
	if err := backoff.Retry(probe, b); err != nil {
		return nil, fmt.Errorf("cpufreq sysfs for core %d not ready: %w", refCore, err)
	}

	c.latency = readTransitionLatency(refCore, log)
	log.V(4).Info("sysfs clock ready", "refCore", refCore, "switchLatency", c.latency)
	return c, nil
}

func cpufreqPath(core uint, resource string) string {
	return filepath.Join(sysfsRootFunc()+fmt.Sprintf(cpuBasePath, core), "cpufreq", resource)
}

func corePath(core uint, resource string) string {
	return filepath.Join(sysfsRootFunc()+fmt.Sprintf(cpuBasePath, core), resource)
}

func readTransitionLatency(core uint, log logr.Logger) time.Duration {
	data, err := os.ReadFile(cpufreqPath(core, "cpuinfo_transition_latency"))
	if err != nil {
		log.V(5).Info("transition latency not readable, reporting zero", "core", core)
		return 0
	}
	ns, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ns) * time.Nanosecond
}

func currentGovernor(core uint) (string, error) {
	data, err := os.ReadFile(cpufreqPath(core, "scaling_governor"))
	if err != nil {
		return "", fmt.Errorf("failed to read current governor for core %d: %w", core, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetRate writes freq to scaling_setspeed. The userspace governor must be
// active on the core; any other governor owns the frequency itself.
func (c *SysfsClock) SetRate(core uint, freq freqtable.Frequency) error {
	governor, err := currentGovernor(core)
	if err != nil {
		return err
	}
	if governor != userspaceGovernor {
		return fmt.Errorf("userspace governor not set for core %d (have %q)", core, governor)
	}

	if err := os.WriteFile(cpufreqPath(core, "scaling_setspeed"),
		[]byte(strconv.FormatUint(uint64(freq), 10)), 0644); err != nil {
		return fmt.Errorf("failed to set frequency for core %d: %w", core, err)
	}
	return nil
}

// GetRate reads scaling_cur_freq for core.
func (c *SysfsClock) GetRate(core uint) (freqtable.Frequency, error) {
	data, err := os.ReadFile(cpufreqPath(core, "scaling_cur_freq"))
	if err != nil {
		return 0, fmt.Errorf("failed to read current frequency for core %d: %w", core, err)
	}
	freq, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to convert frequency for core %d: %w", core, err)
	}
	return freqtable.Frequency(freq), nil
}

func (c *SysfsClock) SwitchLatency() time.Duration {
	return c.latency
}

// IsActive reports whether core is online. Core 0 has no online file on
// most systems and counts as always active.
func (c *SysfsClock) IsActive(core uint) bool {
	data, err := os.ReadFile(corePath(core, "online"))
	if err != nil {
		if os.IsNotExist(err) && core == 0 {
			return true
		}
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}
