// Package monitoring exposes the dispatch subsystem's state to prometheus:
// transition counts per core, the current frequency record, suspend gate
// state and the hardware switch latency.
package monitoring

import (
	"strconv"

	"github.com/go-logr/logr"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/corefreq/cpu-freq-manager/internal/clock"
	"github.com/corefreq/cpu-freq-manager/internal/dispatch"
	"github.com/corefreq/cpu-freq-manager/internal/notify"
)

const (
	promNamespace string = "corefreq"

	LogTopName string = "monitoring"
)

type collectorImpl struct {
	collectFunc  func(ch chan<- prom.Metric)
	describeFunc func(ch chan<- *prom.Desc)
}

func (c collectorImpl) Collect(ch chan<- prom.Metric) {
	c.collectFunc(ch)
}

func (c collectorImpl) Describe(ch chan<- *prom.Desc) {
	c.describeFunc(ch)
}

// RegisterAll wires every corefreq collector into reg and subscribes the
// transition counters to the notifier.
func RegisterAll(
	reg prom.Registerer,
	mgr dispatch.Manager,
	clk clock.RateSetter,
	notifier *notify.Registry,
	log logr.Logger,
) error {
	started := prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Name:      "transitions_started_total",
		Help:      "Frequency transitions started, per core.",
	}, []string{"core"})
	completed := prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Name:      "transitions_completed_total",
		Help:      "Frequency transitions completed successfully, per core.",
	}, []string{"core"})

	notifier.Register(func(t notify.Transition, phase notify.Phase) {
		coreLabel := strconv.Itoa(int(t.Core))
		switch phase {
		case notify.PhasePre:
			started.WithLabelValues(coreLabel).Inc()
		case notify.PhasePost:
			completed.WithLabelValues(coreLabel).Inc()
		}
	})

	collectors := []prom.Collector{
		started,
		completed,
		newCurrentFrequencyCollector(mgr, log),
		newSuspendedCollector(mgr),
		newSwitchLatencyCollector(clk),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	log.V(4).Info("prometheus collectors registered")
	return nil
}

func newCurrentFrequencyCollector(mgr dispatch.Manager, log logr.Logger) prom.Collector {
	desc := prom.NewDesc(
		prom.BuildFQName(promNamespace, "", "current_frequency_khz"),
		"Last known operating frequency of the core in kHz.",
		[]string{"core"},
		nil,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- desc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			for _, core := range mgr.Cores() {
				freq, ok := mgr.CurrentFrequency(core)
				if !ok {
					log.V(5).Info("core not initialized, skipping sample", "core", core)
					continue
				}
				ch <- prom.MustNewConstMetric(
					desc,
					prom.GaugeValue,
					float64(freq),
					strconv.Itoa(int(core)),
				)
			}
		},
	}
}

func newSuspendedCollector(mgr dispatch.Manager) prom.Collector {
	desc := prom.NewDesc(
		prom.BuildFQName(promNamespace, "", "core_suspended"),
		"Whether the core's suspend gate is currently closed (1) or open (0).",
		[]string{"core"},
		nil,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- desc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			for _, core := range mgr.Cores() {
				value := float64(0)
				if mgr.Suspended(core) {
					value = 1
				}
				ch <- prom.MustNewConstMetric(
					desc,
					prom.GaugeValue,
					value,
					strconv.Itoa(int(core)),
				)
			}
		},
	}
}

func newSwitchLatencyCollector(clk clock.RateSetter) prom.Collector {
	desc := prom.NewDesc(
		prom.BuildFQName(promNamespace, "", "switch_latency_seconds"),
		"Worst-case hardware frequency switch latency.",
		nil,
		nil,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- desc
		},
		collectFunc: func(ch chan<- prom.Metric) {
			ch <- prom.MustNewConstMetric(
				desc,
				prom.GaugeValue,
				clk.SwitchLatency().Seconds(),
			)
		},
	}
}
