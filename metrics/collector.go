// Package metrics exports congestion-control diagnostics to Prometheus.
package metrics

import (
	"sort"
	"sync"

	"github.com/sagernet/sing-ente/congestion_ente"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "ente"
	subsystem = "congestion"
)

// Source is a connection controller that publishes snapshots.
type Source interface {
	Snapshot() congestion_ente.Snapshot
}

// Collector reports the last snapshot of every tracked controller.
type Collector struct {
	access  sync.RWMutex
	sources map[string]Source

	entropyDesc            *prometheus.Desc
	samplesDesc            *prometheus.Desc
	avgRTTDesc             *prometheus.Desc
	classificationDesc     *prometheus.Desc
	windowDesc             *prometheus.Desc
	slowStartThresholdDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector() *Collector {
	labels := []string{"connection", "strategy"}
	return &Collector{
		sources: make(map[string]Source),
		entropyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "entropy"),
			"Entropy score of the last RTT window (0-1000)",
			labels, nil,
		),
		samplesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "samples"),
			"Number of RTT samples in the history",
			labels, nil,
		),
		avgRTTDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "avg_rtt_seconds"),
			"Mean RTT of the last scored window",
			labels, nil,
		),
		classificationDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "classification"),
			"Current network-state classification (1 = active)",
			[]string{"connection", "strategy", "class"}, nil,
		),
		windowDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "window_segments"),
			"Congestion window in segments",
			labels, nil,
		),
		slowStartThresholdDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "slow_start_threshold_segments"),
			"Slow start threshold in segments",
			labels, nil,
		),
	}
}

// Track starts reporting source under label, replacing any source already
// tracked under it.
func (c *Collector) Track(label string, source Source) {
	c.access.Lock()
	defer c.access.Unlock()
	c.sources[label] = source
}

func (c *Collector) Untrack(label string) {
	c.access.Lock()
	defer c.access.Unlock()
	delete(c.sources, label)
}

// UntrackSource stops reporting label only while it still reports source, so
// a closing connection cannot remove a newer one tracked under the same label.
func (c *Collector) UntrackSource(label string, source Source) {
	c.access.Lock()
	defer c.access.Unlock()
	if c.sources[label] == source {
		delete(c.sources, label)
	}
}

// Labels returns the tracked labels in sorted order.
func (c *Collector) Labels() []string {
	c.access.RLock()
	defer c.access.RUnlock()
	labels := make([]string, 0, len(c.sources))
	for label := range c.sources {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entropyDesc
	ch <- c.samplesDesc
	ch <- c.avgRTTDesc
	ch <- c.classificationDesc
	ch <- c.windowDesc
	ch <- c.slowStartThresholdDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.access.RLock()
	snapshots := make(map[string]congestion_ente.Snapshot, len(c.sources))
	for label, source := range c.sources {
		snapshots[label] = source.Snapshot()
	}
	c.access.RUnlock()

	for label, snapshot := range snapshots {
		ch <- prometheus.MustNewConstMetric(c.windowDesc, prometheus.GaugeValue, float64(snapshot.CongestionWindow), label, snapshot.Strategy)
		ch <- prometheus.MustNewConstMetric(c.slowStartThresholdDesc, prometheus.GaugeValue, float64(snapshot.SlowStartThreshold), label, snapshot.Strategy)
		// strategies without diagnostics only report their window
		if !snapshot.HasInfo {
			continue
		}
		info := snapshot.Info
		ch <- prometheus.MustNewConstMetric(c.entropyDesc, prometheus.GaugeValue, float64(info.Entropy), label, snapshot.Strategy)
		ch <- prometheus.MustNewConstMetric(c.samplesDesc, prometheus.GaugeValue, float64(info.Samples), label, snapshot.Strategy)
		ch <- prometheus.MustNewConstMetric(c.avgRTTDesc, prometheus.GaugeValue, info.AvgRTT.Seconds(), label, snapshot.Strategy)
		for _, class := range congestion_ente.Classifications {
			val := 0.0
			if class == info.Classification {
				val = 1.0
			}
			ch <- prometheus.MustNewConstMetric(c.classificationDesc, prometheus.GaugeValue, val, label, snapshot.Strategy, class.String())
		}
	}
}
