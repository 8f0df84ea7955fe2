// Package metrics exposes dashboard, control and probe state as Prometheus metrics.
package metrics

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	controltypes "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/probe"
)

const namespace = "tempmon"

var (
	totalRecordsDesc = prometheus.NewDesc(
		namespace+"_backend_total_records", "Total records reported by the backend.", nil, nil,
	)
	pingDeltaDesc = prometheus.NewDesc(
		namespace+"_ping_delta_seconds", "Seconds since the device last pinged the backend.", nil, nil,
	)
	resetDeltaDesc = prometheus.NewDesc(
		namespace+"_reset_delta_seconds", "Seconds since the last power trigger.", nil, nil,
	)
	temperatureDesc = prometheus.NewDesc(
		namespace+"_temperature_celsius", "Latest temperature sample.", nil, nil,
	)
	humidityDesc = prometheus.NewDesc(
		namespace+"_humidity_percent", "Latest humidity sample.", nil, nil,
	)
	pcOnlineDesc = prometheus.NewDesc(
		namespace+"_pc_online", "PC power state (1=online, 0=offline).", nil, nil,
	)
	samplesDesc = prometheus.NewDesc(
		namespace+"_samples", "Samples in the last snapshot.", nil, nil,
	)
	lastUpdateDesc = prometheus.NewDesc(
		namespace+"_last_update_timestamp_seconds", "Unix time of the last applied snapshot.", nil, nil,
	)
)

// Metrics is wired into the poller, the control service and the probe.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger
	now      func() time.Time

	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	staleDrops   prometheus.Counter
	actions      *prometheus.CounterVec
	probeUp      prometheus.Gauge
	probeRTT     prometheus.Gauge
	probeLoss    prometheus.Gauge

	mu        sync.RWMutex
	snap      types.Snapshot
	hasSnap   bool
	updatedAt time.Time
}

func New(logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger,
		now:      time.Now,
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Backend polls by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Backend poll latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		staleDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Poll results dropped because a newer one was already applied.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_actions_total",
			Help:      "Power trigger attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		probeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_up",
			Help:      "Whether the probed host answered the last ICMP round.",
		}),
		probeRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_rtt_seconds",
			Help:      "Average round trip of the last ICMP round.",
		}),
		probeLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_packet_loss_percent",
			Help:      "Packet loss of the last ICMP round.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.polls, m.pollDuration, m.staleDrops, m.actions,
		m.probeUp, m.probeRTT, m.probeLoss,
		snapshotCollector{m},
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(m.logger.Handler(), slog.LevelError),
	})
}

func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) ObservePoll(ok bool, elapsed time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStale() { m.staleDrops.Inc() }

func (m *Metrics) Apply(_ context.Context, snap types.Snapshot, _ types.Display) error {
	m.mu.Lock()
	m.snap = snap
	m.hasSnap = true
	m.updatedAt = m.now()
	m.mu.Unlock()
	return nil
}

func (m *Metrics) ActionRecorded(_ context.Context, a controltypes.Action) error {
	m.actions.WithLabelValues(a.Source, a.Outcome).Inc()
	return nil
}

func (m *Metrics) ReportProbe(_ context.Context, r probe.Result) error {
	up := 0.0
	if r.Reachable {
		up = 1
	}
	m.probeUp.Set(up)
	m.probeRTT.Set(r.RTT.Seconds())
	m.probeLoss.Set(r.PacketLoss)
	return nil
}

// snapshotCollector reads the last applied snapshot at scrape time.
type snapshotCollector struct {
	m *Metrics
}

func (c snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- totalRecordsDesc
	ch <- pingDeltaDesc
	ch <- resetDeltaDesc
	ch <- temperatureDesc
	ch <- humidityDesc
	ch <- pcOnlineDesc
	ch <- samplesDesc
	ch <- lastUpdateDesc
}

func (c snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	c.m.mu.RLock()
	snap, ok, updatedAt := c.m.snap, c.m.hasSnap, c.m.updatedAt
	c.m.mu.RUnlock()
	if !ok {
		return
	}

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	gauge(totalRecordsDesc, float64(snap.TotalRecords))
	gauge(samplesDesc, float64(len(snap.Data)))
	gauge(lastUpdateDesc, float64(updatedAt.Unix()))
	if snap.PingDelta.Valid {
		gauge(pingDeltaDesc, float64(snap.PingDelta.Seconds))
	}
	if snap.ResetDelta.Valid {
		gauge(resetDeltaDesc, float64(snap.ResetDelta.Seconds))
	}
	if snap.PCStatus != nil {
		v := 0.0
		if *snap.PCStatus {
			v = 1
		}
		gauge(pcOnlineDesc, v)
	}
	if t, ok := latest(snap.Data, func(p types.SamplePoint) float64 { return p.Temperature }); ok {
		gauge(temperatureDesc, t)
	}
	if h, ok := latest(snap.Data, func(p types.SamplePoint) float64 { return p.Humidity }); ok {
		gauge(humidityDesc, h)
	}
}

// latest returns the value of the newest sample that has one.
func latest(samples []types.SamplePoint, value func(types.SamplePoint) float64) (float64, bool) {
	var (
		best  float64
		bestT int64
		found bool
	)
	for _, p := range samples {
		v := value(p)
		if math.IsNaN(v) {
			continue
		}
		if !found || p.Timestamp >= bestT {
			best, bestT, found = v, p.Timestamp, true
		}
	}
	return best, found
}
