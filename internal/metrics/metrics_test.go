package metrics

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	controltypes "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/probe"
)

func newTestMetrics() *Metrics {
	m := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return time.Unix(1714557600, 0) }
	return m
}

func TestObservePoll(t *testing.T) {
	m := newTestMetrics()
	m.ObservePoll(true, 20*time.Millisecond)
	m.ObservePoll(false, time.Second)
	m.ObservePoll(true, 30*time.Millisecond)
	m.ObserveStale()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.polls.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.staleDrops))
	assert.Equal(t, 1, testutil.CollectAndCount(m.pollDuration))
}

func TestActionRecorded(t *testing.T) {
	m := newTestMetrics()
	ctx := context.Background()
	require.NoError(t, m.ActionRecorded(ctx, controltypes.Action{Source: controltypes.SourceWeb, Outcome: controltypes.OutcomeSuccess}))
	require.NoError(t, m.ActionRecorded(ctx, controltypes.Action{Source: controltypes.SourceWeb, Outcome: controltypes.OutcomeSuccess}))
	require.NoError(t, m.ActionRecorded(ctx, controltypes.Action{Source: controltypes.SourceCLI, Outcome: controltypes.OutcomeFailure}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues(controltypes.SourceWeb, controltypes.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues(controltypes.SourceCLI, controltypes.OutcomeFailure)))
}

func TestReportProbe(t *testing.T) {
	m := newTestMetrics()
	require.NoError(t, m.ReportProbe(context.Background(), probe.Result{Reachable: true, RTT: 250 * time.Millisecond, PacketLoss: 0}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probeUp))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.probeRTT))

	require.NoError(t, m.ReportProbe(context.Background(), probe.Result{PacketLoss: 100}))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.probeUp))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.probeLoss))
}

func TestSnapshotCollector_EmptyBeforeFirstSnapshot(t *testing.T) {
	m := newTestMetrics()
	assert.Equal(t, 0, testutil.CollectAndCount(snapshotCollector{m}))
}

func TestSnapshotCollector(t *testing.T) {
	m := newTestMetrics()
	online := true
	snap := types.Snapshot{
		TotalRecords: 42,
		PingDelta:    types.Delta{Seconds: 7, Valid: true},
		PCStatus:     &online,
		Data: []types.SamplePoint{
			{Timestamp: 100, Temperature: 21.5, Humidity: 40},
			{Timestamp: 200, Temperature: 22.5, Humidity: math.NaN()},
		},
	}
	require.NoError(t, m.Apply(context.Background(), snap, types.Display{}))

	expected := `
# HELP tempmon_backend_total_records Total records reported by the backend.
# TYPE tempmon_backend_total_records gauge
tempmon_backend_total_records 42
# HELP tempmon_humidity_percent Latest humidity sample.
# TYPE tempmon_humidity_percent gauge
tempmon_humidity_percent 40
# HELP tempmon_pc_online PC power state (1=online, 0=offline).
# TYPE tempmon_pc_online gauge
tempmon_pc_online 1
# HELP tempmon_ping_delta_seconds Seconds since the device last pinged the backend.
# TYPE tempmon_ping_delta_seconds gauge
tempmon_ping_delta_seconds 7
# HELP tempmon_temperature_celsius Latest temperature sample.
# TYPE tempmon_temperature_celsius gauge
tempmon_temperature_celsius 22.5
`
	err := testutil.CollectAndCompare(snapshotCollector{m}, strings.NewReader(expected),
		"tempmon_backend_total_records", "tempmon_humidity_percent", "tempmon_pc_online",
		"tempmon_ping_delta_seconds", "tempmon_temperature_celsius", "tempmon_reset_delta_seconds")
	assert.NoError(t, err)
	// never-triggered reset delta is omitted, the rest are present
	assert.Equal(t, 7, testutil.CollectAndCount(snapshotCollector{m}))
}

func TestHandler(t *testing.T) {
	m := newTestMetrics()
	m.ObservePoll(true, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tempmon_polls_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
