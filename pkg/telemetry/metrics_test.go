package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/fileset"
)

func TestRunMetrics_Observe(t *testing.T) {
	m := NewRunMetrics()

	m.ObserveHost("web1", engine.HostStatusSucceeded, 2*time.Second)
	m.ObserveHost("web2", engine.HostStatusFailed, time.Second)
	m.ObserveHost("web3", engine.HostStatusSucceeded, time.Second)

	m.ObserveItem(&engine.ItemResult{
		Item:     engine.CookbookItem("base"),
		Status:   engine.ItemStatusCompleted,
		Files:    fileset.Stats{Written: 3, Unchanged: 2, Deleted: 1},
		Duration: time.Second,
	})
	m.ObserveItem(&engine.ItemResult{
		Item:   engine.RecipeItem("nginx"),
		Status: engine.ItemStatusFailed,
		Files:  fileset.Stats{Skipped: 4},
	})
	m.ObserveItem(&engine.ItemResult{Item: engine.RecipeItem("motd"), Status: engine.ItemStatusSkipped})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.hosts.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hosts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("cookbook", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("recipe", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("recipe", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.files.WithLabelValues("written")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.files.WithLabelValues("unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.files.WithLabelValues("deleted")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.files.WithLabelValues("skipped")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.hostDuration))
}

func TestRunMetrics_NilIsNoop(t *testing.T) {
	var m *RunMetrics
	assert.NotPanics(t, func() {
		m.ObserveHost("web1", engine.HostStatusSucceeded, time.Second)
		m.ObserveItem(&engine.ItemResult{})
		m.RecordRun(&engine.Run{})
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestRunMetrics_WriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	start := time.Now()
	m.ObserveHost("web1", engine.HostStatusSucceeded, time.Second)
	m.RecordRun(&engine.Run{Status: engine.RunStatusSucceeded, StartedAt: start, FinishedAt: start.Add(time.Minute)})

	path := filepath.Join(t.TempDir(), "frycook.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `frycook_runs_total{status="succeeded"} 1`)
	assert.Contains(t, out, `frycook_hosts_total{status="succeeded"} 1`)
	assert.Contains(t, out, "frycook_run_duration_seconds_sum 60")
}

func TestRunMetrics_IsObserver(t *testing.T) {
	var _ engine.Observer = NewRunMetrics()
}
