package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_ReportEmpty(t *testing.T) {
	r := NewRecorder()
	rep := r.Report()
	assert.Equal(t, 0, rep.Count)
	assert.Zero(t, rep.P50)
}

func TestRecorder_MinMaxMean(t *testing.T) {
	r := NewRecorder()
	for _, d := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		r.Record(Sample{ExecutionTime: d})
	}
	rep := r.Report()
	assert.Equal(t, 3, rep.Count)
	assert.Equal(t, 10*time.Millisecond, rep.Min)
	assert.Equal(t, 30*time.Millisecond, rep.Max)
	assert.Equal(t, 20*time.Millisecond, rep.Mean)
}

func TestRecorder_PercentilesConverge(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 1000; i++ {
		r.Record(Sample{ExecutionTime: time.Duration(i) * time.Microsecond})
	}
	rep := r.Report()
	// P² is an estimator; allow generous tolerance rather than asserting
	// an exact quantile.
	assert.InDelta(t, 500*float64(time.Microsecond), float64(rep.P50), 100*float64(time.Microsecond))
	assert.InDelta(t, 990*float64(time.Microsecond), float64(rep.P99), 50*float64(time.Microsecond))
}

func TestCounters_SnapshotAndHitRate(t *testing.T) {
	var c Counters
	c.IncQueries()
	c.IncQueries()
	c.IncCacheHits()
	c.IncQuotaExceeded()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.QuotaExceeded)
	assert.Equal(t, 0.5, snap.HitRate())
}

func TestCounters_HitRate_NoQueries(t *testing.T) {
	var c Counters
	assert.Equal(t, float64(0), c.Snapshot().HitRate())
}

func TestDiagnosticLimiter_ThrottlesWithinWindow(t *testing.T) {
	d := NewDiagnosticLimiter(time.Hour)
	assert.True(t, d.Allow("quota-exceeded"))
	assert.False(t, d.Allow("quota-exceeded"))
	// a distinct category is independent
	assert.True(t, d.Allow("cycle-detected"))
}

func TestDiagnosticLimiter_AllowsAfterInterval(t *testing.T) {
	d := NewDiagnosticLimiter(time.Millisecond)
	assert.True(t, d.Allow("quota-exceeded"))
	time.Sleep(2 * time.Millisecond)
	assert.True(t, d.Allow("quota-exceeded"))
}

func TestDumpSnapshot_WritesValidFile(t *testing.T) {
	dir := t.TempDir()
	var c Counters
	c.IncQueries()
	c.IncCacheHits()

	rec := NewRecorder()
	rec.Record(Sample{ExecutionTime: 5 * time.Millisecond})

	path := dir + "/snapshot.json"
	err := DumpSnapshot(path, &c, map[string]*Recorder{"hover": rec})
	assert := assert.New(t)
	assert.NoError(err)
	assert.FileExists(path)
}
