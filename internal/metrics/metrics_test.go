package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRecords(t *testing.T) {
	m := New()
	m.AddRecords(StageExtracted, 10)
	m.AddRecords(StageExtracted, 5)
	m.AddRecords(StageMalformed, 0)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.records.WithLabelValues(StageExtracted)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.records))
}

func TestObserveExtract(t *testing.T) {
	m := New()
	m.ObserveExtract("cbioportal", 2*time.Second, nil)
	m.ObserveExtract("cosmic", time.Second, errors.New("boom"))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.extractErrors.WithLabelValues("cbioportal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractErrors.WithLabelValues("cosmic")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.extractDuration))
}

func TestObserveRun(t *testing.T) {
	m := New()
	finished := time.Unix(1700000000, 0)
	m.ObserveRejection([]string{"ci_too_wide", "frequency_above_max"})
	m.ObserveRejection([]string{"ci_too_wide"})
	m.ObserveRun("success", finished, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("ci_too_wide")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastSuccess))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRun))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.lastDuration))

	m.ObserveRun("partial", finished, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("partial")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddRecords(StageFrequencies, 4)
	path := filepath.Join(t.TempDir(), "oncofreq.prom")

	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `oncofreq_records_total{stage="frequencies"} 4`)
}

func TestHandler(t *testing.T) {
	m := New()
	m.AddRecords(StageLoaded, 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `oncofreq_records_total{stage="loaded"} 2`))
}
