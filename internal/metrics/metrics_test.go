package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New()
	m.Frame("message")
	m.Frame("message")
	m.Dropped("backpressure")
	m.Persisted()
	m.PersistFailed()
	m.SetSessions(3)
	m.SetRooms(2)
	m.SetPairings(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("backpressure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persisted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pairings))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Frame("join")
		m.Dropped("rate")
		m.Persisted()
		m.PersistFailed()
		m.SetSessions(1)
		m.SetRooms(1)
		m.SetPairings(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Frame("join")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `huddle_frames_total{type="join"} 1`))
}
