package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

func TestTransitionCounts(t *testing.T) {
	m := New()

	m.Transition("door", switchctl.Closed)
	m.Transition("door", switchctl.Opened)
	m.Transition("door", switchctl.Closed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("door", "CLOSED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("door", "OPENED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("door")))
}

func TestSetState(t *testing.T) {
	m := New()

	m.SetState("window", switchctl.On)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("window")))

	m.SetState("window", switchctl.Off)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("window")))

	m.Transition("window", switchctl.Opened)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("window")))
}

func TestReadError(t *testing.T) {
	m := New()

	m.ReadError("door")
	m.ReadError("door")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.readErrors.WithLabelValues("door")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.readErrors, "switch_read_errors_total"))
}

func TestDropped(t *testing.T) {
	m := New()

	m.Dropped("door")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("door")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dropped.WithLabelValues("window")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Transition("door", switchctl.Closed)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `switch_transitions_total{event="CLOSED",switch="door"} 1`), text)
	assert.True(t, strings.Contains(text, `switch_state{switch="door"} 1`))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()

	a.Transition("door", switchctl.Closed)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.transitions.WithLabelValues("door", "CLOSED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.transitions.WithLabelValues("door", "CLOSED")))
}
