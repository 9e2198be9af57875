package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncIntentCreated("")
	m.IncIntentCreated("manual_dns")
	m.IncFailure("nameserver_timeout")
	m.IncFailure("nameserver_timeout")
	m.IncVerificationCheck("dns_txt", "pending")
	m.IncNotification("linking_completed", "sent")
	m.IncIntentFinished("completed")
	m.ObserveAnalysis(120 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsCreated.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsCreated.WithLabelValues("manual_dns")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Failures.WithLabelValues("nameserver_timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationChecks.WithLabelValues("dns_txt", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("linking_completed", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsFinished.WithLabelValues("completed")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncIntentCreated("smart_mode")
		m.IncIntentFinished("failed")
		m.IncFailure("workflow_exception")
		m.IncVerificationCheck("nameserver_change", "matched")
		m.ObserveAnalysis(time.Second)
		m.IncNotification("workflow_failed", "sent")
	})
}
