package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRejectionSpikeAlert(t *testing.T) {
	mc := newMetricsCollector()
	mc.rejectionThreshold = 3

	var alerts []AlertEvent
	mc.alertFn = func(e AlertEvent) { alerts = append(alerts, e) }

	mc.recordEvent(AuditKeyRejected)
	mc.recordEvent(AuditKeyRejected)
	assert.Empty(t, alerts)

	mc.recordEvent(AuditKeyRateLimited)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertKeyRejectionSpike, alerts[0].Type)
	assert.Equal(t, 3, alerts[0].Count)
	assert.Equal(t, 3, alerts[0].Threshold)

	// Firing once at the threshold, not on every event past it.
	mc.recordEvent(AuditKeyRejected)
	assert.Len(t, alerts, 1)
}

func TestMetricsDenialSpikeAlert(t *testing.T) {
	mc := newMetricsCollector()
	mc.denialThreshold = 2

	var alerts []AlertEvent
	mc.alertFn = func(e AlertEvent) { alerts = append(alerts, e) }

	mc.recordEvent(AuditChatDenied)
	mc.recordEvent(AuditChatDenied)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertChatDenialSpike, alerts[0].Type)
}

func TestMetricsSuccessEventsDoNotCount(t *testing.T) {
	mc := newMetricsCollector()
	mc.rejectionThreshold = 1
	mc.denialThreshold = 1

	var alerts []AlertEvent
	mc.alertFn = func(e AlertEvent) { alerts = append(alerts, e) }

	mc.recordEvent(AuditKeyValidated)
	mc.recordEvent(AuditChatRelayed)
	mc.recordEvent(AuditLogout)
	assert.Empty(t, alerts)
}

func TestPruneWindowDropsOldEvents(t *testing.T) {
	now := time.Now()
	events := []time.Time{
		now.Add(-2 * time.Minute),
		now.Add(-30 * time.Second),
		now,
	}
	kept := pruneWindow(events, now, time.Minute)
	assert.Len(t, kept, 2)
}
