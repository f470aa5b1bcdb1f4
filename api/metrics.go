package api

import (
	"fmt"
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertKeyRejectionSpike AlertType = "key_rejection_spike"
	AlertChatDenialSpike   AlertType = "chat_denial_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks sliding window counters for anomaly detection.
// A burst of rejected keys usually means someone is probing credentials
// through this service; a burst of denied chats means stale or forged
// session cookies.
type metricsCollector struct {
	mu sync.Mutex

	rejections         []time.Time
	rejectionWindow    time.Duration
	rejectionThreshold int

	denials         []time.Time
	denialWindow    time.Duration
	denialThreshold int

	alertFn AlertFunc
}

const (
	defaultRejectionWindow    = 1 * time.Minute
	defaultRejectionThreshold = 30
	defaultDenialWindow       = 1 * time.Minute
	defaultDenialThreshold    = 50
)

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{
		rejectionWindow:    defaultRejectionWindow,
		rejectionThreshold: defaultRejectionThreshold,
		denialWindow:       defaultDenialWindow,
		denialThreshold:    defaultDenialThreshold,
	}
}

// recordEvent feeds an audit event into the anomaly windows.
func (mc *metricsCollector) recordEvent(event AuditEvent) {
	switch event {
	case AuditKeyRejected, AuditKeyRateLimited:
		mc.recordRejection()
	case AuditChatDenied:
		mc.recordDenial()
	}
}

func (mc *metricsCollector) recordRejection() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	mc.rejections = pruneWindow(append(mc.rejections, now), now, mc.rejectionWindow)

	if len(mc.rejections) == mc.rejectionThreshold && mc.alertFn != nil {
		mc.alertFn(AlertEvent{
			Type:      AlertKeyRejectionSpike,
			Message:   fmt.Sprintf("%d rejected key submissions within %s", len(mc.rejections), mc.rejectionWindow),
			Count:     len(mc.rejections),
			Threshold: mc.rejectionThreshold,
			Timestamp: now,
		})
	}
}

func (mc *metricsCollector) recordDenial() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	mc.denials = pruneWindow(append(mc.denials, now), now, mc.denialWindow)

	if len(mc.denials) == mc.denialThreshold && mc.alertFn != nil {
		mc.alertFn(AlertEvent{
			Type:      AlertChatDenialSpike,
			Message:   fmt.Sprintf("%d denied chat requests within %s", len(mc.denials), mc.denialWindow),
			Count:     len(mc.denials),
			Threshold: mc.denialThreshold,
			Timestamp: now,
		})
	}
}

func pruneWindow(events []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
