// Package services holds cross-cutting runtime services; currently the
// process metrics counters.
package services

import (
	"sync/atomic"
	"time"
)

type Metrics struct {
	startTime time.Time

	totalFrames      atomic.Int64
	totalErrors      atomic.Int64
	totalLatency     atomic.Int64
	drowsyDetections atomic.Int64
	lastFrameTime    atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementErrors() {
	m.totalErrors.Add(1)
}

func (m *Metrics) IncrementDrowsyDetections() {
	m.drowsyDetections.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Milliseconds())
}

func (m *Metrics) ClientConnected() {
	m.wsConnections.Add(1)
}

func (m *Metrics) ClientDisconnected() {
	m.wsConnections.Add(-1)
}

func (m *Metrics) IncrementMessages() {
	m.wsMessages.Add(1)
}

func (m *Metrics) TotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) TotalErrors() int64 {
	return m.totalErrors.Load()
}

func (m *Metrics) DrowsyDetections() int64 {
	return m.drowsyDetections.Load()
}

// AvgLatencyMs is the mean end-to-end frame latency in milliseconds.
func (m *Metrics) AvgLatencyMs() float64 {
	frames := m.totalFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(frames)
}

// DetectionRate is the share of processed frames that raised an alert.
func (m *Metrics) DetectionRate() float64 {
	frames := m.totalFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.drowsyDetections.Load()) / float64(frames)
}

func (m *Metrics) ActiveConnections() int64 {
	return m.wsConnections.Load()
}

func (m *Metrics) Messages() int64 {
	return m.wsMessages.Load()
}

func (m *Metrics) LastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) UptimeSeconds() int64 {
	return int64(time.Since(m.startTime).Seconds())
}

func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_frames":      m.TotalFrames(),
		"total_errors":      m.TotalErrors(),
		"drowsy_detections": m.DrowsyDetections(),
		"detection_rate":    m.DetectionRate(),
		"avg_latency_ms":    m.AvgLatencyMs(),
		"active_clients":    m.ActiveConnections(),
		"ws_messages":       m.Messages(),
		"system_uptime_sec": m.UptimeSeconds(),
	}
}
