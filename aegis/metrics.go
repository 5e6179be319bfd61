// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"sync"
	"time"
)

// MetricsCollector keeps in-memory counters for the session lifecycle and
// the signing pipeline. All methods are nil-safe so call sites never need
// to guard; a nil collector simply records nothing.
type MetricsCollector struct {
	mu                 sync.Mutex
	startTime          time.Time
	logins             int64
	refreshes          int64
	rotationFailures   int64
	revocations        int64
	revocationFailures int64
	signedRequests     int64
	lastRotation       time.Time
}

// MetricsSnapshot is a point-in-time copy of the collected counters.
type MetricsSnapshot struct {
	Uptime             time.Duration `json:"uptime"`
	Logins             int64         `json:"logins"`
	Refreshes          int64         `json:"refreshes"`
	RotationFailures   int64         `json:"rotation_failures"`
	Revocations        int64         `json:"revocations"`
	RevocationFailures int64         `json:"revocation_failures"`
	SignedRequests     int64         `json:"signed_requests"`
	LastRotation       time.Time     `json:"last_rotation,omitempty"`
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// RecordLogin counts a successful full login grant.
func (mc *MetricsCollector) RecordLogin() {
	if mc == nil {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.logins++
}

// RecordRefresh counts a successful token refresh and stamps the rotation
// time.
func (mc *MetricsCollector) RecordRefresh() {
	if mc == nil {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.refreshes++
	mc.lastRotation = time.Now()
}

// RecordRotationFailure counts a failed rotation attempt.
func (mc *MetricsCollector) RecordRotationFailure() {
	if mc == nil {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rotationFailures++
}

// RecordRevocation counts a token revocation attempt.
func (mc *MetricsCollector) RecordRevocation(ok bool) {
	if mc == nil {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if ok {
		mc.revocations++
	} else {
		mc.revocationFailures++
	}
}

// RecordSignedRequest counts a request signed by the request signer.
func (mc *MetricsCollector) RecordSignedRequest() {
	if mc == nil {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.signedRequests++
}

// Snapshot returns a copy of the current counters.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	if mc == nil {
		return MetricsSnapshot{}
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return MetricsSnapshot{
		Uptime:             time.Since(mc.startTime),
		Logins:             mc.logins,
		Refreshes:          mc.refreshes,
		RotationFailures:   mc.rotationFailures,
		Revocations:        mc.revocations,
		RevocationFailures: mc.revocationFailures,
		SignedRequests:     mc.signedRequests,
		LastRotation:       mc.lastRotation,
	}
}
