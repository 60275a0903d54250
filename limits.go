package main

import "time"

// Operational defaults for process-level knobs that aren't part of the
// relay's own protocol constants (internal/relay holds those).
const (
	// defaultReclaimInterval is the reclaimer's sleep-loop period.
	defaultReclaimInterval = 30 * time.Second

	// defaultAdmissionRatePerSec and defaultAdmissionBurst bound new
	// WebSocket upgrade admission; exceeding them trips CLOSE_TRY_AGAIN_LATER.
	defaultAdmissionRatePerSec = 200
	defaultAdmissionBurst      = 50

	// defaultCertValidity is how long a freshly generated self-signed
	// certificate remains valid.
	defaultCertValidity = 90 * 24 * time.Hour

	// defaultMetricsInterval is how often RunMetrics logs a gauge line.
	defaultMetricsInterval = 5 * time.Second

	// defaultIdleTimeout is the HTTP server's idle-connection timeout.
	defaultIdleTimeout = 30 * time.Second
)
