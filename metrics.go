package main

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/relay"
)

// RunMetrics logs relay-wide gauges every interval until ctx is canceled.
func RunMetrics(ctx context.Context, r *relay.Relay, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastFrames, lastBytes uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := r.Stats()
			if stats.LiveSessions == 0 && stats.FramesDispatched == lastFrames {
				continue
			}
			deltaBytes := stats.BytesDispatched - lastBytes
			deltaFrames := stats.FramesDispatched - lastFrames
			lastFrames, lastBytes = stats.FramesDispatched, stats.BytesDispatched

			log.Printf("[metrics] sessions=%d channels=%d frames=%d (+%d) reclaimed=%d rate=%s/s",
				stats.LiveSessions, stats.LiveChannels, stats.FramesDispatched, deltaFrames,
				stats.SessionsReclaimed,
				humanize.Bytes(uint64(float64(deltaBytes)/interval.Seconds())))
		}
	}
}
