// Package heartbeat periodically proves liveness to the worker peer
// over the shared link channel.
package heartbeat

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/caesium-cloud/hera/internal/link"
	"github.com/caesium-cloud/hera/internal/metrics"
	"github.com/caesium-cloud/hera/internal/protocol"
	"github.com/caesium-cloud/hera/pkg/log"
)

const DefaultInterval = 5 * time.Second

// Monitor sends a heartbeat frame on every tick, starting immediately.
// Ticks with no open channel are counted as skipped. Each send runs on
// its own goroutine so a slow peer never delays the schedule, and every
// failed send increments the failure counter.
type Monitor struct {
	slot     *link.Slot
	interval time.Duration
	host     string

	failures    atomic.Uint64
	lastSuccess atomic.Int64
}

func New(slot *link.Slot, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Monitor{slot: slot, interval: interval, host: host}
}

// Failures returns how many heartbeat sends have failed.
func (m *Monitor) Failures() uint64 {
	return m.failures.Load()
}

// LastSuccess returns when a heartbeat was last written, or the zero
// time if none has been.
func (m *Monitor) LastSuccess() time.Time {
	ms := m.lastSuccess.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Run blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info("heartbeat monitor started", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Beat()

		select {
		case <-ctx.Done():
			log.Info("heartbeat monitor stopped", "failures", m.Failures())
			return nil
		case <-ticker.C:
		}
	}
}

// Beat sends one heartbeat asynchronously if a channel is open.
func (m *Monitor) Beat() {
	ch := m.slot.Load()
	if ch == nil {
		metrics.HeartbeatsSkippedTotal.Inc()
		log.Debug("no peer channel, heartbeat skipped")
		return
	}

	hb := &protocol.Heartbeat{Host: m.host, Timestamp: time.Now().UnixMilli()}
	env := &protocol.Envelope{Kind: protocol.KindHeartbeat, Payload: hb.Marshal()}

	go func() {
		if err := ch.Send(env); err != nil {
			n := m.failures.Add(1)
			metrics.HeartbeatFailuresTotal.Inc()
			log.Warn("heartbeat send failed", "host", ch.Host(), "failures", n, "error", err)
			return
		}
		m.lastSuccess.Store(time.Now().UnixMilli())
		metrics.HeartbeatsSentTotal.Inc()
	}()
}
