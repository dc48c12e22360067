package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var startedAt = time.Now()

// HealthResponse defines the data the Health
// REST endpoint returns.
type HealthResponse struct {
	Status Status        `json:"status"`
	Uptime time.Duration `json:"uptime"`
	Peer   PeerHealth    `json:"peer"`
}

type PeerHealth struct {
	Connected         bool       `json:"connected"`
	HeartbeatFailures uint64     `json:"heartbeat_failures"`
	LastHeartbeat     *time.Time `json:"last_heartbeat,omitempty"`
}

// Status enumerates the health statuses of hera.
type Status string

const (
	// Healthy implies hera is connected to its worker peer.
	Healthy Status = "healthy"
	// Degraded implies hera serves requests but has no peer channel,
	// so relayed commands fail until it reconnects.
	Degraded Status = "degraded"
)

func (s *Server) health(c echo.Context) error {
	resp := HealthResponse{
		Status: Healthy,
		Uptime: time.Since(startedAt),
	}

	if s.slot != nil {
		resp.Peer.Connected = s.slot.Load() != nil
	}
	if s.heartbeat != nil {
		resp.Peer.HeartbeatFailures = s.heartbeat.Failures()
		if last := s.heartbeat.LastSuccess(); !last.IsZero() {
			resp.Peer.LastHeartbeat = &last
		}
	}
	if !resp.Peer.Connected {
		resp.Status = Degraded
	}

	return c.JSON(http.StatusOK, resp)
}
