package observerproto

import (
	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
)

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: only stream these networks. Empty means all.
	Grids []uint64 `json:"grids,omitempty"`
	// Optional: drop network summaries, keep stats only.
	StatsOnly bool `json:"stats_only,omitempty"`
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string    `json:"protocol_version"`
	RunID           string    `json:"run_id"`
	Tick            uint64    `json:"tick"`
	RunParams       RunParams `json:"run_params"`
}

type RunParams struct {
	TickRateHz int `json:"tick_rate_hz"`
	Channels   int `json:"channels"`
	ChunkSize  int `json:"chunk_size"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string                  `json:"type"`
	ProtocolVersion string                  `json:"protocol_version"`
	RunID           string                  `json:"run_id"`
	Tick            uint64                  `json:"tick"`
	Digest          string                  `json:"digest"`
	Stats           grid.TickStats          `json:"stats"`
	Networks        []engine.NetworkSummary `json:"networks,omitempty"`
}

// NewTickMsg filters e for a subscription.
func NewTickMsg(e engine.TickEntry, sub SubscribeMsg) TickMsg {
	m := TickMsg{
		Type:            "TICK",
		ProtocolVersion: Version,
		RunID:           e.RunID,
		Tick:            e.Tick,
		Digest:          e.Digest,
		Stats:           e.Stats,
	}
	if sub.StatsOnly {
		return m
	}
	if len(sub.Grids) == 0 {
		m.Networks = e.Networks
		return m
	}
	want := make(map[uint64]bool, len(sub.Grids))
	for _, id := range sub.Grids {
		want[id] = true
	}
	for _, n := range e.Networks {
		if want[n.ID] {
			m.Networks = append(m.Networks, n)
		}
	}
	return m
}
