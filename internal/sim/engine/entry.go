package engine

import "rednet.ai/internal/sim/grid"

// TickEntry is the read-model record of one tick. It is what the tick log, the
// index and the observer stream carry.
type TickEntry struct {
	RunID    string           `json:"run_id"`
	Tick     uint64           `json:"tick"`
	Stats    grid.TickStats   `json:"stats"`
	Networks []NetworkSummary `json:"networks"`
	Digest   string           `json:"digest"`
}

type NetworkSummary struct {
	ID        uint64             `json:"id"`
	Conduits  int                `json:"conduits"`
	Nodes     int                `json:"nodes"`
	Ticking   bool               `json:"ticking"`
	Levels    [grid.Channels]int `json:"levels"`
	Providers []ProviderSummary  `json:"providers,omitempty"`
	Members   []grid.Vec3i       `json:"members,omitempty"`
}

type ProviderSummary struct {
	Channel int          `json:"channel"`
	Node    grid.NodePos `json:"node"`
}

// Sink receives every tick entry on the simulation goroutine. Implementations must
// not block for long.
type Sink interface {
	WriteTick(entry TickEntry) error
}

func summarize(h *grid.Handler, withMembers bool) []NetworkSummary {
	nets := h.Networks()
	out := make([]NetworkSummary, 0, len(nets))
	for _, n := range nets {
		s := NetworkSummary{
			ID:       uint64(n.ID()),
			Conduits: n.ConduitCount(),
			Nodes:    n.NodeCount(),
			Ticking:  h.IsGridTicking(n),
			Levels:   n.PowerLevels(),
		}
		for ch := 0; ch < grid.Channels; ch++ {
			if node, ok := n.Provider(ch); ok {
				s.Providers = append(s.Providers, ProviderSummary{Channel: ch, Node: node})
			}
		}
		if withMembers {
			for _, c := range n.Conduits() {
				s.Members = append(s.Members, c.Pos)
			}
		}
		out = append(out, s)
	}
	return out
}
