package grid

import "fmt"

// gridState guards structural rebuilds and the notification phase.
//
// Transitions:
//
//	Idle -> Regenerating   (DestroyGrid, Regenerate, merge)
//	Regenerating -> Idle   (end of MarkSweep, end of construction)
//	Idle -> Notifying      (phase 1 entry)
//	Notifying -> Idle      (phase 1 exit, unless a rebuild started meanwhile)
//	Notifying -> Regenerating
//
// Entering Notifying from anything but Idle is refused and retried next tick.
type gridState uint8

const (
	stateIdle gridState = iota
	stateRegenerating
	stateNotifying
)

func (s gridState) String() string {
	switch s {
	case stateRegenerating:
		return "REGENERATING"
	case stateNotifying:
		return "NOTIFYING"
	default:
		return "IDLE"
	}
}

type channelState struct {
	level       int
	provider    NodePos
	hasProvider bool
}

// Network is a maximal connected component of conduits plus its aggregated
// per-channel signal state.
type Network struct {
	id GridID
	h  *Handler

	conduits   *orderedSet[*Conduit]
	logicNodes *orderedSet[*Conduit]

	channels    [Channels]channelState
	singleNodes [Channels]*orderedSet[NodePos]
	omniNodes   *orderedSet[NodePos]
	weakNodes   map[NodePos]struct{}

	dirty         [Channels]bool
	recompute     [Channels]bool
	mustNotify    bool
	mustRecompute bool

	state gridState
}

func newNetwork(h *Handler, id GridID) *Network {
	n := &Network{
		id:         id,
		h:          h,
		conduits:   newOrderedSet[*Conduit](),
		logicNodes: newOrderedSet[*Conduit](),
		omniNodes:  newOrderedSet[NodePos](),
		weakNodes:  map[NodePos]struct{}{},
	}
	for i := range n.singleNodes {
		n.singleNodes[i] = newOrderedSet[NodePos]()
	}
	return n
}

func (n *Network) ID() GridID { return n.id }

func (n *Network) world() World { return n.h.world }

// AddConduit inserts c. A conduit that belongs to another network pulls that whole
// network in first; if the merge is refused nothing changes. Re-adding a member only
// re-syncs its logic node status and reports false.
func (n *Network) AddConduit(c *Conduit) bool {
	if c == nil {
		return false
	}
	if c.grid != 0 && c.grid != n.id {
		if other := n.h.lookup(c.grid); other != nil {
			if !n.CanMergeGrid(other) {
				return false
			}
			n.MergeGrid(other)
			return n.conduits.Has(c)
		}
		// Handle outlived its network.
		c.grid = 0
	}
	added := n.conduits.Add(c)
	if added {
		c.grid = n.id
	}
	n.syncLogicNode(c)
	return added
}

func (n *Network) syncLogicNode(c *Conduit) {
	if c.LogicNode {
		if n.logicNodes.Add(c) {
			n.nodeAdded(c)
		}
	} else if n.logicNodes.Len() > 0 {
		if n.logicNodes.Delete(c) {
			n.nodeRemoved(c)
		}
	}
}

func (n *Network) nodeAdded(c *Conduit) {
	n.h.AddConduitForUpdate(c)
	// Rebuilds register once at the end instead of per node.
	if n.state != stateRegenerating {
		n.h.AddGrid(n)
	}
}

func (n *Network) nodeRemoved(c *Conduit) {
	if n.logicNodes.Len() == 0 {
		n.h.RemoveGrid(n)
	}
}

// RemoveConduit drops c from the membership sets. Connectivity is not re-checked
// here; callers request a re-partition once their batch of removals is done.
func (n *Network) RemoveConduit(c *Conduit) {
	if c == nil || !n.conduits.Delete(c) {
		return
	}
	if c.grid == n.id {
		c.grid = 0
	}
	if n.logicNodes.Delete(c) {
		n.nodeRemoved(c)
	}
}

func (n *Network) CanMergeGrid(other *Network) bool {
	if other == nil || other == n {
		return false
	}
	return true
}

// MergeGrid absorbs other. Exactly one network survives holding the union of both
// conduit sets; a re-partition of n is scheduled unless one is already pending on n.
func (n *Network) MergeGrid(other *Network) {
	if !n.CanMergeGrid(other) {
		return
	}
	otherRegen := other.state == stateRegenerating
	moved := other.conduits.Keys()
	n.h.debugf("grid=%d merging grid=%d conduits=%d (regenerating=%v/%v)",
		n.id, other.id, len(moved), n.state == stateRegenerating, otherRegen)

	other.DestroyGrid()
	if n.state != stateRegenerating {
		// Also covers a sweep that was pending on other.
		n.Regenerate()
	}

	prior := n.state
	n.state = stateRegenerating
	for _, c := range moved {
		n.AddConduit(c)
	}
	n.state = prior

	other.conduits.Clear()
	other.logicNodes.Clear()
	other.clearNodes()
	n.h.release(other)

	if n.logicNodes.Len() > 0 {
		n.h.AddGrid(n)
	}
	n.requestRescanAll()
	n.h.cur.Merges++
}

// DestroyGrid clears aggregate state, detaches every member's handle and
// unregisters from ticking. Membership sets are left for the caller.
func (n *Network) DestroyGrid() {
	n.state = stateRegenerating
	for i := range n.channels {
		n.channels[i] = channelState{}
	}
	for _, c := range n.conduits.Keys() {
		if c.grid == n.id {
			c.grid = 0
		}
	}
	n.h.RemoveGrid(n)
}

// Regenerate marks the network as rebuilding and asks the scheduler for a
// re-partition at the next tick boundary.
func (n *Network) Regenerate() {
	n.state = stateRegenerating
	n.h.RegenerateGrid(n)
}

func (n *Network) IsRegenerating() bool { return n.state == stateRegenerating }

func (n *Network) ConduitCount() int { return n.conduits.Len() }

func (n *Network) NodeCount() int { return n.logicNodes.Len() }

// Conduits returns the members in insertion order.
func (n *Network) Conduits() []*Conduit { return n.conduits.Keys() }

func (n *Network) HasConduit(c *Conduit) bool { return n.conduits.Has(c) }

func (n *Network) PowerLevel(channel int) int {
	if channel < 0 || channel >= Channels {
		return 0
	}
	return n.channels[channel].level
}

// Provider returns the node currently supplying channel, if any.
func (n *Network) Provider(channel int) (NodePos, bool) {
	if channel < 0 || channel >= Channels {
		return NodePos{}, false
	}
	st := n.channels[channel]
	return st.provider, st.hasProvider
}

func (n *Network) IsPowerProvider(channel int, node NodePos) bool {
	p, ok := n.Provider(channel)
	return ok && p == node
}

func (n *Network) PowerLevels() [Channels]int {
	var out [Channels]int
	for i := range n.channels {
		out[i] = n.channels[i].level
	}
	return out
}

func (n *Network) IsWeakNode(node NodePos) bool {
	_, ok := n.weakNodes[node]
	return ok
}

func (n *Network) String() string {
	return fmt.Sprintf("Network@%d; regenerating:%v; isTicking:%v", n.id, n.IsRegenerating(), n.h.IsGridTicking(n))
}

func (n *Network) clearNodes() {
	n.omniNodes.Clear()
	for _, s := range n.singleNodes {
		s.Clear()
	}
	n.weakNodes = map[NodePos]struct{}{}
}

func (n *Network) syncTicking() {
	if n.logicNodes.Len() == 0 {
		n.h.RemoveGrid(n)
	} else {
		n.h.AddGrid(n)
	}
}
