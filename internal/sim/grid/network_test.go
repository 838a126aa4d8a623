package grid

import (
	"strings"
	"testing"
)

func TestLinearNetwork_EndpointProvider(t *testing.T) {
	r := newRig(t)
	west := r.device(-1, 0, 0, map[int]int{0: 7})
	east := r.device(3, 0, 0, map[int]int{0: 4})
	c0 := r.conduit(0, 0, 0, true)
	c1 := r.conduit(1, 0, 0, false)
	c2 := r.conduit(2, 0, 0, true)

	st := r.tick()
	if st.Placed != 3 {
		t.Fatalf("placed=%d, want 3", st.Placed)
	}
	if got := len(r.h.Networks()); got != 1 {
		t.Fatalf("networks=%d, want 1", got)
	}
	n := r.net(c0)
	if r.net(c1) != n || r.net(c2) != n {
		t.Fatalf("conduits split across networks")
	}
	if got := n.PowerLevel(0); got != 7 {
		t.Fatalf("level=%d, want 7", got)
	}
	if p, ok := n.Provider(0); !ok || p != np(-1, 0, 0, West) {
		t.Fatalf("provider=%v ok=%v, want %v", p, ok, np(-1, 0, 0, West))
	}
	if west.lastSingle != 7 || east.lastSingle != 7 {
		t.Fatalf("notified west=%d east=%d, want 7/7", west.lastSingle, east.lastSingle)
	}
	if ev := west.inputs[len(west.inputs)-1]; ev.side != East {
		t.Fatalf("west device addressed on %s, want EAST", ev.side)
	}
	if !r.h.IsGridTicking(n) {
		t.Fatalf("network with logic nodes is not ticking")
	}
}

func TestRemoveMiddleConduit_Splits(t *testing.T) {
	r := newRig(t)
	r.device(-1, 0, 0, map[int]int{0: 7})
	east := r.device(3, 0, 0, map[int]int{0: 4})
	c0 := r.conduit(0, 0, 0, true)
	c1 := r.conduit(1, 0, 0, false)
	c2 := r.conduit(2, 0, 0, true)
	r.tick()

	r.removeConduit(c1)
	st := r.tick()
	if st.Sweeps != 2 {
		t.Fatalf("sweeps=%d, want 2", st.Sweeps)
	}
	if got := len(r.h.Networks()); got != 2 {
		t.Fatalf("networks=%d, want 2", got)
	}
	a, b := r.net(c0), r.net(c2)
	if a == b {
		t.Fatalf("endpoints still share a network")
	}
	if a.ConduitCount() != 1 || b.ConduitCount() != 1 {
		t.Fatalf("conduit counts=%d/%d, want 1/1", a.ConduitCount(), b.ConduitCount())
	}
	if a.NodeCount() != 1 || b.NodeCount() != 1 {
		t.Fatalf("node counts=%d/%d, want 1/1", a.NodeCount(), b.NodeCount())
	}
	if a.PowerLevel(0) != 7 || b.PowerLevel(0) != 4 {
		t.Fatalf("levels=%d/%d, want 7/4", a.PowerLevel(0), b.PowerLevel(0))
	}
	if east.lastSingle != 4 {
		t.Fatalf("east device sees %d, want 4", east.lastSingle)
	}
	if r.h.NetworkOf(c1) != nil || c1.GridID() != 0 {
		t.Fatalf("removed conduit still attached")
	}
}

func TestConnectorMergesNetworks(t *testing.T) {
	r := newRig(t)
	cA := r.conduit(0, 0, 0, true)
	cA.Sides[Up] = Side{Channel: 3}
	cB := r.conduit(2, 0, 0, true)
	cB.Sides[Up] = Side{Channel: 3}
	devA := r.device(0, 1, 0, map[int]int{3: 5})
	devB := r.device(2, 1, 0, map[int]int{3: 9})
	r.tick()
	if r.net(cA) == r.net(cB) {
		t.Fatalf("disjoint conduits share a network")
	}
	if r.net(cA).PowerLevel(3) != 5 {
		t.Fatalf("A level=%d, want 5", r.net(cA).PowerLevel(3))
	}

	link := r.conduit(1, 0, 0, false)
	st := r.tick()
	if st.Merges != 1 {
		t.Fatalf("merges=%d, want 1", st.Merges)
	}
	if got := len(r.h.Networks()); got != 1 {
		t.Fatalf("networks=%d, want 1", got)
	}
	n := r.net(link)
	if r.net(cA) != n || r.net(cB) != n {
		t.Fatalf("merge left a conduit behind")
	}
	if n.ConduitCount() != 3 || n.NodeCount() != 2 {
		t.Fatalf("conduits=%d nodes=%d, want 3/2", n.ConduitCount(), n.NodeCount())
	}
	if got := n.PowerLevel(3); got != 9 {
		t.Fatalf("level=%d, want 9", got)
	}
	if p, _ := n.Provider(3); p != np(2, 1, 0, Up) {
		t.Fatalf("provider=%v, want %v", p, np(2, 1, 0, Up))
	}
	if devA.lastSingle != 9 || devB.lastSingle != 9 {
		t.Fatalf("devices see %d/%d, want 9/9", devA.lastSingle, devB.lastSingle)
	}
}

func TestProviderWeakens_RescanPicksNext(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	c.Sides[Up] = Side{Channel: 2}
	c.Sides[Down] = Side{Channel: 2}
	top := r.device(0, 1, 0, map[int]int{2: 9})
	bottom := r.device(0, -1, 0, map[int]int{2: 5})
	r.tick()
	n := r.net(c)
	if n.PowerLevel(2) != 9 {
		t.Fatalf("level=%d, want 9", n.PowerLevel(2))
	}

	top.out[2] = 2
	r.h.NeighborChanged(Vec3i{X: 0, Y: 1, Z: 0})
	st := r.tick()
	if st.Rescans == 0 {
		t.Fatalf("expected a rescan after the provider weakened")
	}
	if got := n.PowerLevel(2); got != 5 {
		t.Fatalf("level=%d, want 5", got)
	}
	if p, _ := n.Provider(2); p != np(0, -1, 0, Down) {
		t.Fatalf("provider=%v, want %v", p, np(0, -1, 0, Down))
	}

	// The new level goes out in the following phase 1.
	r.tick()
	if top.lastSingle != 5 || bottom.lastSingle != 5 {
		t.Fatalf("devices see %d/%d, want 5/5", top.lastSingle, bottom.lastSingle)
	}
}

func TestTieKeepsFirstNode_SignFlipUpdatesInPlace(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	west := r.device(-1, 0, 0, map[int]int{0: 6})
	r.device(1, 0, 0, map[int]int{0: -6})
	r.tick()
	n := r.net(c)
	first := np(-1, 0, 0, West)
	if p, _ := n.Provider(0); p != first || n.PowerLevel(0) != 6 {
		t.Fatalf("provider=%v level=%d, want %v/6", p, n.PowerLevel(0), first)
	}
	n.UpdatePowerLevelsChannel(0)
	if p, _ := n.Provider(0); p != first {
		t.Fatalf("rescan provider=%v, want %v", p, first)
	}

	west.out[0] = -6
	n.AddOrUpdateNode(first, 0, false)
	if got := n.PowerLevel(0); got != -6 {
		t.Fatalf("level=%d, want -6", got)
	}
	if p, _ := n.Provider(0); p != first {
		t.Fatalf("provider=%v, want %v", p, first)
	}
}

func TestAddOrUpdateNode_Idempotent(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	r.device(1, 0, 0, map[int]int{4: 3})
	r.tick()
	n := r.net(c)
	node := np(1, 0, 0, East)

	if n.AddConduit(c) {
		t.Fatalf("re-adding a member reported a change")
	}
	if n.ConduitCount() != 1 || n.NodeCount() != 1 {
		t.Fatalf("conduits=%d nodes=%d after re-add", n.ConduitCount(), n.NodeCount())
	}

	n.AddOrUpdateNode(node, 4, false)
	n.AddOrUpdateNode(node, 4, false)
	if got := n.singleNodes[4].Len(); got != 1 {
		t.Fatalf("channel 4 nodes=%d, want 1", got)
	}

	// Moving the node to another channel detaches it from the old one.
	n.AddOrUpdateNode(node, 5, false)
	if n.singleNodes[4].Has(node) || !n.singleNodes[5].Has(node) {
		t.Fatalf("node not moved from channel 4 to 5")
	}
	if !n.recompute[4] {
		t.Fatalf("old provider channel not scheduled for rescan")
	}

	if n.CanMergeGrid(n) || n.CanMergeGrid(nil) {
		t.Fatalf("CanMergeGrid accepted self or nil")
	}
	n.MergeGrid(n)
	if r.h.NetworkOf(c) != n {
		t.Fatalf("self-merge detached the network")
	}
}

func TestOmniNode_AggregatesAllChannels(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	c.Sides[East] = Side{Mode: SideOmni}
	dev := r.device(1, 0, 0, map[int]int{0: 3, 5: -12})
	dev.omni = true
	r.tick()

	n := r.net(c)
	if n.PowerLevel(0) != 3 || n.PowerLevel(5) != -12 {
		t.Fatalf("levels ch0=%d ch5=%d, want 3/-12", n.PowerLevel(0), n.PowerLevel(5))
	}
	node := np(1, 0, 0, East)
	if !n.IsPowerProvider(5, node) {
		t.Fatalf("omni node does not provide channel 5")
	}
	if len(dev.vectors) == 0 {
		t.Fatalf("omni device never received a vector")
	}
	if got := dev.vectors[len(dev.vectors)-1]; got != n.PowerLevels() {
		t.Fatalf("last vector=%v, want %v", got, n.PowerLevels())
	}

	r.h.DeviceRemoved(node.Pos, false)
	if got := dev.vectors[len(dev.vectors)-1]; got != ([Channels]int{}) {
		t.Fatalf("removed omni device got %v, want zeros", got)
	}
	delete(r.w.cells, node.Pos)
	r.tick()
	if n.PowerLevel(5) != 0 || n.PowerLevel(0) != 0 {
		t.Fatalf("levels after removal ch0=%d ch5=%d, want 0/0", n.PowerLevel(0), n.PowerLevel(5))
	}
}

func TestRemoveNode_NotifiesZeroUnlessUnloading(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	west := r.device(-1, 0, 0, map[int]int{0: 8})
	east := r.device(1, 0, 0, map[int]int{0: 2})
	r.tick()
	n := r.net(c)

	r.h.DeviceRemoved(Vec3i{X: -1}, false)
	if west.lastSingle != 0 {
		t.Fatalf("removed device sees %d, want 0", west.lastSingle)
	}
	if !n.recompute[0] {
		t.Fatalf("removing the provider did not schedule a rescan")
	}
	delete(r.w.cells, Vec3i{X: -1})
	r.tick()
	if got := n.PowerLevel(0); got != 2 {
		t.Fatalf("level=%d, want 2", got)
	}

	before := len(east.inputs)
	r.h.DeviceRemoved(Vec3i{X: 1}, true)
	if len(east.inputs) != before {
		t.Fatalf("unloading device was notified")
	}
}

func TestLegacyAndWeakReadings(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	legacyPos := Vec3i{X: 1}
	blockPos := Vec3i{X: -1}
	r.w.cells[legacyPos] = Occupant{Kind: OccupantLegacy}
	r.w.cells[blockPos] = Occupant{Kind: OccupantBlock}
	r.w.strong[legacyPos] = 5
	r.w.strong[blockPos] = 2
	r.w.weak[blockPos] = 6
	r.tick()
	n := r.net(c)

	legacy := np(1, 0, 0, East)
	block := np(-1, 0, 0, West)
	if got := n.singleReading(legacy, 0); got != 4 {
		t.Fatalf("legacy reading=%d, want 4", got)
	}
	for _, strong := range []int{0, 1} {
		r.w.strong[legacyPos] = strong
		if got := n.singleReading(legacy, 0); got != 0 {
			t.Fatalf("legacy strong=%d read %d, want 0", strong, got)
		}
	}
	if got := n.singleReading(block, 0); got != 2 {
		t.Fatalf("block reading=%d, want 2", got)
	}
	n.AddOrUpdateNode(block, 0, true)
	if !n.IsWeakNode(block) {
		t.Fatalf("node not marked weak")
	}
	if got := n.PowerLevel(0); got != 6 {
		t.Fatalf("level with weak node=%d, want 6", got)
	}
}

func TestUnloadedNodesReadZero(t *testing.T) {
	r := newRig(t)
	c := r.conduit(15, 0, 0, true)
	r.device(16, 0, 0, map[int]int{0: 8})
	r.tick()
	n := r.net(c)
	if n.PowerLevel(0) != 8 {
		t.Fatalf("level=%d, want 8", n.PowerLevel(0))
	}

	r.w.unloaded[ChunkKey{CX: 1}] = true
	n.UpdatePowerLevels()
	if got := n.PowerLevel(0); got != 0 {
		t.Fatalf("level with unloaded provider=%d, want 0", got)
	}
	if _, ok := n.Provider(0); ok {
		t.Fatalf("unloaded node still provides")
	}
}

func TestReentrantNotify_IsDeferred(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	dev := r.device(1, 0, 0, map[int]int{0: 3})
	calls := 0
	dev.onInput = func() {
		calls++
		if calls == 1 {
			r.h.NetworkOf(c).PreUpdate()
		}
	}

	st := r.tick()
	if st.Deferred != 1 {
		t.Fatalf("deferred=%d, want 1", st.Deferred)
	}
	n := r.net(c)
	if n.state != stateIdle {
		t.Fatalf("state=%s after phase 1, want IDLE", n.state)
	}
	if !n.mustNotify {
		t.Fatalf("refused notification lost its pending flag")
	}
	if !strings.Contains(r.logs.String(), "re-entrant") {
		t.Fatalf("no diagnostic logged: %q", r.logs.String())
	}

	st = r.tick()
	if st.Deferred != 0 || n.mustNotify {
		t.Fatalf("retry did not settle: deferred=%d mustNotify=%v", st.Deferred, n.mustNotify)
	}
}

func TestNotifyRefusedWhileRegenerating(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, true)
	r.tick()
	n := r.net(c)

	n.state = stateRegenerating
	n.dirty[7] = true
	n.mustNotify = true
	n.PreUpdate()
	if !n.dirty[7] || !n.mustNotify {
		t.Fatalf("dirty flags dropped by a refused phase 1")
	}
	if n.state != stateRegenerating {
		t.Fatalf("state=%s, want REGENERATING", n.state)
	}
}

func TestIsolatedSideSplitsAndReopens(t *testing.T) {
	r := newRig(t)
	a := r.conduit(0, 0, 0, true)
	b := r.conduit(1, 0, 0, true)
	r.tick()
	if r.net(a) != r.net(b) {
		t.Fatalf("adjacent conduits not joined")
	}

	a.Sides[East] = Side{Mode: SideIsolated}
	r.h.ConduitChanged(a)
	r.tick()
	if r.net(a) == r.net(b) {
		t.Fatalf("isolated side still links")
	}

	a.Sides[East] = Side{}
	r.h.ConduitChanged(a)
	r.tick()
	if r.net(a) != r.net(b) {
		t.Fatalf("reopened side did not merge")
	}
	if got := len(r.h.Networks()); got != 1 {
		t.Fatalf("networks=%d, want 1", got)
	}
}

func TestNetworkWithoutLogicNodesDoesNotTick(t *testing.T) {
	r := newRig(t)
	c := r.conduit(0, 0, 0, false)
	r.tick()
	n := r.net(c)
	if r.h.IsGridTicking(n) {
		t.Fatalf("plain conduit network is ticking")
	}
	c.LogicNode = true
	r.h.ConduitChanged(c)
	r.tick()
	if !r.h.IsGridTicking(r.net(c)) {
		t.Fatalf("network with a logic node is not ticking")
	}
	if !strings.HasPrefix(r.net(c).String(), "Network@") {
		t.Fatalf("String()=%q", r.net(c).String())
	}
}
