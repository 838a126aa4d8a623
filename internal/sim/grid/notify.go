package grid

// PreUpdate is phase 1: push every dirty channel out to the attached nodes.
// A call that arrives while the network is notifying or rebuilding is refused and
// the dirty flags are kept for the next tick.
func (n *Network) PreUpdate() {
	if !n.mustNotify && n.state != stateNotifying {
		return
	}
	if !n.beginNotify() {
		n.h.logf("grid=%d asked to notify nodes while %s (re-entrant call?); retrying next tick", n.id, n.state)
		n.mustNotify = true
		n.h.cur.Deferred++
		return
	}
	n.mustNotify = false
	for ch := Channels - 1; ch >= 0; ch-- {
		if n.dirty[ch] {
			n.notifyNodes(ch)
		}
	}
	n.endNotify()
}

// Update is phase 2: rescan the channels whose provider may have been lost.
func (n *Network) Update() {
	if !n.mustRecompute {
		return
	}
	n.mustRecompute = false
	for ch := 0; ch < Channels; ch++ {
		if n.recompute[ch] {
			n.recompute[ch] = false
			n.UpdatePowerLevelsChannel(ch)
		}
	}
}

func (n *Network) beginNotify() bool {
	if n.state != stateIdle {
		return false
	}
	n.state = stateNotifying
	return true
}

func (n *Network) endNotify() {
	if n.state == stateNotifying {
		n.state = stateIdle
	}
}

func (n *Network) notifyNodes(ch int) {
	n.dirty[ch] = false
	singles := n.singleNodes[ch].Keys()
	omnis := n.omniNodes.Keys()
	n.h.debugf("grid=%d ch=%d notifying %d single nodes and %d omni nodes", n.id, ch, len(singles), len(omnis))
	for _, node := range singles {
		n.h.debugf("grid=%d ch=%d notifying node %s of power state change to %d", n.id, ch, node, n.channels[ch].level)
		n.notifySingleNode(node, ch)
	}
	for _, node := range omnis {
		n.h.debugf("grid=%d ch=%d notifying omni node %s of power state change to %d", n.id, ch, node, n.channels[ch].level)
		n.notifyOmniNode(node)
	}
}

func (n *Network) notifySingleNode(node NodePos, ch int) {
	w := n.world()
	if !w.IsLoaded(node.Pos) {
		return
	}
	occ := w.OccupantAt(node.Pos)
	if occ.Kind == OccupantConduit || occ.Input == nil {
		return
	}
	n.h.cur.Notifications++
	occ.Input.InputChanged(node.Pos, node.Face.Opposite(), n.channels[ch].level)
}

func (n *Network) notifyOmniNode(node NodePos) {
	w := n.world()
	if !w.IsLoaded(node.Pos) {
		return
	}
	occ := w.OccupantAt(node.Pos)
	if occ.Kind != OccupantDevice || occ.Input == nil {
		return
	}
	n.h.cur.Notifications++
	occ.Input.InputsChanged(node.Pos, node.Face.Opposite(), n.PowerLevels())
}
