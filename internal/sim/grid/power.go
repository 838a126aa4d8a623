package grid

// AddOrUpdateOmniNode attaches (or re-reads) a device reporting all channels at once.
// A louder reading takes over a channel immediately; a provider that got quieter
// schedules a full rescan of that channel for phase 2.
func (n *Network) AddOrUpdateOmniNode(node NodePos) {
	if n.world().OccupantAt(node.Pos).Kind == OccupantConduit {
		return
	}
	if !n.omniNodes.Has(node) {
		n.RemoveNode(node, false)
		n.h.debugf("grid=%d adding omni node %s", n.id, node)
		n.omniNodes.Add(node)
		n.notifyOmniNode(node)
	}

	powers, ok := n.omniReading(node)
	if !ok {
		return
	}
	for ch := 0; ch < Channels; ch++ {
		if n.offer(node, ch, powers[ch]) {
			n.h.debugf("grid=%d ch=%d omni node %s is new power provider", n.id, ch, node)
		}
	}

	if !n.mustRecompute && !n.mustNotify {
		n.notifyOmniNode(node)
	} else if !n.mustNotify {
		for i := range n.dirty {
			n.dirty[i] = true
		}
		n.mustNotify = true
	}
}

// AddOrUpdateNode attaches (or re-reads) a device bound to a single channel. Moving a
// node to another channel detaches it from the old one first.
func (n *Network) AddOrUpdateNode(node NodePos, channel int, allowWeak bool) {
	if channel < 0 || channel >= Channels {
		return
	}
	if n.world().OccupantAt(node.Pos).Kind == OccupantConduit {
		return
	}
	if !n.singleNodes[channel].Has(node) {
		n.RemoveNode(node, false)
		n.h.debugf("grid=%d ch=%d adding node %s", n.id, channel, node)
		n.singleNodes[channel].Add(node)
	}
	if allowWeak {
		n.weakNodes[node] = struct{}{}
	} else {
		delete(n.weakNodes, node)
	}

	power := n.singleReading(node, channel)
	n.h.debugf("grid=%d ch=%d calculated power for node %s as %d", n.id, channel, node, power)
	if n.offer(node, channel, power) {
		n.h.debugf("grid=%d ch=%d node %s is new power provider", n.id, channel, node)
	}

	if !n.recompute[channel] && !n.dirty[channel] {
		n.notifySingleNode(node, channel)
	} else {
		n.dirty[channel] = true
		n.mustNotify = true
	}
}

// offer applies one reading incrementally and reports whether node became the
// provider. Ties keep the current provider.
func (n *Network) offer(node NodePos, ch int, power int) bool {
	st := &n.channels[ch]
	switch {
	case abs(power) > abs(st.level):
		st.level = power
		st.provider = node
		st.hasProvider = true
		n.dirty[ch] = true
		n.mustNotify = true
		return true
	case st.hasProvider && st.provider == node && abs(power) < abs(st.level):
		n.h.debugf("grid=%d ch=%d power provider %s weakened, recalculating", n.id, ch, node)
		n.recompute[ch] = true
		n.mustRecompute = true
	case st.hasProvider && st.provider == node && power != st.level:
		// Same magnitude, flipped sign.
		st.level = power
		n.dirty[ch] = true
		n.mustNotify = true
	}
	return false
}

// RemoveNode detaches a device from every channel. Unless the device is merely
// being unloaded it is told that its inputs dropped to zero.
func (n *Network) RemoveNode(node NodePos, unloading bool) {
	omni := n.omniNodes.Delete(node)
	notify := omni
	if _, ok := n.weakNodes[node]; ok {
		delete(n.weakNodes, node)
		notify = true
	}
	for ch := 0; ch < Channels; ch++ {
		if n.singleNodes[ch].Delete(node) {
			notify = true
			n.h.debugf("grid=%d ch=%d removing node %s", n.id, ch, node)
		}
		if n.IsPowerProvider(ch, node) {
			n.h.debugf("grid=%d ch=%d removing power provider node, recalculating", n.id, ch)
			n.recompute[ch] = true
			n.mustRecompute = true
			n.dirty[ch] = true
			n.mustNotify = true
		}
	}

	if !notify || unloading {
		return
	}
	w := n.world()
	if !w.IsLoaded(node.Pos) {
		return
	}
	occ := w.OccupantAt(node.Pos)
	if occ.Kind == OccupantConduit || occ.Input == nil {
		return
	}
	if omni {
		occ.Input.InputsChanged(node.Pos, node.Face.Opposite(), [Channels]int{})
	} else {
		occ.Input.InputChanged(node.Pos, node.Face.Opposite(), 0)
	}
}

func (n *Network) hasNode(node NodePos) bool {
	if n.omniNodes.Has(node) {
		return true
	}
	for _, s := range n.singleNodes {
		if s.Has(node) {
			return true
		}
	}
	return false
}

func (n *Network) UpdatePowerLevels() {
	for ch := 0; ch < Channels; ch++ {
		n.UpdatePowerLevelsChannel(ch)
	}
}

// UpdatePowerLevelsChannel rescans every loaded node on channel. Single-channel
// nodes are scanned before omni nodes, each in insertion order, and the first node
// with the largest magnitude wins.
func (n *Network) UpdatePowerLevelsChannel(channel int) {
	if channel < 0 || channel >= Channels {
		return
	}
	last := n.channels[channel].level
	st := &n.channels[channel]
	*st = channelState{}

	singles := n.singleNodes[channel].Keys()
	omnis := n.omniNodes.Keys()
	n.h.debugf("grid=%d ch=%d recalculating power levels for %d single nodes and %d omni nodes",
		n.id, channel, len(singles), len(omnis))

	w := n.world()
	for _, node := range singles {
		if !w.IsLoaded(node.Pos) {
			continue
		}
		if p := n.singleReading(node, channel); abs(p) > abs(st.level) {
			st.level, st.provider, st.hasProvider = p, node, true
		}
	}
	for _, node := range omnis {
		if !w.IsLoaded(node.Pos) {
			continue
		}
		powers, ok := n.omniReading(node)
		if !ok {
			continue
		}
		if p := powers[channel]; abs(p) > abs(st.level) {
			st.level, st.provider, st.hasProvider = p, node, true
		}
	}

	n.h.debugf("grid=%d ch=%d recalculated power level as %d from %d (provider=%v)", n.id, channel, st.level, last, st.provider)
	n.h.cur.Rescans++
	if st.level != last {
		n.dirty[channel] = true
		n.mustNotify = true
	}
}

func (n *Network) singleReading(node NodePos, channel int) int {
	w := n.world()
	if !w.IsLoaded(node.Pos) {
		return 0
	}
	occ := w.OccupantAt(node.Pos)
	side := node.Face.Opposite()
	if occ.Kind == OccupantDevice && occ.Output != nil {
		return occ.Output.OutputValue(node.Pos, side, channel)
	}

	offset := 0
	if occ.Kind == OccupantLegacy {
		offset = -1
	}
	ret := w.StrongSignal(node.Pos, side) + offset
	if n.IsWeakNode(node) {
		if weak := w.WeakSignal(node.Pos, side) + offset; abs(weak) > abs(ret) {
			ret = weak
		}
	}
	if ret == offset {
		return 0
	}
	return ret
}

func (n *Network) omniReading(node NodePos) ([Channels]int, bool) {
	var out [Channels]int
	w := n.world()
	if !w.IsLoaded(node.Pos) {
		return out, false
	}
	occ := w.OccupantAt(node.Pos)
	if occ.Kind != OccupantDevice || occ.Output == nil {
		return out, false
	}
	vals := occ.Output.OutputValues(node.Pos, node.Face.Opposite())
	if vals == nil {
		return out, false
	}
	copy(out[:], vals)
	return out, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
