package grid

// MarkSweep re-partitions the network after structural removals. The conduits
// reachable from the first surviving member stay in n; every unreached remainder is
// handed to a fresh network and swept in turn until all are assigned.
func (n *Network) MarkSweep() {
	work := []*Network{n}
	for len(work) > 0 {
		g := work[0]
		work = work[1:]
		if rest := g.sweep(); rest != nil {
			work = append(work, rest)
		}
	}
}

func (n *Network) sweep() *Network {
	n.DestroyGrid()
	start, ok := n.conduits.First()
	if !ok {
		n.clearNodes()
		n.state = stateIdle
		n.h.release(n)
		return nil
	}

	old := n.conduits
	n.conduits = newOrderedSet[*Conduit]()
	n.logicNodes.Clear()
	n.clearNodes()

	w := n.world()
	visited := map[*Conduit]struct{}{start: {}}
	queue := []*Conduit{start}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		n.AddConduit(c)
		for _, d := range Dirs {
			p := c.Pos.Step(d)
			if !w.IsLoaded(p) {
				continue
			}
			occ := w.OccupantAt(p)
			if occ.Kind != OccupantConduit || occ.Conduit == nil {
				continue
			}
			nb := occ.Conduit
			if _, seen := visited[nb]; seen || !c.CanInterface(nb, d) {
				continue
			}
			visited[nb] = struct{}{}
			queue = append(queue, nb)
		}
		old.Delete(c)
	}

	var rest *Network
	if old.Len() > 0 {
		rest = n.h.newNetwork()
		rest.conduits = old
		rest.state = stateRegenerating
	}

	n.syncTicking()
	n.state = stateIdle
	n.requestRescanAll()
	n.h.cur.Sweeps++
	if warn := n.h.sweepWarn; warn > 0 && len(visited) >= warn {
		n.h.logf("grid=%d swept %d conduits in one pass", n.id, len(visited))
	}
	n.h.debugf("grid=%d swept conduits=%d nodes=%d leftover=%d", n.id, n.conduits.Len(), n.logicNodes.Len(), old.Len())
	return rest
}

func (n *Network) requestRescanAll() {
	for i := range n.recompute {
		n.recompute[i] = true
	}
	n.mustRecompute = true
}
