package grid

import (
	"log"
	"sort"
	"time"
)

// TickStats summarizes one Handler.Tick.
type TickStats struct {
	Tick          uint64        `json:"tick"`
	Placed        int           `json:"placed"`
	Sweeps        int           `json:"sweeps"`
	Merges        int           `json:"merges"`
	Refreshed     int           `json:"refreshed"`
	Notifications int           `json:"notifications"`
	Deferred      int           `json:"deferred"`
	Rescans       int           `json:"rescans"`
	Networks      int           `json:"networks"`
	Ticking       int           `json:"ticking"`
	Conduits      int           `json:"conduits"`
	Duration      time.Duration `json:"duration_ns"`
}

// Metrics receives one observation per tick. Nil is allowed.
type Metrics interface {
	ObserveTick(st TickStats)
}

type HandlerConfig struct {
	World World
	// Logger receives diagnostics. Debug traces are written only when Debug is set.
	Logger *log.Logger
	Debug  bool

	Metrics Metrics
	// SweepWarnConduits logs a line when a single sweep pass reaches this many
	// conduits. Zero disables the warning.
	SweepWarnConduits int
}

// Handler is the tick scheduler and the arena that owns every network.
// It is not safe for concurrent use; all calls happen on the simulation goroutine.
type Handler struct {
	world     World
	log       *log.Logger
	debug     bool
	metrics   Metrics
	sweepWarn int

	nextID GridID
	grids  map[GridID]*Network

	ticking  *orderedSet[*Network]
	regen    *orderedSet[*Network]
	toPlace  *orderedSet[*Conduit]
	toUpdate *orderedSet[*Conduit]

	tick uint64
	cur  TickStats
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[rednet] ", log.LstdFlags)
	}
	return &Handler{
		world:     cfg.World,
		log:       logger,
		debug:     cfg.Debug,
		metrics:   cfg.Metrics,
		sweepWarn: cfg.SweepWarnConduits,
		grids:     map[GridID]*Network{},
		ticking:   newOrderedSet[*Network](),
		regen:     newOrderedSet[*Network](),
		toPlace:   newOrderedSet[*Conduit](),
		toUpdate:  newOrderedSet[*Conduit](),
	}
}

func (h *Handler) logf(format string, args ...any) { h.log.Printf(format, args...) }

func (h *Handler) debugf(format string, args ...any) {
	if h.debug {
		h.log.Printf("debug: "+format, args...)
	}
}

func (h *Handler) newNetwork() *Network {
	h.nextID++
	n := newNetwork(h, h.nextID)
	h.grids[n.id] = n
	return n
}

// NewNetwork creates a network holding only base.
func (h *Handler) NewNetwork(base *Conduit) *Network {
	n := h.newNetwork()
	n.state = stateRegenerating
	n.AddConduit(base)
	n.state = stateIdle
	n.syncTicking()
	return n
}

func (h *Handler) lookup(id GridID) *Network {
	if id == 0 {
		return nil
	}
	return h.grids[id]
}

func (h *Handler) release(n *Network) {
	if h.grids[n.id] == n {
		delete(h.grids, n.id)
	}
	h.ticking.Delete(n)
	h.regen.Delete(n)
}

// NetworkOf resolves the network c currently belongs to.
func (h *Handler) NetworkOf(c *Conduit) *Network {
	if c == nil {
		return nil
	}
	n := h.lookup(c.grid)
	if n == nil || !n.conduits.Has(c) {
		return nil
	}
	return n
}

// Networks returns the live networks ordered by ID.
func (h *Handler) Networks() []*Network {
	out := make([]*Network, 0, len(h.grids))
	for _, n := range h.grids {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *Handler) CurrentTick() uint64 { return h.tick }

func (h *Handler) AddGrid(n *Network) {
	if n != nil {
		h.ticking.Add(n)
	}
}

func (h *Handler) RemoveGrid(n *Network) {
	if n != nil {
		h.ticking.Delete(n)
	}
}

func (h *Handler) IsGridTicking(n *Network) bool { return n != nil && h.ticking.Has(n) }

// AddConduitForUpdate asks for the conduit's bridged devices to be re-read at the
// next tick boundary.
func (h *Handler) AddConduitForUpdate(c *Conduit) {
	if c != nil {
		h.toUpdate.Add(c)
	}
}

func (h *Handler) RegenerateGrid(n *Network) {
	if n != nil {
		h.regen.Add(n)
	}
}

// PlaceConduit queues a freshly placed conduit. At the next tick boundary it joins
// (and merges) every interfacing neighbour network, or starts its own.
func (h *Handler) PlaceConduit(c *Conduit) {
	if c != nil {
		h.toPlace.Add(c)
	}
}

// RemoveConduit detaches c now. The re-partition of its former network is batched
// with every other removal of this tick.
func (h *Handler) RemoveConduit(c *Conduit) {
	if c == nil {
		return
	}
	h.toPlace.Delete(c)
	h.toUpdate.Delete(c)
	n := h.NetworkOf(c)
	if n == nil {
		c.grid = 0
		return
	}
	n.RemoveConduit(c)
	n.Regenerate()
}

// ConduitChanged re-applies c's logic node flag and side configuration.
func (h *Handler) ConduitChanged(c *Conduit) {
	if c == nil {
		return
	}
	n := h.NetworkOf(c)
	if n == nil {
		h.PlaceConduit(c)
		return
	}
	n.AddConduit(c)
	// Isolating a side may split the network; opening one may join another.
	n.Regenerate()
	h.PlaceConduit(c)
	h.AddConduitForUpdate(c)
}

// NeighborChanged is called when the device at p changed its output or appeared.
// Adjacent logic nodes re-read it at the next tick boundary.
func (h *Handler) NeighborChanged(p Vec3i) {
	for _, d := range Dirs {
		q := p.Step(d)
		if !h.world.IsLoaded(q) {
			continue
		}
		occ := h.world.OccupantAt(q)
		if occ.Kind == OccupantConduit && occ.Conduit != nil && occ.Conduit.LogicNode {
			h.AddConduitForUpdate(occ.Conduit)
		}
	}
}

// DeviceRemoved detaches the device at p from every adjacent network. unloading
// suppresses the zero notification to the device.
func (h *Handler) DeviceRemoved(p Vec3i, unloading bool) {
	for _, d := range Dirs {
		q := p.Step(d)
		if !h.world.IsLoaded(q) {
			continue
		}
		occ := h.world.OccupantAt(q)
		if occ.Kind != OccupantConduit || occ.Conduit == nil {
			continue
		}
		if n := h.NetworkOf(occ.Conduit); n != nil {
			// d points from the device to the conduit.
			n.RemoveNode(NodePos{Pos: p, Face: d.Opposite()}, unloading)
		}
	}
}

// Tick advances every network by one tick: placements, re-partitions and device
// refreshes first, then phase 1 on all ticking networks, then phase 2 on all.
func (h *Handler) Tick() TickStats {
	start := time.Now()
	h.cur = TickStats{Tick: h.tick}

	for h.toPlace.Len() > 0 {
		for _, c := range h.toPlace.Keys() {
			h.toPlace.Delete(c)
			h.attach(c)
			h.cur.Placed++
		}
	}

	for h.regen.Len() > 0 {
		for _, n := range h.regen.Keys() {
			h.regen.Delete(n)
			if h.grids[n.id] != n {
				continue
			}
			n.MarkSweep()
		}
	}

	for _, c := range h.toUpdate.Keys() {
		h.toUpdate.Delete(c)
		if n := h.NetworkOf(c); n != nil {
			n.refreshConduit(c)
			h.cur.Refreshed++
		}
	}

	// Every network finishes phase 1 before any starts phase 2.
	for _, n := range h.ticking.Keys() {
		if h.grids[n.id] == n {
			n.PreUpdate()
		}
	}
	for _, n := range h.ticking.Keys() {
		if h.grids[n.id] == n {
			n.Update()
		}
	}

	h.cur.Networks = len(h.grids)
	h.cur.Ticking = h.ticking.Len()
	for _, n := range h.grids {
		h.cur.Conduits += n.conduits.Len()
	}
	h.cur.Duration = time.Since(start)
	h.tick++

	st := h.cur
	if h.metrics != nil {
		h.metrics.ObserveTick(st)
	}
	return st
}

func (h *Handler) attach(c *Conduit) {
	if occ := h.world.OccupantAt(c.Pos); occ.Kind != OccupantConduit || occ.Conduit != c {
		// Removed again before its first tick.
		return
	}
	for _, d := range Dirs {
		p := c.Pos.Step(d)
		if !h.world.IsLoaded(p) {
			continue
		}
		occ := h.world.OccupantAt(p)
		if occ.Kind != OccupantConduit || occ.Conduit == nil || !c.CanInterface(occ.Conduit, d) {
			continue
		}
		nbNet := h.NetworkOf(occ.Conduit)
		if nbNet == nil {
			// Not placed yet; it joins us when its own turn comes.
			continue
		}
		cur := h.NetworkOf(c)
		switch {
		case cur == nil:
			nbNet.AddConduit(c)
		case cur != nbNet:
			cur.AddConduit(occ.Conduit)
		}
	}
	if h.NetworkOf(c) == nil {
		h.NewNetwork(c)
	}
}

// refreshConduit re-reads the devices bridged by a logic node on each side.
func (n *Network) refreshConduit(c *Conduit) {
	if !c.LogicNode || c.grid != n.id {
		return
	}
	w := n.world()
	for _, d := range Dirs {
		node := NodePos{Pos: c.Pos.Step(d), Face: d}
		if !w.IsLoaded(node.Pos) {
			continue
		}
		side := c.Sides[d]
		occ := w.OccupantAt(node.Pos)
		switch {
		case side.Mode == SideIsolated, occ.Kind == OccupantNone, occ.Kind == OccupantConduit:
			if n.hasNode(node) {
				n.RemoveNode(node, false)
			}
		case side.Mode == SideOmni && occ.Kind == OccupantDevice:
			n.AddOrUpdateOmniNode(node)
		default:
			n.AddOrUpdateNode(node, side.Channel, side.Weak)
		}
	}
}
