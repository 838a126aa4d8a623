package grid

import (
	"bytes"
	"log"
	"testing"
)

type fakeWorld struct {
	cells    map[Vec3i]Occupant
	unloaded map[ChunkKey]bool
	strong   map[Vec3i]int
	weak     map[Vec3i]int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		cells:    map[Vec3i]Occupant{},
		unloaded: map[ChunkKey]bool{},
		strong:   map[Vec3i]int{},
		weak:     map[Vec3i]int{},
	}
}

func (w *fakeWorld) IsLoaded(p Vec3i) bool { return !w.unloaded[p.Chunk()] }

func (w *fakeWorld) OccupantAt(p Vec3i) Occupant {
	if !w.IsLoaded(p) {
		return Occupant{}
	}
	return w.cells[p]
}

func (w *fakeWorld) StrongSignal(p Vec3i, _ Dir) int { return w.strong[p] }
func (w *fakeWorld) WeakSignal(p Vec3i, _ Dir) int   { return w.weak[p] }

type inputEvent struct {
	side  Dir
	value int
}

// fakeDevice reports a fixed output vector and records what the network tells it.
type fakeDevice struct {
	out  [Channels]int
	omni bool

	inputs     []inputEvent
	vectors    [][Channels]int
	onInput    func()
	lastSingle int
}

func (d *fakeDevice) OutputValue(_ Vec3i, _ Dir, ch int) int { return d.out[ch] }

func (d *fakeDevice) OutputValues(_ Vec3i, _ Dir) []int {
	if !d.omni {
		return nil
	}
	out := make([]int, Channels)
	copy(out, d.out[:])
	return out
}

func (d *fakeDevice) InputChanged(_ Vec3i, side Dir, value int) {
	d.inputs = append(d.inputs, inputEvent{side: side, value: value})
	d.lastSingle = value
	if d.onInput != nil {
		d.onInput()
	}
}

func (d *fakeDevice) InputsChanged(_ Vec3i, _ Dir, values [Channels]int) {
	d.vectors = append(d.vectors, values)
}

type rig struct {
	t    *testing.T
	w    *fakeWorld
	h    *Handler
	logs *bytes.Buffer
}

func newRig(t *testing.T) *rig {
	t.Helper()
	w := newFakeWorld()
	var buf bytes.Buffer
	h := NewHandler(HandlerConfig{
		World:  w,
		Logger: log.New(&buf, "", 0),
	})
	return &rig{t: t, w: w, h: h, logs: &buf}
}

func (r *rig) conduit(x, y, z int, logic bool) *Conduit {
	r.t.Helper()
	c := NewConduit(Vec3i{X: x, Y: y, Z: z}, logic)
	r.w.cells[c.Pos] = Occupant{Kind: OccupantConduit, Conduit: c}
	r.h.PlaceConduit(c)
	return c
}

func (r *rig) device(x, y, z int, out map[int]int) *fakeDevice {
	r.t.Helper()
	d := &fakeDevice{}
	for ch, v := range out {
		d.out[ch] = v
	}
	p := Vec3i{X: x, Y: y, Z: z}
	r.w.cells[p] = Occupant{Kind: OccupantDevice, Output: d, Input: d}
	r.h.NeighborChanged(p)
	return d
}

func (r *rig) removeConduit(c *Conduit) {
	delete(r.w.cells, c.Pos)
	r.h.RemoveConduit(c)
}

func (r *rig) tick() TickStats { return r.h.Tick() }

func (r *rig) net(c *Conduit) *Network {
	r.t.Helper()
	n := r.h.NetworkOf(c)
	if n == nil {
		r.t.Fatalf("conduit %s has no network", c.Pos)
	}
	return n
}

func np(x, y, z int, face Dir) NodePos {
	return NodePos{Pos: Vec3i{X: x, Y: y, Z: z}, Face: face}
}
