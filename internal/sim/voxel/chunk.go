package voxel

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"rednet.ai/internal/sim/grid"
)

type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellConduit
	CellDevice
	CellLever
	CellBlock
)

func (k CellKind) String() string {
	switch k {
	case CellConduit:
		return "CONDUIT"
	case CellDevice:
		return "DEVICE"
	case CellLever:
		return "LEVER"
	case CellBlock:
		return "BLOCK"
	default:
		return "EMPTY"
	}
}

// Cell is one occupied position. Power is the lever level or a block's strong
// reading; Weak is a block's indirect reading.
type Cell struct {
	Kind    CellKind
	Conduit *grid.Conduit
	Device  Device
	Power   int
	Weak    int
}

type Chunk struct {
	Key    grid.ChunkKey
	Loaded bool
	Cells  map[grid.Vec3i]*Cell

	dirty bool
	hash  [32]byte
}

func newChunk(k grid.ChunkKey) *Chunk {
	return &Chunk{Key: k, Loaded: true, Cells: map[grid.Vec3i]*Cell{}, dirty: true}
}

func (c *Chunk) get(p grid.Vec3i) *Cell { return c.Cells[p] }

func (c *Chunk) set(p grid.Vec3i, cell *Cell) {
	if cell == nil {
		delete(c.Cells, p)
	} else {
		c.Cells[p] = cell
	}
	c.dirty = true
}

func (c *Chunk) touch() { c.dirty = true }

// positions returns the occupied positions in x, y, z order.
func (c *Chunk) positions() []grid.Vec3i {
	out := make([]grid.Vec3i, 0, len(c.Cells))
	for p := range c.Cells {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [8]byte
		put := func(v int) {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			h.Write(tmp[:])
		}
		for _, p := range c.positions() {
			cell := c.Cells[p]
			put(p.X)
			put(p.Y)
			put(p.Z)
			put(int(cell.Kind))
			put(cell.Power)
			put(cell.Weak)
			if cond := cell.Conduit; cond != nil {
				if cond.LogicNode {
					put(1)
				} else {
					put(0)
				}
				for _, s := range cond.Sides {
					put(int(s.Mode))
					put(s.Channel)
					if s.Weak {
						put(1)
					} else {
						put(0)
					}
				}
			}
			if cell.Device != nil {
				h.Write([]byte(cell.Device.Kind()))
				for _, v := range cell.Device.Outputs() {
					put(v)
				}
			}
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
