package voxel

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"rednet.ai/internal/sim/grid"
)

var (
	ErrUnloaded = errors.New("chunk not loaded")
	ErrOccupied = errors.New("position occupied")
	ErrNotFound = errors.New("nothing there")
)

// Store is a sparse chunked world. It answers grid.World queries and forwards every
// structural change to the grid handler it owns. Not safe for concurrent use.
type Store struct {
	chunks map[grid.ChunkKey]*Chunk
	h      *grid.Handler
}

// NewStore builds the store and its handler. cfg.World is overwritten.
func NewStore(cfg grid.HandlerConfig) *Store {
	s := &Store{chunks: map[grid.ChunkKey]*Chunk{}}
	cfg.World = s
	s.h = grid.NewHandler(cfg)
	return s
}

func (s *Store) Handler() *grid.Handler { return s.h }

func (s *Store) IsLoaded(p grid.Vec3i) bool {
	ch := s.chunks[p.Chunk()]
	return ch != nil && ch.Loaded
}

func (s *Store) OccupantAt(p grid.Vec3i) grid.Occupant {
	cell := s.loadedCell(p)
	if cell == nil {
		return grid.Occupant{}
	}
	switch cell.Kind {
	case CellConduit:
		return grid.Occupant{Kind: grid.OccupantConduit, Conduit: cell.Conduit}
	case CellDevice:
		return grid.Occupant{Kind: grid.OccupantDevice, Output: cell.Device, Input: cell.Device}
	case CellLever:
		return grid.Occupant{Kind: grid.OccupantLegacy}
	case CellBlock:
		return grid.Occupant{Kind: grid.OccupantBlock}
	}
	return grid.Occupant{}
}

func (s *Store) StrongSignal(p grid.Vec3i, _ grid.Dir) int {
	cell := s.loadedCell(p)
	if cell == nil || (cell.Kind != CellLever && cell.Kind != CellBlock) {
		return 0
	}
	return cell.Power
}

func (s *Store) WeakSignal(p grid.Vec3i, _ grid.Dir) int {
	cell := s.loadedCell(p)
	if cell == nil {
		return 0
	}
	switch cell.Kind {
	case CellLever:
		return cell.Power
	case CellBlock:
		return cell.Weak
	}
	return 0
}

func (s *Store) loadedCell(p grid.Vec3i) *Cell {
	ch := s.chunks[p.Chunk()]
	if ch == nil || !ch.Loaded {
		return nil
	}
	return ch.get(p)
}

// CellAt returns a copy of the cell at p if its chunk is loaded.
func (s *Store) CellAt(p grid.Vec3i) (Cell, bool) {
	cell := s.loadedCell(p)
	if cell == nil {
		return Cell{}, false
	}
	return *cell, true
}

func (s *Store) ConduitAt(p grid.Vec3i) *grid.Conduit {
	if cell := s.loadedCell(p); cell != nil && cell.Kind == CellConduit {
		return cell.Conduit
	}
	return nil
}

func (s *Store) DeviceAt(p grid.Vec3i) Device {
	if cell := s.loadedCell(p); cell != nil && cell.Kind == CellDevice {
		return cell.Device
	}
	return nil
}

// writable returns the chunk holding p, creating it loaded if it was never seen.
func (s *Store) writable(p grid.Vec3i) (*Chunk, error) {
	k := p.Chunk()
	ch := s.chunks[k]
	if ch == nil {
		ch = newChunk(k)
		s.chunks[k] = ch
		return ch, nil
	}
	if !ch.Loaded {
		return nil, fmt.Errorf("%s: %w", p, ErrUnloaded)
	}
	return ch, nil
}

func (s *Store) placeEmpty(p grid.Vec3i) (*Chunk, error) {
	ch, err := s.writable(p)
	if err != nil {
		return nil, err
	}
	if ch.get(p) != nil {
		return nil, fmt.Errorf("%s: %w", p, ErrOccupied)
	}
	return ch, nil
}

func (s *Store) PlaceConduit(p grid.Vec3i, logicNode bool) (*grid.Conduit, error) {
	ch, err := s.placeEmpty(p)
	if err != nil {
		return nil, err
	}
	c := grid.NewConduit(p, logicNode)
	ch.set(p, &Cell{Kind: CellConduit, Conduit: c})
	s.h.PlaceConduit(c)
	return c, nil
}

func (s *Store) PlaceDevice(p grid.Vec3i, d Device) error {
	if d == nil {
		return fmt.Errorf("%s: nil device", p)
	}
	ch, err := s.placeEmpty(p)
	if err != nil {
		return err
	}
	ch.set(p, &Cell{Kind: CellDevice, Device: d})
	s.h.NeighborChanged(p)
	return nil
}

// PlaceLever places a native scalar source. Its reading carries the -1 offset of
// legacy sources.
func (s *Store) PlaceLever(p grid.Vec3i, power int) error {
	ch, err := s.placeEmpty(p)
	if err != nil {
		return err
	}
	ch.set(p, &Cell{Kind: CellLever, Power: power})
	s.h.NeighborChanged(p)
	return nil
}

func (s *Store) SetLeverPower(p grid.Vec3i, power int) error {
	cell := s.loadedCell(p)
	if cell == nil || cell.Kind != CellLever {
		return fmt.Errorf("%s: lever: %w", p, ErrNotFound)
	}
	if cell.Power == power {
		return nil
	}
	cell.Power = power
	s.chunks[p.Chunk()].touch()
	s.h.NeighborChanged(p)
	return nil
}

func (s *Store) PlaceBlock(p grid.Vec3i, strong, weak int) error {
	ch, err := s.placeEmpty(p)
	if err != nil {
		return err
	}
	ch.set(p, &Cell{Kind: CellBlock, Power: strong, Weak: weak})
	s.h.NeighborChanged(p)
	return nil
}

// SetOutput changes one channel of the device at p and lets adjacent logic nodes
// re-read it.
func (s *Store) SetOutput(p grid.Vec3i, channel, value int) error {
	d := s.DeviceAt(p)
	if d == nil {
		return fmt.Errorf("%s: device: %w", p, ErrNotFound)
	}
	if channel < 0 || channel >= grid.Channels {
		return fmt.Errorf("channel %d out of range", channel)
	}
	d.SetOutput(channel, value)
	s.chunks[p.Chunk()].touch()
	s.h.NeighborChanged(p)
	return nil
}

func (s *Store) ConfigureSide(p grid.Vec3i, d grid.Dir, side grid.Side) error {
	c := s.ConduitAt(p)
	if c == nil {
		return fmt.Errorf("%s: conduit: %w", p, ErrNotFound)
	}
	if !d.Valid() {
		return fmt.Errorf("invalid direction %d", d)
	}
	if side.Channel < 0 || side.Channel >= grid.Channels {
		return fmt.Errorf("channel %d out of range", side.Channel)
	}
	c.Sides[d] = side
	s.chunks[p.Chunk()].touch()
	s.h.ConduitChanged(c)
	return nil
}

func (s *Store) SetLogicNode(p grid.Vec3i, logicNode bool) error {
	c := s.ConduitAt(p)
	if c == nil {
		return fmt.Errorf("%s: conduit: %w", p, ErrNotFound)
	}
	if c.LogicNode == logicNode {
		return nil
	}
	c.LogicNode = logicNode
	s.chunks[p.Chunk()].touch()
	s.h.ConduitChanged(c)
	return nil
}

// Remove clears p. A device is told its inputs dropped to zero before it goes.
func (s *Store) Remove(p grid.Vec3i) error {
	cell := s.loadedCell(p)
	if cell == nil {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	ch := s.chunks[p.Chunk()]
	switch cell.Kind {
	case CellConduit:
		ch.set(p, nil)
		s.h.RemoveConduit(cell.Conduit)
	default:
		s.h.DeviceRemoved(p, false)
		ch.set(p, nil)
	}
	return nil
}

// LoadChunk marks k loaded (creating it empty if needed) and re-attaches what it
// holds.
func (s *Store) LoadChunk(k grid.ChunkKey) {
	ch := s.chunks[k]
	if ch == nil {
		s.chunks[k] = newChunk(k)
		return
	}
	if ch.Loaded {
		return
	}
	ch.Loaded = true
	for _, p := range ch.positions() {
		cell := ch.get(p)
		if cell.Kind == CellConduit {
			s.h.PlaceConduit(cell.Conduit)
		} else {
			s.h.NeighborChanged(p)
		}
	}
}

// UnloadChunk detaches everything in k without telling devices; the cells are kept
// for a later LoadChunk.
func (s *Store) UnloadChunk(k grid.ChunkKey) error {
	ch := s.chunks[k]
	if ch == nil {
		return fmt.Errorf("chunk %d,%d: %w", k.CX, k.CZ, ErrNotFound)
	}
	if !ch.Loaded {
		return nil
	}
	positions := ch.positions()
	for _, p := range positions {
		if ch.get(p).Kind != CellConduit {
			s.h.DeviceRemoved(p, true)
		}
	}
	ch.Loaded = false
	for _, p := range positions {
		if cell := ch.get(p); cell.Kind == CellConduit {
			s.h.RemoveConduit(cell.Conduit)
		}
	}
	return nil
}

// ChunkState reports whether k is loaded and whether it exists at all.
func (s *Store) ChunkState(k grid.ChunkKey) (loaded, known bool) {
	ch := s.chunks[k]
	if ch == nil {
		return false, false
	}
	return ch.Loaded, true
}

func (s *Store) LoadedChunks() []grid.ChunkKey {
	keys := make([]grid.ChunkKey, 0, len(s.chunks))
	for k, ch := range s.chunks {
		if ch.Loaded {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// Digest hashes every loaded chunk in key order.
func (s *Store) Digest() string {
	h := sha256.New()
	for _, k := range s.LoadedChunks() {
		d := s.chunks[k].Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
