package voxel

import "rednet.ai/internal/sim/grid"

// Device is a block with structured per-channel output that listens to the
// networks it is bridged into.
type Device interface {
	grid.SignalOutput
	grid.SignalInput
	Kind() string
	Outputs() [grid.Channels]int
	SetOutput(channel, value int)
}

// Emitter is bridged one channel per side. It remembers the last level each side
// was told.
type Emitter struct {
	Out    [grid.Channels]int
	BySide [6]int
	Seen   int
}

func NewEmitter() *Emitter { return &Emitter{} }

func (e *Emitter) Kind() string { return "emitter" }

func (e *Emitter) Outputs() [grid.Channels]int { return e.Out }

func (e *Emitter) SetOutput(channel, value int) {
	if channel >= 0 && channel < grid.Channels {
		e.Out[channel] = value
	}
}

func (e *Emitter) OutputValue(_ grid.Vec3i, _ grid.Dir, channel int) int {
	if channel < 0 || channel >= grid.Channels {
		return 0
	}
	return e.Out[channel]
}

func (e *Emitter) OutputValues(grid.Vec3i, grid.Dir) []int { return nil }

func (e *Emitter) InputChanged(_ grid.Vec3i, side grid.Dir, value int) {
	if side.Valid() {
		e.BySide[side] = value
	}
	e.Seen++
}

func (e *Emitter) InputsChanged(_ grid.Vec3i, side grid.Dir, values [grid.Channels]int) {
	// Bridged as omni by mistake: keep the loudest channel.
	best := 0
	for _, v := range values {
		if abs(v) > abs(best) {
			best = v
		}
	}
	e.InputChanged(grid.Vec3i{}, side, best)
}

// Panel reports and receives all sixteen channels at once.
type Panel struct {
	Out  [grid.Channels]int
	In   [grid.Channels]int
	Seen int
}

func NewPanel() *Panel { return &Panel{} }

func (p *Panel) Kind() string { return "panel" }

func (p *Panel) Outputs() [grid.Channels]int { return p.Out }

func (p *Panel) SetOutput(channel, value int) {
	if channel >= 0 && channel < grid.Channels {
		p.Out[channel] = value
	}
}

func (p *Panel) OutputValue(_ grid.Vec3i, _ grid.Dir, channel int) int {
	if channel < 0 || channel >= grid.Channels {
		return 0
	}
	return p.Out[channel]
}

func (p *Panel) OutputValues(grid.Vec3i, grid.Dir) []int {
	out := make([]int, grid.Channels)
	copy(out, p.Out[:])
	return out
}

func (p *Panel) InputChanged(grid.Vec3i, grid.Dir, int) {}

func (p *Panel) InputsChanged(_ grid.Vec3i, _ grid.Dir, values [grid.Channels]int) {
	p.In = values
	p.Seen++
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
