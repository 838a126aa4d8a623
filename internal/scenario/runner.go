package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	plog "rednet.ai/internal/persistence/log"
	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/grid"
	"rednet.ai/internal/sim/voxel"
)

// ErrExpectations is returned when a run completes with failed expectations.
var ErrExpectations = errors.New("expectations failed")

// OpRecorder receives every applied edit.
type OpRecorder interface {
	WriteOp(e plog.OpEntry) error
}

type Failure struct {
	Step    int    `json:"step"`
	Note    string `json:"note,omitempty"`
	Message string `json:"message"`
}

func (f Failure) String() string {
	if f.Note != "" {
		return fmt.Sprintf("step %d (%s): %s", f.Step, f.Note, f.Message)
	}
	return fmt.Sprintf("step %d: %s", f.Step, f.Message)
}

type Result struct {
	Name         string    `json:"name"`
	Steps        int       `json:"steps"`
	Ticks        int       `json:"ticks"`
	Expectations int       `json:"expectations"`
	Failures     []Failure `json:"failures,omitempty"`
	LastTick     uint64    `json:"last_tick"`
	Digest       string    `json:"digest"`
}

// Runner applies scenarios to an engine on the caller's goroutine. It must not be
// used while the engine's Run loop is active.
type Runner struct {
	eng *engine.Engine
	log *log.Logger
	ops OpRecorder
}

func NewRunner(eng *engine.Engine, logger *log.Logger) *Runner {
	return &Runner{eng: eng, log: logger}
}

func (r *Runner) RecordOps(rec OpRecorder) { r.ops = rec }

// Run executes every step. Edit errors abort the run; failed expectations are
// collected and reported together as ErrExpectations.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (Result, error) {
	res := Result{Name: sc.Name}
	store := r.eng.Store()
	for _, c := range sc.Chunks {
		store.LoadChunk(chunkKey(c))
	}

	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Steps++
		step := i + 1
		switch st.Op {
		case "tick":
			n := st.Count
			if n <= 0 {
				n = 1
			}
			for k := 0; k < n; k++ {
				e := r.eng.StepOnce(ctx)
				res.LastTick = e.Tick
				res.Digest = e.Digest
			}
			res.Ticks += n
		case "expect":
			res.Expectations++
			for _, msg := range check(store, st.Expect) {
				f := Failure{Step: step, Note: st.Note, Message: msg}
				res.Failures = append(res.Failures, f)
				if r.log != nil {
					r.log.Printf("%s: %s", sc.Name, f)
				}
			}
		default:
			err := apply(store, st)
			r.record(step, st, err)
			if err != nil {
				return res, fmt.Errorf("step %d %s: %w", step, st.Op, err)
			}
		}
	}
	if len(res.Failures) > 0 {
		return res, fmt.Errorf("%s: %d of %d: %w", sc.Name, len(res.Failures), res.Expectations, ErrExpectations)
	}
	return res, nil
}

func (r *Runner) record(step int, st Step, err error) {
	if r.ops == nil {
		return
	}
	e := plog.OpEntry{
		RunID: r.eng.RunID(),
		Tick:  r.eng.CurrentTick(),
		Step:  step,
		Op:    st.Op,
		Args:  st,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if werr := r.ops.WriteOp(e); werr != nil && r.log != nil {
		r.log.Printf("op log: %v", werr)
	}
}

func apply(s *voxel.Store, st Step) error {
	p := vec(st.Pos)
	switch st.Op {
	case "load_chunk":
		s.LoadChunk(chunkKey(st.Chunk))
		return nil
	case "unload_chunk":
		return s.UnloadChunk(chunkKey(st.Chunk))
	case "place_conduit":
		_, err := s.PlaceConduit(p, st.Logic)
		return err
	case "remove_conduit":
		if s.ConduitAt(p) == nil {
			return fmt.Errorf("%s: conduit: %w", p, voxel.ErrNotFound)
		}
		return s.Remove(p)
	case "configure_side":
		d, err := parseDir(st.Dir)
		if err != nil {
			return err
		}
		mode, ok := grid.ParseSideMode(strings.ToUpper(st.Mode))
		if !ok {
			return fmt.Errorf("unknown side mode %q", st.Mode)
		}
		return s.ConfigureSide(p, d, grid.Side{Mode: mode, Channel: st.Channel, Weak: st.Weak})
	case "set_logic":
		return s.SetLogicNode(p, st.Logic)
	case "place_emitter":
		e := voxel.NewEmitter()
		for _, o := range st.Outputs {
			e.SetOutput(o.Channel, o.Value)
		}
		return s.PlaceDevice(p, e)
	case "place_panel":
		d := voxel.NewPanel()
		for _, o := range st.Outputs {
			d.SetOutput(o.Channel, o.Value)
		}
		return s.PlaceDevice(p, d)
	case "set_output":
		return s.SetOutput(p, st.Channel, st.Value)
	case "place_lever":
		return s.PlaceLever(p, st.Power)
	case "set_lever":
		return s.SetLeverPower(p, st.Power)
	case "place_block":
		return s.PlaceBlock(p, st.Strong, st.WeakPower)
	case "remove":
		return s.Remove(p)
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

// check returns one message per unmet assertion.
func check(s *voxel.Store, ex *Expect) []string {
	if ex == nil {
		return nil
	}
	h := s.Handler()
	var out []string
	failf := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	if ex.Networks != nil {
		if got := len(h.Networks()); got != *ex.Networks {
			failf("networks=%d, want %d", got, *ex.Networks)
		}
	}
	if ex.Ticking != nil {
		got := 0
		for _, n := range h.Networks() {
			if h.IsGridTicking(n) {
				got++
			}
		}
		if got != *ex.Ticking {
			failf("ticking=%d, want %d", got, *ex.Ticking)
		}
	}

	var n *grid.Network
	if ex.At != nil {
		at := vec(ex.At)
		c := s.ConduitAt(at)
		if c != nil {
			n = h.NetworkOf(c)
		}
		switch {
		case ex.Detached && n != nil:
			failf("%s is attached to grid %d, want detached", at, n.ID())
		case !ex.Detached && c == nil:
			failf("no loaded conduit at %s", at)
		case !ex.Detached && n == nil:
			failf("conduit at %s has no network", at)
		}
	}

	if n != nil {
		if ex.Conduits != nil && n.ConduitCount() != *ex.Conduits {
			failf("grid %d conduits=%d, want %d", n.ID(), n.ConduitCount(), *ex.Conduits)
		}
		if ex.Nodes != nil && n.NodeCount() != *ex.Nodes {
			failf("grid %d nodes=%d, want %d", n.ID(), n.NodeCount(), *ex.Nodes)
		}
		for _, lv := range ex.Levels {
			if got := n.PowerLevel(lv.Channel); got != lv.Value {
				failf("grid %d ch%d=%d, want %d", n.ID(), lv.Channel, got, lv.Value)
			}
		}
		if pe := ex.Provider; pe != nil {
			node, ok := n.Provider(pe.Channel)
			switch {
			case pe.None && ok:
				failf("grid %d ch%d provider=%s, want none", n.ID(), pe.Channel, node)
			case !pe.None && !ok:
				failf("grid %d ch%d has no provider", n.ID(), pe.Channel)
			case !pe.None:
				if pe.Pos != nil && node.Pos != vec(pe.Pos) {
					failf("grid %d ch%d provider=%s, want pos %s", n.ID(), pe.Channel, node, vec(pe.Pos))
				}
				if pe.Face != "" {
					if d, err := parseDir(pe.Face); err != nil || node.Face != d {
						failf("grid %d ch%d provider=%s, want face %s", n.ID(), pe.Channel, node, pe.Face)
					}
				}
			}
		}
	} else if ex.At == nil && (ex.Conduits != nil || ex.Nodes != nil || len(ex.Levels) > 0 || ex.Provider != nil) {
		failf("network assertions need at")
	}

	if len(ex.SameNetwork) > 0 {
		var first *grid.Network
		for i, p := range ex.SameNetwork {
			pos := vec(p)
			var got *grid.Network
			if c := s.ConduitAt(pos); c != nil {
				got = h.NetworkOf(c)
			}
			if got == nil {
				failf("%s has no network", pos)
				continue
			}
			if i == 0 {
				first = got
				continue
			}
			if first != nil && got != first {
				failf("%s on grid %d, want grid %d", pos, got.ID(), first.ID())
			}
		}
	}

	if in := ex.Input; in != nil {
		pos := vec(in.Pos)
		side, err := parseDir(in.Side)
		if err != nil {
			failf("%v", err)
		} else if e, ok := s.DeviceAt(pos).(*voxel.Emitter); !ok {
			failf("no emitter at %s", pos)
		} else if e.BySide[side] != in.Value {
			failf("emitter %s side %s=%d, want %d", pos, side, e.BySide[side], in.Value)
		}
	}
	return out
}
